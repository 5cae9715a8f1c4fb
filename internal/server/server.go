package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"sensorcast/internal/aggregate"
	"sensorcast/internal/config"
	"sensorcast/internal/ingest"
	"sensorcast/internal/logging"
	"sensorcast/internal/models"
	"sensorcast/internal/pagination"
	"sensorcast/internal/predictor"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Queries is the read side the dashboard endpoints need
type Queries interface {
	DailySeries(ctx context.Context, field models.Field) ([]models.DailyBucket, error)
	DailyTotals(ctx context.Context, r models.Range, order models.Order) ([]models.DailyTotal, error)
	ChartSeries(ctx context.Context) ([]models.ChartPoint, error)
	ReadingsPage(ctx context.Context, r models.Range, page, perPage int) (pagination.Page[models.Reading], error)
	Latest(ctx context.Context, n int) ([]models.Reading, error)
}

// Forecaster produces the combined forecast
type Forecaster interface {
	GetForecast(ctx context.Context) models.Forecast
}

// ReadingStorer accepts new readings
type ReadingStorer interface {
	Store(ctx context.Context, r models.Reading) (int64, error)
}

// Pinger reports store health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators a Server is built from
type Deps struct {
	Queries    Queries
	Forecaster Forecaster
	Ingestor   ReadingStorer
	Store      Pinger
	Pagination config.PaginationConfig
	HTTP       config.HTTPConfig
	Location   *time.Location
	Logger     *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	queries    Queries
	forecaster Forecaster
	ingestor   ReadingStorer
	store      Pinger
	pages      config.PaginationConfig
	loc        *time.Location
	now        func() time.Time
	limiter    *rate.Limiter

	router     *mux.Router
	httpServer *http.Server
	logger     *logrus.Logger
	accessLog  *io.PipeWriter
	log        logrus.FieldLogger
}

// NewServer creates a new HTTP server
func NewServer(d Deps) *Server {
	s := &Server{
		queries:    d.Queries,
		forecaster: d.Forecaster,
		ingestor:   d.Ingestor,
		store:      d.Store,
		pages:      d.Pagination,
		loc:        d.Location,
		now:        time.Now,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		router:     mux.NewRouter(),
		logger:     d.Logger,
	}
	if d.HTTP.IngestRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(d.HTTP.IngestRate), max(d.HTTP.IngestBurst, 1))
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.logger == nil {
		s.logger = logging.Logger()
	}
	s.log = s.logger.WithField("component", "server")
	s.accessLog = s.logger.Writer()
	if s.pages.PerPage <= 0 {
		s.pages.PerPage = 10
	}
	if s.pages.ChartDaysPerPage <= 0 {
		s.pages.ChartDaysPerPage = 7
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	))
	api.HandleFunc("/forecast", s.handleForecast).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/daily-average", s.handleDailyAverage).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/summary-data", s.handleSummary).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/chart-data", s.handleChart).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/sensor-data", s.handleSensorData).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/latest-logs", s.handleLatestLogs).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/readings", s.handleCreateReading).Methods(http.MethodPost, http.MethodOptions)

	return s
}

// Handler is the router wrapped with access logging
func (s *Server) Handler() http.Handler {
	return handlers.LoggingHandler(s.accessLog, s.router)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.WithField("addr", addr).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// the access log
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.accessLog.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	body := map[string]string{"time": time.Now().UTC().String()}
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
			body["error"] = err.Error()
		}
	}
	body["status"] = status
	writeJSON(w, code, body)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.forecaster.GetForecast(r.Context()))
}

// handleDailyAverage pages the daily averages of one field, newest first
func (s *Server) handleDailyAverage(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("field")
	if name == "" {
		name = "voltage"
	}
	field, err := models.ParseField(name)
	if err != nil {
		s.fail(w, err)
		return
	}
	page, perPage, err := s.pageParams(r, "page", "per_page", s.pages.PerPage)
	if err != nil {
		s.fail(w, err)
		return
	}

	series, err := s.queries.DailySeries(r.Context(), field)
	if err != nil {
		s.fail(w, err)
		return
	}

	// regression order is ascending; the table shows the latest day first
	display := make([]models.DailyBucket, len(series))
	for i, b := range series {
		b.AvgValue = predictor.Round2(b.AvgValue)
		display[len(series)-1-i] = b
	}

	p, err := pagination.Paginate(display, page, perPage)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"field":   field.String(),
		"average": p,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng := aggregate.ParseRange(q.Get("filter"), q.Get("month"), s.now().In(s.loc))

	page, perPage, err := s.pageParams(r, "page", "per_page", s.pages.PerPage)
	if err != nil {
		s.fail(w, err)
		return
	}

	totals, err := s.queries.DailyTotals(r.Context(), rng, models.Descending)
	if err != nil {
		s.fail(w, err)
		return
	}
	p, err := pagination.Paginate(roundTotals(totals), page, perPage)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filter":  q.Get("filter"),
		"month":   q.Get("month"),
		"summary": roundSummary(aggregate.Summarize(totals)),
		"daily":   p,
	})
}

// handleChart serves one page of days, oldest first within the page
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := s.pageParams(r, "chart_page", "days_per_page", s.pages.ChartDaysPerPage)
	if err != nil {
		s.fail(w, err)
		return
	}

	points, err := s.queries.ChartSeries(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	for i := range points {
		points[i].AvgVoltage = predictor.Round2(points[i].AvgVoltage)
		points[i].AvgCurrent = predictor.Round2(points[i].AvgCurrent)
	}

	p, err := pagination.ChartPage(points, page, perPage)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSensorData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng := aggregate.ParseRange(q.Get("filter"), q.Get("month"), s.now().In(s.loc))

	page, perPage, err := s.pageParams(r, "page", "per_page", s.pages.PerPage)
	if err != nil {
		s.fail(w, err)
		return
	}

	p, err := s.queries.ReadingsPage(r.Context(), rng, page, perPage)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleLatestLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", s.pages.PerPage)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	readings, err := s.queries.Latest(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if readings == nil {
		readings = []models.Reading{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(readings),
		"readings": readings,
	})
}

func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many readings, slow down")
		return
	}

	var payload ingest.Payload
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	reading, err := payload.Reading(s.loc)
	if err != nil {
		s.fail(w, err)
		return
	}

	id, err := s.ingestor.Store(r.Context(), reading)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "success",
		"id":     id,
	})
}

// pageParams reads a page number and size, defaulting to page 1 and def
func (s *Server) pageParams(r *http.Request, pageKey, sizeKey string, def int) (page, size int, err error) {
	if page, err = intParam(r, pageKey, 1); err != nil {
		return 0, 0, errors.Wrap(pagination.ErrInvalidPage, pageKey)
	}
	if size, err = intParam(r, sizeKey, def); err != nil {
		return 0, 0, errors.Wrap(pagination.ErrInvalidPage, sizeKey)
	}
	if page < 1 || size <= 0 {
		return 0, 0, pagination.ErrInvalidPage
	}
	return page, size, nil
}

func intParam(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
