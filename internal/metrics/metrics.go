package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	// DBQueriesTotal tracks the total number of database queries
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"query_type", "table", "status"},
	)

	// DBQueryDuration tracks the duration of database queries
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of established connections both in use and idle",
		},
	)

	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of connections currently in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle connections",
		},
	)
)

// Forecast cache metrics
var (
	// ForecastRecomputeTotal counts finished recomputes by outcome (success, partial, failure)
	ForecastRecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_recompute_total",
			Help: "Total number of forecast recomputes by outcome",
		},
		[]string{"status"},
	)

	ForecastRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forecast_recompute_duration_seconds",
			Help:    "Duration of forecast recomputes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ForecastCacheReads counts reads by the state they found (fresh, stale)
	ForecastCacheReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_cache_reads_total",
			Help: "Total number of forecast cache reads by observed state",
		},
		[]string{"state"},
	)

	ForecastInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forecast_invalidations_total",
			Help: "Total number of forecast cache invalidations",
		},
	)

	// ForecastDiscarded counts recompute results dropped because an
	// invalidation arrived while they were in flight
	ForecastDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forecast_discarded_total",
			Help: "Total number of recompute results discarded as outdated",
		},
	)
)

// Ingestion metrics
var (
	IngestReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_readings_total",
			Help: "Total number of readings ingested by source and status",
		},
		[]string{"source", "status"},
	)

	// AppInfo provides static information about the application
	AppInfo = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensorcast_app_info",
			Help: "Application information (always 1)",
		},
	)

	// AppStartTime records when the application started
	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensorcast_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

func init() {
	AppInfo.Set(1)
	AppStartTime.SetToCurrentTime()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordDBQuery records a database query execution
func RecordDBQuery(queryType, table string, duration time.Duration, err error) {
	DBQueriesTotal.WithLabelValues(queryType, table, statusLabel(err)).Inc()
	DBQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(open, inUse, idle int) {
	DBConnectionsOpen.Set(float64(open))
	DBConnectionsInUse.Set(float64(inUse))
	DBConnectionsIdle.Set(float64(idle))
}

// RecordRecompute records one finished forecast recompute
func RecordRecompute(status string, duration time.Duration) {
	ForecastRecomputeTotal.WithLabelValues(status).Inc()
	ForecastRecomputeDuration.Observe(duration.Seconds())
}

// RecordCacheRead records whether a cache read found fresh or stale state
func RecordCacheRead(fresh bool) {
	state := "stale"
	if fresh {
		state = "fresh"
	}
	ForecastCacheReads.WithLabelValues(state).Inc()
}

// RecordIngest records one ingested reading
func RecordIngest(source string, err error) {
	IngestReadingsTotal.WithLabelValues(source, statusLabel(err)).Inc()
}
