// Package forecast owns the cached next-day predictions, the background
// refresh loop and the combined forecast served to callers.
package forecast

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"sensorcast/internal/logging"
	"sensorcast/internal/metrics"
	"sensorcast/internal/models"
	"sensorcast/internal/predictor"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrClosed is reported by Recompute after Close
var ErrClosed = errors.New("forecast cache closed")

// DailySource supplies the ascending daily series a next-day prediction is fitted on
type DailySource interface {
	DailySeries(ctx context.Context, field models.Field) ([]models.DailyBucket, error)
}

// cachedFields are predicted on every recompute, each independently
var cachedFields = []models.Field{models.FieldVoltage, models.FieldCurrent}

// FieldFailure records why one field could not be recomputed
type FieldFailure struct {
	Field models.Field
	Err   error
}

func (f FieldFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Field, f.Err)
}

// Result is the outcome of one recompute as seen by its callers. State is
// what the cache holds after the attempt, which is the previous state for
// any field listed in Failures.
type Result struct {
	State      models.ForecastState
	Generation uint64
	Failures   []FieldFailure
	Duration   time.Duration
	// Cached is set when a read was answered without recomputing
	Cached bool
}

// OK reports whether every field was recomputed
func (r Result) OK() bool {
	return len(r.Failures) == 0
}

// Status is "success", "partial" or "failure"
func (r Result) Status() string {
	return status(len(r.Failures))
}

func status(failures int) string {
	switch {
	case failures == 0:
		return "success"
	case failures < len(cachedFields):
		return "partial"
	default:
		return "failure"
	}
}

// Err joins the field failures, nil when the recompute succeeded
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	msg := "recompute failed"
	for _, f := range r.Failures {
		msg += "; " + f.Error()
	}
	return errors.New(msg)
}

type request struct {
	force bool
	reply chan Result
}

type outcome struct {
	generation uint64
	day        time.Time
	values     map[models.Field]*float64
	failures   []FieldFailure
	duration   time.Duration
}

// Cache holds the last computed next-day predictions. A single owner
// goroutine serializes every read, invalidation and commit; at most one
// recompute runs at a time and readers that find the state stale wait for it.
type Cache struct {
	source DailySource
	now    func() time.Time
	loc    *time.Location
	log    logrus.FieldLogger

	requests     chan request
	invalidation chan struct{}
	results      chan outcome

	// last committed state, for readers that give up waiting
	snapshot atomic.Pointer[models.ForecastState]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLocation sets the zone in which "today" is decided
func WithLocation(loc *time.Location) Option {
	return func(c *Cache) { c.loc = loc }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Cache) { c.log = log }
}

// NewCache starts the cache owner. Call Close to stop it.
func NewCache(source DailySource, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		source:       source,
		now:          time.Now,
		loc:          time.Local,
		log:          logging.Component("forecast"),
		requests:     make(chan request),
		invalidation: make(chan struct{}),
		results:      make(chan outcome, 1),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snapshot.Store(&models.ForecastState{})

	go c.run()
	return c
}

// Read returns the cached state, recomputing first when it was not computed
// today. It never fails: on a recompute failure or a cancelled ctx the last
// known good state is returned.
func (c *Cache) Read(ctx context.Context) models.ForecastState {
	res, err := c.do(ctx, false)
	if err != nil {
		return c.Snapshot()
	}
	metrics.RecordCacheRead(res.Cached)
	return res.State
}

// Recompute forces a recompute, joining one already in flight, and waits
// for its result.
func (c *Cache) Recompute(ctx context.Context) (Result, error) {
	return c.do(ctx, true)
}

// Invalidate marks the state stale without recomputing. Once it returns, no
// later Read is answered with values computed before the call.
func (c *Cache) Invalidate() {
	select {
	case c.invalidation <- struct{}{}:
	case <-c.done:
	}
}

// Snapshot returns the last committed state without waiting
func (c *Cache) Snapshot() models.ForecastState {
	return c.snapshot.Load().Clone()
}

// Close stops the owner goroutine; pending callers get the last snapshot
func (c *Cache) Close() {
	c.cancel()
	<-c.done
}

func (c *Cache) do(ctx context.Context, force bool) (Result, error) {
	req := request{force: force, reply: make(chan Result, 1)}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-c.done:
		return Result{}, ErrClosed
	}

	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-c.done:
		return Result{}, ErrClosed
	}
}

func (c *Cache) today() time.Time {
	y, m, d := c.now().In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

func (c *Cache) run() {
	defer close(c.done)

	var (
		state      models.ForecastState
		generation uint64
		running    bool
		waiters    []chan Result
	)

	start := func() {
		running = true
		go c.compute(generation, c.today())
	}

	for {
		select {
		case <-c.ctx.Done():
			return

		case req := <-c.requests:
			if !req.force && state.FreshOn(c.today()) {
				req.reply <- Result{State: state.Clone(), Generation: generation, Cached: true}
				continue
			}
			waiters = append(waiters, req.reply)
			if !running {
				start()
			}

		case <-c.invalidation:
			generation++
			state.ComputedOn = time.Time{}
			c.snapshot.Store(ptr(state.Clone()))
			metrics.ForecastInvalidations.Inc()

		case out := <-c.results:
			running = false
			if out.generation != generation {
				metrics.ForecastDiscarded.Inc()
				c.log.WithFields(logrus.Fields{
					"generation": out.generation,
					"current":    generation,
				}).Debug("discarding forecast computed before invalidation")
				if len(waiters) > 0 {
					start()
				}
				continue
			}

			failed := make(map[models.Field]bool, len(out.failures))
			for _, f := range out.failures {
				failed[f.Field] = true
			}
			for _, field := range cachedFields {
				if !failed[field] {
					state.Set(field, out.values[field])
				}
			}
			if len(out.failures) == 0 {
				state.ComputedOn = out.day
			}
			c.snapshot.Store(ptr(state.Clone()))

			res := Result{State: state.Clone(), Generation: generation, Failures: out.failures, Duration: out.duration}
			for _, w := range waiters {
				w <- res
			}
			waiters = nil
		}
	}
}

// compute runs outside the owner goroutine and reports back on results
func (c *Cache) compute(generation uint64, day time.Time) {
	started := time.Now()
	out := outcome{generation: generation, day: day, values: make(map[models.Field]*float64)}

	for _, field := range cachedFields {
		v, err := c.predict(field)
		if err != nil {
			out.failures = append(out.failures, FieldFailure{Field: field, Err: err})
			c.log.WithError(err).WithField("field", field.String()).Error("forecast recompute failed")
			continue
		}
		out.values[field] = v
	}
	out.duration = time.Since(started)

	metrics.RecordRecompute(status(len(out.failures)), out.duration)

	select {
	case c.results <- out:
	case <-c.ctx.Done():
	}
}

// predict turns a panic in the pipeline into an error for that field only
func (c *Cache) predict(field models.Field) (v *float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()

	series, err := c.source.DailySeries(c.ctx, field)
	if err != nil {
		return nil, err
	}
	return predictor.PredictNext(series), nil
}

func ptr[T any](v T) *T {
	return &v
}
