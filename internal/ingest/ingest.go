// Package ingest validates and stores new readings, and moves them through
// a Redis stream between producers and the store.
package ingest

import (
	"context"
	"math"

	"sensorcast/internal/logging"
	"sensorcast/internal/metrics"
	"sensorcast/internal/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Sources used in metrics and logs
const (
	SourceAPI    = "api"
	SourceStream = "stream"
)

// ErrInvalidReading is wrapped by every validation failure
var ErrInvalidReading = errors.New("invalid reading")

// Validate rejects readings that cannot be aggregated
func Validate(r models.Reading) error {
	switch {
	case r.Timestamp.IsZero():
		return errors.Wrap(ErrInvalidReading, "missing datetime")
	case r.Steps < 0:
		return errors.Wrapf(ErrInvalidReading, "steps %d is negative", r.Steps)
	case !finite(r.Voltage):
		return errors.Wrap(ErrInvalidReading, "voltage is not a finite number")
	case !finite(r.Current):
		return errors.Wrap(ErrInvalidReading, "current is not a finite number")
	case r.BatteryLevel != nil && !finite(*r.BatteryLevel):
		return errors.Wrap(ErrInvalidReading, "battery_level is not a finite number")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Writer appends readings to the store
type Writer interface {
	InsertReading(ctx context.Context, r models.Reading) (int64, error)
}

// Invalidator is told about every stored reading
type Invalidator interface {
	Invalidate()
}

// Ingestor is the only write path into the store. Every successful insert
// invalidates the forecast cache before Store returns.
type Ingestor struct {
	writer Writer
	cache  Invalidator
	log    logrus.FieldLogger
}

// NewIngestor creates an ingestor that writes to store and invalidates cache
func NewIngestor(store Writer, cache Invalidator) *Ingestor {
	return &Ingestor{
		writer: store,
		cache:  cache,
		log:    logging.Component("ingest"),
	}
}

// Store validates and inserts r, returning its id
func (i *Ingestor) Store(ctx context.Context, r models.Reading) (int64, error) {
	return i.store(ctx, SourceAPI, r)
}

func (i *Ingestor) store(ctx context.Context, source string, r models.Reading) (id int64, err error) {
	defer func() { metrics.RecordIngest(source, err) }()

	if err := Validate(r); err != nil {
		return 0, err
	}
	id, err = i.writer.InsertReading(ctx, r)
	if err != nil {
		return 0, errors.Wrap(err, "store reading")
	}
	i.cache.Invalidate()

	i.log.WithFields(logrus.Fields{
		"id":       id,
		"source":   source,
		"datetime": r.Timestamp,
	}).Debug("reading stored")
	return id, nil
}
