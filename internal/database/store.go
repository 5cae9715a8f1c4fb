package database

import (
	"context"
	"time"

	"sensorcast/internal/models"

	"github.com/pkg/errors"
)

// Store is the reading store used by the server: MySQL or in memory
type Store interface {
	InsertReading(ctx context.Context, r models.Reading) (int64, error)
	GroupAverage(ctx context.Context, field models.Field, unit models.Unit) ([]models.PeriodValue, error)
	DailyTotals(ctx context.Context, r models.Range, order models.Order) ([]models.DailyTotal, error)
	ChartAggregates(ctx context.Context) ([]models.ChartPoint, error)
	Readings(ctx context.Context, r models.Range, offset, limit int) ([]models.Reading, int, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*MemoryStore)(nil)
)

// Open returns the store for driver ("mysql" or "memory")
func Open(driver, dsn string, loc *time.Location) (Store, error) {
	switch driver {
	case "mysql", "":
		db, err := NewDB(dsn, loc)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "memory":
		return NewMemoryStore(loc), nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", driver)
	}
}
