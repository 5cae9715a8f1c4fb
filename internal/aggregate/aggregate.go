// Package aggregate turns raw readings into the daily and monthly series
// used by the dashboard and the trend predictor.
package aggregate

import (
	"context"
	"sort"
	"time"

	"sensorcast/internal/models"
	"sensorcast/internal/pagination"

	"github.com/pkg/errors"
)

// Store is the read side of the reading store. Grouped results come back
// ascending by period unless an order is given.
type Store interface {
	GroupAverage(ctx context.Context, field models.Field, unit models.Unit) ([]models.PeriodValue, error)
	DailyTotals(ctx context.Context, r models.Range, order models.Order) ([]models.DailyTotal, error)
	ChartAggregates(ctx context.Context) ([]models.ChartPoint, error)
	Readings(ctx context.Context, r models.Range, offset, limit int) ([]models.Reading, int, error)
}

// Layer is the aggregation query layer. It has no state beyond the store.
type Layer struct {
	store Store
}

// NewLayer creates a query layer over store
func NewLayer(store Store) *Layer {
	return &Layer{store: store}
}

// ascendingByPeriod sorts a copy of the store output so index assignment
// never depends on the store honoring its ordering contract.
func ascendingByPeriod(rows []models.PeriodValue) []models.PeriodValue {
	out := append([]models.PeriodValue(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out
}

// DailySeries averages field per calendar day, ascending by date. DayIndex
// is the number of whole days since the first bucket. No readings yields an
// empty series.
func (l *Layer) DailySeries(ctx context.Context, field models.Field) ([]models.DailyBucket, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}

	rows, err := l.store.GroupAverage(ctx, field, models.Day)
	if err != nil {
		return nil, errors.Wrapf(err, "daily series for %s", field)
	}
	rows = ascendingByPeriod(rows)

	series := make([]models.DailyBucket, 0, len(rows))
	for _, row := range rows {
		series = append(series, models.DailyBucket{
			Date:     row.Period,
			AvgValue: row.Value,
			DayIndex: daysBetween(rows[0].Period, row.Period),
		})
	}
	return series, nil
}

// MonthlySeries averages field per calendar month, ascending. MonthIndex is
// the calendar distance in months from the first bucket; months without
// readings are not backfilled, so indexes can skip. A series shorter than
// minBuckets returns an InsufficientHistoryError instead of data.
func (l *Layer) MonthlySeries(ctx context.Context, field models.Field, minBuckets int) ([]models.MonthlyBucket, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}

	rows, err := l.store.GroupAverage(ctx, field, models.Month)
	if err != nil {
		return nil, errors.Wrapf(err, "monthly series for %s", field)
	}
	if len(rows) < minBuckets || len(rows) == 0 {
		return nil, &InsufficientHistoryError{Field: field, Have: len(rows), Need: minBuckets}
	}
	rows = ascendingByPeriod(rows)

	series := make([]models.MonthlyBucket, 0, len(rows))
	for _, row := range rows {
		series = append(series, models.MonthlyBucket{
			Month:      row.Period,
			AvgValue:   row.Value,
			MonthIndex: monthsBetween(rows[0].Period, row.Period),
		})
	}
	return series, nil
}

// DailyTotals sums steps, voltage and current per day in the requested order
func (l *Layer) DailyTotals(ctx context.Context, r models.Range, order models.Order) ([]models.DailyTotal, error) {
	totals, err := l.store.DailyTotals(ctx, r, order)
	if err != nil {
		return nil, errors.Wrap(err, "daily totals")
	}
	return totals, nil
}

// ChartSeries returns per-day chart points, newest first
func (l *Layer) ChartSeries(ctx context.Context) ([]models.ChartPoint, error) {
	points, err := l.store.ChartAggregates(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "chart series")
	}
	return points, nil
}

// ReadingsPage lists raw readings in range, newest first
func (l *Layer) ReadingsPage(ctx context.Context, r models.Range, page, perPage int) (pagination.Page[models.Reading], error) {
	offset, limit, err := pagination.Bounds(page, perPage)
	if err != nil {
		return pagination.Page[models.Reading]{}, err
	}
	readings, total, err := l.store.Readings(ctx, r, offset, limit)
	if err != nil {
		return pagination.Page[models.Reading]{}, errors.Wrap(err, "readings page")
	}
	return pagination.FromTotal(readings, total, page, perPage), nil
}

// Latest returns the n most recent readings
func (l *Layer) Latest(ctx context.Context, n int) ([]models.Reading, error) {
	readings, _, err := l.store.Readings(ctx, models.Range{}, 0, n)
	if err != nil {
		return nil, errors.Wrap(err, "latest readings")
	}
	return readings, nil
}

// Summarize computes totals, per-day averages and extremes over daily totals.
// An empty input yields a zero summary.
func Summarize(totals []models.DailyTotal) models.Summary {
	s := models.Summary{Days: len(totals)}
	if len(totals) == 0 {
		return s
	}

	s.MaxSteps, s.MinSteps = totals[0].TotalSteps, totals[0].TotalSteps
	s.MaxVoltage, s.MinVoltage = totals[0].TotalVoltage, totals[0].TotalVoltage
	s.MaxCurrent, s.MinCurrent = totals[0].TotalCurrent, totals[0].TotalCurrent

	for _, t := range totals {
		s.TotalSteps += t.TotalSteps
		s.TotalVoltage += t.TotalVoltage
		s.TotalCurrent += t.TotalCurrent

		s.MaxSteps = max(s.MaxSteps, t.TotalSteps)
		s.MinSteps = min(s.MinSteps, t.TotalSteps)
		s.MaxVoltage = max(s.MaxVoltage, t.TotalVoltage)
		s.MinVoltage = min(s.MinVoltage, t.TotalVoltage)
		s.MaxCurrent = max(s.MaxCurrent, t.TotalCurrent)
		s.MinCurrent = min(s.MinCurrent, t.TotalCurrent)
	}

	n := float64(len(totals))
	s.AvgSteps = float64(s.TotalSteps) / n
	s.AvgVoltage = s.TotalVoltage / n
	s.AvgCurrent = s.TotalCurrent / n
	return s
}

// daysBetween counts calendar days from a to b, ignoring clock time and DST
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
