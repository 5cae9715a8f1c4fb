package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"sensorcast/internal/models"
)

// MemoryStore keeps readings in process, ordered by timestamp. It answers
// the same grouped queries as DB and backs tests and the "memory" driver.
type MemoryStore struct {
	mu       sync.RWMutex
	readings []models.Reading
	nextID   int64
	loc      *time.Location
}

// NewMemoryStore creates an empty store that buckets by calendar day in loc
func NewMemoryStore(loc *time.Location) *MemoryStore {
	if loc == nil {
		loc = time.Local
	}
	return &MemoryStore{loc: loc}
}

// InsertReading stores a copy of r and returns its id
func (m *MemoryStore) InsertReading(ctx context.Context, r models.Reading) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	r.ID = m.nextID
	if r.BatteryLevel != nil {
		v := *r.BatteryLevel
		r.BatteryLevel = &v
	}

	// insert after any reading with the same timestamp
	i := sort.Search(len(m.readings), func(i int) bool {
		return m.readings[i].Timestamp.After(r.Timestamp)
	})
	m.readings = append(m.readings, models.Reading{})
	copy(m.readings[i+1:], m.readings[i:])
	m.readings[i] = r

	return r.ID, nil
}

func (m *MemoryStore) periodKey(t time.Time, unit models.Unit) time.Time {
	y, mo, d := t.In(m.loc).Date()
	if unit == models.Month {
		d = 1
	}
	return time.Date(y, mo, d, 0, 0, 0, 0, m.loc)
}

// GroupAverage averages a field per calendar day or month, ascending by period
func (m *MemoryStore) GroupAverage(ctx context.Context, field models.Field, unit models.Unit) ([]models.PeriodValue, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var series []models.PeriodValue
	var sum float64
	var count int
	var current time.Time
	flush := func() {
		if count > 0 {
			series = append(series, models.PeriodValue{Period: current, Value: sum / float64(count)})
		}
	}

	for _, r := range m.readings {
		v, ok := field.Value(r)
		if !ok {
			continue
		}
		key := m.periodKey(r.Timestamp, unit)
		if !key.Equal(current) {
			flush()
			current, sum, count = key, 0, 0
		}
		sum += v
		count++
	}
	flush()

	return series, nil
}

// dailyGroups walks readings in range and calls fn once per calendar day, ascending
func (m *MemoryStore) dailyGroups(r models.Range, fn func(day time.Time, rs []models.Reading)) {
	var group []models.Reading
	var current time.Time
	for _, rd := range m.readings {
		if !r.Contains(rd.Timestamp) {
			continue
		}
		key := m.periodKey(rd.Timestamp, models.Day)
		if !key.Equal(current) && len(group) > 0 {
			fn(current, group)
			group = nil
		}
		current = key
		group = append(group, rd)
	}
	if len(group) > 0 {
		fn(current, group)
	}
}

// DailyTotals sums steps, voltage and current per calendar day
func (m *MemoryStore) DailyTotals(ctx context.Context, r models.Range, order models.Order) ([]models.DailyTotal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var totals []models.DailyTotal
	m.dailyGroups(r, func(day time.Time, rs []models.Reading) {
		t := models.DailyTotal{Date: day}
		for _, rd := range rs {
			t.TotalSteps += int64(rd.Steps)
			t.TotalVoltage += rd.Voltage
			t.TotalCurrent += rd.Current
		}
		totals = append(totals, t)
	})

	if order == models.Descending {
		reverse(totals)
	}
	return totals, nil
}

// ChartAggregates returns per-day voltage/current averages and step sums, newest first
func (m *MemoryStore) ChartAggregates(ctx context.Context) ([]models.ChartPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var points []models.ChartPoint
	m.dailyGroups(models.Range{}, func(day time.Time, rs []models.Reading) {
		p := models.ChartPoint{Date: day}
		for _, rd := range rs {
			p.AvgVoltage += rd.Voltage
			p.AvgCurrent += rd.Current
			p.TotalSteps += int64(rd.Steps)
		}
		p.AvgVoltage /= float64(len(rs))
		p.AvgCurrent /= float64(len(rs))
		points = append(points, p)
	})

	reverse(points)
	return points, nil
}

// Readings returns raw readings in range, newest first, with the total count in range
func (m *MemoryStore) Readings(ctx context.Context, r models.Range, offset, limit int) ([]models.Reading, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []models.Reading
	for i := len(m.readings) - 1; i >= 0; i-- {
		if r.Contains(m.readings[i].Timestamp) {
			matched = append(matched, m.readings[i])
		}
	}

	total := len(matched)
	if offset < 0 || offset >= total || limit <= 0 {
		return nil, total, nil
	}
	end := total
	if limit < total-offset {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
