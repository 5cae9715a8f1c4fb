package aggregate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"sensorcast/internal/database"
	"sensorcast/internal/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLayer(t *testing.T, readings ...models.Reading) *Layer {
	t.Helper()
	store := database.NewMemoryStore(time.UTC)
	for _, r := range readings {
		_, err := store.InsertReading(context.Background(), r)
		require.NoError(t, err)
	}
	return NewLayer(store)
}

func day(d, hour int) time.Time {
	return time.Date(2024, 1, d, hour, 0, 0, 0, time.UTC)
}

type failingStore struct{}

func (failingStore) GroupAverage(context.Context, models.Field, models.Unit) ([]models.PeriodValue, error) {
	return nil, fmt.Errorf("store unavailable")
}

func (failingStore) DailyTotals(context.Context, models.Range, models.Order) ([]models.DailyTotal, error) {
	return nil, fmt.Errorf("store unavailable")
}

func (failingStore) ChartAggregates(context.Context) ([]models.ChartPoint, error) {
	return nil, fmt.Errorf("store unavailable")
}

func (failingStore) Readings(context.Context, models.Range, int, int) ([]models.Reading, int, error) {
	return nil, 0, fmt.Errorf("store unavailable")
}

func TestDailySeries_ThreeConsecutiveDays(t *testing.T) {
	layer := newLayer(t,
		models.Reading{Timestamp: day(3, 9), Voltage: 3},
		models.Reading{Timestamp: day(1, 9), Voltage: 1},
		models.Reading{Timestamp: day(2, 9), Voltage: 2},
	)

	series, err := layer.DailySeries(context.Background(), models.FieldVoltage)
	require.NoError(t, err)
	require.Len(t, series, 3)

	for i, b := range series {
		assert.Equal(t, i, b.DayIndex)
		assert.Equal(t, float64(i+1), b.AvgValue)
	}
}

func TestDailySeries_DayIndexSkipsGaps(t *testing.T) {
	layer := newLayer(t,
		models.Reading{Timestamp: day(1, 23), Current: 1},
		models.Reading{Timestamp: day(5, 1), Current: 2},
	)

	series, err := layer.DailySeries(context.Background(), models.FieldCurrent)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 4, series[1].DayIndex)
}

func TestDailySeries_Empty(t *testing.T) {
	series, err := newLayer(t).DailySeries(context.Background(), models.FieldSteps)
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestDailySeries_InvalidField(t *testing.T) {
	_, err := newLayer(t).DailySeries(context.Background(), models.Field(42))
	var fieldErr *models.InvalidFieldError
	assert.True(t, errors.As(err, &fieldErr), "want InvalidFieldError, got %v", err)
}

func TestDailySeries_StoreFailure(t *testing.T) {
	_, err := NewLayer(failingStore{}).DailySeries(context.Background(), models.FieldVoltage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
}

func TestMonthlySeries(t *testing.T) {
	var readings []models.Reading
	// February has no readings: indexes 0,1,2,4
	for _, m := range []time.Time{
		time.Date(2023, 11, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 12, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	} {
		readings = append(readings, models.Reading{Timestamp: m, Voltage: float64(m.Month())})
	}
	layer := newLayer(t, readings...)

	series, err := layer.MonthlySeries(context.Background(), models.FieldVoltage, 2)
	require.NoError(t, err)
	require.Len(t, series, 4)

	var indexes []int
	for _, b := range series {
		indexes = append(indexes, b.MonthIndex)
	}
	assert.Equal(t, []int{0, 1, 2, 4}, indexes)
	assert.Equal(t, 1, series[0].Month.Day())
}

func TestMonthlySeries_InsufficientForEveryThresholdAboveCount(t *testing.T) {
	layer := newLayer(t,
		models.Reading{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Voltage: 1},
		models.Reading{Timestamp: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Voltage: 2},
		models.Reading{Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Voltage: 3},
	)

	for threshold := 4; threshold <= 12; threshold++ {
		series, err := layer.MonthlySeries(context.Background(), models.FieldVoltage, threshold)
		assert.Nil(t, series, "threshold %d", threshold)
		assert.True(t, errors.Is(err, ErrInsufficientHistory), "threshold %d: got %v", threshold, err)

		var histErr *InsufficientHistoryError
		require.True(t, errors.As(err, &histErr))
		assert.Equal(t, 3, histErr.Have)
		assert.Equal(t, threshold, histErr.Need)
	}

	series, err := layer.MonthlySeries(context.Background(), models.FieldVoltage, 3)
	require.NoError(t, err)
	assert.Len(t, series, 3)
}

func TestMonthlySeries_NoData(t *testing.T) {
	_, err := newLayer(t).MonthlySeries(context.Background(), models.FieldCurrent, 0)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}

func TestDailyTotalsAndSummarize(t *testing.T) {
	layer := newLayer(t,
		models.Reading{Timestamp: day(1, 8), Steps: 100, Voltage: 1, Current: 0.5},
		models.Reading{Timestamp: day(1, 9), Steps: 200, Voltage: 1, Current: 0.5},
		models.Reading{Timestamp: day(2, 9), Steps: 50, Voltage: 4, Current: 2},
	)

	asc, err := layer.DailyTotals(context.Background(), models.Range{}, models.Ascending)
	require.NoError(t, err)
	desc, err := layer.DailyTotals(context.Background(), models.Range{}, models.Descending)
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.Equal(t, asc[0], desc[1])

	s := Summarize(asc)
	assert.Equal(t, 2, s.Days)
	assert.Equal(t, int64(350), s.TotalSteps)
	assert.Equal(t, 175.0, s.AvgSteps)
	assert.Equal(t, int64(300), s.MaxSteps)
	assert.Equal(t, int64(50), s.MinSteps)
	assert.Equal(t, 4.0, s.MaxVoltage)
	assert.Equal(t, 2.0, s.MinVoltage)
	assert.InDelta(t, 1.5, s.AvgCurrent, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, models.Summary{}, Summarize(nil))
}

func TestReadingsPage(t *testing.T) {
	var readings []models.Reading
	for h := 0; h < 12; h++ {
		readings = append(readings, models.Reading{Timestamp: day(1, h), Steps: h})
	}
	layer := newLayer(t, readings...)

	page, err := layer.ReadingsPage(context.Background(), models.Range{}, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 12, page.TotalItems)
	require.Len(t, page.Items, 5)
	assert.Equal(t, 6, page.Items[0].Steps)

	_, err = layer.ReadingsPage(context.Background(), models.Range{}, 0, 5)
	assert.Error(t, err)

	latest, err := layer.Latest(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, 11, latest[0].Steps)
}
