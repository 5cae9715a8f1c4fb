package database

import (
	"context"
	"math"
	"testing"
	"time"

	"sensorcast/internal/models"
)

func seedMemory(t *testing.T, readings ...models.Reading) *MemoryStore {
	t.Helper()
	store := NewMemoryStore(time.UTC)
	for _, r := range readings {
		if _, err := store.InsertReading(context.Background(), r); err != nil {
			t.Fatalf("InsertReading() error = %v", err)
		}
	}
	return store
}

func at(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

func TestMemoryStore_GroupAverageDaily(t *testing.T) {
	// inserted out of order on purpose
	store := seedMemory(t,
		models.Reading{Timestamp: at(2, 10), Voltage: 4},
		models.Reading{Timestamp: at(1, 8), Voltage: 1},
		models.Reading{Timestamp: at(1, 20), Voltage: 3},
		models.Reading{Timestamp: at(2, 11), Voltage: 6},
	)

	series, err := store.GroupAverage(context.Background(), models.FieldVoltage, models.Day)
	if err != nil {
		t.Fatalf("GroupAverage() error = %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("GroupAverage() returned %d buckets, want 2", len(series))
	}
	if series[0].Value != 2 || series[1].Value != 5 {
		t.Errorf("GroupAverage() values = %v, %v, want 2, 5", series[0].Value, series[1].Value)
	}
	if !series[0].Period.Before(series[1].Period) {
		t.Error("GroupAverage() should be ascending by period")
	}
}

func TestMemoryStore_GroupAverageSkipsMissingBattery(t *testing.T) {
	level := 50.0
	store := seedMemory(t,
		models.Reading{Timestamp: at(1, 8)},
		models.Reading{Timestamp: at(2, 8), BatteryLevel: &level},
	)

	series, err := store.GroupAverage(context.Background(), models.FieldBatteryLevel, models.Month)
	if err != nil {
		t.Fatalf("GroupAverage() error = %v", err)
	}
	if len(series) != 1 || series[0].Value != 50 {
		t.Errorf("GroupAverage() = %+v, want one bucket averaging 50", series)
	}
}

func TestMemoryStore_DailyTotals(t *testing.T) {
	store := seedMemory(t,
		models.Reading{Timestamp: at(1, 8), Steps: 100, Voltage: 1, Current: 0.5},
		models.Reading{Timestamp: at(1, 9), Steps: 50, Voltage: 2, Current: 0.5},
		models.Reading{Timestamp: at(3, 9), Steps: 10, Voltage: 3, Current: 1},
	)

	totals, err := store.DailyTotals(context.Background(), models.Range{}, models.Descending)
	if err != nil {
		t.Fatalf("DailyTotals() error = %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("DailyTotals() returned %d days, want 2", len(totals))
	}
	if totals[0].Date.Day() != 3 || totals[1].TotalSteps != 150 || totals[1].TotalVoltage != 3 {
		t.Errorf("DailyTotals() = %+v", totals)
	}

	ranged, _ := store.DailyTotals(context.Background(), models.Range{Start: at(2, 0)}, models.Ascending)
	if len(ranged) != 1 || ranged[0].Date.Day() != 3 {
		t.Errorf("DailyTotals(range) = %+v, want only Jan 3", ranged)
	}
}

func TestMemoryStore_ChartAggregates(t *testing.T) {
	store := seedMemory(t,
		models.Reading{Timestamp: at(1, 8), Steps: 100, Voltage: 1, Current: 1},
		models.Reading{Timestamp: at(1, 9), Steps: 50, Voltage: 3, Current: 2},
		models.Reading{Timestamp: at(2, 9), Steps: 10, Voltage: 5, Current: 4},
	)

	points, err := store.ChartAggregates(context.Background())
	if err != nil {
		t.Fatalf("ChartAggregates() error = %v", err)
	}
	if len(points) != 2 || points[0].Date.Day() != 2 {
		t.Fatalf("ChartAggregates() = %+v, want newest first", points)
	}
	if points[1].AvgVoltage != 2 || points[1].AvgCurrent != 1.5 || points[1].TotalSteps != 150 {
		t.Errorf("ChartAggregates()[1] = %+v", points[1])
	}
}

func TestMemoryStore_ReadingsPaged(t *testing.T) {
	var rs []models.Reading
	for h := 0; h < 5; h++ {
		rs = append(rs, models.Reading{Timestamp: at(1, h), Steps: h})
	}
	store := seedMemory(t, rs...)

	page, total, err := store.Readings(context.Background(), models.Range{}, 2, 2)
	if err != nil {
		t.Fatalf("Readings() error = %v", err)
	}
	if total != 5 {
		t.Errorf("Readings() total = %d, want 5", total)
	}
	if len(page) != 2 || page[0].Steps != 2 || page[1].Steps != 1 {
		t.Errorf("Readings() page = %+v, want steps 2 then 1", page)
	}

	tests := []struct {
		name          string
		offset, limit int
		want          int
	}{
		{"past the end", 10, 2, 0},
		{"negative offset", -4, 2, 0},
		{"max offset", math.MaxInt, 4, 0},
		{"max limit", 3, math.MaxInt, 2},
	}
	for _, tt := range tests {
		got, _, err := store.Readings(context.Background(), models.Range{}, tt.offset, tt.limit)
		if err != nil {
			t.Errorf("Readings() %s error = %v", tt.name, err)
			continue
		}
		if len(got) != tt.want {
			t.Errorf("Readings() %s = %d items, want %d", tt.name, len(got), tt.want)
		}
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore(time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.GroupAverage(ctx, models.FieldSteps, models.Day); err == nil {
		t.Error("GroupAverage() with cancelled context should fail")
	}
}

func TestOpen(t *testing.T) {
	store, err := Open("memory", "", time.UTC)
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Open(memory) = %T, want *MemoryStore", store)
	}

	if _, err := Open("sqlite", "", time.UTC); err == nil {
		t.Error("Open(sqlite) should fail")
	}
}
