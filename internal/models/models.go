package models

import "time"

// Reading is a single sensor sample. Readings are immutable once stored.
type Reading struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"datetime"`
	Steps        int       `json:"steps"`
	Voltage      float64   `json:"voltage"`
	Current      float64   `json:"current"`
	BatteryLevel *float64  `json:"battery_level"`
}

// PeriodValue is one grouped row produced by the store, keyed by the first
// instant of its calendar day or month.
type PeriodValue struct {
	Period time.Time
	Value  float64
}

// DailyBucket is the daily average of one field. DayIndex counts whole days
// since the earliest bucket and is the regression feature.
type DailyBucket struct {
	Date     time.Time `json:"date"`
	AvgValue float64   `json:"avg_value"`
	DayIndex int       `json:"day_index"`
}

// MonthlyBucket is the monthly average of one field keyed by first-of-month.
type MonthlyBucket struct {
	Month      time.Time `json:"month"`
	AvgValue   float64   `json:"avg_value"`
	MonthIndex int       `json:"month_index"`
}

// DailyTotal holds per-day sums used by summary views
type DailyTotal struct {
	Date         time.Time `json:"date"`
	TotalSteps   int64     `json:"total_steps"`
	TotalVoltage float64   `json:"total_voltage"`
	TotalCurrent float64   `json:"total_current"`
}

// ChartPoint is one day of chart data
type ChartPoint struct {
	Date       time.Time `json:"date"`
	AvgVoltage float64   `json:"avg_voltage"`
	AvgCurrent float64   `json:"avg_current"`
	TotalSteps int64     `json:"total_steps"`
}

// ForecastState is the cached next-day prediction pair. A nil value means
// there was not enough data; a zero ComputedOn means the state is stale.
type ForecastState struct {
	NextDayVoltage *float64  `json:"next_day_voltage"`
	NextDayCurrent *float64  `json:"next_day_current"`
	ComputedOn     time.Time `json:"computed_on"`
}

// FreshOn reports whether the state was computed on the same calendar day as today.
func (s ForecastState) FreshOn(today time.Time) bool {
	if s.ComputedOn.IsZero() {
		return false
	}
	y1, m1, d1 := s.ComputedOn.Date()
	y2, m2, d2 := today.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Clone returns a copy that shares no pointers with s
func (s ForecastState) Clone() ForecastState {
	out := s
	out.NextDayVoltage = copyFloat(s.NextDayVoltage)
	out.NextDayCurrent = copyFloat(s.NextDayCurrent)
	return out
}

// Set stores v as the prediction for field. Only voltage and current are cached.
func (s *ForecastState) Set(field Field, v *float64) {
	switch field {
	case FieldVoltage:
		s.NextDayVoltage = copyFloat(v)
	case FieldCurrent:
		s.NextDayCurrent = copyFloat(v)
	}
}

// Get returns the cached prediction for field, nil when absent
func (s ForecastState) Get(field Field) *float64 {
	switch field {
	case FieldVoltage:
		return s.NextDayVoltage
	case FieldCurrent:
		return s.NextDayCurrent
	}
	return nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// BestMonth is the month with the highest predicted value in the forecast horizon.
type BestMonth struct {
	Field          string    `json:"field"`
	Month          time.Time `json:"-"`
	MonthLabel     string    `json:"month_label"`
	PredictedValue float64   `json:"predicted_value"`
}

// Forecast is the combined answer handed to dashboard and API callers
type Forecast struct {
	ForecastDate     string     `json:"forecast_date"`
	NextDayVoltage   *float64   `json:"forecast_voltage"`
	NextDayCurrent   *float64   `json:"forecast_current"`
	BestMonthVoltage *BestMonth `json:"best_voltage_month"`
	BestMonthCurrent *BestMonth `json:"best_current_month"`
	Message          string     `json:"message,omitempty"`
}

// Summary aggregates daily totals for the dashboard header
type Summary struct {
	Days         int     `json:"days"`
	TotalSteps   int64   `json:"total_steps"`
	TotalVoltage float64 `json:"total_voltage"`
	TotalCurrent float64 `json:"total_current"`
	AvgSteps     float64 `json:"avg_steps"`
	AvgVoltage   float64 `json:"avg_voltage"`
	AvgCurrent   float64 `json:"avg_current"`
	MaxSteps     int64   `json:"max_steps"`
	MaxVoltage   float64 `json:"max_voltage"`
	MaxCurrent   float64 `json:"max_current"`
	MinSteps     int64   `json:"min_steps"`
	MinVoltage   float64 `json:"min_voltage"`
	MinCurrent   float64 `json:"min_current"`
}
