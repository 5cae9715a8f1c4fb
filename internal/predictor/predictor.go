// Package predictor fits ordinary least squares trend lines over bucketed
// series and extrapolates them.
package predictor

import (
	"math"
	"time"

	"sensorcast/internal/models"
)

// DefaultHorizon is the number of future months scanned for the best month
const DefaultHorizon = 12

// Line is a fitted y = Intercept + Slope*x
type Line struct {
	Slope     float64
	Intercept float64
}

// At evaluates the line at x
func (l Line) At(x float64) float64 {
	return l.Intercept + l.Slope*x
}

// Fit computes the least squares line through (x, y). With fewer than two
// distinct x values the slope is undefined and the line is flat at mean(y).
// ok is false only for empty or mismatched input.
func Fit(x, y []float64) (line Line, ok bool) {
	if len(x) == 0 || len(x) != len(y) {
		return Line{}, false
	}

	var sx, sy, sxx, sxy float64
	n := float64(len(x))
	for i := range x {
		sx += x[i]
		sy += y[i]
		sxx += x[i] * x[i]
		sxy += x[i] * y[i]
	}

	den := n*sxx - sx*sx
	if den == 0 {
		return Line{Intercept: sy / n}, true
	}
	slope := (n*sxy - sx*sy) / den
	return Line{Slope: slope, Intercept: (sy - slope*sx) / n}, true
}

// PredictNext extrapolates a daily series one day past its last DayIndex.
// It returns nil for an empty series; a single bucket predicts its own value.
func PredictNext(series []models.DailyBucket) *float64 {
	if len(series) == 0 {
		return nil
	}

	x := make([]float64, len(series))
	y := make([]float64, len(series))
	last := series[0].DayIndex
	for i, b := range series {
		x[i] = float64(b.DayIndex)
		y[i] = b.AvgValue
		last = max(last, b.DayIndex)
	}

	line, ok := Fit(x, y)
	if !ok {
		return nil
	}
	v := line.At(float64(last + 1))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// PredictBestFutureMonth fits the monthly series, evaluates the next horizon
// month indexes after the last observed one and returns the highest, earliest
// wins on ties. The month label is counted from the first bucket's calendar
// month so it lines up with MonthIndex. It returns nil for an empty series or
// a non-positive horizon; callers enforce any minimum history beforehand.
func PredictBestFutureMonth(field models.Field, series []models.MonthlyBucket, horizon int) *models.BestMonth {
	if len(series) == 0 || horizon <= 0 {
		return nil
	}

	x := make([]float64, len(series))
	y := make([]float64, len(series))
	last := series[0].MonthIndex
	for i, b := range series {
		x[i] = float64(b.MonthIndex)
		y[i] = b.AvgValue
		last = max(last, b.MonthIndex)
	}

	line, ok := Fit(x, y)
	if !ok {
		return nil
	}

	bestIndex := last + 1
	best := line.At(float64(bestIndex))
	for idx := last + 2; idx <= last+horizon; idx++ {
		if v := line.At(float64(idx)); v > best {
			best, bestIndex = v, idx
		}
	}
	if math.IsNaN(best) || math.IsInf(best, 0) {
		return nil
	}

	first := series[0].Month
	month := firstOfMonth(first).AddDate(0, bestIndex-series[0].MonthIndex, 0)
	return &models.BestMonth{
		Field:          field.String(),
		Month:          month,
		MonthLabel:     month.Format("January 2006"),
		PredictedValue: Round2(best),
	}
}

// Round2 rounds half away from zero to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round2Ptr rounds through a pointer, keeping nil as nil
func Round2Ptr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := Round2(*v)
	return &r
}

func firstOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
