package aggregate

import (
	"time"

	"sensorcast/internal/models"
)

// ParseRange turns dashboard filter parameters into a query range.
// month ("YYYY-MM") wins over filter; "day", "week" (from Monday) and
// "month" are open-ended ranges ending now. Anything unrecognised, including
// a malformed month, yields an unbounded range.
func ParseRange(filter, month string, now time.Time) models.Range {
	loc := now.Location()

	if month != "" {
		start, err := time.ParseInLocation("2006-01", month, loc)
		if err != nil {
			return models.Range{}
		}
		return models.Range{Start: start, End: start.AddDate(0, 1, 0)}
	}

	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch filter {
	case "day":
		return models.Range{Start: today}
	case "week":
		sinceMonday := (int(now.Weekday()) + 6) % 7
		return models.Range{Start: today.AddDate(0, 0, -sinceMonday)}
	case "month":
		return models.Range{Start: time.Date(y, m, 1, 0, 0, 0, 0, loc)}
	default:
		return models.Range{}
	}
}
