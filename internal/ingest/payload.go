package ingest

import (
	"strings"
	"time"

	"sensorcast/internal/models"

	"github.com/pkg/errors"
)

// TimeLayouts are the datetime formats accepted from clients and CSV
// imports, tried in order. Layouts without a zone are read in the
// configured location.
var TimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ParseTime parses s with the first matching layout in TimeLayouts
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range TimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(ErrInvalidReading, "unrecognised datetime %q", s)
}

// Payload is a reading as posted by a client. raw_voltage and raw_current
// are accepted in place of voltage and current.
type Payload struct {
	Datetime     string   `json:"datetime"`
	Steps        int      `json:"steps"`
	Voltage      *float64 `json:"voltage"`
	Current      *float64 `json:"current"`
	RawVoltage   *float64 `json:"raw_voltage"`
	RawCurrent   *float64 `json:"raw_current"`
	BatteryLevel *float64 `json:"battery_level"`
}

// Reading converts p, reading a datetime without a zone in loc
func (p Payload) Reading(loc *time.Location) (models.Reading, error) {
	r := models.Reading{Steps: p.Steps, BatteryLevel: p.BatteryLevel}

	if p.Datetime != "" {
		ts, err := ParseTime(p.Datetime, loc)
		if err != nil {
			return models.Reading{}, err
		}
		r.Timestamp = ts
	}

	var err error
	if r.Voltage, err = pick("voltage", p.Voltage, p.RawVoltage); err != nil {
		return models.Reading{}, err
	}
	if r.Current, err = pick("current", p.Current, p.RawCurrent); err != nil {
		return models.Reading{}, err
	}
	return r, nil
}

func pick(name string, v, raw *float64) (float64, error) {
	switch {
	case v != nil && raw != nil:
		return 0, errors.Wrapf(ErrInvalidReading, "both %s and raw_%s given", name, name)
	case v != nil:
		return *v, nil
	case raw != nil:
		return *raw, nil
	}
	return 0, nil
}
