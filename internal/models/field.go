package models

import (
	"fmt"
	"strings"
)

// Field selects one numeric column of a Reading.
type Field int

const (
	FieldSteps Field = iota + 1
	FieldVoltage
	FieldCurrent
	FieldBatteryLevel
)

type fieldSpec struct {
	name   string
	column string
	value  func(Reading) (float64, bool)
}

var fieldSpecs = map[Field]fieldSpec{
	FieldSteps: {
		name:   "steps",
		column: "steps",
		value:  func(r Reading) (float64, bool) { return float64(r.Steps), true },
	},
	FieldVoltage: {
		name:   "voltage",
		column: "raw_voltage",
		value:  func(r Reading) (float64, bool) { return r.Voltage, true },
	},
	FieldCurrent: {
		name:   "current",
		column: "raw_current",
		value:  func(r Reading) (float64, bool) { return r.Current, true },
	},
	FieldBatteryLevel: {
		name:   "battery_level",
		column: "battery_level",
		value: func(r Reading) (float64, bool) {
			if r.BatteryLevel == nil {
				return 0, false
			}
			return *r.BatteryLevel, true
		},
	},
}

// aliases accepted by ParseField in addition to the canonical names
var fieldAliases = map[string]Field{
	"raw_voltage": FieldVoltage,
	"raw_current": FieldCurrent,
	"battery":     FieldBatteryLevel,
}

// InvalidFieldError is returned for a selector outside the known field set.
type InvalidFieldError struct {
	Name string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field %q: want one of steps, voltage, current, battery_level", e.Name)
}

// ParseField maps a field name to its selector.
func ParseField(name string) (Field, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for f, spec := range fieldSpecs {
		if spec.name == key {
			return f, nil
		}
	}
	if f, ok := fieldAliases[key]; ok {
		return f, nil
	}
	return 0, &InvalidFieldError{Name: name}
}

// Validate returns an InvalidFieldError when f is not a known selector.
func (f Field) Validate() error {
	if _, ok := fieldSpecs[f]; !ok {
		return &InvalidFieldError{Name: fmt.Sprintf("field(%d)", int(f))}
	}
	return nil
}

func (f Field) String() string {
	if spec, ok := fieldSpecs[f]; ok {
		return spec.name
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Column is the sensor_data column backing the field.
func (f Field) Column() string {
	return fieldSpecs[f].column
}

// Value extracts the field from a reading. ok is false when the reading has
// no value for it (battery level is optional).
func (f Field) Value(r Reading) (v float64, ok bool) {
	spec, known := fieldSpecs[f]
	if !known {
		return 0, false
	}
	return spec.value(r)
}
