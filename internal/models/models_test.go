package models

import (
	"testing"
	"time"
)

func TestForecastState_FreshOn(t *testing.T) {
	day := time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state ForecastState
		today time.Time
		want  bool
	}{
		{"never computed", ForecastState{}, day, false},
		{"same day", ForecastState{ComputedOn: day}, day.Add(23 * time.Hour), true},
		{"next day", ForecastState{ComputedOn: day}, day.AddDate(0, 0, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.FreshOn(tt.today); got != tt.want {
				t.Errorf("FreshOn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestForecastState_CloneAndSet(t *testing.T) {
	v := 1.5
	var s ForecastState
	s.Set(FieldVoltage, &v)
	s.Set(FieldSteps, &v)
	v = 9

	if got := s.Get(FieldVoltage); got == nil || *got != 1.5 {
		t.Fatalf("Get(voltage) = %v, want 1.5", got)
	}
	if s.Get(FieldCurrent) != nil {
		t.Errorf("Get(current) should be nil")
	}

	c := s.Clone()
	*c.NextDayVoltage = 3
	if *s.NextDayVoltage != 1.5 {
		t.Errorf("Clone() shares pointers with the original")
	}
}

func TestParseField(t *testing.T) {
	tests := []struct {
		in      string
		want    Field
		wantErr bool
	}{
		{"steps", FieldSteps, false},
		{"Voltage", FieldVoltage, false},
		{"raw_current", FieldCurrent, false},
		{" battery ", FieldBatteryLevel, false},
		{"battery_level", FieldBatteryLevel, false},
		{"temperature", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseField(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseField(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseField(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestField_Value(t *testing.T) {
	battery := 77.0
	r := Reading{Steps: 12, Voltage: 3.3, Current: 0.4}

	if v, ok := FieldSteps.Value(r); !ok || v != 12 {
		t.Errorf("Value(steps) = %v, %v", v, ok)
	}
	if _, ok := FieldBatteryLevel.Value(r); ok {
		t.Errorf("Value(battery_level) should be absent")
	}
	r.BatteryLevel = &battery
	if v, ok := FieldBatteryLevel.Value(r); !ok || v != 77 {
		t.Errorf("Value(battery_level) = %v, %v", v, ok)
	}
	if FieldVoltage.Column() != "raw_voltage" {
		t.Errorf("Column() = %q, want raw_voltage", FieldVoltage.Column())
	}
	if err := Field(0).Validate(); err == nil {
		t.Errorf("Field(0).Validate() should fail")
	}
}
