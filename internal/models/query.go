package models

import "time"

// Range bounds a query to [Start, End). A zero bound is open.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

// Order is the sort direction of a grouped series.
type Order int

const (
	Ascending Order = iota
	Descending
)

// Unit is the calendar period used for grouping.
type Unit int

const (
	Day Unit = iota
	Month
)
