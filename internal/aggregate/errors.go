package aggregate

import (
	"fmt"

	"sensorcast/internal/models"

	"github.com/pkg/errors"
)

// ErrInsufficientHistory signals that a series has fewer buckets than a
// prediction needs. It is a normal state, not a fault.
var ErrInsufficientHistory = errors.New("insufficient history")

// InsufficientHistoryError carries how many buckets were found and needed.
// errors.Is(err, ErrInsufficientHistory) matches it.
type InsufficientHistoryError struct {
	Field models.Field
	Have  int
	Need  int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: have %d monthly buckets, need %d", e.Field, e.Have, e.Need)
}

func (e *InsufficientHistoryError) Is(target error) bool {
	return target == ErrInsufficientHistory
}
