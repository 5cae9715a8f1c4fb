package forecast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sensorcast/internal/logging"
	"sensorcast/internal/models"

	"github.com/stretchr/testify/assert"
)

type countingRecomputer struct {
	mu      sync.Mutex
	calls   int
	results []Result
	enough  chan struct{}
	want    int
}

func (r *countingRecomputer) Recompute(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls == r.want {
		close(r.enough)
	}
	if r.calls <= len(r.results) {
		return r.results[r.calls-1], nil
	}
	return Result{}, nil
}

func TestScheduler_RunsImmediatelyAndEveryInterval(t *testing.T) {
	rec := &countingRecomputer{
		want:   3,
		enough: make(chan struct{}),
		results: []Result{
			{Failures: []FieldFailure{{Field: models.FieldVoltage, Err: errors.New("down")}}},
		},
	}
	s := NewScheduler(rec, 5*time.Millisecond)
	s.log = logging.Discard()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	select {
	case <-rec.enough:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not keep running after a failed refresh")
	}
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestScheduler_DrivesCache(t *testing.T) {
	src := newFakeSource()
	src.set(models.FieldVoltage, 1, 2, 3)
	cache, _ := newTestCache(t, src)

	s := NewScheduler(cache, time.Hour)
	s.log = logging.Discard()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	assert.Eventually(t, func() bool {
		return src.callCount(models.FieldVoltage) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return cache.Snapshot().NextDayVoltage != nil
	}, 2*time.Second, 5*time.Millisecond)
	state := cache.Read(context.Background())
	assert.InDelta(t, 4.0, *state.NextDayVoltage, 1e-9)
	assert.Equal(t, 1, src.callCount(models.FieldVoltage))
}

func TestResultStatus(t *testing.T) {
	fail := func(f models.Field) FieldFailure { return FieldFailure{Field: f, Err: errors.New("x")} }

	tests := []struct {
		name     string
		failures []FieldFailure
		want     string
	}{
		{"none", nil, "success"},
		{"one field", []FieldFailure{fail(models.FieldCurrent)}, "partial"},
		{"all fields", []FieldFailure{fail(models.FieldVoltage), fail(models.FieldCurrent)}, "failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Result{Failures: tt.failures}
			if got := r.Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
			if (r.Err() == nil) != r.OK() {
				t.Errorf("Err() = %v with OK() = %v", r.Err(), r.OK())
			}
		})
	}
}
