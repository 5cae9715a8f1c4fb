package forecast

import (
	"context"
	"time"

	"sensorcast/internal/logging"

	"github.com/sirupsen/logrus"
)

// Recomputer is the cache entry point the scheduler drives
type Recomputer interface {
	Recompute(ctx context.Context) (Result, error)
}

// Scheduler refreshes the forecast cache once at start and then every
// interval until its context ends. A failed refresh is logged and the loop
// carries on.
type Scheduler struct {
	cache    Recomputer
	interval time.Duration
	log      logrus.FieldLogger
}

// NewScheduler creates a scheduler that recomputes cache every interval
func NewScheduler(cache Recomputer, interval time.Duration) *Scheduler {
	return &Scheduler{
		cache:    cache,
		interval: interval,
		log:      logging.Component("scheduler"),
	}
}

// Run blocks until ctx is done and returns ctx.Err()
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.WithField("interval", s.interval).Info("forecast refresh scheduler started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("forecast refresh scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			s.refresh(ctx)
			timer.Reset(s.interval)
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context) {
	res, err := s.cache.Recompute(ctx)
	if err != nil {
		s.log.WithError(err).Warn("forecast refresh aborted")
		return
	}

	entry := s.log.WithFields(logrus.Fields{
		"status":     res.Status(),
		"generation": res.Generation,
		"duration":   res.Duration,
	})
	if !res.OK() {
		entry.WithError(res.Err()).Error("forecast refresh failed")
		return
	}
	entry.Info("forecast refreshed")
}
