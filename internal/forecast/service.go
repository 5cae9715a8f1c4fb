package forecast

import (
	"context"
	"time"

	"sensorcast/internal/aggregate"
	"sensorcast/internal/logging"
	"sensorcast/internal/models"
	"sensorcast/internal/predictor"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NotEnoughHistoryMessage is shown when a monthly prediction is absent
const NotEnoughHistoryMessage = "Not enough historical data for monthly forecast. Please collect more data."

// MonthlySource supplies monthly series gated on a minimum bucket count
type MonthlySource interface {
	MonthlySeries(ctx context.Context, field models.Field, minBuckets int) ([]models.MonthlyBucket, error)
}

// StateReader is the read side of the forecast cache
type StateReader interface {
	Read(ctx context.Context) models.ForecastState
}

// ServiceConfig tunes monthly predictions. Zero values take defaults.
type ServiceConfig struct {
	MinMonths int
	Horizon   int
	Location  *time.Location
	Now       func() time.Time
}

// Service combines the cached next-day values with best-month predictions,
// which are computed on every call and never cached.
type Service struct {
	cache     StateReader
	monthly   MonthlySource
	minMonths int
	horizon   int
	loc       *time.Location
	now       func() time.Time
	log       logrus.FieldLogger
}

// NewService creates a forecast service. A zero Horizon uses
// predictor.DefaultHorizon, a nil Location time.Local and a nil Now time.Now.
func NewService(cache StateReader, monthly MonthlySource, cfg ServiceConfig) *Service {
	s := &Service{
		cache:     cache,
		monthly:   monthly,
		minMonths: cfg.MinMonths,
		horizon:   cfg.Horizon,
		loc:       cfg.Location,
		now:       cfg.Now,
		log:       logging.Component("forecast"),
	}
	if s.horizon <= 0 {
		s.horizon = predictor.DefaultHorizon
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// GetForecast never fails; any part that cannot be predicted is nil
func (s *Service) GetForecast(ctx context.Context) models.Forecast {
	state := s.cache.Read(ctx)

	f := models.Forecast{
		ForecastDate:     s.now().In(s.loc).AddDate(0, 0, 1).Format("2006-01-02"),
		NextDayVoltage:   predictor.Round2Ptr(state.NextDayVoltage),
		NextDayCurrent:   predictor.Round2Ptr(state.NextDayCurrent),
		BestMonthVoltage: s.BestMonth(ctx, models.FieldVoltage),
		BestMonthCurrent: s.BestMonth(ctx, models.FieldCurrent),
	}
	if f.BestMonthVoltage == nil || f.BestMonthCurrent == nil {
		f.Message = NotEnoughHistoryMessage
	}
	return f
}

// BestMonth predicts the best of the coming months for field, nil when the
// history is too short or the store fails.
func (s *Service) BestMonth(ctx context.Context, field models.Field) *models.BestMonth {
	series, err := s.monthly.MonthlySeries(ctx, field, s.minMonths)
	switch {
	case errors.Is(err, aggregate.ErrInsufficientHistory):
		s.log.WithField("field", field.String()).WithError(err).Debug("no monthly prediction yet")
		return nil
	case err != nil:
		s.log.WithField("field", field.String()).WithError(err).Error("monthly prediction failed")
		return nil
	}
	return predictor.PredictBestFutureMonth(field, series, s.horizon)
}
