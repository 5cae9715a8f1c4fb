package server

import (
	"encoding/json"
	"net/http"

	"sensorcast/internal/ingest"
	"sensorcast/internal/models"
	"sensorcast/internal/pagination"
	"sensorcast/internal/predictor"

	"github.com/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps caller mistakes to 400 and everything else to 500
func (s *Server) fail(w http.ResponseWriter, err error) {
	var fieldErr *models.InvalidFieldError
	switch {
	case errors.As(err, &fieldErr),
		errors.Is(err, pagination.ErrInvalidPage),
		errors.Is(err, ingest.ErrInvalidReading):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func roundTotals(totals []models.DailyTotal) []models.DailyTotal {
	out := make([]models.DailyTotal, len(totals))
	for i, t := range totals {
		t.TotalVoltage = predictor.Round2(t.TotalVoltage)
		t.TotalCurrent = predictor.Round2(t.TotalCurrent)
		out[i] = t
	}
	return out
}

func roundSummary(s models.Summary) models.Summary {
	s.TotalVoltage = predictor.Round2(s.TotalVoltage)
	s.TotalCurrent = predictor.Round2(s.TotalCurrent)
	s.AvgSteps = predictor.Round2(s.AvgSteps)
	s.AvgVoltage = predictor.Round2(s.AvgVoltage)
	s.AvgCurrent = predictor.Round2(s.AvgCurrent)
	s.MaxVoltage = predictor.Round2(s.MaxVoltage)
	s.MinVoltage = predictor.Round2(s.MinVoltage)
	s.MaxCurrent = predictor.Round2(s.MaxCurrent)
	s.MinCurrent = predictor.Round2(s.MinCurrent)
	return s
}
