package api

import (
	"errors"
	"net/http"

	"github.com/geoawd/electricmonitor/internal/query"
	"github.com/geoawd/electricmonitor/internal/tariff"
)

// handleEnergy returns the full energy report for a reference date.
//
// GET /api/v1/energy?date=YYYY-MM-DD
//
// A missing date defaults to today in the site timezone. An invalid date is
// rejected with 400 before any data is read. A day in the cost window with
// no resolvable tariff fails the whole request with 404 rather than
// returning a report with gaps.
func (s *Server) handleEnergy(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.query.Today()
	}

	report, err := s.query.Report(r.Context(), date)
	if err != nil {
		switch {
		case errors.Is(err, query.ErrInvalidDate):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "date must be a valid YYYY-MM-DD date")
		case errors.Is(err, tariff.ErrNotFound):
			writeNotFound(w, "no tariff version covers the requested window")
		default:
			s.logger.Error("building energy report", "date", date, "error", err)
			writeInternalError(w, "failed to build energy report")
		}
		return
	}

	writeJSON(w, http.StatusOK, report)
}
