package server

import (
	"net/http"

	"github.com/teemow/calstats/internal/calendar"
)

// handleProfile returns the target mailbox's time zone and working hours.
func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.sc.Calendar().Profile(r.Context(), s.sc.TargetUser())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleCalendarView relays the first calendarView page for [start, end).
func (s *HTTPServer) handleCalendarView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if err := calendar.ValidateRange(start, end); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	raw, err := s.sc.Calendar().CalendarView(r.Context(), s.sc.TargetUser(), start, end, calendar.ViewFields)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeRawJSON(w, http.StatusOK, raw)
}

// handleStats returns hours per bucket for the events in [start, end).
func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if err := calendar.ValidateRange(start, end); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	dim, err := calendar.ParseDimension(q.Get("groupBy"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	buckets, err := s.sc.Calendar().Stats(r.Context(), s.sc.TargetUser(), start, end, dim)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}
