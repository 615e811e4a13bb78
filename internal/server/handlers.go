package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "volarb",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleListRuns returns persisted sweep runs, newest first. Optional ?limit=
// caps the count.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := s.regimes.ListRuns(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list runs")
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// handleRunRegimes returns the consolidated regime table of a run.
func (s *Server) handleRunRegimes(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	table, err := s.regimes.GetSummaries(runID)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load summaries")
		s.writeError(w, http.StatusInternalServerError, "failed to load summaries")
		return
	}
	if len(table) == 0 {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"regimes": table,
	})
}

// handleRunTrades returns the trade-level records of a run.
func (s *Server) handleRunTrades(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	trades, err := s.regimes.GetTrades(runID)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load trades")
		s.writeError(w, http.StatusInternalServerError, "failed to load trades")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"trades": trades,
	})
}

// handleRunOptimization returns the ranked evaluations of an optimization run.
func (s *Server) handleRunOptimization(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	ranked, err := s.optimize.GetReport(runID)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load report")
		s.writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	if len(ranked) == 0 {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":      runID,
		"evaluations": ranked,
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
