package server

import (
	"encoding/json"
	"net/http"
)

// handleHealth is the liveness endpoint
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode health response")
	}
}
