package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"docsmith/internal/pipeline"
	"docsmith/internal/store"
)

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Anything
// unrecognized is a 500 with the raw message suppressed.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, "document not found", http.StatusNotFound)
	case errors.Is(err, store.ErrNoValidUpdates):
		jsonError(w, "no valid fields to update", http.StatusBadRequest)
	case errors.Is(err, pipeline.ErrInvalidBatchAction):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, pipeline.ErrGenerationFailed):
		s.log.Error("generation failed", "error", err)
		jsonError(w, "document generation failed", http.StatusBadGateway)
	default:
		s.log.Error("request failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}
