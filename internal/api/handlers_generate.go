package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"docsmith/internal/auth"
	"docsmith/internal/parse"
	"docsmith/internal/pipeline"
)

type generateRequest struct {
	TemplateType string            `json:"template_type"`
	Title        string            `json:"title"`
	Input        map[string]string `json:"input"`
	Steps        []parse.Step      `json:"steps,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		jsonError(w, "title is required", http.StatusBadRequest)
		return
	}
	if _, ok := s.registry.Get(req.TemplateType); !ok {
		jsonError(w, "unknown template type: "+req.TemplateType, http.StatusBadRequest)
		return
	}

	ownerKey := id.Email
	if ownerKey == "" {
		ownerKey = id.UserID
	}

	res, err := s.pipeline.GenerateAndStore(r.Context(), pipeline.GenerateRequest{
		TemplateKind: req.TemplateType,
		UserID:       id.UserID,
		OwnerKey:     ownerKey,
		Title:        req.Title,
		Input:        parse.SectionMap(req.Input),
		Steps:        req.Steps,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"document": res.Document})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}

	var req pipeline.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.DocumentIDs) == 0 {
		jsonError(w, "document_ids is required", http.StatusBadRequest)
		return
	}

	results, err := s.pipeline.BatchAction(r.Context(), id.UserID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
