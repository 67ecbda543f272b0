package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docsmith/internal/auth"
	"docsmith/internal/store"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func docIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "docID"))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	opts := store.ListOptions{
		Search:       q.Get("search"),
		TemplateType: q.Get("template_type"),
		SortBy:       q.Get("sort_by"),
		SortOrder:    q.Get("sort_order"),
		Favorites:    q.Get("favorites") == "true",
		Archived:     q.Get("archived") == "true",
	}
	opts.Page, _ = strconv.Atoi(q.Get("page"))
	opts.Limit, _ = strconv.Atoi(q.Get("limit"))

	page, err := s.store.GetUserDocuments(r.Context(), id.UserID, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	docID, err := docIDParam(r)
	if err != nil {
		jsonError(w, "invalid document id", http.StatusBadRequest)
		return
	}

	doc, err := s.store.GetDocument(r.Context(), docID, id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	docID, err := docIDParam(r)
	if err != nil {
		jsonError(w, "invalid document id", http.StatusBadRequest)
		return
	}

	doc, err := s.store.GetDocument(r.Context(), docID, id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	data, err := os.ReadFile(doc.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Warn("document file missing from storage", "document_id", docID, "path", doc.FilePath)
			jsonError(w, "document file not found", http.StatusNotFound)
			return
		}
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(doc.FilePath)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

type updateRequest struct {
	Title      *string `json:"title,omitempty"`
	IsFavorite *bool   `json:"is_favorite,omitempty"`
	IsArchived *bool   `json:"is_archived,omitempty"`
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	docID, err := docIDParam(r)
	if err != nil {
		jsonError(w, "invalid document id", http.StatusBadRequest)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.IsFavorite != nil {
		updates["is_favorite"] = *req.IsFavorite
	}
	if req.IsArchived != nil {
		updates["is_archived"] = *req.IsArchived
	}

	if err := s.store.UpdateDocument(r.Context(), docID, id.UserID, updates); err != nil {
		s.writeError(w, err)
		return
	}

	doc, err := s.store.GetDocument(r.Context(), docID, id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	docID, err := docIDParam(r)
	if err != nil {
		jsonError(w, "invalid document id", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteDocument(r.Context(), docID, id.UserID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": docID})
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

func (s *Server) handleReplaceTags(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		jsonError(w, "missing identity", http.StatusUnauthorized)
		return
	}
	docID, err := docIDParam(r)
	if err != nil {
		jsonError(w, "invalid document id", http.StatusBadRequest)
		return
	}

	var req tagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.ReplaceTags(r.Context(), docID, id.UserID, req.Tags); err != nil {
		s.writeError(w, err)
		return
	}

	doc, err := s.store.GetDocument(r.Context(), docID, id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}
