package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"docsmith/internal/auth"
	"docsmith/internal/llm"
	"docsmith/internal/pipeline"
	"docsmith/internal/store"
	"docsmith/internal/templates"
)

// DocumentStore is the slice of the store the handlers read and write.
type DocumentStore interface {
	GetDocument(ctx context.Context, id uuid.UUID, userID string) (*store.Document, error)
	GetUserDocuments(ctx context.Context, userID string, opts store.ListOptions) (*store.DocumentPage, error)
	UpdateDocument(ctx context.Context, id uuid.UUID, userID string, updates map[string]any) error
	DeleteDocument(ctx context.Context, id uuid.UUID, userID string) error
	ReplaceTags(ctx context.Context, id uuid.UUID, userID string, tags []string) error
	UserAnalytics(ctx context.Context, userID string, windowDays int) (*store.Analytics, error)
}

// Pipeline generates documents and applies batch actions.
type Pipeline interface {
	GenerateAndStore(ctx context.Context, req pipeline.GenerateRequest) (*pipeline.GenerateResult, error)
	BatchAction(ctx context.Context, userID string, req pipeline.BatchRequest) ([]pipeline.BatchItemResult, error)
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	pipeline Pipeline
	store    DocumentStore
	registry *templates.Registry
	llm      *llm.Client
	verifier *auth.Verifier
	log      *slog.Logger
}

// NewServer creates and configures the HTTP server.
func NewServer(p Pipeline, st DocumentStore, registry *templates.Registry, lm *llm.Client, verifier *auth.Verifier, log *slog.Logger) *Server {
	s := &Server{
		pipeline: p,
		store:    st,
		registry: registry,
		llm:      lm,
		verifier: verifier,
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.verifier, s.log))

		r.Post("/api/documents/generate", s.handleGenerate)
		r.Post("/api/documents/batch", s.handleBatch)
		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Get("/api/documents/{docID}/download", s.handleDownloadDocument)
		r.Patch("/api/documents/{docID}", s.handleUpdateDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
		r.Put("/api/documents/{docID}/tags", s.handleReplaceTags)

		r.Get("/api/analytics", s.handleAnalytics)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
