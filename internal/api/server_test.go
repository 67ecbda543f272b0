package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsmith/internal/auth"
	"docsmith/internal/pipeline"
	"docsmith/internal/store"
	"docsmith/internal/templates"
)

const testSecret = "api-test-secret"

type fakePipeline struct {
	genErr  error
	gotReq  pipeline.GenerateRequest
	results []pipeline.BatchItemResult
}

func (p *fakePipeline) GenerateAndStore(ctx context.Context, req pipeline.GenerateRequest) (*pipeline.GenerateResult, error) {
	p.gotReq = req
	if p.genErr != nil {
		return nil, p.genErr
	}
	return &pipeline.GenerateResult{
		Document: &store.Document{ID: uuid.New(), UserID: req.UserID, Title: req.Title},
		Content:  []byte("bytes"),
	}, nil
}

func (p *fakePipeline) BatchAction(ctx context.Context, userID string, req pipeline.BatchRequest) ([]pipeline.BatchItemResult, error) {
	if req.Action == "explode" {
		return nil, pipeline.ErrInvalidBatchAction
	}
	return p.results, nil
}

type fakeDocStore struct {
	doc     *store.Document
	getErr  error
	gotOpts store.ListOptions

	updateErr  error
	gotUpdates map[string]any
	gotTags    []string
	deletedID  uuid.UUID
}

func (s *fakeDocStore) GetDocument(ctx context.Context, id uuid.UUID, userID string) (*store.Document, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.doc, nil
}

func (s *fakeDocStore) GetUserDocuments(ctx context.Context, userID string, opts store.ListOptions) (*store.DocumentPage, error) {
	s.gotOpts = opts
	return &store.DocumentPage{Documents: []store.Document{}, Page: 1, Limit: 20}, nil
}

func (s *fakeDocStore) UpdateDocument(ctx context.Context, id uuid.UUID, userID string, updates map[string]any) error {
	s.gotUpdates = updates
	return s.updateErr
}

func (s *fakeDocStore) DeleteDocument(ctx context.Context, id uuid.UUID, userID string) error {
	s.deletedID = id
	return nil
}

func (s *fakeDocStore) ReplaceTags(ctx context.Context, id uuid.UUID, userID string, tags []string) error {
	s.gotTags = tags
	return nil
}

func (s *fakeDocStore) UserAnalytics(ctx context.Context, userID string, windowDays int) (*store.Analytics, error) {
	return &store.Analytics{}, nil
}

func newTestServer(t *testing.T, p Pipeline, st DocumentStore) *Server {
	t.Helper()
	verifier, err := auth.NewVerifier(testSecret)
	require.NoError(t, err)
	return NewServer(p, st, templates.Default(), nil, verifier, slog.New(slog.DiscardHandler))
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func doRequest(s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t, &fakePipeline{}, &fakeDocStore{})
	rec := doRequest(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthRejections(t *testing.T) {
	s := newTestServer(t, &fakePipeline{}, &fakeDocStore{})

	rec := doRequest(s, http.MethodGet, "/api/documents", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/documents", "Bearer garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGenerate(t *testing.T) {
	p := &fakePipeline{}
	s := newTestServer(t, p, &fakeDocStore{})
	token := bearerToken(t, "user-1")

	rec := doRequest(s, http.MethodPost, "/api/documents/generate", token, map[string]any{
		"template_type": "rca",
		"title":         "Q1 Outage",
		"input":         map[string]string{"initial_findings": "db down"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "user-1", p.gotReq.UserID)
	assert.Equal(t, "user-1@example.com", p.gotReq.OwnerKey, "email claim becomes the storage owner key")
	assert.Equal(t, "db down", p.gotReq.Input["initial_findings"])
}

func TestGenerate_BadRequests(t *testing.T) {
	s := newTestServer(t, &fakePipeline{}, &fakeDocStore{})
	token := bearerToken(t, "user-1")

	rec := doRequest(s, http.MethodPost, "/api/documents/generate", token, map[string]any{
		"template_type": "novel", "title": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/documents/generate", token, map[string]any{
		"template_type": "rca", "title": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate_UpstreamFailureIs502(t *testing.T) {
	p := &fakePipeline{genErr: pipeline.ErrGenerationFailed}
	s := newTestServer(t, p, &fakeDocStore{})

	rec := doRequest(s, http.MethodPost, "/api/documents/generate", bearerToken(t, "u"), map[string]any{
		"template_type": "rca", "title": "x",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestListDocuments_QueryParams(t *testing.T) {
	st := &fakeDocStore{}
	s := newTestServer(t, &fakePipeline{}, st)

	rec := doRequest(s, http.MethodGet,
		"/api/documents?page=2&limit=5&search=outage&template_type=rca&favorites=true&sort_by=title&sort_order=asc",
		bearerToken(t, "u"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, st.gotOpts.Page)
	assert.Equal(t, 5, st.gotOpts.Limit)
	assert.Equal(t, "outage", st.gotOpts.Search)
	assert.Equal(t, "rca", st.gotOpts.TemplateType)
	assert.True(t, st.gotOpts.Favorites)
	assert.Equal(t, "title", st.gotOpts.SortBy)
}

func TestGetDocument_Errors(t *testing.T) {
	st := &fakeDocStore{getErr: store.ErrNotFound}
	s := newTestServer(t, &fakePipeline{}, st)
	token := bearerToken(t, "u")

	rec := doRequest(s, http.MethodGet, "/api/documents/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/documents/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateDocument(t *testing.T) {
	st := &fakeDocStore{doc: &store.Document{ID: uuid.New()}}
	s := newTestServer(t, &fakePipeline{}, st)

	rec := doRequest(s, http.MethodPatch, "/api/documents/"+uuid.NewString(), bearerToken(t, "u"),
		map[string]any{"title": "Renamed", "is_favorite": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"title": "Renamed", "is_favorite": true}, st.gotUpdates)
}

func TestUpdateDocument_NothingToUpdate(t *testing.T) {
	st := &fakeDocStore{updateErr: store.ErrNoValidUpdates}
	s := newTestServer(t, &fakePipeline{}, st)

	rec := doRequest(s, http.MethodPatch, "/api/documents/"+uuid.NewString(), bearerToken(t, "u"),
		map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplaceTags(t *testing.T) {
	st := &fakeDocStore{doc: &store.Document{ID: uuid.New()}}
	s := newTestServer(t, &fakePipeline{}, st)

	rec := doRequest(s, http.MethodPut, "/api/documents/"+uuid.NewString()+"/tags", bearerToken(t, "u"),
		map[string]any{"tags": []string{"prod", "rca"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"prod", "rca"}, st.gotTags)
}

func TestDownloadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1700000000000_rca_Q1_Outage.docx")
	require.NoError(t, os.WriteFile(path, []byte("docx-bytes"), 0o644))

	st := &fakeDocStore{doc: &store.Document{ID: uuid.New(), FilePath: path}}
	s := newTestServer(t, &fakePipeline{}, st)
	token := bearerToken(t, "u")

	rec := doRequest(s, http.MethodGet, "/api/documents/"+uuid.NewString()+"/download", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "docx-bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "1700000000000_rca_Q1_Outage.docx")

	// Metadata row exists but the file is gone.
	st.doc.FilePath = filepath.Join(t.TempDir(), "missing.docx")
	rec = doRequest(s, http.MethodGet, "/api/documents/"+uuid.NewString()+"/download", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatch(t *testing.T) {
	p := &fakePipeline{results: []pipeline.BatchItemResult{{ID: uuid.New(), OK: true}}}
	s := newTestServer(t, p, &fakeDocStore{})
	token := bearerToken(t, "u")

	rec := doRequest(s, http.MethodPost, "/api/documents/batch", token, map[string]any{
		"action":       "favorite",
		"document_ids": []string{uuid.NewString()},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/documents/batch", token, map[string]any{
		"action":       "explode",
		"document_ids": []string{uuid.NewString()},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/documents/batch", token, map[string]any{
		"action": "favorite",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty id list is rejected")
}

func TestAnalytics(t *testing.T) {
	s := newTestServer(t, &fakePipeline{}, &fakeDocStore{})
	rec := doRequest(s, http.MethodGet, "/api/analytics?days=7", bearerToken(t, "u"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLLMStatsUnavailableWithoutClient(t *testing.T) {
	s := newTestServer(t, &fakePipeline{}, &fakeDocStore{})
	rec := doRequest(s, http.MethodGet, "/api/stats/llm", bearerToken(t, "u"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
