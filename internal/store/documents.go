package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const maxPreviewRunes = 200

// documentRow mirrors the documents table plus the aggregated tag set.
type documentRow struct {
	ID             uuid.UUID `db:"id"`
	UserID         string    `db:"user_id"`
	Title          string    `db:"title"`
	TemplateType   string    `db:"template_type"`
	FilePath       string    `db:"file_path"`
	Preview        string    `db:"preview"`
	InputSections  []byte    `db:"input_sections"`
	OutputSections []byte    `db:"output_sections"`
	Metadata       []byte    `db:"metadata"`
	FileSize       int64     `db:"file_size"`
	FileFormat     string    `db:"file_format"`
	IsFavorite     bool      `db:"is_favorite"`
	IsArchived     bool      `db:"is_archived"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	Tags           []string  `db:"tags"`
}

func (r *documentRow) toDocument() (Document, error) {
	doc := Document{
		ID:           r.ID,
		UserID:       r.UserID,
		Title:        r.Title,
		TemplateType: r.TemplateType,
		FilePath:     r.FilePath,
		Preview:      r.Preview,
		FileSize:     r.FileSize,
		FileFormat:   r.FileFormat,
		IsFavorite:   r.IsFavorite,
		IsArchived:   r.IsArchived,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Tags:         r.Tags,
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if len(r.InputSections) > 0 {
		if err := json.Unmarshal(r.InputSections, &doc.InputSections); err != nil {
			return doc, fmt.Errorf("decode input sections for %s: %w", r.ID, err)
		}
	}
	if len(r.OutputSections) > 0 {
		if err := json.Unmarshal(r.OutputSections, &doc.OutputSections); err != nil {
			return doc, fmt.Errorf("decode output sections for %s: %w", r.ID, err)
		}
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &doc.Metadata); err != nil {
			return doc, fmt.Errorf("decode metadata for %s: %w", r.ID, err)
		}
	}
	return doc, nil
}

const documentSelect = `
	SELECT d.id, d.user_id, d.title, d.template_type, d.file_path, d.preview,
	       d.input_sections, d.output_sections, d.metadata,
	       d.file_size, d.file_format, d.is_favorite, d.is_archived,
	       d.created_at, d.updated_at,
	       COALESCE(array_agg(t.tag ORDER BY t.tag) FILTER (WHERE t.tag IS NOT NULL), '{}') AS tags
	FROM documents d
	LEFT JOIN document_tags t ON t.document_id = d.id
`

// SaveDocument writes rendered bytes to their deterministic path, then
// inserts the metadata row, then appends the generation log, strictly
// in that order. A failed file write aborts before any row exists; a
// failed insert after a successful write leaves the file as a logged
// orphan rather than attempting a compensating transaction.
func (s *Store) SaveDocument(ctx context.Context, req SaveRequest, content []byte) (*Document, error) {
	now := s.now()
	if req.FileFormat == "" {
		req.FileFormat = "docx"
	}
	path := DocumentPath(s.root, req.OwnerKey, req.TemplateType, req.Title, req.FileFormat, now)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w: %w", ErrStorageWriteFailed, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("write document file: %w: %w", ErrStorageWriteFailed, err)
	}

	doc := Document{
		ID:             uuid.New(),
		UserID:         req.UserID,
		Title:          req.Title,
		TemplateType:   req.TemplateType,
		FilePath:       path,
		Preview:        truncateRunes(req.Preview, maxPreviewRunes),
		InputSections:  req.Input,
		OutputSections: req.Output,
		Metadata:       req.Metadata,
		FileSize:       int64(len(content)),
		FileFormat:     req.FileFormat,
		CreatedAt:      now,
		UpdatedAt:      now,
		Tags:           []string{},
	}

	inputJSON, err := json.Marshal(doc.InputSections)
	if err != nil {
		return nil, fmt.Errorf("encode input sections: %w", err)
	}
	outputJSON, err := json.Marshal(doc.OutputSections)
	if err != nil {
		return nil, fmt.Errorf("encode output sections: %w", err)
	}
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (id, user_id, title, template_type, file_path, preview,
		                       input_sections, output_sections, metadata,
		                       file_size, file_format, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		doc.ID, doc.UserID, doc.Title, doc.TemplateType, doc.FilePath, doc.Preview,
		inputJSON, outputJSON, metaJSON, doc.FileSize, doc.FileFormat, now,
	)
	if err != nil {
		// No cross-store transaction exists; the written file stays
		// behind as an orphan and is only reported here.
		s.log.Warn("orphaned document file after failed metadata insert",
			"path", path, "user_id", req.UserID, "error", err)
		return nil, fmt.Errorf("insert document metadata: %w", err)
	}

	logEntry := GenerationLog{
		ID:           uuid.New(),
		UserID:       req.UserID,
		DocumentID:   &doc.ID,
		TemplateType: req.TemplateType,
		Input:        req.Input,
		Output:       flattenFields(req.Output),
		Success:      true,
		Model:        req.Metadata.Model,
		DurationMs:   req.DurationMs,
		CreatedAt:    now,
	}
	if err := s.AppendGenerationLog(ctx, logEntry); err != nil {
		// The document itself is saved; losing one analytics row is
		// not worth failing the request over.
		s.log.Warn("append generation log failed", "document_id", doc.ID, "error", err)
	}

	return &doc, nil
}

// GetDocument fetches one owner-scoped document with its tag set.
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID, userID string) (*Document, error) {
	var row documentRow
	err := pgxscan.Get(ctx, s.pool, &row,
		documentSelect+` WHERE d.id = $1 AND d.user_id = $2 GROUP BY d.id`, id, userID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	doc, err := row.toDocument()
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetUserDocuments returns one page of the user's documents. Owner and
// archived-flag filters always apply; search, template type and
// favorites only when supplied.
func (s *Store) GetUserDocuments(ctx context.Context, userID string, opts ListOptions) (*DocumentPage, error) {
	opts = opts.normalize()

	where := []string{"d.user_id = $1", "d.is_archived = $2"}
	args := []any{userID, opts.Archived}
	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		where = append(where, fmt.Sprintf("(d.title ILIKE $%d OR d.preview ILIKE $%d)", len(args), len(args)))
	}
	if opts.TemplateType != "" {
		args = append(args, opts.TemplateType)
		where = append(where, fmt.Sprintf("d.template_type = $%d", len(args)))
	}
	if opts.Favorites {
		where = append(where, "d.is_favorite = TRUE")
	}
	cond := strings.Join(where, " AND ")

	var total int64
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM documents d WHERE "+cond, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	listArgs := append(args, opts.Limit, (opts.Page-1)*opts.Limit)
	query := fmt.Sprintf("%s WHERE %s GROUP BY d.id ORDER BY d.%s %s LIMIT $%d OFFSET $%d",
		documentSelect, cond, opts.SortBy, opts.SortOrder, len(args)+1, len(args)+2)

	var rows []documentRow
	if err := pgxscan.Select(ctx, s.pool, &rows, query, listArgs...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	page := &DocumentPage{
		Documents: make([]Document, 0, len(rows)),
		Total:     total,
		Page:      opts.Page,
		Limit:     opts.Limit,
		Pages:     int((total + int64(opts.Limit) - 1) / int64(opts.Limit)),
	}
	for i := range rows {
		doc, err := rows[i].toDocument()
		if err != nil {
			return nil, err
		}
		page.Documents = append(page.Documents, doc)
	}
	return page, nil
}

// DeleteDocument removes the file and then the metadata row. A file
// already gone from disk is logged and tolerated; the row is removed
// either way. Tag rows go with the row via cascade.
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID, userID string) error {
	var filePath string
	err := s.pool.QueryRow(ctx,
		`SELECT file_path FROM documents WHERE id = $1 AND user_id = $2`, id, userID).Scan(&filePath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("look up document %s: %w", id, err)
	}

	if err := os.Remove(filePath); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("remove document file: %w", err)
		}
		s.log.Warn("document file already missing on delete", "document_id", id, "path", filePath)
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return fmt.Errorf("delete document metadata: %w", err)
	}
	return nil
}

// updatableColumns is the fixed allow-list of mutable document fields.
var updatableColumns = map[string]bool{
	"title":       true,
	"is_favorite": true,
	"is_archived": true,
}

// UpdateDocument applies allow-listed fields from updates and refreshes
// updated_at. Fields outside the allow-list are silently dropped; an
// update that filters down to nothing fails with ErrNoValidUpdates.
func (s *Store) UpdateDocument(ctx context.Context, id uuid.UUID, userID string, updates map[string]any) error {
	set := []string{"updated_at = $1"}
	args := []any{s.now()}
	for _, col := range []string{"title", "is_favorite", "is_archived"} {
		val, ok := updates[col]
		if !ok || !updatableColumns[col] {
			continue
		}
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if len(args) == 1 {
		return ErrNoValidUpdates
	}

	args = append(args, id, userID)
	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = $%d AND user_id = $%d",
		strings.Join(set, ", "), len(args)-1, len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceTags swaps the document's entire tag set inside one
// transaction: ownership check, delete-all, insert-new. Tags are
// trimmed and de-duplicated; empty strings are dropped.
func (s *Store) ReplaceTags(ctx context.Context, id uuid.UUID, userID string, tags []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tag replacement: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1 AND user_id = $2)`, id, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("verify document ownership: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM document_tags WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("clear document tags: %w", err)
	}

	seen := map[string]bool{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		if _, err := tx.Exec(ctx,
			`INSERT INTO document_tags (document_id, tag) VALUES ($1, $2)`, id, tag); err != nil {
			return fmt.Errorf("insert document tag %q: %w", tag, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tag replacement: %w", err)
	}
	return nil
}

const maxLoggedOutputRunes = 2000

// AppendGenerationLog inserts one analytics record. The serialized
// output is truncated before storage.
func (s *Store) AppendGenerationLog(ctx context.Context, entry GenerationLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	inputJSON, err := json.Marshal(entry.Input)
	if err != nil {
		return fmt.Errorf("encode generation log input: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO generation_logs (id, user_id, document_id, template_type, input,
		                             output, success, model, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.UserID, entry.DocumentID, entry.TemplateType, inputJSON,
		truncateRunes(entry.Output, maxLoggedOutputRunes), entry.Success,
		entry.Model, entry.DurationMs, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert generation log: %w", err)
	}
	return nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// flattenFields serializes sections for the truncated analytics copy.
func flattenFields(s Sections) string {
	var b strings.Builder
	for k, v := range s.Fields {
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	return b.String()
}
