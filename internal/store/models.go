package store

import (
	"time"

	"github.com/google/uuid"

	"docsmith/internal/parse"
)

// SectionsFormatVersion marks the current shape of the Sections record
// persisted in JSONB columns. Bump on schema drift.
const SectionsFormatVersion = 1

// Sections is the versioned record holding a section map, plus the
// structured steps for instructional documents.
type Sections struct {
	FormatVersion int               `json:"format_version"`
	Fields        map[string]string `json:"fields"`
	Steps         []parse.Step      `json:"steps,omitempty"`
}

// NewSections wraps a section map and steps into the current format.
func NewSections(fields parse.SectionMap, steps []parse.Step) Sections {
	return Sections{
		FormatVersion: SectionsFormatVersion,
		Fields:        fields,
		Steps:         steps,
	}
}

// Metadata is the generation metadata blob attached to a document.
type Metadata struct {
	GeneratedAt   time.Time `json:"generated_at"`
	FormatVersion int       `json:"format_version"`
	Model         string    `json:"model"`
}

// Document is the persisted artifact: rendered file placement plus its
// relational metadata and tag set.
type Document struct {
	ID             uuid.UUID `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	TemplateType   string    `json:"template_type"`
	FilePath       string    `json:"file_path"`
	Preview        string    `json:"preview"`
	InputSections  Sections  `json:"input_sections"`
	OutputSections Sections  `json:"output_sections"`
	Metadata       Metadata  `json:"metadata"`
	FileSize       int64     `json:"file_size"`
	FileFormat     string    `json:"file_format"`
	IsFavorite     bool      `json:"is_favorite"`
	IsArchived     bool      `json:"is_archived"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Tags           []string  `json:"tags"`
}

// GenerationLog is one append-only analytics record. DocumentID is nil
// when generation failed before a document existed.
type GenerationLog struct {
	ID           uuid.UUID  `json:"id"`
	UserID       string     `json:"user_id"`
	DocumentID   *uuid.UUID `json:"document_id,omitempty"`
	TemplateType string     `json:"template_type"`
	Input        Sections   `json:"input"`
	Output       string     `json:"output"`
	Success      bool       `json:"success"`
	Model        string     `json:"model"`
	DurationMs   int64      `json:"duration_ms"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SaveRequest carries everything SaveDocument needs besides the
// rendered bytes.
type SaveRequest struct {
	UserID       string
	OwnerKey     string
	Title        string
	TemplateType string
	FileFormat   string
	Preview      string
	Input        Sections
	Output       Sections
	Metadata     Metadata
	DurationMs   int64
}

// ListOptions filters and pages a user's document listing. Zero values
// take the documented defaults.
type ListOptions struct {
	Page         int    `json:"page"`
	Limit        int    `json:"limit"`
	Search       string `json:"search"`
	TemplateType string `json:"template_type"`
	SortBy       string `json:"sort_by"`
	SortOrder    string `json:"sort_order"`
	Favorites    bool   `json:"favorites"`
	Archived     bool   `json:"archived"`
}

var sortableColumns = map[string]bool{
	"created_at":    true,
	"updated_at":    true,
	"title":         true,
	"file_size":     true,
	"template_type": true,
}

const maxPageLimit = 100

// normalize applies defaults and clamps the sort column and direction
// to a fixed allow-list so they can be spliced into ORDER BY safely.
func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 20
	}
	if o.Limit > maxPageLimit {
		o.Limit = maxPageLimit
	}
	if !sortableColumns[o.SortBy] {
		o.SortBy = "created_at"
	}
	if o.SortOrder != "ASC" && o.SortOrder != "asc" {
		o.SortOrder = "DESC"
	} else {
		o.SortOrder = "ASC"
	}
	return o
}

// DocumentPage is one page of a filtered listing.
type DocumentPage struct {
	Documents []Document `json:"documents"`
	Total     int64      `json:"total"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
	Pages     int        `json:"pages"`
}

// DailyActivity is one day/template-type bucket of successful
// generations inside the analytics window.
type DailyActivity struct {
	Day           time.Time `json:"day"`
	TemplateType  string    `json:"template_type"`
	Count         int64     `json:"count"`
	AvgDurationMs float64   `json:"avg_duration_ms"`
}

// AnalyticsSummary aggregates a user's stored documents and generation
// latency.
type AnalyticsSummary struct {
	TotalDocuments int64   `json:"total_documents"`
	TemplateTypes  int64   `json:"template_types"`
	TotalBytes     int64   `json:"total_bytes"`
	AvgDurationMs  float64 `json:"avg_duration_ms"`
	Favorites      int64   `json:"favorites"`
}

// Analytics is the full analytics response for one user.
type Analytics struct {
	DailyActivity []DailyActivity  `json:"daily_activity"`
	Summary       AnalyticsSummary `json:"summary"`
}
