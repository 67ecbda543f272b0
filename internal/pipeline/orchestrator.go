package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"docsmith/internal/parse"
	"docsmith/internal/render"
	"docsmith/internal/store"
	"docsmith/internal/templates"
)

// ErrGenerationFailed wraps an upstream language-model failure.
var ErrGenerationFailed = errors.New("generation failed")

// Generator is the opaque language-model caller: prompt in, text out.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}

// Renderer binds a parsed section map into a binary document.
type Renderer interface {
	Render(ctx context.Context, kind, title string, sections parse.SectionMap, steps []parse.Step) ([]byte, error)
}

// DocumentStore is the slice of the store the orchestrator drives.
type DocumentStore interface {
	SaveDocument(ctx context.Context, req store.SaveRequest, content []byte) (*store.Document, error)
	AppendGenerationLog(ctx context.Context, entry store.GenerationLog) error
	UpdateDocument(ctx context.Context, id uuid.UUID, userID string, updates map[string]any) error
	DeleteDocument(ctx context.Context, id uuid.UUID, userID string) error
}

// Orchestrator sequences one generation request through the pipeline:
// model call, section parsing, template render, durable save. Each
// request runs synchronously on its own goroutine; nothing is pooled
// or queued here.
type Orchestrator struct {
	registry *templates.Registry
	gen      Generator
	renderer Renderer
	store    DocumentStore
	log      *slog.Logger
}

func NewOrchestrator(registry *templates.Registry, gen Generator, renderer Renderer, st DocumentStore, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		gen:      gen,
		renderer: renderer,
		store:    st,
		log:      log,
	}
}

// GenerateRequest is one document-generation call.
type GenerateRequest struct {
	TemplateKind string
	UserID       string
	OwnerKey     string
	Title        string
	Input        parse.SectionMap
	Steps        []parse.Step
}

// GenerateResult carries the persisted metadata and the rendered bytes.
type GenerateResult struct {
	Document *store.Document
	Content  []byte
}

// GenerateAndStore runs the full pipeline for one request. A model
// failure is logged to analytics (with no document id) and surfaces as
// ErrGenerationFailed; render and store failures propagate with their
// own classes.
func (o *Orchestrator) GenerateAndStore(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	tpl, ok := o.registry.Get(req.TemplateKind)
	if !ok {
		return nil, fmt.Errorf("unknown template kind %q: %w", req.TemplateKind, render.ErrTemplateNotFound)
	}

	steps := numberSteps(req.Steps)
	userPrompt := buildUserPrompt(tpl, req.Title, req.Input)

	start := time.Now()
	raw, err := o.gen.Generate(ctx, tpl.SystemPrompt, userPrompt)
	durationMs := time.Since(start).Milliseconds()
	if err != nil {
		o.logGeneration(ctx, store.GenerationLog{
			UserID:       req.UserID,
			TemplateType: req.TemplateKind,
			Input:        store.NewSections(req.Input, steps),
			Output:       err.Error(),
			Success:      false,
			Model:        o.gen.Model(),
			DurationMs:   durationMs,
		})
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	sections := parse.Parse(tpl, raw)

	content, err := o.renderer.Render(ctx, req.TemplateKind, req.Title, sections, steps)
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}

	doc, err := o.store.SaveDocument(ctx, store.SaveRequest{
		UserID:       req.UserID,
		OwnerKey:     req.OwnerKey,
		Title:        req.Title,
		TemplateType: req.TemplateKind,
		FileFormat:   "docx",
		Preview:      sections[tpl.SectionKeys()[0]],
		Input:        store.NewSections(req.Input, steps),
		Output:       store.NewSections(sections, nil),
		Metadata: store.Metadata{
			GeneratedAt:   time.Now(),
			FormatVersion: store.SectionsFormatVersion,
			Model:         o.gen.Model(),
		},
		DurationMs: durationMs,
	}, content)
	if err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	return &GenerateResult{Document: doc, Content: content}, nil
}

func (o *Orchestrator) logGeneration(ctx context.Context, entry store.GenerationLog) {
	if err := o.store.AppendGenerationLog(ctx, entry); err != nil {
		o.log.Warn("append generation log failed", "user_id", entry.UserID, "error", err)
	}
}

// numberSteps returns steps with a guaranteed 1-based sequence.
func numberSteps(steps []parse.Step) []parse.Step {
	out := make([]parse.Step, len(steps))
	for i, s := range steps {
		if s.Number <= 0 {
			s.Number = i + 1
		}
		out[i] = s
	}
	return out
}

// buildUserPrompt serializes the user's input fields into the prompt
// sent alongside the template's system prompt.
func buildUserPrompt(tpl *templates.Template, title string, input parse.SectionMap) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Document title: %s\n\n", title)
	sb.WriteString("User-provided details:\n")
	wrote := false
	for _, s := range tpl.Sections {
		if v, ok := input[s.Key]; ok && strings.TrimSpace(v) != "" {
			fmt.Fprintf(&sb, "%s: %s\n", s.Name, strings.TrimSpace(v))
			wrote = true
		}
	}
	if !wrote {
		sb.WriteString("(none)\n")
	}
	return sb.String()
}
