package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fumiama/go-docx"

	"docsmith/internal/parse"
	"docsmith/internal/templates"
)

// ErrTemplateNotFound reports that a named template asset could not be
// located on disk or in the registry.
var ErrTemplateNotFound = errors.New("template not found")

// RenderError reports template fields that stayed unresolved after
// defaulting. With the built-in registry, renderContext pre-fills every
// required key, so Render can only return this if the registry and the
// defaulting rules drift apart; the guard exists for that drift, not
// for any reachable input today.
type RenderError struct {
	Missing []string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("template render failed, missing fields: %s", strings.Join(e.Missing, ", "))
}

// ImageResolver maps a stored relative image path to raw image bytes.
// Resolution failures are tolerated by the renderer: a step whose image
// cannot be resolved renders without one.
type ImageResolver interface {
	Resolve(ctx context.Context, relPath string) ([]byte, error)
}

// Fixed display size for embedded step images (EMU, 914400 per inch).
const (
	imageExtentCX int64 = 4572000 // 5.0 in
	imageExtentCY int64 = 3429000 // 3.75 in
)

const stepsToken = "steps"

var (
	tokenRe     = regexp.MustCompile(`\{([a-z_][a-z0-9_]*)\}`)
	fullTokenRe = regexp.MustCompile(`^\{([a-z_][a-z0-9_]*)\}$`)
)

// Renderer merges a section map (plus optional steps) into a binary
// docx template. Each Render call is a single-shot transformation with
// no retained state.
type Renderer struct {
	registry *templates.Registry
	images   ImageResolver
	log      *slog.Logger

	loadAsset func(name string) ([]byte, error)
	now       func() time.Time
}

// NewRenderer creates a renderer that loads template assets from dir.
func NewRenderer(dir string, registry *templates.Registry, images ImageResolver, log *slog.Logger) *Renderer {
	return &Renderer{
		registry: registry,
		images:   images,
		log:      log,
		loadAsset: func(name string) ([]byte, error) {
			return os.ReadFile(filepath.Join(dir, name))
		},
		now: time.Now,
	}
}

// Render binds the section map into the template for the given kind and
// returns the finished document bytes.
func (r *Renderer) Render(ctx context.Context, kind, title string, sections parse.SectionMap, steps []parse.Step) ([]byte, error) {
	tpl, ok := r.registry.Get(kind)
	if !ok {
		return nil, fmt.Errorf("unknown template kind %q: %w", kind, ErrTemplateNotFound)
	}

	data, err := r.loadAsset(tpl.Asset)
	if err != nil {
		return nil, fmt.Errorf("load template asset %q: %w", tpl.Asset, ErrTemplateNotFound)
	}

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse template asset %q: %w", tpl.Asset, err)
	}

	fields := renderContext(tpl, title, sections, r.now())
	required := requiredFields(tpl)

	if tpl.HasSteps {
		r.insertSteps(ctx, doc, steps)
	}

	if missing := substitute(doc, fields, required); len(missing) > 0 {
		return nil, &RenderError{Missing: missing}
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize rendered document: %w", err)
	}
	return buf.Bytes(), nil
}

// renderContext merges the fixed fields with the defaulted section map.
func renderContext(tpl *templates.Template, title string, sections parse.SectionMap, now time.Time) map[string]string {
	fields := map[string]string{
		"title":          title,
		"classification": "Internal",
		"generated_date": now.Format("January 2, 2006"),
	}
	for k, v := range parse.WithDefaults(tpl, sections) {
		fields[k] = v
	}
	return fields
}

func requiredFields(tpl *templates.Template) map[string]bool {
	req := map[string]bool{"title": true, "classification": true, "generated_date": true}
	for _, k := range tpl.SectionKeys() {
		req[k] = true
	}
	return req
}

// substitute resolves every {field} token in the document body. Tokens
// backed by a field get its value; a token occupying a whole paragraph
// expands into one paragraph per blank-line-separated block of its
// value. Unknown tokens resolve to an empty string, except required
// ones, which are reported back as missing.
func substitute(doc *docx.Docx, fields map[string]string, required map[string]bool) []string {
	missing := map[string]bool{}

	items := make([]interface{}, len(doc.Document.Body.Items))
	copy(items, doc.Document.Body.Items)

	var rebuilt []interface{}
	for _, item := range items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			rebuilt = append(rebuilt, item)
			continue
		}

		if m := fullTokenRe.FindStringSubmatch(strings.TrimSpace(paragraphText(para))); m != nil {
			name := m[1]
			val, ok := fields[name]
			if !ok {
				if required[name] {
					missing[name] = true
				}
				val = ""
			}
			for _, block := range splitBlocks(val) {
				p := doc.AddParagraph()
				p.AddText(block)
				rebuilt = append(rebuilt, p)
			}
			continue
		}

		substituteInline(para, fields, required, missing)
		rebuilt = append(rebuilt, para)
	}
	doc.Document.Body.Items = rebuilt

	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func substituteInline(para *docx.Paragraph, fields map[string]string, required, missing map[string]bool) {
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			t, ok := rc.(*docx.Text)
			if !ok {
				continue
			}
			t.Text = tokenRe.ReplaceAllStringFunc(t.Text, func(tok string) string {
				name := tok[1 : len(tok)-1]
				if val, ok := fields[name]; ok {
					// Inline position: collapse value to one line.
					return strings.Join(splitBlocks(val), " ")
				}
				if required[name] {
					missing[name] = true
				}
				return ""
			})
		}
	}
}

// insertSteps replaces the paragraph holding the {steps} token with one
// rendered block per step. Without the token the steps are appended at
// the end of the body.
func (r *Renderer) insertSteps(ctx context.Context, doc *docx.Docx, steps []parse.Step) {
	items := make([]interface{}, len(doc.Document.Body.Items))
	copy(items, doc.Document.Body.Items)

	at := -1
	for i, item := range items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		if strings.TrimSpace(paragraphText(para)) == "{"+stepsToken+"}" {
			at = i
			break
		}
	}

	rendered := r.stepParagraphs(ctx, doc, steps)
	if at < 0 {
		doc.Document.Body.Items = append(items, rendered...)
		return
	}
	var rebuilt []interface{}
	rebuilt = append(rebuilt, items[:at]...)
	rebuilt = append(rebuilt, rendered...)
	rebuilt = append(rebuilt, items[at+1:]...)
	doc.Document.Body.Items = rebuilt
}

func (r *Renderer) stepParagraphs(ctx context.Context, doc *docx.Docx, steps []parse.Step) []interface{} {
	var out []interface{}
	for i, step := range steps {
		num := step.Number
		if num <= 0 {
			num = i + 1
		}
		title := step.Title
		if title == "" {
			title = fmt.Sprintf("Step %d", num)
		}

		heading := doc.AddParagraph()
		heading.AddText(fmt.Sprintf("Step %d: %s", num, title)).Bold()
		out = append(out, heading)

		if step.Description != "" {
			p := doc.AddParagraph()
			p.AddText(step.Description)
			out = append(out, p)
		}

		if img := r.resolveImage(ctx, step.ImagePath); img != nil {
			p := doc.AddParagraph()
			run, err := p.AddInlineDrawing(img)
			if err != nil {
				r.log.Warn("embed step image failed", "image", step.ImagePath, "error", err)
			} else {
				applyImageExtent(run)
				out = append(out, p)
			}
		}

		if step.Notes != "" {
			p := doc.AddParagraph()
			p.AddText("Note: " + step.Notes)
			out = append(out, p)
		}
	}
	return out
}

func (r *Renderer) resolveImage(ctx context.Context, relPath string) []byte {
	if relPath == "" || r.images == nil {
		return nil
	}
	img, err := r.images.Resolve(ctx, relPath)
	if err != nil {
		r.log.Warn("resolve step image failed", "image", relPath, "error", err)
		return nil
	}
	return img
}

// applyImageExtent forces the fixed display size onto an embedded
// drawing, overriding the pixel dimensions go-docx derives from the
// image itself.
func applyImageExtent(run *docx.Run) {
	if run == nil {
		return
	}
	for _, rc := range run.Children {
		d, ok := rc.(*docx.Drawing)
		if !ok || d.Inline == nil || d.Inline.Extent == nil {
			continue
		}
		d.Inline.Extent.CX = imageExtentCX
		d.Inline.Extent.CY = imageExtentCY
	}
}

// paragraphText flattens a paragraph's runs into plain text.
func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return buf.String()
}

func splitBlocks(val string) []string {
	parts := strings.Split(val, "\n\n")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\r\n", "\n"))
		if p != "" {
			out = append(out, strings.ReplaceAll(p, "\n", " "))
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}
