package parse

import (
	"regexp"
	"strings"

	"docsmith/internal/templates"
)

// SectionMap holds the parsed model reply, keyed by template section key.
// Every key the template declares is always present.
type SectionMap map[string]string

// Step is one instructional step supplied by the caller alongside the
// generated prose. ImagePath is a relative storage path resolved at
// render time; a missing or unresolvable image renders as no image.
type Step struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImagePath   string `json:"image_path,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Delimiter separates consecutive sections in a well-formed model reply.
const Delimiter = "---"

var paragraphSplitRe = regexp.MustCompile(`\n[ \t]*\n`)

// Parse converts a raw model reply into a SectionMap for the given
// template. It never fails: when the reply does not match the expected
// shape it degrades through a ladder of strategies instead.
//
//  1. Strict split on the "---" delimiter when the part count matches
//     the template's section count exactly.
//  2. Blank-line paragraph split when it yields at least as many
//     paragraphs as there are sections (surplus paragraphs ignored).
//  3. Whole reply into the first section, fixed placeholder text for
//     every remaining section.
func Parse(tpl *templates.Template, raw string) SectionMap {
	keys := tpl.SectionKeys()
	out := make(SectionMap, len(keys))

	parts := strings.Split(raw, Delimiter)
	if len(parts) == len(keys) {
		for i, key := range keys {
			out[key] = Flatten(strings.TrimSpace(parts[i]))
		}
		return out
	}

	paras := splitParagraphs(raw)
	if len(paras) >= len(keys) {
		for i, key := range keys {
			out[key] = Flatten(paras[i])
		}
		return out
	}

	out[keys[0]] = Flatten(strings.TrimSpace(raw))
	for _, key := range keys[1:] {
		out[key] = tpl.Placeholder(key)
	}
	return out
}

// WithDefaults returns a copy of m in which every template section key
// is present, filling absent keys with the fixed placeholder text.
func WithDefaults(tpl *templates.Template, m SectionMap) SectionMap {
	out := make(SectionMap, len(tpl.Sections))
	for _, s := range tpl.Sections {
		if v, ok := m[s.Key]; ok && v != "" {
			out[s.Key] = v
			continue
		}
		out[s.Key] = tpl.Placeholder(s.Key)
	}
	return out
}

func splitParagraphs(raw string) []string {
	var out []string
	for _, p := range paragraphSplitRe.Split(raw, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
