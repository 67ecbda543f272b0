package templates

import "fmt"

// Section is one named slot in a document template.
type Section struct {
	Key  string
	Name string
}

// Template describes one document shape: the ordered section slots the
// model must fill, the system prompt that asks for them, and the docx
// asset the renderer merges them into.
type Template struct {
	Kind         string
	Sections     []Section
	SystemPrompt string
	Asset        string
	HasSteps     bool
}

// SectionKeys returns the template's section keys in declaration order.
func (t *Template) SectionKeys() []string {
	keys := make([]string, len(t.Sections))
	for i, s := range t.Sections {
		keys[i] = s.Key
	}
	return keys
}

// SectionName returns the display name for a section key, or the key
// itself if it is not declared.
func (t *Template) SectionName(key string) string {
	for _, s := range t.Sections {
		if s.Key == key {
			return s.Name
		}
	}
	return key
}

// Placeholder is the fixed fallback text used whenever a section could
// not be parsed out of the model reply or is missing at render time.
func (t *Template) Placeholder(key string) string {
	return t.SectionName(key) + " not properly parsed"
}

// Registry is an immutable set of templates, built once at startup and
// passed by reference into the parser, renderer and orchestrator.
type Registry struct {
	byKind map[string]*Template
	order  []string
}

// NewRegistry builds a registry from the given templates. Duplicate
// kinds are rejected.
func NewRegistry(tpls ...*Template) (*Registry, error) {
	r := &Registry{byKind: make(map[string]*Template, len(tpls))}
	for _, t := range tpls {
		if t.Kind == "" {
			return nil, fmt.Errorf("template with empty kind")
		}
		if len(t.Sections) == 0 {
			return nil, fmt.Errorf("template %q declares no sections", t.Kind)
		}
		if _, dup := r.byKind[t.Kind]; dup {
			return nil, fmt.Errorf("duplicate template kind %q", t.Kind)
		}
		r.byKind[t.Kind] = t
		r.order = append(r.order, t.Kind)
	}
	return r, nil
}

// Get looks up a template by kind.
func (r *Registry) Get(kind string) (*Template, bool) {
	t, ok := r.byKind[kind]
	return t, ok
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

const rcaSystemPrompt = `You are an experienced incident analyst writing a formal root cause analysis report.
Write the report as exactly six sections, in this order:
Initial Findings, Executive Summary, Timeline of Events, Root Cause Analysis, Impact Assessment, Recommendations.
Separate consecutive sections with a line containing only "---".
Do not number the sections, do not repeat the section names, and do not add any text outside the sections.`

const guideSystemPrompt = `You are a technical writer producing a step-by-step instructional guide.
Write the guide as exactly five sections, in this order:
Guide Overview, Prerequisites, Steps Content, Troubleshooting, Summary.
Separate consecutive sections with a line containing only "---".
Do not number the sections, do not repeat the section names, and do not add any text outside the sections.`

// Default returns the built-in template set: a six-section analytical
// report and a five-section instructional guide.
func Default() *Registry {
	r, err := NewRegistry(
		&Template{
			Kind: "rca",
			Sections: []Section{
				{Key: "initial_findings", Name: "Initial Findings"},
				{Key: "executive_summary", Name: "Executive Summary"},
				{Key: "timeline", Name: "Timeline of Events"},
				{Key: "root_cause", Name: "Root Cause Analysis"},
				{Key: "impact_assessment", Name: "Impact Assessment"},
				{Key: "recommendations", Name: "Recommendations"},
			},
			SystemPrompt: rcaSystemPrompt,
			Asset:        "rca.docx",
		},
		&Template{
			Kind: "guide",
			Sections: []Section{
				{Key: "guide_overview", Name: "Guide Overview"},
				{Key: "prerequisites", Name: "Prerequisites"},
				{Key: "steps_content", Name: "Steps Content"},
				{Key: "troubleshooting", Name: "Troubleshooting"},
				{Key: "summary", Name: "Summary"},
			},
			SystemPrompt: guideSystemPrompt,
			Asset:        "guide.docx",
			HasSteps:     true,
		},
	)
	if err != nil {
		panic(err) // static definitions above
	}
	return r
}
