// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package outline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/internal/generation"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// errNoJSON is returned when a completion contains no JSON value.
var errNoJSON = errors.New("no JSON in completion")

var decomposePromptTmpl = template.Must(template.New("decompose").Parse(`You are planning a research report. Break the research question below into 3 to 6 top-level sections that together answer it.

Respond with a JSON object containing a "sections" array. Each element has a "title" and a one-sentence "description". Do not include any text outside the JSON object.

Example response:
{"sections": [{"title": "Background", "description": "Key terms and history."}]}

Research question:
{{.Query}}
`))

var revisePromptTmpl = template.Must(template.New("revise").Parse(`You are revising the outline of a research report on "{{.Title}}". Each line shows a node id, its depth, its coverage from 0 to 1 and the number of evidence items gathered for it.

{{range .Nodes}}{{.Indent}}{{.ID}} [level {{.Level}}, coverage {{printf "%.2f" .Coverage}}, evidence {{.Evidence}}{{if .Frozen}}, frozen{{end}}] {{.Title}}
{{end}}
Propose structural edits only where they clearly improve the report. Allowed operations:
- {"op": "add_child", "target": "<parent id>", "title": "...", "description": "..."}
- {"op": "retitle", "target": "<node id>", "title": "...", "description": "..."}
- {"op": "merge", "target": "<node id to remove>", "into": "<node id that absorbs it>"}

Respond with a JSON object containing an "edits" array, which may be empty. Do not include any text outside the JSON object.
`))

// LLMProposer asks a generation backend for proposals and falls back to
// Fallback when the backend fails or returns nothing usable.
type LLMProposer struct {
	Backend   generation.Backend
	Fallback  Proposer
	MaxTokens int
	Logger    *zap.Logger
}

// NewLLMProposer creates a proposer backed by b, falling back to the
// heuristic proposer.
func NewLLMProposer(b generation.Backend, cfg types.PlannerConfig, logger *zap.Logger) *LLMProposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMProposer{
		Backend:   b,
		Fallback:  NewHeuristicProposer(cfg),
		MaxTokens: 1000,
		Logger:    logger,
	}
}

// Decompose implements Proposer.
func (p *LLMProposer) Decompose(ctx context.Context, query string) ([]Section, error) {
	sections, err := p.decompose(ctx, query)
	if err == nil && len(sections) > 0 {
		return sections, nil
	}
	p.Logger.Warn("decomposition failed, using heuristic", zap.Error(err))
	return p.Fallback.Decompose(ctx, query)
}

func (p *LLMProposer) decompose(ctx context.Context, query string) ([]Section, error) {
	var buf bytes.Buffer
	if err := decomposePromptTmpl.Execute(&buf, struct{ Query string }{query}); err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	text, err := p.Backend.Complete(ctx, generation.Request{Prompt: buf.String(), MaxTokens: p.MaxTokens, Temperature: 0.2})
	if err != nil {
		return nil, err
	}
	return ParseSections(text)
}

// Propose implements Proposer.
func (p *LLMProposer) Propose(ctx context.Context, o *types.Outline, ev Evidence) ([]Edit, error) {
	edits, err := p.propose(ctx, o)
	if err == nil {
		return edits, nil
	}
	p.Logger.Warn("revision proposal failed, using heuristic", zap.Error(err))
	return p.Fallback.Propose(ctx, o, ev)
}

type promptNode struct {
	Indent   string
	ID       string
	Level    int
	Coverage float64
	Evidence int
	Frozen   bool
	Title    string
}

func (p *LLMProposer) propose(ctx context.Context, o *types.Outline) ([]Edit, error) {
	data := struct {
		Title string
		Nodes []promptNode
	}{Title: o.Title}
	for _, n := range o.PreOrder() {
		data.Nodes = append(data.Nodes, promptNode{
			Indent:   strings.Repeat("  ", n.Level),
			ID:       n.NodeID,
			Level:    n.Level,
			Coverage: n.CoverageScore,
			Evidence: len(n.CitedEvidenceIDs),
			Frozen:   n.Frozen,
			Title:    n.Title,
		})
	}
	var buf bytes.Buffer
	if err := revisePromptTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	text, err := p.Backend.Complete(ctx, generation.Request{Prompt: buf.String(), MaxTokens: p.MaxTokens, Temperature: 0.2})
	if err != nil {
		return nil, err
	}
	return ParseEdits(text)
}

// ParseSections reads a section list from a completion. It accepts a bare
// array or an object with a "sections" field, surrounded by any prose or
// code fences.
func ParseSections(text string) ([]Section, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var sections []Section
	if raw[0] == '[' {
		err = json.Unmarshal(raw, &sections)
	} else {
		var wrapper struct {
			Sections []Section `json:"sections"`
		}
		err = json.Unmarshal(raw, &wrapper)
		sections = wrapper.Sections
	}
	if err != nil {
		return nil, fmt.Errorf("parsing sections: %w", err)
	}
	var out []Section
	for _, s := range sections {
		s.Title = strings.TrimSpace(s.Title)
		if s.Title != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// ParseEdits reads an edit list from a completion, with the same leniency
// as ParseSections.
func ParseEdits(text string) ([]Edit, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var edits []Edit
	if raw[0] == '[' {
		err = json.Unmarshal(raw, &edits)
	} else {
		var wrapper struct {
			Edits []Edit `json:"edits"`
		}
		err = json.Unmarshal(raw, &wrapper)
		edits = wrapper.Edits
	}
	if err != nil {
		return nil, fmt.Errorf("parsing edits: %w", err)
	}
	for i := range edits {
		edits[i].Op = Op(strings.ToLower(strings.TrimSpace(string(edits[i].Op))))
	}
	return edits, nil
}

// extractJSON returns the outermost JSON object or array in text.
func extractJSON(text string) ([]byte, error) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, errNoJSON
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return nil, errNoJSON
	}
	return []byte(text[start : end+1]), nil
}
