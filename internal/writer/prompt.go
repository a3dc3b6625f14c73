// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/pdiddy/research-weaver/internal/generation"
	"github.com/pdiddy/research-weaver/internal/textproc"
	"github.com/pdiddy/research-weaver/pkg/types"
)

const (
	evidenceSummaryChars = 400
	parentExcerptChars   = 600
)

// sectionPromptTmpl is the prompt sent for each section. It carries only
// the evidence selected for that section.
var sectionPromptTmpl = template.Must(template.New("section").Parse(`You are writing one section of a research report titled "{{.Report}}".

Section: {{.Title}}
{{- if .Description}}
Scope: {{.Description}}
{{- end}}
{{- if .Parent}}

The enclosing section reads, in part:
{{.Parent}}
{{- end}}

Evidence you may cite:
{{range .Evidence}}
[{{.ID}}] {{.Title}}{{if .Source}} ({{.Source}}){{end}}
{{.Summary}}
{{end}}
Write at most {{.MaxWords}} words of continuous prose for this section only. Do not repeat the heading. Support factual statements with citations written as the evidence id in square brackets, for example [{{.Example}}]. Several ids may share one bracket separated by semicolons. Cite only ids from the list above.
{{- if .Notice}}

IMPORTANT: {{.Notice}}
{{- end}}
`))

type promptEvidence struct {
	ID      string
	Title   string
	Source  string
	Summary string
}

type promptData struct {
	Report      string
	Title       string
	Description string
	Parent      string
	Evidence    []promptEvidence
	MaxWords    int
	Example     string
	Notice      string
}

// renderPrompt builds the generation prompt for node.
func (w *Writer) renderPrompt(report string, node *types.OutlineNode, evidence []types.EvidenceItem, parentText, notice string) (string, error) {
	data := promptData{
		Report:      report,
		Title:       node.Title,
		Description: node.Description,
		Parent:      textproc.Summarize(parentText, parentExcerptChars),
		MaxWords:    w.cfg.MaxSectionWords,
		Example:     types.EvidencePrefix + "0123456789abcdef",
		Notice:      notice,
	}
	for _, ev := range evidence {
		summary := ev.Summary
		if summary == "" {
			summary = ev.RawContent
		}
		data.Evidence = append(data.Evidence, promptEvidence{
			ID:      ev.ID,
			Title:   ev.Title,
			Source:  ev.SourceURI,
			Summary: textproc.Summarize(summary, evidenceSummaryChars),
		})
	}
	if len(evidence) > 0 {
		data.Example = evidence[0].ID
	}

	var buf bytes.Buffer
	if err := sectionPromptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return buf.String(), nil
}

// Draft generates raw section text for node from evidence alone. parentText
// is the already-written enclosing section, if any; notice is appended as
// an instruction when regenerating. At most types.MaxEvidencePerCall items
// are sent whatever the caller passes.
func (w *Writer) Draft(ctx context.Context, report string, node *types.OutlineNode, evidence []types.EvidenceItem, parentText, notice string) (string, error) {
	if len(evidence) > types.MaxEvidencePerCall {
		evidence = evidence[:types.MaxEvidencePerCall]
	}
	prompt, err := w.renderPrompt(report, node, evidence, parentText, notice)
	if err != nil {
		return "", err
	}
	text, err := w.backend.Complete(ctx, generation.Request{
		Prompt:      prompt,
		MaxTokens:   w.cfg.MaxTokens,
		Temperature: w.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	return textproc.CleanParagraphs(text), nil
}
