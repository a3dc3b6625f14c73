// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"fmt"
	"strings"

	"github.com/pdiddy/research-weaver/pkg/types"
)

// Bibliography styles.
const (
	StyleAPA     = "apa"
	StyleMLA     = "mla"
	StyleChicago = "chicago"
	StyleIEEE    = "ieee"
)

// FormatReference renders one evidence item as a reference entry in style.
// Unknown styles fall back to APA.
func FormatReference(it types.EvidenceItem, style string) string {
	title := strings.TrimSpace(it.Title)
	if title == "" {
		title = it.SourceURI
	}
	var parts []string
	add := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}
	quoted := ""
	if title != "" {
		quoted = `"` + title + `"`
	}
	year := ""
	if !it.IngestTimestamp.IsZero() {
		year = fmt.Sprint(it.IngestTimestamp.Year())
	}

	switch strings.ToLower(style) {
	case StyleMLA:
		add(quoted)
		add(it.Provider)
		add(year)
		if it.SourceURI != "" {
			add("Web. " + it.SourceURI)
		}
	case StyleChicago:
		add(quoted)
		add(it.Provider)
		add(year)
		if it.SourceURI != "" {
			add("Accessed " + it.SourceURI)
		}
	case StyleIEEE:
		add(quoted)
		add(it.Provider)
		add(year)
		if it.SourceURI != "" {
			add("[Online]. Available: " + it.SourceURI)
		}
	default:
		if year != "" {
			add("(" + year + ")")
		}
		add(title)
		add(it.Provider)
		if it.SourceURI != "" {
			add("Retrieved from " + it.SourceURI)
		}
	}
	return strings.Join(parts, ". ")
}

// Bibliography returns one entry per item, each prefixed by its evidence
// id so inline citations resolve against it.
func Bibliography(items []types.EvidenceItem, style string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, fmt.Sprintf("[%s] %s", it.ID, FormatReference(it, style)))
	}
	return out
}

// BibTeX renders items as BibTeX @misc entries keyed by evidence id.
func BibTeX(items []types.EvidenceItem) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "@misc{%s,\n", it.ID)
		fmt.Fprintf(&b, "  title = {%s},\n", it.Title)
		if it.Provider != "" {
			fmt.Fprintf(&b, "  howpublished = {%s},\n", it.Provider)
		}
		if it.SourceURI != "" {
			fmt.Fprintf(&b, "  url = {%s},\n", it.SourceURI)
		}
		if !it.IngestTimestamp.IsZero() {
			fmt.Fprintf(&b, "  year = {%d},\n", it.IngestTimestamp.Year())
		}
		fmt.Fprintf(&b, "}\n\n")
	}
	return b.String()
}

// AssembleReport renders the report as Markdown: the title, each section
// under a heading one level deeper than its outline level, then the
// references. Failed sections keep their heading with a placeholder.
func AssembleReport(title string, sections []types.WrittenSection, bibliography []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	for _, s := range sections {
		depth := min(max(s.Level, 1)+1, 6)
		fmt.Fprintf(&b, "%s %s\n\n", strings.Repeat("#", depth), s.Title)
		if s.Status == types.SectionFailed || strings.TrimSpace(s.Text) == "" {
			b.WriteString("_This section could not be generated._\n\n")
			continue
		}
		b.WriteString(strings.TrimSpace(s.Text))
		b.WriteString("\n\n")
	}
	if len(bibliography) > 0 {
		b.WriteString("## References\n\n")
		for _, entry := range bibliography {
			fmt.Fprintf(&b, "- %s\n", entry)
		}
	}
	return b.String()
}
