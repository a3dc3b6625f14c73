// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/research-weaver/internal/textproc"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// markerRe matches an inline citation group: one or more evidence ids in
// square brackets, separated by semicolons or commas. Ids that are not
// well-formed fingerprints still match so they can be reported.
var markerRe = regexp.MustCompile(`\[\s*(ev-[0-9A-Za-z]+(?:\s*[;,]\s*ev-[0-9A-Za-z]+)*)\s*\]`)

// idSepRe splits the ids inside a citation group.
var idSepRe = regexp.MustCompile(`\s*[;,]\s*`)

// openMarkerRe matches a citation group left unclosed at the end of text.
var openMarkerRe = regexp.MustCompile(`\s*\[\s*ev-[^\]]*$`)

// spaceBeforePunctRe tidies the gap a removed marker leaves before punctuation.
var spaceBeforePunctRe = regexp.MustCompile(`[ \t]+([.,;:!?])`)

// ValidateCitations checks that every citation in text names an item of
// evidence. On success it returns the text with each citation group
// rewritten in canonical form, and the markers in order of appearance. If
// any id is unknown it returns a *types.CitationError listing them.
func ValidateCitations(text string, evidence []types.EvidenceItem) (string, []types.CitationMarker, error) {
	known := idSet(evidence)
	var unknown []string
	seen := make(map[string]bool)
	for _, m := range markerRe.FindAllStringSubmatch(text, -1) {
		for _, id := range idSepRe.Split(m[1], -1) {
			if !known[id] && !seen[id] {
				seen[id] = true
				unknown = append(unknown, id)
			}
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return text, nil, &types.CitationError{UnknownIDs: unknown}
	}
	out, markers, _ := rewrite(text, known)
	return out, markers, nil
}

// TruncateSection cuts text to maxWords like textproc.TruncateWords. A cut
// that lands inside a citation group drops the partial group rather than
// leaving a bracket that no longer parses as a citation.
func TruncateSection(text string, maxWords int) string {
	out, cut := textproc.TruncateWords(text, maxWords)
	if !cut {
		return out
	}
	return openMarkerRe.ReplaceAllString(out, "")
}

// DropUnknown removes citations of ids absent from evidence and returns the
// cleaned text, its markers and the number of ids dropped.
func DropUnknown(text string, evidence []types.EvidenceItem) (string, []types.CitationMarker, int) {
	return rewrite(text, idSet(evidence))
}

// rewrite re-emits every citation group keeping only known ids, and
// records marker positions against the rewritten text.
func rewrite(text string, known map[string]bool) (string, []types.CitationMarker, int) {
	var b strings.Builder
	var markers []types.CitationMarker
	dropped := 0
	last := 0
	for _, loc := range markerRe.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(text[last:loc[0]])
		last = loc[1]

		var keep []string
		for _, id := range idSepRe.Split(text[loc[2]:loc[3]], -1) {
			if known[id] {
				keep = append(keep, id)
			} else {
				dropped++
			}
		}
		if len(keep) == 0 {
			continue
		}
		pos := b.Len()
		for _, id := range keep {
			markers = append(markers, types.CitationMarker{Position: pos, EvidenceID: id})
		}
		b.WriteString("[" + strings.Join(keep, "; ") + "]")
	}
	b.WriteString(text[last:])

	out := b.String()
	if dropped > 0 {
		// Tidying shifts offsets, so positions are recomputed afterwards.
		out = strings.TrimSpace(spaceBeforePunctRe.ReplaceAllString(out, "$1"))
		markers = locate(out)
	}
	return out, markers, dropped
}

// locate returns the markers of text, which must contain only known ids.
func locate(text string) []types.CitationMarker {
	var markers []types.CitationMarker
	for _, loc := range markerRe.FindAllStringSubmatchIndex(text, -1) {
		for _, id := range idSepRe.Split(text[loc[2]:loc[3]], -1) {
			markers = append(markers, types.CitationMarker{Position: loc[0], EvidenceID: id})
		}
	}
	return markers
}

func idSet(items []types.EvidenceItem) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it.ID] = true
	}
	return set
}
