// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package outline

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/research-weaver/internal/textproc"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// Section is a proposed top-level section of a new outline.
type Section struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Proposer suggests the outline's initial shape and later structural
// edits. Proposals are advisory; the planner validates them before use.
type Proposer interface {
	Decompose(ctx context.Context, query string) ([]Section, error)
	Propose(ctx context.Context, o *types.Outline, ev Evidence) ([]Edit, error)
}

var nodeIDPattern = regexp.MustCompile(`^n\d+$`)

// HeuristicProposer produces deterministic proposals without a language
// model. Decompose always yields three sections. Propose splits a leaf once
// it has gathered SplitThreshold pieces of evidence, naming the new child
// after the evidence's most common topic tag.
type HeuristicProposer struct {
	SplitThreshold int
	MaxDepth       int
	MaxNodes       int
}

// NewHeuristicProposer creates a heuristic proposer from planner settings.
func NewHeuristicProposer(cfg types.PlannerConfig) *HeuristicProposer {
	return &HeuristicProposer{
		SplitThreshold: cfg.SplitThreshold,
		MaxDepth:       cfg.MaxDepth,
		MaxNodes:       cfg.MaxNodes,
	}
}

// Decompose returns the standard three-part decomposition of query.
func (h *HeuristicProposer) Decompose(_ context.Context, query string) ([]Section, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("query is empty")
	}
	return []Section{
		{
			Title:       "Background and definitions of " + q,
			Description: "Key concepts, terminology and history needed to understand " + q + ".",
		},
		{
			Title:       "Current approaches to " + q,
			Description: "Methods, technologies and results reported for " + q + ".",
		},
		{
			Title:       "Challenges and future directions of " + q,
			Description: "Open problems, limitations and research directions for " + q + ".",
		},
	}, nil
}

// Propose returns add_child edits for leaves that have enough evidence to
// split.
func (h *HeuristicProposer) Propose(_ context.Context, o *types.Outline, ev Evidence) ([]Edit, error) {
	if h.SplitThreshold <= 0 {
		return nil, nil
	}
	var edits []Edit
	nodes := len(o.Nodes)
	for _, leaf := range Leaves(o) {
		if h.MaxNodes > 0 && nodes+len(edits) >= h.MaxNodes {
			break
		}
		if leaf.Frozen || leaf.NodeID == o.RootID {
			continue
		}
		if h.MaxDepth > 0 && leaf.Level >= h.MaxDepth {
			continue
		}
		if len(leaf.CitedEvidenceIDs) < h.SplitThreshold {
			continue
		}
		tag := topTag(leaf, ev)
		if tag == "" {
			continue
		}
		edits = append(edits, Edit{
			Op:          OpAddChild,
			Target:      leaf.NodeID,
			Title:       capitalize(tag),
			Description: fmt.Sprintf("Aspects of %s concerning %s.", leaf.Title, tag),
		})
	}
	return edits, nil
}

// topTag returns the tag most common across the node's evidence, ignoring
// node ids, information types and words already in the title.
func topTag(n *types.OutlineNode, ev Evidence) string {
	inTitle := make(map[string]bool)
	for _, t := range textproc.Tokens(n.Title) {
		inTitle[t] = true
	}
	counts := make(map[string]int)
	for _, id := range n.CitedEvidenceIDs {
		item, err := ev.Get(id)
		if err != nil {
			continue
		}
		for _, tag := range item.TopicTags {
			if nodeIDPattern.MatchString(tag) || infoTypes[tag] || inTitle[tag] {
				continue
			}
			counts[tag]++
		}
	}
	type tagCount struct {
		tag string
		n   int
	}
	var ranked []tagCount
	for tag, c := range counts {
		ranked = append(ranked, tagCount{tag, c})
	}
	if len(ranked) == 0 {
		return ""
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].n != ranked[j].n {
			return ranked[i].n > ranked[j].n
		}
		return ranked[i].tag < ranked[j].tag
	})
	if ranked[0].n < 2 {
		return ""
	}
	return ranked[0].tag
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
