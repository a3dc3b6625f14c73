// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-weaver/internal/evidence"
	"github.com/pdiddy/research-weaver/internal/generation"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// promptEvidenceRe matches one evidence entry in a rendered prompt.
var promptEvidenceRe = regexp.MustCompile(`(?m)^\[(ev-[0-9a-f]{16})\]`)

// scripted is a generation backend that answers from a function and
// records every prompt.
type scripted struct {
	mu      sync.Mutex
	prompts []string
	reply   func(call int, req generation.Request) (string, error)
}

func (s *scripted) Complete(ctx context.Context, req generation.Request) (string, error) {
	s.mu.Lock()
	call := len(s.prompts)
	s.prompts = append(s.prompts, req.Prompt)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.reply(call, req)
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// citeFirst replies with a sentence citing the first evidence id in the prompt.
func citeFirst(_ int, req generation.Request) (string, error) {
	m := promptEvidenceRe.FindStringSubmatch(req.Prompt)
	if m == nil {
		return "No evidence was available for this section.", nil
	}
	return fmt.Sprintf("Storage capacity is growing quickly [%s].", m[1]), nil
}

// seedStore ingests n items about storage and returns the store and ids.
func seedStore(t *testing.T, n int) (*evidence.Store, []string) {
	t.Helper()
	s := evidence.NewStore(types.EvidenceConfig{})
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id, isNew, err := s.Ingest(types.EvidenceCandidate{
			RawContent:     fmt.Sprintf("Document %d discusses battery storage deployment number %d.", i, i),
			Title:          fmt.Sprintf("Storage report %d", i),
			SourceURI:      fmt.Sprintf("https://example.org/%d", i),
			Provider:       "web",
			RelevanceScore: 0.5,
		})
		require.NoError(t, err)
		require.True(t, isNew)
		ids[i] = id
	}
	return s, ids
}

func testWriterConfig() types.WriterConfig {
	return types.DefaultConfig().Writer
}

// twoLevelOutline is a root with two children, the first with one child.
func twoLevelOutline(cited map[string][]string) *types.Outline {
	o := &types.Outline{
		Version: 3,
		Title:   "battery storage",
		RootID:  "n0",
		NextSeq: 4,
		Nodes: map[string]*types.OutlineNode{
			"n0": {NodeID: "n0", Title: "battery storage", ChildIDs: []string{"n1", "n2"}},
			"n1": {NodeID: "n1", Title: "Storage chemistry", Level: 1, ParentID: "n0", ChildIDs: []string{"n3"}},
			"n2": {NodeID: "n2", Title: "Storage deployment", Level: 1, ParentID: "n0"},
			"n3": {NodeID: "n3", Title: "Lithium storage", Level: 2, ParentID: "n1"},
		},
		Finalized: true,
	}
	for id, ids := range cited {
		o.Nodes[id].CitedEvidenceIDs = ids
	}
	return o
}
