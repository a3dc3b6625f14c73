// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package outline

import (
	"fmt"

	"github.com/pdiddy/research-weaver/pkg/types"
)

// fakeEvidence resolves ids from a map.
type fakeEvidence map[string]types.EvidenceItem

func (f fakeEvidence) Get(id string) (types.EvidenceItem, error) {
	item, ok := f[id]
	if !ok {
		return types.EvidenceItem{}, fmt.Errorf("evidence %q: %w", id, types.ErrNotFound)
	}
	return item, nil
}

// add registers n items with the given relevance and tags and returns their ids.
func (f fakeEvidence) add(prefix string, n int, relevance float64, tags ...string) []string {
	var ids []string
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("ev-%s%02d", prefix, i)
		f[id] = types.EvidenceItem{ID: id, RawContent: id, RelevanceScore: relevance, TopicTags: tags}
		ids = append(ids, id)
	}
	return ids
}

func threeSections() []Section {
	return []Section{{Title: "A"}, {Title: "B"}, {Title: "C"}}
}

func testPlannerConfig() types.PlannerConfig {
	return types.DefaultConfig().Planner
}
