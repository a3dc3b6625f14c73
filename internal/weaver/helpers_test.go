// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package weaver

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/pdiddy/research-weaver/internal/generation"
	"github.com/pdiddy/research-weaver/internal/persist"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// scriptedRetriever answers the n-th directive for a node with
// script[node][n]; calls past the end of a script return nothing.
type scriptedRetriever struct {
	mu     sync.Mutex
	script map[string][][]types.EvidenceCandidate
	calls  map[string]int
	// onFetch, when set, runs before each answer.
	onFetch func(ctx context.Context, d types.SearchDirective)
}

func newScriptedRetriever(script map[string][][]types.EvidenceCandidate) *scriptedRetriever {
	return &scriptedRetriever{script: script, calls: make(map[string]int)}
}

func (r *scriptedRetriever) Fetch(ctx context.Context, d types.SearchDirective) []types.EvidenceCandidate {
	if r.onFetch != nil {
		r.onFetch(ctx, d)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.calls[d.TargetNodeID]
	r.calls[d.TargetNodeID] = n + 1
	rounds := r.script[d.TargetNodeID]
	if n >= len(rounds) {
		return nil
	}
	return rounds[n]
}

func (r *scriptedRetriever) callsFor(node string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[node]
}

// freshRetriever returns one new low-relevance candidate per call, so no
// node ever stalls and coverage grows slowly.
type freshRetriever struct {
	mu sync.Mutex
	n  int
}

func (r *freshRetriever) Fetch(_ context.Context, d types.SearchDirective) []types.EvidenceCandidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return []types.EvidenceCandidate{{
		RawContent:     fmt.Sprintf("Finding %d about %s.", r.n, d.QueryText),
		SourceURI:      fmt.Sprintf("https://example.org/fresh/%d", r.n),
		Title:          d.QueryText,
		RelevanceScore: 0.01,
	}}
}

// doc builds a candidate about storage with the given key.
func doc(key string) types.EvidenceCandidate {
	return types.EvidenceCandidate{
		RawContent:     fmt.Sprintf("Report %s on renewable energy storage capacity and grid batteries.", key),
		Title:          "Energy storage report " + key,
		SourceURI:      "https://example.org/storage/" + key,
		Provider:       "web",
		RelevanceScore: 1,
	}
}

var markerRe = regexp.MustCompile(`(?m)^\[(ev-[0-9a-f]{16})\]`)

// citingBackend writes one sentence citing the first evidence id in the
// prompt, or an uncited sentence when the prompt has none.
func citingBackend() generation.Backend {
	return generation.BackendFunc(func(ctx context.Context, req generation.Request) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		m := markerRe.FindStringSubmatch(req.Prompt)
		if m == nil {
			return "Little evidence is available on this topic.", nil
		}
		return fmt.Sprintf("Grid-scale storage is expanding rapidly [%s].", m[1]), nil
	})
}

// memorySnapshotter keeps snapshots in memory.
type memorySnapshotter struct {
	mu       sync.Mutex
	snaps    map[string]*types.TaskSnapshot
	versions []int
}

func newMemorySnapshotter() *memorySnapshotter {
	return &memorySnapshotter{snaps: make(map[string]*types.TaskSnapshot)}
}

func (m *memorySnapshotter) get(taskID string) *types.TaskSnapshot {
	s, ok := m.snaps[taskID]
	if !ok {
		s = &types.TaskSnapshot{TaskID: taskID}
		m.snaps[taskID] = s
	}
	return s
}

func (m *memorySnapshotter) SaveTask(_ context.Context, taskID, query string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(taskID).Query = query
	return nil
}

func (m *memorySnapshotter) SaveEvidence(_ context.Context, taskID string, items []types.EvidenceItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(taskID)
	s.Evidence = append(s.Evidence, items...)
	return nil
}

func (m *memorySnapshotter) SaveOutline(_ context.Context, taskID string, o *types.Outline, iteration int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(taskID)
	s.Outline = o.Clone()
	s.Iteration = iteration
	m.versions = append(m.versions, o.Version)
	return nil
}

func (m *memorySnapshotter) SaveResult(_ context.Context, taskID string, r *types.ResearchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(taskID).Result = r
	return nil
}

func (m *memorySnapshotter) Load(_ context.Context, taskID string) (*types.TaskSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, persist.ErrTaskNotFound)
	}
	c := *s
	return &c, nil
}

func testConfig() types.WeaverConfig {
	cfg := types.DefaultConfig()
	cfg.Orchestrator.Deadline = 0
	cfg.Orchestrator.WritingReserve = 0
	return cfg
}
