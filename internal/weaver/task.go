// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package weaver

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/internal/evidence"
	"github.com/pdiddy/research-weaver/internal/outline"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// Task is the state of one research run. Everything it holds is scoped to
// the run; two tasks never share a store or a planner.
type Task struct {
	ID    string
	Query string

	// Store holds the task's evidence. Callers may seed it before Execute.
	Store *evidence.Store

	planner *outline.Planner
	resumed bool

	// saved tracks evidence ids already written to the snapshotter.
	saved map[string]bool

	rounds      atomic.Int64
	directives  atomic.Int64
	candidates  atomic.Int64
	newEvidence atomic.Int64
}

// Stats counts the work done by a task.
type Stats struct {
	Rounds      int `json:"rounds" yaml:"rounds"`
	Directives  int `json:"directives" yaml:"directives"`
	Candidates  int `json:"candidates" yaml:"candidates"`
	NewEvidence int `json:"new_evidence" yaml:"new_evidence"`
}

// Stats returns the task counters.
func (t *Task) Stats() Stats {
	return Stats{
		Rounds:      int(t.rounds.Load()),
		Directives:  int(t.directives.Load()),
		Candidates:  int(t.candidates.Load()),
		NewEvidence: int(t.newEvidence.Load()),
	}
}

// Outline returns a copy of the task's current outline, or nil before it
// has been initialized.
func (t *Task) Outline() *types.Outline {
	return t.planner.Outline()
}

// NewTask creates a task for query with a fresh id and an empty store.
func (w *Weaver) NewTask(query string) *Task {
	return w.newTask(uuid.NewString(), query)
}

func (w *Weaver) newTask(id, query string) *Task {
	log := w.logger.With(zap.String("task_id", id))
	store := evidence.NewStore(w.cfg.Evidence, evidence.WithLogger(log))
	proposer := w.proposer
	if proposer == nil {
		proposer = outline.NewLLMProposer(w.backend, w.cfg.Planner, log)
	}
	return &Task{
		ID:      id,
		Query:   query,
		Store:   store,
		planner: outline.New(w.cfg.Planner, store, proposer, log),
		saved:   make(map[string]bool),
	}
}

// round serves every directive through a pool of SearchConcurrency workers
// and ingests the candidates. For each node it returns every evidence id
// surfaced, including ids the store already held.
func (w *Weaver) round(ctx context.Context, t *Task, directives []types.SearchDirective) outline.RoundResult {
	log := w.logger.With(zap.String("task_id", t.ID))
	found := make([][]string, len(directives))
	sem := make(chan struct{}, w.cfg.Orchestrator.SearchConcurrency)
	var wg sync.WaitGroup

	for i, d := range directives {
		wg.Add(1)
		go func(i int, d types.SearchDirective) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			t.directives.Add(1)
			for _, c := range w.retriever.Fetch(ctx, d) {
				t.candidates.Add(1)
				id, isNew, err := t.Store.Ingest(c)
				if err != nil {
					log.Debug("candidate rejected", zap.String("source", c.SourceURI), zap.Error(err))
					continue
				}
				if isNew {
					t.newEvidence.Add(1)
				}
				found[i] = append(found[i], id)
			}
		}(i, d)
	}
	wg.Wait()

	res := outline.RoundResult{NodeEvidence: make(map[string][]string)}
	for i, d := range directives {
		res.NodeEvidence[d.TargetNodeID] = append(res.NodeEvidence[d.TargetNodeID], found[i]...)
	}
	t.rounds.Add(1)
	return res
}
