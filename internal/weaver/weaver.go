// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package weaver runs a research task end to end: it drives the outline
// planner through search rounds until the outline converges, then hands
// the finalized outline to the section writer and assembles the report.
package weaver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/internal/evidence"
	"github.com/pdiddy/research-weaver/internal/generation"
	"github.com/pdiddy/research-weaver/internal/logger"
	"github.com/pdiddy/research-weaver/internal/metrics"
	"github.com/pdiddy/research-weaver/internal/outline"
	"github.com/pdiddy/research-weaver/internal/writer"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// ErrNoSnapshotter is returned by Resume when no snapshotter is configured.
var ErrNoSnapshotter = errors.New("no snapshotter configured")

// Retriever serves one search directive. *retrieval.Gateway satisfies it.
type Retriever interface {
	Fetch(ctx context.Context, d types.SearchDirective) []types.EvidenceCandidate
}

// Snapshotter saves task state so a run can be resumed. persist.Store
// satisfies it.
type Snapshotter interface {
	SaveTask(ctx context.Context, taskID, query string) error
	SaveEvidence(ctx context.Context, taskID string, items []types.EvidenceItem) error
	SaveOutline(ctx context.Context, taskID string, o *types.Outline, iteration int) error
	SaveResult(ctx context.Context, taskID string, r *types.ResearchResult) error
	Load(ctx context.Context, taskID string) (*types.TaskSnapshot, error)
}

// Weaver runs research tasks.
type Weaver struct {
	cfg       types.WeaverConfig
	retriever Retriever
	backend   generation.Backend
	proposer  outline.Proposer
	snaps     Snapshotter
	logger    *zap.Logger
	progress  io.Writer
	now       func() time.Time
}

// Option configures a Weaver.
type Option func(*Weaver)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Weaver) { w.logger = logger.OrNop(l) }
}

// WithSnapshotter saves every revision and the final result to s.
func WithSnapshotter(s Snapshotter) Option {
	return func(w *Weaver) { w.snaps = s }
}

// WithProposer replaces the backend-driven outline proposer.
func WithProposer(p outline.Proposer) Option {
	return func(w *Weaver) { w.proposer = p }
}

// WithProgress writes one line per phase and round to out.
func WithProgress(out io.Writer) Option {
	return func(w *Weaver) { w.progress = out }
}

// New creates a Weaver. Zero budgets in cfg.Orchestrator take their defaults.
func New(cfg types.WeaverConfig, r Retriever, b generation.Backend, opts ...Option) (*Weaver, error) {
	if r == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if b == nil {
		return nil, fmt.Errorf("generation backend is required")
	}
	if cfg.Orchestrator.SearchConcurrency <= 0 {
		cfg.Orchestrator.SearchConcurrency = types.DefaultConfig().Orchestrator.SearchConcurrency
	}
	if cfg.Orchestrator.Deadline > 0 && cfg.Orchestrator.WritingReserve <= 0 {
		cfg.Orchestrator.WritingReserve = cfg.Orchestrator.Deadline / 3
	}
	w := &Weaver{
		cfg:       cfg,
		retriever: r,
		backend:   b,
		logger:    zap.NewNop(),
		progress:  io.Discard,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run researches query from scratch.
func (w *Weaver) Run(ctx context.Context, query string) (*types.ResearchResult, error) {
	return w.Execute(ctx, w.NewTask(query))
}

// Resume continues a task saved by the snapshotter. A task that already
// finished returns its stored result.
func (w *Weaver) Resume(ctx context.Context, taskID string) (*types.ResearchResult, error) {
	if w.snaps == nil {
		return nil, ErrNoSnapshotter
	}
	snap, err := w.snaps.Load(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", taskID, err)
	}
	if snap.Result != nil {
		return snap.Result, nil
	}

	t := w.newTask(snap.TaskID, snap.Query)
	added, rejected := t.Store.Restore(evidence.Snapshot{Items: snap.Evidence})
	for _, it := range snap.Evidence {
		if t.Store.Has(it.ID) {
			t.saved[it.ID] = true
		}
	}
	if snap.Outline != nil {
		if err := t.planner.Resume(snap.Outline, snap.Iteration); err != nil {
			return nil, fmt.Errorf("restoring outline: %w", err)
		}
		t.resumed = true
	}
	w.logger.Info("task resumed",
		zap.String("task_id", t.ID),
		zap.Int("evidence", added),
		zap.Int("rejected", rejected),
		zap.Int("iteration", snap.Iteration),
	)
	return w.Execute(ctx, t)
}

// Execute runs t through acquisition and writing. The run deadline covers
// both phases; acquisition stops early enough to leave the writing reserve.
//
// When ctx is cancelled the partial result is returned with ctx.Err(). A
// deadline is not an error: the best outline so far is written up.
func (w *Weaver) Execute(ctx context.Context, t *Task) (*types.ResearchResult, error) {
	start := w.now()
	log := w.logger.With(zap.String("task_id", t.ID))
	ctx = logger.WithContext(ctx, log)

	runCtx, acqCtx := ctx, ctx
	if d := w.cfg.Orchestrator.Deadline; d > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
		acqCtx = runCtx
		if acq := d - w.cfg.Orchestrator.WritingReserve; acq > 0 {
			acqCtx, cancel = context.WithTimeout(runCtx, acq)
			defer cancel()
		}
	}

	w.save(ctx, "task", func(sctx context.Context) error { return w.snaps.SaveTask(sctx, t.ID, t.Query) })

	if !t.resumed {
		o, err := t.planner.Initialize(acqCtx, t.Query)
		if err != nil {
			return nil, fmt.Errorf("initializing outline: %w", err)
		}
		fmt.Fprintf(w.progress, "outline: %d sections\n", len(o.Nodes)-1)
		w.snapshot(ctx, t, o)
	}

	if err := w.acquire(acqCtx, t); err != nil {
		return nil, err
	}

	reason := t.planner.StopReason()
	if reason == "" {
		reason = w.stopReason(ctx, acqCtx)
		if err := t.planner.ForceConverge(reason); err != nil {
			return nil, err
		}
		if reason == types.StopDeadline {
			log.Warn("acquisition stopped", zap.Error(types.ErrDeadlineExceeded))
		}
	}
	final, err := t.planner.Finalize()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w.progress, "converged: %s after %d iterations, completeness %.2f\n",
		reason, t.planner.Iteration(), final.OverallCompleteness)

	res := &types.ResearchResult{
		TaskID:     t.ID,
		Query:      t.Query,
		Outline:    final,
		Iterations: t.planner.Iteration(),
		StopReason: reason,
	}

	if reason == types.StopCancelled {
		w.finish(ctx, t, res, start)
		return res, ctx.Err()
	}

	wr := writer.New(t.Store, w.backend, w.cfg.Writer, log)
	sections, written, werr := wr.Write(runCtx, final)
	if written != nil {
		res.Outline = written
	}
	res.Sections = sections
	res.EvidenceIDs = citedIDs(sections)
	res.Bibliography = w.bibliography(t, res.EvidenceIDs)
	res.Report = writer.AssembleReport(t.Query, sections, res.Bibliography)

	if werr != nil && errors.Is(ctx.Err(), context.Canceled) {
		res.StopReason = types.StopCancelled
		w.finish(ctx, t, res, start)
		return res, ctx.Err()
	}
	if werr != nil {
		log.Warn("writing cut short by deadline", zap.Int("sections", len(sections)), zap.Error(werr))
		res.StopReason = types.StopDeadline
	}
	w.finish(ctx, t, res, start)
	return res, nil
}

// acquire alternates search rounds and revisions until the planner
// converges or ctx ends.
func (w *Weaver) acquire(ctx context.Context, t *Task) error {
	for !t.planner.Converged() {
		if ctx.Err() != nil {
			return nil
		}
		directives, err := t.planner.Plan()
		if err != nil {
			return fmt.Errorf("planning: %w", err)
		}
		if len(directives) == 0 {
			break
		}
		if err := t.planner.BeginSearch(); err != nil {
			return err
		}

		before := t.Stats()
		res := w.round(ctx, t, directives)
		o, err := t.planner.Revise(ctx, res)
		if err != nil {
			return fmt.Errorf("revising: %w", err)
		}
		after := t.Stats()
		fmt.Fprintf(w.progress, "round %d: %d directives, %d candidates, %d new evidence, completeness %.2f\n",
			after.Rounds, len(directives), after.Candidates-before.Candidates,
			after.NewEvidence-before.NewEvidence, o.OverallCompleteness)
		w.snapshot(ctx, t, o)
	}
	return nil
}

// stopReason classifies why acquisition ended before the planner converged.
func (w *Weaver) stopReason(ctx, acqCtx context.Context) types.StopReason {
	if errors.Is(ctx.Err(), context.Canceled) {
		return types.StopCancelled
	}
	if acqCtx.Err() != nil {
		return types.StopDeadline
	}
	return types.StopConverged
}

func (w *Weaver) finish(ctx context.Context, t *Task, res *types.ResearchResult, start time.Time) {
	res.EvidenceCount = t.Store.Count()
	res.Duration = w.now().Sub(start)
	metrics.Runs.WithLabelValues(string(res.StopReason)).Inc()

	w.saveEvidence(ctx, t)
	w.save(ctx, "result", func(sctx context.Context) error { return w.snaps.SaveResult(sctx, t.ID, res) })

	st := t.Stats()
	w.logger.Info("research finished",
		zap.String("task_id", t.ID),
		zap.String("stop_reason", string(res.StopReason)),
		zap.Int("iterations", res.Iterations),
		zap.Int("rounds", st.Rounds),
		zap.Int("directives", st.Directives),
		zap.Int("evidence", res.EvidenceCount),
		zap.Int("sections", len(res.Sections)),
		zap.Duration("duration", res.Duration),
	)
}

// snapshot saves new evidence and the outline after a revision.
func (w *Weaver) snapshot(ctx context.Context, t *Task, o *types.Outline) {
	w.saveEvidence(ctx, t)
	iteration := t.planner.Iteration()
	w.save(ctx, "outline", func(sctx context.Context) error { return w.snaps.SaveOutline(sctx, t.ID, o, iteration) })
}

func (w *Weaver) saveEvidence(ctx context.Context, t *Task) {
	if w.snaps == nil {
		return
	}
	var fresh []types.EvidenceItem
	for _, it := range t.Store.All() {
		if !t.saved[it.ID] {
			fresh = append(fresh, it)
		}
	}
	if len(fresh) == 0 {
		return
	}
	ok := w.save(ctx, "evidence", func(sctx context.Context) error { return w.snaps.SaveEvidence(sctx, t.ID, fresh) })
	if ok {
		for _, it := range fresh {
			t.saved[it.ID] = true
		}
	}
}

// save runs fn against the snapshotter, ignoring cancellation of ctx so a
// cancelled run still records what it gathered. Failures are logged.
func (w *Weaver) save(ctx context.Context, what string, fn func(context.Context) error) bool {
	if w.snaps == nil {
		return false
	}
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		logger.FromContext(ctx).Warn("snapshot failed", zap.String("what", what), zap.Error(err))
		return false
	}
	return true
}

func (w *Weaver) bibliography(t *Task, ids []string) []string {
	items := make([]types.EvidenceItem, 0, len(ids))
	for _, id := range ids {
		it, err := t.Store.Get(id)
		if err != nil {
			continue
		}
		items = append(items, it)
	}
	style := w.cfg.Writer.BibliographyStyle
	if style == "" {
		style = writer.StyleAPA
	}
	return writer.Bibliography(items, style)
}

func citedIDs(sections []types.WrittenSection) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range sections {
		for _, id := range s.CitedIDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}
