// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package outline maintains the research outline and drives it toward
// convergence. The Planner turns coverage gaps into search directives,
// folds the evidence each round produced back into the tree and applies
// structural edits suggested by a Proposer.
package outline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/internal/metrics"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// State is a step of the convergence loop.
type State string

// Planner states.
const (
	StateInitializing State = "INITIALIZING"
	StatePlanning     State = "PLANNING"
	StateSearching    State = "SEARCHING"
	StateRevising     State = "REVISING"
	StateConverged    State = "CONVERGED"
)

// ErrInvalidTransition is returned when an operation is called in the
// wrong state.
var ErrInvalidTransition = errors.New("invalid planner transition")

// Information types attached to directives.
const (
	InfoOverview   = "overview"
	InfoBackground = "background"
	InfoMethods    = "methods"
	InfoChallenges = "challenges"
	InfoEvidence   = "evidence"
)

var infoTypes = map[string]bool{
	InfoOverview: true, InfoBackground: true, InfoMethods: true,
	InfoChallenges: true, InfoEvidence: true,
}

// RoundResult is what one search round produced: for each target node, the
// ids of the evidence its directive returned, whether new to the store or
// not.
type RoundResult struct {
	NodeEvidence map[string][]string
}

// Planner owns one task's outline. It is safe for concurrent use, but the
// orchestrator drives it from a single goroutine so only one revision is
// ever in flight.
type Planner struct {
	mu sync.Mutex

	cfg      types.PlannerConfig
	evidence Evidence
	proposer Proposer
	logger   *zap.Logger

	state      State
	outline    *types.Outline
	iteration  int
	pending    []types.SearchDirective
	stopReason types.StopReason
	final      *types.Outline
}

// New creates a planner in the INITIALIZING state. A nil proposer uses
// the heuristic proposer.
func New(cfg types.PlannerConfig, ev Evidence, proposer Proposer, logger *zap.Logger) *Planner {
	if cfg.StallRounds <= 0 {
		cfg.StallRounds = 2
	}
	if cfg.CoverageTarget <= 0 {
		cfg.CoverageTarget = 3
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	if proposer == nil {
		proposer = NewHeuristicProposer(cfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		cfg:      cfg,
		evidence: ev,
		proposer: proposer,
		logger:   logger,
		state:    StateInitializing,
	}
}

func (p *Planner) limits() Limits {
	return Limits{MaxDepth: p.cfg.MaxDepth, MaxNodes: p.cfg.MaxNodes}
}

// Initialize builds the first outline for query and moves to PLANNING.
func (p *Planner) Initialize(ctx context.Context, query string) (*types.Outline, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateInitializing {
		return nil, fmt.Errorf("%w: initialize in %s", ErrInvalidTransition, p.state)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}

	sections, err := p.proposer.Decompose(ctx, query)
	if err != nil || len(sections) == 0 {
		p.logger.Warn("proposer gave no decomposition, using heuristic", zap.Error(err))
		sections, _ = NewHeuristicProposer(p.cfg).Decompose(ctx, query)
	}
	if p.cfg.MaxNodes > 1 && len(sections) > p.cfg.MaxNodes-1 {
		sections = sections[:p.cfg.MaxNodes-1]
	}

	o := NewOutline(query, sections)
	if err := Validate(o, p.limits()); err != nil {
		return nil, err
	}
	UpdateCoverage(o, p.evidence, p.cfg.CoverageTarget)

	p.outline = o
	p.state = StatePlanning
	metrics.OutlineCompleteness.Set(o.OverallCompleteness)
	p.logger.Info("outline initialized", zap.Int("nodes", len(o.Nodes)), zap.Int("version", o.Version))
	return o.Clone(), nil
}

// Resume restores an outline saved after iteration rounds. A finalized
// outline resumes straight into CONVERGED.
func (p *Planner) Resume(o *types.Outline, iteration int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateInitializing {
		return fmt.Errorf("%w: resume in %s", ErrInvalidTransition, p.state)
	}
	if err := Validate(o, Limits{}); err != nil {
		return err
	}
	p.outline = o.Clone()
	p.outline.Finalized = false
	p.iteration = iteration
	p.state = StatePlanning
	if o.Finalized {
		p.converge(types.StopConverged)
	} else if p.iteration >= p.cfg.MaxIterations {
		p.converge(types.StopMaxIterations)
	}
	p.logger.Info("outline resumed", zap.Int("version", o.Version), zap.Int("iteration", iteration), zap.String("state", string(p.state)))
	return nil
}

// Plan returns one directive per non-frozen node whose coverage is below
// the gap threshold, ordered by coverage, then level, then node id. When no
// node can take more evidence the planner stops and Plan returns nil: with
// StopStalled if a frozen node is still short of the threshold, otherwise
// with StopConverged.
func (p *Planner) Plan() ([]types.SearchDirective, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlanning {
		return nil, fmt.Errorf("%w: plan in %s", ErrInvalidTransition, p.state)
	}

	gaps := p.gaps()
	sort.SliceStable(gaps, func(i, j int) bool {
		a, b := gaps[i], gaps[j]
		if a.CoverageScore != b.CoverageScore {
			return a.CoverageScore < b.CoverageScore
		}
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		return less(a.NodeID, b.NodeID)
	})

	if len(gaps) == 0 {
		p.converge(p.exhaustedReason())
		p.pending = nil
		return nil, nil
	}

	directives := make([]types.SearchDirective, len(gaps))
	for i, n := range gaps {
		directives[i] = types.SearchDirective{
			TargetNodeID:     n.NodeID,
			QueryText:        p.queryFor(n),
			Priority:         i + 1,
			ExpectedInfoType: infoTypeFor(p.outline, n),
		}
	}
	p.pending = directives
	return append([]types.SearchDirective(nil), directives...), nil
}

// BeginSearch moves from PLANNING to SEARCHING for the planned directives.
func (p *Planner) BeginSearch() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePlanning || len(p.pending) == 0 {
		return fmt.Errorf("%w: begin search in %s with %d directives", ErrInvalidTransition, p.state, len(p.pending))
	}
	p.state = StateSearching
	return nil
}

// Revise folds a search round into the outline, applies proposed edits and
// decides whether to continue. It returns a copy of the revised outline.
func (p *Planner) Revise(ctx context.Context, res RoundResult) (*types.Outline, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateSearching {
		return nil, fmt.Errorf("%w: revise in %s", ErrInvalidTransition, p.state)
	}
	p.state = StateRevising
	o := p.outline

	for _, d := range p.pending {
		n, ok := o.Nodes[d.TargetNodeID]
		if !ok || n.Frozen {
			continue
		}
		gained := 0
		n.CitedEvidenceIDs, gained = addEvidence(n.CitedEvidenceIDs, res.NodeEvidence[n.NodeID])
		if gained > 0 {
			n.StallCount = 0
			continue
		}
		// Directives cut off by the context were never really tried.
		if ctx.Err() != nil {
			continue
		}
		n.StallCount++
		if n.StallCount >= p.cfg.StallRounds {
			n.Frozen = true
			p.logger.Warn("node frozen",
				zap.String("node_id", n.NodeID),
				zap.Int("stall_rounds", n.StallCount),
				zap.Error(types.ErrConvergenceStall),
			)
		}
	}
	p.pending = nil
	UpdateCoverage(o, p.evidence, p.cfg.CoverageTarget)

	if ctx.Err() == nil {
		p.applyProposal(ctx)
	}

	o.Version++
	p.iteration++
	metrics.PlannerRevisions.Inc()
	metrics.OutlineCompleteness.Set(o.OverallCompleteness)

	p.state = StatePlanning
	switch {
	case o.OverallCompleteness >= p.cfg.CompletenessThreshold:
		p.converge(types.StopConverged)
	case len(p.gaps()) == 0:
		p.converge(p.exhaustedReason())
	case p.iteration >= p.cfg.MaxIterations:
		p.converge(types.StopMaxIterations)
	}

	p.logger.Info("outline revised",
		zap.Int("iteration", p.iteration),
		zap.Int("version", o.Version),
		zap.Float64("completeness", o.OverallCompleteness),
		zap.String("state", string(p.state)),
	)
	return o.Clone(), nil
}

// gaps returns the nodes that still take directives, in pre-order.
func (p *Planner) gaps() []*types.OutlineNode {
	var out []*types.OutlineNode
	for _, n := range p.outline.PreOrder() {
		if !n.Frozen && n.CoverageScore < p.cfg.GapThreshold {
			out = append(out, n)
		}
	}
	return out
}

// exhaustedReason classifies a loop with no gaps left.
func (p *Planner) exhaustedReason() types.StopReason {
	for _, n := range p.outline.PreOrder() {
		if n.Frozen && n.CoverageScore < p.cfg.GapThreshold {
			p.logger.Warn("outline stalled",
				zap.Float64("completeness", p.outline.OverallCompleteness),
				zap.Error(types.ErrConvergenceStall),
			)
			return types.StopStalled
		}
	}
	return types.StopConverged
}

// applyProposal asks the proposer for edits and applies them if they
// produce a valid tree.
func (p *Planner) applyProposal(ctx context.Context) {
	edits, err := p.proposer.Propose(ctx, p.outline.Clone(), p.evidence)
	if err != nil {
		p.logger.Warn("proposer failed", zap.Error(err))
		return
	}
	if len(edits) == 0 {
		return
	}
	revised, applied, err := Apply(p.outline, edits, p.limits())
	if err != nil {
		p.logger.Warn("proposal rejected", zap.Int("edits", len(edits)), zap.Error(err))
		return
	}
	UpdateCoverage(revised, p.evidence, p.cfg.CoverageTarget)
	p.outline = revised
	p.logger.Debug("proposal applied", zap.Int("edits", len(edits)), zap.Int("applied", applied))
}

// Converged reports whether the loop has stopped.
func (p *Planner) Converged() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateConverged
}

// ForceConverge stops the loop with reason, whatever state it is in. Any
// planned directives are abandoned.
func (p *Planner) ForceConverge(reason types.StopReason) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outline == nil {
		return fmt.Errorf("%w: force converge before initialize", ErrInvalidTransition)
	}
	if p.state == StateConverged {
		return nil
	}
	p.pending = nil
	p.converge(reason)
	p.logger.Info("outline forced to converge", zap.String("reason", string(reason)))
	return nil
}

func (p *Planner) converge(reason types.StopReason) {
	p.state = StateConverged
	p.stopReason = reason
}

// Finalize returns the frozen outline handed to the writer. It may only be
// called once the loop has converged and always returns the same snapshot.
func (p *Planner) Finalize() (*types.Outline, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateConverged {
		return nil, fmt.Errorf("%w: finalize in %s", ErrInvalidTransition, p.state)
	}
	if p.final == nil {
		p.final = p.outline.Clone()
		p.final.Finalized = true
	}
	return p.final.Clone(), nil
}

// State returns the current state.
func (p *Planner) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Outline returns a copy of the working outline.
func (p *Planner) Outline() *types.Outline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outline.Clone()
}

// Iteration returns the number of completed revisions.
func (p *Planner) Iteration() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.iteration
}

// StopReason returns why the loop converged, or "" while it runs.
func (p *Planner) StopReason() types.StopReason {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopReason
}

// queryFor builds the search query for n. Sections that do not mention the
// research topic get it appended so results stay on subject.
func (p *Planner) queryFor(n *types.OutlineNode) string {
	topic := p.outline.Title
	if n.NodeID == p.outline.RootID || strings.Contains(strings.ToLower(n.Title), strings.ToLower(topic)) {
		return n.Title
	}
	return n.Title + " " + topic
}

// infoTypeFor guesses what kind of information a node wants from its title.
func infoTypeFor(o *types.Outline, n *types.OutlineNode) string {
	if n.NodeID == o.RootID {
		return InfoOverview
	}
	title := strings.ToLower(n.Title)
	switch {
	case containsAny(title, "background", "definition", "history", "overview", "introduction"):
		return InfoBackground
	case containsAny(title, "approach", "method", "technique", "technolog", "implementation"):
		return InfoMethods
	case containsAny(title, "challenge", "future", "limitation", "open problem", "risk"):
		return InfoChallenges
	}
	return InfoEvidence
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// addEvidence merges ids into the sorted set cited and reports how many
// were new.
func addEvidence(cited, ids []string) ([]string, int) {
	have := make(map[string]bool, len(cited))
	for _, id := range cited {
		have[id] = true
	}
	gained := 0
	for _, id := range ids {
		if id == "" || have[id] {
			continue
		}
		have[id] = true
		cited = append(cited, id)
		gained++
	}
	if gained > 0 {
		sort.Strings(cited)
	}
	return cited, gained
}
