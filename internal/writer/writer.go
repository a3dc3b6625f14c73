// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package writer turns a finalized outline into report sections. Each
// section is generated from a small, node-scoped slice of the evidence
// store, and every citation in the result is checked against that slice.
package writer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/internal/evidence"
	"github.com/pdiddy/research-weaver/internal/generation"
	"github.com/pdiddy/research-weaver/internal/metrics"
	"github.com/pdiddy/research-weaver/internal/textproc"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// Evidence is the part of the evidence store the writer reads.
type Evidence interface {
	Query(ctx context.Context, opts evidence.QueryOptions) []types.EvidenceItem
}

// Writer generates sections.
type Writer struct {
	store   Evidence
	backend generation.Backend
	cfg     types.WriterConfig
	logger  *zap.Logger
}

// New creates a writer. Zero config fields take their defaults.
func New(store Evidence, backend generation.Backend, cfg types.WriterConfig, logger *zap.Logger) *Writer {
	def := types.DefaultConfig().Writer
	if cfg.CitationFloor <= 0 {
		cfg.CitationFloor = def.CitationFloor
	}
	if cfg.MaxEvidencePerSection <= 0 {
		cfg.MaxEvidencePerSection = def.MaxEvidencePerSection
	}
	if cfg.MaxEvidencePerSection > types.MaxEvidencePerCall {
		cfg.MaxEvidencePerSection = types.MaxEvidencePerCall
	}
	if cfg.CitationPolicy == "" {
		cfg.CitationPolicy = def.CitationPolicy
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.MaxSectionWords <= 0 {
		cfg.MaxSectionWords = def.MaxSectionWords
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, backend: backend, cfg: cfg, logger: logger}
}

// RetrieveForSection selects the evidence a section is written from: the
// node's own evidence ranked against its title and description, topped up
// by an unrestricted query when that falls short of the citation floor.
// The result never exceeds MaxEvidencePerSection.
func (w *Writer) RetrieveForSection(ctx context.Context, node *types.OutlineNode) []types.EvidenceItem {
	limit := w.cfg.MaxEvidencePerSection
	text := strings.TrimSpace(node.Title + " " + node.Description)

	var out []types.EvidenceItem
	if len(node.CitedEvidenceIDs) > 0 {
		out = w.store.Query(ctx, evidence.QueryOptions{Text: text, IDs: node.CitedEvidenceIDs, Limit: limit})
	}

	floor := min(w.cfg.CitationFloor, limit)
	if len(out) < floor && ctx.Err() == nil {
		exclude := make([]string, len(out))
		for i, it := range out {
			exclude[i] = it.ID
		}
		extra := w.store.Query(ctx, evidence.QueryOptions{Text: text, Exclude: exclude, Limit: floor - len(out)})
		if len(extra) > 0 {
			w.logger.Debug("supplementing section evidence",
				zap.String("node_id", node.NodeID),
				zap.Int("own", len(out)),
				zap.Int("supplementary", len(extra)),
			)
		}
		out = append(out, extra...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// WriteSection retrieves, drafts and validates one section. Generation
// failures produce a failed section rather than an error.
func (w *Writer) WriteSection(ctx context.Context, report string, node *types.OutlineNode, parentText string) types.WrittenSection {
	log := w.logger.With(zap.String("node_id", node.NodeID))
	sec := types.WrittenSection{NodeID: node.NodeID, Title: node.Title, Level: node.Level}

	ev := w.RetrieveForSection(ctx, node)
	text, err := w.Draft(ctx, report, node, ev, parentText, "")
	if err != nil {
		return w.fail(log, sec, err)
	}
	text = TruncateSection(text, w.cfg.MaxSectionWords)

	text, markers, err := ValidateCitations(text, ev)
	var cerr *types.CitationError
	if errors.As(err, &cerr) {
		text, markers = w.repair(ctx, log, report, node, ev, parentText, text, cerr, &sec)
	}

	sec.Text = text
	sec.CitationMarkers = markers
	sec.WordCount = textproc.WordCount(text)
	if sec.Status == "" {
		sec.Status = types.SectionWritten
	}
	sec.QualityScore = QualityScore(sec, len(ev), w.cfg.MaxSectionWords)
	metrics.Sections.WithLabelValues(string(sec.Status)).Inc()
	log.Debug("section written",
		zap.String("status", string(sec.Status)),
		zap.Int("evidence", len(ev)),
		zap.Int("citations", len(markers)),
		zap.Int("words", sec.WordCount),
	)
	return sec
}

// repair handles a draft that cited unknown evidence. Under the strict
// policy the unknown citations are dropped. Under the lenient policy the
// section is regenerated once with a notice, and dropped only if the second
// draft is still unsound.
func (w *Writer) repair(ctx context.Context, log *zap.Logger, report string, node *types.OutlineNode, ev []types.EvidenceItem, parentText, text string, cerr *types.CitationError, sec *types.WrittenSection) (string, []types.CitationMarker) {
	log.Warn("draft cites unknown evidence", zap.Strings("unknown", cerr.UnknownIDs), zap.String("policy", string(w.cfg.CitationPolicy)))

	if w.cfg.CitationPolicy == types.CitationLenient {
		notice := fmt.Sprintf("Your previous draft cited ids that are not in the evidence list: %s. Cite only the ids listed above.",
			strings.Join(cerr.UnknownIDs, ", "))
		retry, err := w.Draft(ctx, report, node, ev, parentText, notice)
		if err == nil {
			retry = TruncateSection(retry, w.cfg.MaxSectionWords)
			out, markers, verr := ValidateCitations(retry, ev)
			if verr == nil {
				return out, markers
			}
			text = retry
			if errors.As(verr, &cerr) {
				log.Warn("regenerated draft still cites unknown evidence", zap.Strings("unknown", cerr.UnknownIDs))
			}
		} else {
			log.Warn("regeneration failed, keeping first draft", zap.Error(err))
		}
	}

	out, markers, dropped := DropUnknown(text, ev)
	metrics.CitationsDropped.Add(float64(dropped))
	sec.Status = types.SectionDegraded
	sec.Error = fmt.Sprintf("%v: dropped %d unresolved citation(s)", types.ErrCitation, dropped)
	return out, markers
}

func (w *Writer) fail(log *zap.Logger, sec types.WrittenSection, err error) types.WrittenSection {
	log.Warn("section generation failed", zap.Error(err))
	sec.Status = types.SectionFailed
	sec.Error = err.Error()
	metrics.Sections.WithLabelValues(string(sec.Status)).Inc()
	return sec
}

// Write generates a section for every non-root node of the finalized
// outline, in pre-order. At most Concurrency sections are generated at
// once, and a section starts only after its parent's section is complete.
//
// It returns the sections and a copy of the outline whose nodes cite
// exactly the evidence their sections cite. If ctx ends first, sections
// still in progress are discarded and ctx.Err() is returned with the
// sections already finished.
func (w *Writer) Write(ctx context.Context, o *types.Outline) ([]types.WrittenSection, *types.Outline, error) {
	if o == nil || o.Root() == nil {
		return nil, nil, fmt.Errorf("outline is empty")
	}
	nodes := o.PreOrder()[1:]

	var (
		mu      sync.Mutex
		results = make(map[string]types.WrittenSection, len(nodes))
		done    = make(map[string]chan struct{}, len(nodes))
		sem     = make(chan struct{}, w.cfg.Concurrency)
		wg      sync.WaitGroup
	)
	for _, n := range nodes {
		done[n.NodeID] = make(chan struct{})
	}

	for _, n := range nodes {
		wg.Add(1)
		go func(n *types.OutlineNode) {
			defer wg.Done()
			defer close(done[n.NodeID])

			parentText := ""
			if wait, ok := done[n.ParentID]; ok {
				select {
				case <-wait:
				case <-ctx.Done():
					return
				}
				mu.Lock()
				parentText = results[n.ParentID].Text
				mu.Unlock()
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			sec := w.WriteSection(ctx, o.Title, n, parentText)
			if ctx.Err() != nil {
				return
			}
			mu.Lock()
			results[n.NodeID] = sec
			mu.Unlock()
		}(n)
	}
	wg.Wait()

	out := o.Clone()
	var sections []types.WrittenSection
	for _, n := range nodes {
		sec, ok := results[n.NodeID]
		if !ok {
			continue
		}
		sections = append(sections, sec)
		cited := sec.CitedIDs()
		sort.Strings(cited)
		out.Nodes[n.NodeID].CitedEvidenceIDs = cited
	}

	if err := ctx.Err(); err != nil {
		w.logger.Warn("section writing interrupted", zap.Int("written", len(sections)), zap.Int("planned", len(nodes)), zap.Error(err))
		return sections, out, err
	}
	return sections, out, nil
}
