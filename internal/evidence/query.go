// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evidence

import (
	"context"
	"sort"
	"strings"

	"github.com/pdiddy/research-weaver/internal/textproc"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// QueryOptions holds parameters for ranking stored evidence.
type QueryOptions struct {
	// Text is matched lexically against item titles and content.
	Text string

	// Topics keeps only items carrying at least one of the tags.
	Topics []string

	// IDs restricts candidates to this set. Members are returned even when
	// they share no keyword with Text.
	IDs []string

	// Exclude drops these ids from the result.
	Exclude []string

	// Limit caps the result; 0 uses the store's default limit.
	Limit int
}

// ScoredItem is an evidence item with its query-relative score.
type ScoredItem struct {
	types.EvidenceItem
	Score float64 `json:"score" yaml:"score"`
}

// Query ranks stored evidence against opts. Results are ordered by lexical
// score, then stored relevance, then newest ingest, then id, so identical
// store state and options always produce the same order.
func (s *Store) Query(ctx context.Context, opts QueryOptions) []types.EvidenceItem {
	scored := s.QueryScored(ctx, opts)
	out := make([]types.EvidenceItem, len(scored))
	for i, si := range scored {
		out[i] = si.EvidenceItem
	}
	return out
}

// QueryScored is Query with the lexical score of each item attached.
func (s *Store) QueryScored(ctx context.Context, opts QueryOptions) []ScoredItem {
	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	queryTerms := textproc.UniqueTokens(opts.Text)

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.candidatesLocked(opts, queryTerms)
	excluded := toSet(opts.Exclude)

	results := make([]ScoredItem, 0, len(candidates))
	for id := range candidates {
		if ctx.Err() != nil {
			return nil
		}
		if excluded[id] {
			continue
		}
		item, ok := s.items[id]
		if !ok {
			continue
		}
		results = append(results, ScoredItem{
			EvidenceItem: copyItem(item),
			Score:        s.scoreLocked(id, queryTerms),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if !a.IngestTimestamp.Equal(b.IngestTimestamp) {
			return a.IngestTimestamp.After(b.IngestTimestamp)
		}
		return a.ID < b.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// candidatesLocked returns the ids eligible for ranking. Topics are drawn
// from the topic index and narrow whatever the other options select.
// s.mu must be held.
func (s *Store) candidatesLocked(opts QueryOptions, queryTerms []string) map[string]bool {
	var tagged map[string]bool
	if len(opts.Topics) > 0 {
		tagged = make(map[string]bool)
		for _, t := range opts.Topics {
			for _, id := range s.byTopic[strings.ToLower(strings.TrimSpace(t))] {
				tagged[id] = true
			}
		}
	}

	var out map[string]bool
	switch {
	case opts.IDs != nil:
		out = toSet(opts.IDs)
	case len(queryTerms) == 0 && tagged != nil:
		return tagged
	case len(queryTerms) == 0:
		out = make(map[string]bool, len(s.items))
		for id := range s.items {
			out[id] = true
		}
	default:
		out = make(map[string]bool)
		for _, t := range queryTerms {
			for id := range s.terms[t] {
				out[id] = true
			}
		}
	}
	if tagged != nil {
		for id := range out {
			if !tagged[id] {
				delete(out, id)
			}
		}
	}
	return out
}

// scoreLocked is the mean saturated term frequency of the query terms in
// the item: each matching term contributes tf/(tf+1), so the score grows
// with both overlap and repetition and stays below 1.
func (s *Store) scoreLocked(id string, queryTerms []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	var sum float64
	for _, t := range queryTerms {
		if n := s.terms[t][id]; n > 0 {
			sum += float64(n) / float64(n+1)
		}
	}
	return sum / float64(len(queryTerms))
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
