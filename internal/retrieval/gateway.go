// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieval turns a search directive into evidence candidates. It
// queries every configured provider, fetches page content and scores each
// result against the directive.
package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/internal/logger"
	"github.com/pdiddy/research-weaver/internal/metrics"
	"github.com/pdiddy/research-weaver/internal/search"
	"github.com/pdiddy/research-weaver/internal/textproc"
	"github.com/pdiddy/research-weaver/pkg/types"
)

const (
	topicTagCount = 5
	summaryChars  = 300

	// positionWeight blends the provider's rank with keyword overlap.
	positionWeight = 0.5
)

// Gateway serves search directives.
type Gateway struct {
	providers []search.Provider
	fetcher   search.Fetcher
	cfg       types.RetrievalConfig
	logger    *zap.Logger
}

// NewGateway creates a gateway. fetcher may be nil, in which case hit
// snippets are used as content.
func NewGateway(providers []search.Provider, fetcher search.Fetcher, cfg types.RetrievalConfig, logger *zap.Logger) *Gateway {
	if cfg.ResultsPerProvider <= 0 {
		cfg.ResultsPerProvider = 5
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 4
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = 20000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{providers: providers, fetcher: fetcher, cfg: cfg, logger: logger}
}

// Fetch returns evidence candidates for d. Provider failures are logged
// and contribute nothing. If the directive's timeout expires, or ctx is
// cancelled, the directive yields no candidates at all.
func (g *Gateway) Fetch(ctx context.Context, d types.SearchDirective) []types.EvidenceCandidate {
	log := g.logger.With(zap.String("node_id", d.TargetNodeID), zap.String("query", d.QueryText))

	dctx := ctx
	if g.cfg.DirectiveTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, g.cfg.DirectiveTimeout)
		defer cancel()
	}
	dctx = logger.WithContext(dctx, log)

	out, err := search.Search(dctx, d.QueryText, g.cfg.ResultsPerProvider, g.providers)
	if err != nil {
		log.Warn("directive not searchable", zap.Error(err))
		metrics.Directives.WithLabelValues("empty").Inc()
		return nil
	}

	candidates := g.build(dctx, d, out.Hits)

	if dctx.Err() != nil {
		outcome := "timeout"
		if errors.Is(dctx.Err(), context.Canceled) {
			outcome = "cancelled"
		}
		log.Warn("directive abandoned", zap.String("outcome", outcome), zap.Int("discarded", len(candidates)))
		metrics.Directives.WithLabelValues(outcome).Inc()
		return nil
	}

	outcome := "productive"
	if len(candidates) == 0 {
		outcome = "empty"
	}
	metrics.Directives.WithLabelValues(outcome).Inc()
	log.Debug("directive served",
		zap.Int("hits", len(out.Hits)),
		zap.Int("dups_removed", out.DupsRemoved),
		zap.Int("provider_errors", len(out.Errors)),
		zap.Int("candidates", len(candidates)),
	)
	return candidates
}

// build fetches page content for each hit with bounded concurrency and
// returns candidates in hit order.
func (g *Gateway) build(ctx context.Context, d types.SearchDirective, hits []types.SearchHit) []types.EvidenceCandidate {
	results := make([]*types.EvidenceCandidate, len(hits))
	sem := make(chan struct{}, g.cfg.FetchConcurrency)
	var wg sync.WaitGroup

	for i, h := range hits {
		wg.Add(1)
		go func(i int, h types.SearchHit) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			results[i] = g.candidate(ctx, d, h)
		}(i, h)
	}
	wg.Wait()

	var out []types.EvidenceCandidate
	for _, c := range results {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// candidate builds one candidate from a hit, or nil when there is no
// usable content.
func (g *Gateway) candidate(ctx context.Context, d types.SearchDirective, h types.SearchHit) *types.EvidenceCandidate {
	title := h.Title
	snippet := strings.ToValidUTF8(textproc.Clean(h.Snippet), "")
	content := strings.ToValidUTF8(g.pageContent(ctx, h, &title), "")
	if content == "" {
		content = snippet
	}
	if content == "" {
		return nil
	}
	content = textproc.TruncateBytes(content, g.cfg.MaxContentChars)

	summary := snippet
	if summary == "" {
		summary = textproc.Summarize(content, summaryChars)
	}

	return &types.EvidenceCandidate{
		RawContent:     content,
		Summary:        summary,
		SourceURI:      h.URL,
		Title:          title,
		Provider:       h.Provider,
		OriginQuery:    d.QueryText,
		RelevanceScore: Relevance(d.QueryText, h),
		TopicTags:      topicTags(d, title+" "+content),
	}
}

// pageContent fetches the hit's page. Failures are logged and return "".
func (g *Gateway) pageContent(ctx context.Context, h types.SearchHit, title *string) string {
	if g.fetcher == nil || h.URL == "" {
		return ""
	}
	start := time.Now()
	page, err := g.fetcher.FetchPage(ctx, h.URL)
	if err != nil {
		metrics.PageFetches.WithLabelValues("snippet").Inc()
		logger.FromContext(ctx).Debug("page fetch failed, using snippet",
			zap.String("url", h.URL),
			zap.Int("status", page.StatusCode),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return ""
	}
	content := strings.TrimSpace(page.Content)
	if content == "" {
		metrics.PageFetches.WithLabelValues("snippet").Inc()
		return ""
	}
	metrics.PageFetches.WithLabelValues("ok").Inc()
	if *title == "" {
		*title = page.Title
	}
	return content
}

// Relevance blends the provider's position score with the fraction of
// query keywords found in the hit's title and snippet. The result is in
// [0, 1] and never decreases as overlap grows.
func Relevance(query string, h types.SearchHit) float64 {
	overlap := textproc.Overlap(query, h.Title+" "+h.Snippet)
	score := positionWeight*h.Score + (1-positionWeight)*overlap
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

// topicTags returns the top content keywords plus the directive's expected
// information type and target node.
func topicTags(d types.SearchDirective, text string) []string {
	tags := textproc.Keywords(text, topicTagCount)
	if d.ExpectedInfoType != "" {
		tags = append(tags, d.ExpectedInfoType)
	}
	if d.TargetNodeID != "" {
		tags = append(tags, d.TargetNodeID)
	}
	return tags
}
