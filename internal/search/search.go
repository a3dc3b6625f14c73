// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries web and academic search providers and fetches
// pages. Results from all providers are merged and deduplicated by URL.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/internal/logger"
	"github.com/pdiddy/research-weaver/internal/metrics"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// Provider searches a single service. Providers are interchangeable and
// selected by configuration.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, numResults int) ([]types.SearchHit, error)
}

// Fetcher retrieves the content of a single URL.
type Fetcher interface {
	FetchPage(ctx context.Context, rawURL string) (types.Page, error)
}

// Output holds merged hits and the failures observed while collecting them.
type Output struct {
	Hits        []types.SearchHit
	DupsRemoved int
	Errors      []*types.RetrievalError
}

// Search fans the query out to all providers concurrently and merges the
// hits. A failing provider is logged and contributes nothing; Search itself
// only fails for an empty query.
func Search(ctx context.Context, query string, numResults int, providers []Provider) (Output, error) {
	if strings.TrimSpace(query) == "" {
		return Output{}, fmt.Errorf("query is empty")
	}
	log := logger.FromContext(ctx)

	type providerResult struct {
		index int
		hits  []types.SearchHit
		err   error
		name  string
	}

	ch := make(chan providerResult, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			hits, err := p.Search(ctx, query, numResults)
			ch <- providerResult{index: i, hits: hits, err: err, name: p.Name()}
		}(i, p)
	}
	go func() {
		wg.Wait()
		close(ch)
	}()

	// Collect per provider, then merge in provider order so the result does
	// not depend on completion order.
	perProvider := make([][]types.SearchHit, len(providers))
	var out Output
	for pr := range ch {
		if pr.err != nil {
			rerr := &types.RetrievalError{Provider: pr.name, Query: query, Err: pr.err}
			out.Errors = append(out.Errors, rerr)
			metrics.ProviderErrors.WithLabelValues(pr.name).Inc()
			log.Warn("search provider failed", zap.String("provider", pr.name), zap.Error(pr.err))
			continue
		}
		perProvider[pr.index] = pr.hits
	}
	sort.Slice(out.Errors, func(i, j int) bool { return out.Errors[i].Provider < out.Errors[j].Provider })

	var all []types.SearchHit
	for _, hits := range perProvider {
		all = append(all, hits...)
	}
	out.Hits, out.DupsRemoved = deduplicate(all)
	return out, nil
}

// deduplicate drops hits that share a normalized URL or title with an
// earlier hit, keeping the higher score and the longer snippet.
func deduplicate(hits []types.SearchHit) ([]types.SearchHit, int) {
	seen := make(map[string]int)
	var deduped []types.SearchHit
	removed := 0

	for _, h := range hits {
		urlKey := "url:" + NormalizeURL(h.URL)
		titleKey := "title:" + normalizeTitle(h.Title)

		idx, dup := seen[urlKey]
		if !dup && titleKey != "title:" {
			idx, dup = seen[titleKey]
		}
		if dup {
			mergeInto(&deduped[idx], h)
			removed++
			continue
		}

		idx = len(deduped)
		deduped = append(deduped, h)
		if urlKey != "url:" {
			seen[urlKey] = idx
		}
		if titleKey != "title:" {
			seen[titleKey] = idx
		}
	}
	return deduped, removed
}

func mergeInto(dst *types.SearchHit, src types.SearchHit) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if len(src.Snippet) > len(dst.Snippet) {
		dst.Snippet = src.Snippet
	}
	if src.Score > dst.Score {
		dst.Score = src.Score
	}
	if !strings.Contains(dst.Provider, src.Provider) {
		dst.Provider = dst.Provider + "," + src.Provider
	}
}

// NormalizeURL lowercases scheme and host, drops the fragment, a trailing
// slash and the "www." prefix, and treats http and https as equal.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	key := host + path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

// normalizeTitle returns a lowercased, punctuation-stripped version of the title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// positionScore maps a result index to a score between 1.0 (first) and
// 0.1 (last).
func positionScore(i, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(total-1)*0.9
}

// FormatTable writes hits as a human-readable table to w.
func FormatTable(out Output, w io.Writer) {
	if len(out.Hits) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-6s  %-18s  %s\n", "Rank", "Title", "Score", "Provider", "URL")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for i, h := range out.Hits {
		fmt.Fprintf(w, "%-4d  %-60s  %-6.2f  %-18s  %s\n",
			i+1, truncate(h.Title, 60), h.Score, truncate(h.Provider, 18), h.URL)
	}

	fmt.Fprintf(w, "\n%d results", len(out.Hits))
	if out.DupsRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", out.DupsRemoved)
	}
	fmt.Fprintln(w)
	for _, e := range out.Errors {
		fmt.Fprintf(w, "warning: %v\n", e)
	}
}

// FormatJSON writes hits as indented JSON to w.
func FormatJSON(out Output, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Hits)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
