// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/research-weaver/internal/httputil"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// WebProvider queries a generic JSON web search API. The endpoint receives
// q and count parameters and may answer with any of the common result
// envelopes: {"results": [...]}, {"items": [...]} or
// {"webPages": {"value": [...]}}.
type WebProvider struct {
	Client    *http.Client
	Endpoint  string
	APIKey    string
	UserAgent string
}

// Name returns the provider identifier.
func (p *WebProvider) Name() string { return "web" }

// Search queries the configured endpoint.
func (p *WebProvider) Search(ctx context.Context, query string, numResults int) ([]types.SearchHit, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("empty web query")
	}
	if p.Endpoint == "" {
		return nil, fmt.Errorf("web search endpoint not configured")
	}
	if numResults <= 0 {
		numResults = 10
	}

	params := url.Values{"q": {q}, "count": {strconv.Itoa(numResults)}}
	sep := "?"
	if strings.Contains(p.Endpoint, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint+sep+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.UserAgent)
	req.Header.Set("Accept", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, p.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search returned HTTP %d", resp.StatusCode)
	}

	var wr webResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("parsing web search response: %w", err)
	}

	items := wr.Results
	if len(items) == 0 {
		items = wr.Items
	}
	if len(items) == 0 {
		items = wr.WebPages.Value
	}
	if len(items) > numResults {
		items = items[:numResults]
	}

	total := len(items)
	hits := make([]types.SearchHit, 0, total)
	for i, it := range items {
		link := firstNonEmpty(it.URL, it.Link)
		if link == "" {
			continue
		}
		hits = append(hits, types.SearchHit{
			Title:    it.Title,
			URL:      link,
			Snippet:  firstNonEmpty(it.Snippet, it.Description, it.Content),
			Provider: p.Name(),
			Score:    positionScore(i, total),
		})
	}
	return hits, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

type webResponse struct {
	Results  []webItem `json:"results"`
	Items    []webItem `json:"items"`
	WebPages struct {
		Value []webItem `json:"value"`
	} `json:"webPages"`
}

type webItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	Description string `json:"description"`
	Content     string `json:"content"`
}
