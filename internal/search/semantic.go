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

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,tldr,externalIds,url"

// SemanticScholarProvider queries the Semantic Scholar API.
type SemanticScholarProvider struct {
	Client    *http.Client
	APIKey    string
	UserAgent string
}

// Name returns the provider identifier.
func (p *SemanticScholarProvider) Name() string { return "semantic_scholar" }

// Search queries the Semantic Scholar API. Hits prefer an arXiv abstract
// page, then the DOI resolver, then the Semantic Scholar paper page.
func (p *SemanticScholarProvider) Search(ctx context.Context, query string, numResults int) ([]types.SearchHit, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}
	if numResults <= 0 {
		numResults = 10
	}

	params := url.Values{
		"query":  {q},
		"limit":  {strconv.Itoa(numResults)},
		"fields": {semanticFields},
	}
	reqURL := semanticAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.UserAgent)
	if p.APIKey != "" {
		req.Header.Set("x-api-key", p.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, p.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	total := len(sr.Data)
	hits := make([]types.SearchHit, 0, total)
	for i, paper := range sr.Data {
		snippet := paper.Abstract
		if snippet == "" && paper.TLDR != nil {
			snippet = paper.TLDR.Text
		}
		hits = append(hits, types.SearchHit{
			Title:    paper.Title,
			URL:      semanticURL(paper),
			Snippet:  snippet,
			Provider: p.Name(),
			Score:    positionScore(i, total),
		})
	}
	return hits, nil
}

func semanticURL(paper semanticPaper) string {
	switch {
	case paper.ExternalIDs.ArXiv != "":
		return "https://arxiv.org/abs/" + paper.ExternalIDs.ArXiv
	case paper.ExternalIDs.DOI != "":
		return "https://doi.org/" + paper.ExternalIDs.DOI
	case paper.URL != "":
		return paper.URL
	default:
		return "https://www.semanticscholar.org/paper/" + paper.PaperID
	}
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID     string              `json:"paperId"`
	Title       string              `json:"title"`
	Abstract    string              `json:"abstract"`
	URL         string              `json:"url"`
	TLDR        *semanticTLDR       `json:"tldr"`
	ExternalIDs semanticExternalIDs `json:"externalIds"`
}

type semanticTLDR struct {
	Text string `json:"text"`
}

type semanticExternalIDs struct {
	DOI      string `json:"DOI"`
	ArXiv    string `json:"ArXiv"`
	CorpusID int    `json:"CorpusId"`
}
