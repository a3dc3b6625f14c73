// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"net/http"

	"github.com/pdiddy/research-weaver/pkg/types"
)

// NewProviders builds the providers named in cfg.Providers, each wrapped in
// a rate limiter when cfg.RequestsPerSecond is set.
func NewProviders(cfg types.RetrievalConfig, client *http.Client) ([]Provider, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	var providers []Provider
	seen := make(map[string]bool)
	for _, name := range cfg.Providers {
		if seen[name] {
			continue
		}
		seen[name] = true

		var p Provider
		switch name {
		case "arxiv":
			p = &ArxivProvider{Client: client, UserAgent: cfg.UserAgent}
		case "semantic_scholar":
			p = &SemanticScholarProvider{Client: client, APIKey: cfg.SemanticScholarAPIKey, UserAgent: cfg.UserAgent}
		case "openalex":
			p = &OpenAlexProvider{Client: client, Email: cfg.OpenAlexEmail, UserAgent: cfg.UserAgent}
		case "web":
			if cfg.WebSearchURL == "" {
				return nil, fmt.Errorf("provider web requires web_search_url")
			}
			p = &WebProvider{Client: client, Endpoint: cfg.WebSearchURL, APIKey: cfg.WebSearchAPIKey, UserAgent: cfg.UserAgent}
		default:
			return nil, fmt.Errorf("unknown search provider %q: use arxiv, semantic_scholar, openalex or web", name)
		}
		providers = append(providers, NewRateLimited(p, cfg.RequestsPerSecond))
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no search providers configured")
	}
	return providers, nil
}

// NewFetcher builds the page fetcher, or nil when page fetching is disabled.
func NewFetcher(cfg types.RetrievalConfig, client *http.Client) Fetcher {
	if !cfg.FetchPages {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPFetcher{Client: client, UserAgent: cfg.UserAgent}
}
