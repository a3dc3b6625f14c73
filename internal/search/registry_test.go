// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-weaver/pkg/types"
)

func TestNewProviders(t *testing.T) {
	cfg := types.RetrievalConfig{
		Providers:    []string{"arxiv", "semantic_scholar", "openalex", "web", "arxiv"},
		WebSearchURL: "https://search.example/api",
	}
	providers, err := NewProviders(cfg, nil)
	require.NoError(t, err)

	var names []string
	for _, p := range providers {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"arxiv", "semantic_scholar", "openalex", "web"}, names)
}

func TestNewProvidersErrors(t *testing.T) {
	_, err := NewProviders(types.RetrievalConfig{Providers: []string{"bing"}}, nil)
	assert.ErrorContains(t, err, "unknown search provider")

	_, err = NewProviders(types.RetrievalConfig{Providers: []string{"web"}}, nil)
	assert.ErrorContains(t, err, "web_search_url")

	_, err = NewProviders(types.RetrievalConfig{}, nil)
	assert.Error(t, err)
}

func TestNewProvidersRateLimited(t *testing.T) {
	providers, err := NewProviders(types.RetrievalConfig{Providers: []string{"arxiv"}, RequestsPerSecond: 2}, nil)
	require.NoError(t, err)
	_, ok := providers[0].(*RateLimited)
	assert.True(t, ok)
	assert.Equal(t, "arxiv", providers[0].Name())
}

func TestRateLimitedWaits(t *testing.T) {
	inner := &mockProvider{name: "m"}
	p := NewRateLimited(inner, 20)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := p.Search(context.Background(), "q", 1)
		require.NoError(t, err)
	}
	// Burst of one, then 50ms per token.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	assert.Same(t, inner, NewRateLimited(inner, 0))
}

func TestRateLimitedCancelled(t *testing.T) {
	p := NewRateLimited(&mockProvider{name: "m"}, 0.001)
	_, _ = p.Search(context.Background(), "q", 1) // consume the burst
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Search(ctx, "q", 1)
	assert.Error(t, err)
}

func TestNewFetcher(t *testing.T) {
	assert.Nil(t, NewFetcher(types.RetrievalConfig{}, nil))
	assert.NotNil(t, NewFetcher(types.RetrievalConfig{FetchPages: true}, nil))
}
