// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/pdiddy/research-weaver/pkg/types"
)

// RateLimited wraps a provider with a token-bucket limiter so concurrent
// directives do not exceed the provider's request budget.
type RateLimited struct {
	Provider
	limiter *rate.Limiter
}

// NewRateLimited limits p to rps requests per second with a burst of one.
// A non-positive rps returns p unchanged.
func NewRateLimited(p Provider, rps float64) Provider {
	if rps <= 0 {
		return p
	}
	return &RateLimited{Provider: p, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Search waits for a token, then delegates.
func (r *RateLimited) Search(ctx context.Context, query string, numResults int) ([]types.SearchHit, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limiter: %w", r.Name(), err)
	}
	return r.Provider.Search(ctx, query, numResults)
}
