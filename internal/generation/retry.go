// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/pkg/types"
)

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// MaxRetries is the upper bound on retries after a failed completion.
const MaxRetries = 2

// Retrying retries failed completions with exponential backoff and bounds
// each attempt with a timeout. Exhausted retries surface as a
// *types.GenerationError.
type Retrying struct {
	Backend Backend
	// Retries is clamped to [0, MaxRetries].
	Retries int
	// Timeout bounds a single attempt; 0 means no per-attempt bound.
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewRetrying wraps b using the retry and timeout settings of cfg.
func NewRetrying(b Backend, cfg types.GenerationConfig, logger *zap.Logger) *Retrying {
	return &Retrying{Backend: b, Retries: cfg.MaxRetries, Timeout: cfg.Timeout, Logger: logger}
}

// Complete calls the wrapped backend until it succeeds or retries run out.
// Cancellation of ctx stops immediately and is not retried.
func (r *Retrying) Complete(ctx context.Context, req Request) (string, error) {
	retries := min(max(r.Retries, 0), MaxRetries)
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			backoff := backoffBase << (attempt - 1)
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return "", &types.GenerationError{Attempts: attempts, Err: ctx.Err()}
			case <-t.C:
			}
		}

		attempts++
		text, err := r.attempt(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		log.Warn("completion failed",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", retries+1),
			zap.Error(err),
		)
	}
	return "", &types.GenerationError{Attempts: attempts, Err: lastErr}
}

func (r *Retrying) attempt(ctx context.Context, req Request) (string, error) {
	if r.Timeout <= 0 {
		return r.Backend.Complete(ctx, req)
	}
	actx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	return r.Backend.Complete(actx, req)
}
