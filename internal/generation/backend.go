// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generation wraps text-completion services behind a single
// Backend interface. Callers treat a backend as a function from prompt to
// text; retries and timeouts are layered on with Retrying.
package generation

import "context"

// Request is one completion call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Backend completes a prompt.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f BackendFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
