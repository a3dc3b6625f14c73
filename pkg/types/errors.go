// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers
// can test with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrRetrieval        = errors.New("retrieval failed")
	ErrGeneration       = errors.New("generation failed")
	ErrCitation         = errors.New("unresolvable citation")
	ErrConvergenceStall = errors.New("convergence stalled")
	ErrDeadlineExceeded = errors.New("research deadline exceeded")
)

// RetrievalError records a provider or fetch failure. It is logged and
// recovered as an empty result.
type RetrievalError struct {
	Provider string
	Query    string
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval from %s for %q: %v", e.Provider, e.Query, e.Err)
}

func (e *RetrievalError) Unwrap() []error { return []error{ErrRetrieval, e.Err} }

// GenerationError is returned once the generation backend has failed on
// every attempt.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() []error { return []error{ErrGeneration, e.Err} }

// CitationError lists citation markers that do not resolve to the evidence
// given to the generation call.
type CitationError struct {
	UnknownIDs []string
}

func (e *CitationError) Error() string {
	return fmt.Sprintf("unknown evidence cited: %s", strings.Join(e.UnknownIDs, ", "))
}

func (e *CitationError) Unwrap() error { return ErrCitation }
