// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-weaver/pkg/types"
)

func init() {
	backoffBase = time.Millisecond
}

func failingThen(failures int32, text string) (Backend, *int32) {
	var calls int32
	return BackendFunc(func(ctx context.Context, req Request) (string, error) {
		if atomic.AddInt32(&calls, 1) <= failures {
			return "", errors.New("upstream unavailable")
		}
		return text, nil
	}), &calls
}

func TestRetryingSucceedsAfterFailures(t *testing.T) {
	b, calls := failingThen(2, "ok")
	r := &Retrying{Backend: b, Retries: 2}

	text, err := r.Complete(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestRetryingExhausted(t *testing.T) {
	b, calls := failingThen(10, "never")
	r := &Retrying{Backend: b, Retries: 5}

	_, err := r.Complete(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)

	var genErr *types.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 3, genErr.Attempts, "retries are capped at two")
	assert.ErrorIs(t, err, types.ErrGeneration)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestRetryingZeroRetries(t *testing.T) {
	b, calls := failingThen(1, "ok")
	r := &Retrying{Backend: b}

	_, err := r.Complete(context.Background(), Request{})
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestRetryingAttemptTimeout(t *testing.T) {
	var calls int32
	slow := BackendFunc(func(ctx context.Context, req Request) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "fast", nil
	})
	r := &Retrying{Backend: slow, Retries: 1, Timeout: 20 * time.Millisecond}

	text, err := r.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "fast", text)
}

func TestRetryingCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	b := BackendFunc(func(ctx context.Context, req Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		cancel()
		return "", ctx.Err()
	})
	r := &Retrying{Backend: b, Retries: 2}

	_, err := r.Complete(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, types.ErrGeneration)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "cancellation is not retried")
}

func TestNewRetrying(t *testing.T) {
	cfg := types.GenerationConfig{AIConfig: types.AIConfig{MaxRetries: 1}, Timeout: time.Second}
	r := NewRetrying(BackendFunc(nil), cfg, nil)
	assert.Equal(t, 1, r.Retries)
	assert.Equal(t, time.Second, r.Timeout)
}
