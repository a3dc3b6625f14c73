// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-weaver/pkg/types"
)

func chatServer(t *testing.T, status int, body any, capture func(map[string]any)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if capture != nil {
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			capture(req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func completion(text string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": text},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
	}
}

func TestOpenAIBackendComplete(t *testing.T) {
	var got map[string]any
	ts := chatServer(t, http.StatusOK, completion("Generated section [ev-0123456789abcdef]."), func(m map[string]any) { got = m })

	b := NewOpenAIBackend(types.GenerationConfig{
		AIConfig: types.AIConfig{Model: "test-model", APIKey: "test-key"},
		BaseURL:  ts.URL,
	}, nil)

	text, err := b.Complete(context.Background(), Request{Prompt: "write", MaxTokens: 300, Temperature: 0.25})
	require.NoError(t, err)
	assert.Equal(t, "Generated section [ev-0123456789abcdef].", text)

	assert.Equal(t, "test-model", got["model"])
	assert.EqualValues(t, 300, got["max_tokens"])
	assert.InDelta(t, 0.25, got["temperature"], 1e-6)
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "write", msgs[0].(map[string]any)["content"])
}

func TestOpenAIBackendEmpty(t *testing.T) {
	ts := chatServer(t, http.StatusOK, completion("   "), nil)
	b := NewOpenAIBackend(types.GenerationConfig{AIConfig: types.AIConfig{APIKey: "test-key"}, BaseURL: ts.URL}, nil)

	_, err := b.Complete(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestOpenAIBackendAPIError(t *testing.T) {
	body := map[string]any{"error": map[string]any{"message": "rate limit reached", "type": "requests"}}
	ts := chatServer(t, http.StatusTooManyRequests, body, nil)
	b := NewOpenAIBackend(types.GenerationConfig{AIConfig: types.AIConfig{APIKey: "test-key"}, BaseURL: ts.URL}, nil)

	_, err := b.Complete(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limit reached")
}

func TestExtractDetail(t *testing.T) {
	assert.Equal(t, "bad model", extractDetail([]byte(`{"detail":"bad model"}`)))
	assert.Empty(t, extractDetail([]byte(`not json`)))
}
