// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// --- reconstructAbstract ---

func TestReconstructAbstract(t *testing.T) {
	tests := []struct {
		name  string
		index map[string][]int
		want  string
	}{
		{
			name:  "empty map",
			index: map[string][]int{},
			want:  "",
		},
		{
			name:  "nil map",
			index: nil,
			want:  "",
		},
		{
			name:  "single word",
			index: map[string][]int{"hello": {0}},
			want:  "hello",
		},
		{
			name: "multi-word ordered",
			index: map[string][]int{
				"We":      {0},
				"propose": {1},
				"a":       {2},
				"new":     {3},
				"method":  {4},
			},
			want: "We propose a new method",
		},
		{
			name: "words with shared positions (word appearing multiple times)",
			index: map[string][]int{
				"the": {0, 4},
				"cat": {1},
				"sat": {2},
				"on":  {3},
				"mat": {5},
			},
			want: "the cat sat on the mat",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reconstructAbstract(tt.index)
			if got != tt.want {
				t.Errorf("reconstructAbstract() = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- Mock OpenAlex server ---

const sampleOpenAlexJSON = `{
  "meta": {"count": 2, "per_page": 20, "page": 1},
  "results": [
    {
      "id": "https://openalex.org/W2741809807",
      "title": "Attention Is All You Need",
      "doi": "https://doi.org/10.5555/3295222.3295349",
      "publication_date": "2017-06-12",
      "publication_year": 2017,
      "authorships": [
        {"author": {"id": "A1", "display_name": "Ashish Vaswani"}},
        {"author": {"id": "A2", "display_name": "Noam Shazeer"}}
      ],
      "abstract_inverted_index": {
        "We": [0],
        "propose": [1],
        "a": [2, 5],
        "new": [3],
        "architecture": [4],
        "based": [6],
        "on": [7],
        "attention": [8]
      },
      "open_access": {"is_oa": true, "oa_status": "green", "oa_url": "https://arxiv.org/pdf/1706.03762"}
    },
    {
      "id": "https://openalex.org/W3210812345",
      "title": "BERT: Pre-training of Deep Bidirectional Transformers",
      "doi": "",
      "publication_date": "",
      "publication_year": 2018,
      "authorships": [
        {"author": {"id": "A3", "display_name": "Jacob Devlin"}}
      ],
      "abstract_inverted_index": {},
      "open_access": {"is_oa": false, "oa_status": "closed", "oa_url": ""}
    }
  ]
}`

func openAlexTestServer(statusCode int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprint(w, body)
	}))
}

// --- OpenAlexProvider.Search ---

func TestOpenAlexProviderSearch(t *testing.T) {
	var gotQuery map[string][]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleOpenAlexJSON)
	}))
	defer ts.Close()

	old := openAlexSearchBase
	openAlexSearchBase = ts.URL
	defer func() { openAlexSearchBase = old }()

	p := &OpenAlexProvider{Client: ts.Client(), Email: "test@example.com"}
	hits, err := p.Search(context.Background(), "attention", 500)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	if gotQuery["mailto"][0] != "test@example.com" {
		t.Errorf("mailto = %v", gotQuery["mailto"])
	}
	if gotQuery["per_page"][0] != "200" {
		t.Errorf("per_page = %v, want capped at 200", gotQuery["per_page"])
	}

	// Open-access copy is preferred.
	if hits[0].URL != "https://arxiv.org/pdf/1706.03762" {
		t.Errorf("URL = %q, want oa_url", hits[0].URL)
	}
	if !strings.HasPrefix(hits[0].Snippet, "We propose a new architecture") {
		t.Errorf("Snippet = %q", hits[0].Snippet)
	}
	// No DOI and no OA copy falls back to the work id.
	if hits[1].URL != "https://openalex.org/W3210812345" {
		t.Errorf("URL = %q, want OpenAlex id", hits[1].URL)
	}
	if hits[1].Provider != "openalex" {
		t.Errorf("Provider = %q", hits[1].Provider)
	}
}

func TestOpenAlexProviderHTTPError(t *testing.T) {
	ts := openAlexTestServer(http.StatusServiceUnavailable, "")
	defer ts.Close()

	old := openAlexSearchBase
	openAlexSearchBase = ts.URL
	defer func() { openAlexSearchBase = old }()

	p := &OpenAlexProvider{Client: ts.Client()}
	if _, err := p.Search(context.Background(), "attention", 5); err == nil {
		t.Error("expected error on HTTP 503")
	}
}
