// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-weaver/internal/evidence"
	"github.com/pdiddy/research-weaver/pkg/types"
)

func showStore(t *testing.T) (*evidence.Store, []string) {
	t.Helper()
	s := evidence.NewStore(types.EvidenceConfig{})
	var ids []string
	for _, c := range []types.EvidenceCandidate{
		{RawContent: "Lithium cells dominate grid batteries.", Title: "Lithium", SourceURI: "https://a.example", TopicTags: []string{"lithium", "grid"}},
		{RawContent: "Sodium cells are cheaper.", Title: "Sodium", SourceURI: "https://a.example", TopicTags: []string{"sodium"}},
		{RawContent: "Hydrogen can be stored seasonally.", Title: "Hydrogen", SourceURI: "https://b.example", TopicTags: []string{"grid"}},
	} {
		id, _, err := s.Ingest(c)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return s, ids
}

func showJSON(t *testing.T, s *evidence.Store, opts showOptions) []string {
	t.Helper()
	opts.JSON = true
	var buf bytes.Buffer
	require.NoError(t, showEvidence(&buf, s, opts))
	var items []types.EvidenceItem
	require.NoError(t, json.Unmarshal(buf.Bytes(), &items))
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func TestShowEvidence(t *testing.T) {
	s, ids := showStore(t)

	assert.Equal(t, []string{"Lithium", "Sodium"}, showJSON(t, s, showOptions{Source: "https://a.example"}))
	assert.Equal(t, []string{"Lithium", "Hydrogen"}, showJSON(t, s, showOptions{Topic: "GRID"}))
	assert.Empty(t, showJSON(t, s, showOptions{Near: ids[0]}))
	assert.Len(t, showJSON(t, s, showOptions{}), 3)

	var buf bytes.Buffer
	require.NoError(t, showEvidence(&buf, s, showOptions{List: "topics"}))
	assert.Equal(t, "grid\nlithium\nsodium\n", buf.String())

	buf.Reset()
	require.NoError(t, showEvidence(&buf, s, showOptions{List: "sources"}))
	assert.Equal(t, "https://a.example\nhttps://b.example\n", buf.String())

	buf.Reset()
	require.NoError(t, showEvidence(&buf, s, showOptions{Topic: "solar"}))
	assert.Equal(t, "No results found.\n", buf.String())
}

func TestShowEvidenceRejectsBadOptions(t *testing.T) {
	s, _ := showStore(t)
	var buf bytes.Buffer

	err := showEvidence(&buf, s, showOptions{Source: "https://a.example", Topic: "grid"})
	assert.ErrorContains(t, err, "only one of")

	err = showEvidence(&buf, s, showOptions{List: "providers"})
	assert.ErrorContains(t, err, "unknown list")

	err = showEvidence(&buf, s, showOptions{Near: "ev-0000000000000000"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}
