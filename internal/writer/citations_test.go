// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-weaver/internal/evidence"
	"github.com/pdiddy/research-weaver/pkg/types"
)

var (
	idA = evidence.Fingerprint("alpha")
	idB = evidence.Fingerprint("beta")
	idX = evidence.Fingerprint("unknown")
)

func items(ids ...string) []types.EvidenceItem {
	out := make([]types.EvidenceItem, len(ids))
	for i, id := range ids {
		out[i] = types.EvidenceItem{ID: id}
	}
	return out
}

func TestValidateCitationsAccepts(t *testing.T) {
	text := "First claim [" + idA + "]. Second claim [" + idA + ";" + idB + "]."
	out, markers, err := ValidateCitations(text, items(idA, idB))
	require.NoError(t, err)

	want := "First claim [" + idA + "]. Second claim [" + idA + "; " + idB + "]."
	assert.Equal(t, want, out)
	require.Len(t, markers, 3)
	assert.Equal(t, types.CitationMarker{Position: 12, EvidenceID: idA}, markers[0])
	second := len("First claim [" + idA + "]. Second claim ")
	assert.Equal(t, types.CitationMarker{Position: second, EvidenceID: idA}, markers[1])
	assert.Equal(t, types.CitationMarker{Position: second, EvidenceID: idB}, markers[2])
	for _, m := range markers {
		assert.Equal(t, byte('['), out[m.Position])
	}
}

func TestValidateCitationsNoMarkers(t *testing.T) {
	out, markers, err := ValidateCitations("Plain prose [1] with [a link](x).", items(idA))
	require.NoError(t, err)
	assert.Equal(t, "Plain prose [1] with [a link](x).", out)
	assert.Empty(t, markers)
}

func TestValidateCitationsRejectsUnknown(t *testing.T) {
	text := "Claim [" + idX + "] and [ev-deadbeef, " + idA + "]."
	out, markers, err := ValidateCitations(text, items(idA))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrCitation))

	var cerr *types.CitationError
	require.ErrorAs(t, err, &cerr)
	assert.ElementsMatch(t, []string{idX, "ev-deadbeef"}, cerr.UnknownIDs)
	assert.Equal(t, text, out)
	assert.Nil(t, markers)
}

func TestDropUnknown(t *testing.T) {
	text := "Claim [" + idX + "]. Mixed [" + idX + "; " + idA + "] here. Kept [" + idB + "]."
	out, markers, dropped := DropUnknown(text, items(idA, idB))

	assert.Equal(t, 2, dropped)
	assert.Equal(t, "Claim. Mixed ["+idA+"] here. Kept ["+idB+"].", out)
	require.Len(t, markers, 2)
	assert.Equal(t, idA, markers[0].EvidenceID)
	assert.Equal(t, idB, markers[1].EvidenceID)
	for _, m := range markers {
		assert.Equal(t, "["+m.EvidenceID, out[m.Position:m.Position+1+len(m.EvidenceID)])
	}

	_, _, err := ValidateCitations(out, items(idA, idB))
	assert.NoError(t, err, "dropping leaves only resolvable citations")
}

func TestTruncateSection(t *testing.T) {
	text := "Storage grows fast and cheap [" + idA + "; " + idB + "] across regions"
	assert.Equal(t, "Storage grows fast and cheap", TruncateSection(text, 6))
	assert.Equal(t, "Storage grows fast and cheap ["+idA+"; "+idB+"]", TruncateSection(text, 7))
	assert.Equal(t, text, TruncateSection(text, 100))
}
