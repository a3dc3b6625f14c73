// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"strings"

	"github.com/pdiddy/research-weaver/pkg/types"
)

const (
	minSectionWords   = 100
	minSubstanceChars = 50
)

// QualityScore rates a section from 0 to 1 as the mean of three factors:
// length within [100, maxWords] words, the share of available evidence it
// cites and whether it has substantive text at all. Failed sections score 0.
func QualityScore(sec types.WrittenSection, available, maxWords int) float64 {
	if sec.Status == types.SectionFailed {
		return 0
	}
	length := 0.5
	if sec.WordCount >= minSectionWords && (maxWords <= 0 || sec.WordCount <= maxWords) {
		length = 1
	}

	coverage := 0.5
	if available > 0 {
		coverage = min(float64(len(sec.CitedIDs()))/float64(available), 1)
	}

	substance := 0.0
	if len(strings.TrimSpace(sec.Text)) > minSubstanceChars {
		substance = 1
	}
	return (length + coverage + substance) / 3
}
