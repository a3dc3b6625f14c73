// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SectionStatus reports how a section came out of the writer.
type SectionStatus string

const (
	// SectionWritten means the text was generated and every citation resolved.
	SectionWritten SectionStatus = "written"

	// SectionDegraded means unresolvable citations had to be removed.
	SectionDegraded SectionStatus = "degraded"

	// SectionFailed means generation failed; Text is empty.
	SectionFailed SectionStatus = "failed"
)

// CitationMarker locates one inline citation in a section's text.
type CitationMarker struct {
	// Position is the byte offset of the marker's opening bracket.
	Position   int    `json:"position" yaml:"position"`
	EvidenceID string `json:"evidence_id" yaml:"evidence_id"`
}

// WrittenSection is the writer's output for one outline node.
type WrittenSection struct {
	NodeID          string           `json:"node_id" yaml:"node_id"`
	Title           string           `json:"title" yaml:"title"`
	Level           int              `json:"level" yaml:"level"`
	Text            string           `json:"text" yaml:"text"`
	CitationMarkers []CitationMarker `json:"citation_markers,omitempty" yaml:"citation_markers,omitempty"`
	WordCount       int              `json:"word_count" yaml:"word_count"`
	Status          SectionStatus    `json:"status" yaml:"status"`

	// Error holds the failure or degradation reason, if any.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// QualityScore is a 0-1 heuristic over length and citation density.
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`
}

// CitedIDs returns the distinct evidence ids cited, in order of first use.
func (s WrittenSection) CitedIDs() []string {
	seen := make(map[string]bool, len(s.CitationMarkers))
	var ids []string
	for _, m := range s.CitationMarkers {
		if !seen[m.EvidenceID] {
			seen[m.EvidenceID] = true
			ids = append(ids, m.EvidenceID)
		}
	}
	return ids
}

// StopReason says why the acquisition loop ended.
type StopReason string

const (
	StopConverged     StopReason = "converged"
	StopStalled       StopReason = "stalled"
	StopMaxIterations StopReason = "max_iterations"
	StopDeadline      StopReason = "deadline"
	StopCancelled     StopReason = "cancelled"
)

// ResearchResult is the complete output of one research task.
type ResearchResult struct {
	TaskID string `json:"task_id" yaml:"task_id"`
	Query  string `json:"query" yaml:"query"`

	// Outline is the finalized outline with cited ids narrowed to what the
	// sections actually cite.
	Outline *Outline `json:"outline" yaml:"outline"`

	// Sections are ordered by outline pre-order.
	Sections []WrittenSection `json:"sections" yaml:"sections"`

	// EvidenceIDs is the sorted set of evidence cited anywhere in the report.
	EvidenceIDs []string `json:"evidence_ids" yaml:"evidence_ids"`

	// EvidenceCount is the size of the evidence store at the end of the run.
	EvidenceCount int `json:"evidence_count" yaml:"evidence_count"`

	Iterations int           `json:"iterations" yaml:"iterations"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	StopReason StopReason    `json:"stop_reason" yaml:"stop_reason"`

	// Report is the assembled Markdown document.
	Report string `json:"report,omitempty" yaml:"report,omitempty"`

	// Bibliography lists formatted references for EvidenceIDs.
	Bibliography []string `json:"bibliography,omitempty" yaml:"bibliography,omitempty"`
}
