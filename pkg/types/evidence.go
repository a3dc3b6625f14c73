// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// EvidencePrefix starts every evidence identifier. Citation markers in
// generated text use the full identifier, e.g. [ev-3f2a9c01d4b7e655].
const EvidencePrefix = "ev-"

// EvidenceItem is one retrieved document held by the evidence store.
// Items are immutable once stored; the ID is derived from RawContent.
type EvidenceItem struct {
	// ID is EvidencePrefix followed by the first 16 hex characters of the
	// SHA-256 of the normalized raw content.
	ID string `json:"id" yaml:"id"`

	// RawContent is the full text captured from the source.
	RawContent string `json:"raw_content" yaml:"raw_content"`

	// Summary is a short extract used in prompts and listings.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`

	// SourceURI is the URL the content was fetched from.
	SourceURI string `json:"source_uri" yaml:"source_uri"`

	// Title is the document title reported by the provider or page.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Provider names the search provider that surfaced the document.
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`

	// OriginQuery is the directive query that first surfaced the document.
	OriginQuery string `json:"origin_query,omitempty" yaml:"origin_query,omitempty"`

	// RelevanceScore is the query-relative score assigned at retrieval, 0-1.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// TopicTags is a sorted set of keywords describing the content.
	TopicTags []string `json:"topic_tags,omitempty" yaml:"topic_tags,omitempty"`

	// IngestTimestamp records when the store first accepted the item.
	IngestTimestamp time.Time `json:"ingest_timestamp" yaml:"ingest_timestamp"`
}

// EvidenceCandidate is a retrieved document that has not been ingested yet.
type EvidenceCandidate struct {
	RawContent     string   `json:"raw_content" yaml:"raw_content"`
	Summary        string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	SourceURI      string   `json:"source_uri" yaml:"source_uri"`
	Title          string   `json:"title,omitempty" yaml:"title,omitempty"`
	Provider       string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	OriginQuery    string   `json:"origin_query,omitempty" yaml:"origin_query,omitempty"`
	RelevanceScore float64  `json:"relevance_score" yaml:"relevance_score"`
	TopicTags      []string `json:"topic_tags,omitempty" yaml:"topic_tags,omitempty"`
}
