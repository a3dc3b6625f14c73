// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SearchHit is one result returned by a search provider.
type SearchHit struct {
	Title    string `json:"title" yaml:"title"`
	URL      string `json:"url" yaml:"url"`
	Snippet  string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	Provider string `json:"provider" yaml:"provider"`

	// Score is the provider's position score: 1.0 for the first hit,
	// decreasing linearly to 0.1 for the last.
	Score float64 `json:"score" yaml:"score"`
}

// Page is the fetched content of a single URL.
type Page struct {
	URL        string `json:"url" yaml:"url"`
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	Content    string `json:"content" yaml:"content"`
	StatusCode int    `json:"status_code" yaml:"status_code"`
}

// SearchDirective is a request, issued by the planner for one outline gap,
// that the retrieval gateway serves exactly once.
type SearchDirective struct {
	// TargetNodeID is the outline node the evidence is meant to back.
	TargetNodeID string `json:"target_node_id" yaml:"target_node_id"`

	// QueryText is sent verbatim to every search provider.
	QueryText string `json:"query_text" yaml:"query_text"`

	// Priority ranks the directive within its round; 1 is the most urgent.
	Priority int `json:"priority" yaml:"priority"`

	// ExpectedInfoType hints at the kind of evidence wanted
	// (e.g. "overview", "background", "detail").
	ExpectedInfoType string `json:"expected_info_type,omitempty" yaml:"expected_info_type,omitempty"`
}
