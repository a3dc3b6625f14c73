// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// EvidenceConfig holds settings for the evidence store.
type EvidenceConfig struct {
	// DefaultLimit caps Query results when the caller passes no limit (default 20).
	DefaultLimit int `json:"default_limit" yaml:"default_limit" mapstructure:"default_limit"`
}

// RetrievalConfig holds settings for search providers and the gateway.
type RetrievalConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Providers lists the enabled search providers by name:
	// arxiv, semantic_scholar, openalex, web.
	Providers []string `json:"providers" yaml:"providers" mapstructure:"providers"`

	// ResultsPerProvider is the number of hits requested from each provider (default 5).
	ResultsPerProvider int `json:"results_per_provider" yaml:"results_per_provider" mapstructure:"results_per_provider"`

	// DirectiveTimeout bounds all work for one directive (default 30s).
	DirectiveTimeout time.Duration `json:"directive_timeout" yaml:"directive_timeout" mapstructure:"directive_timeout"`

	// FetchPages enables fetching full page content for each hit.
	FetchPages bool `json:"fetch_pages" yaml:"fetch_pages" mapstructure:"fetch_pages"`

	// FetchConcurrency bounds concurrent page fetches per directive (default 4).
	FetchConcurrency int `json:"fetch_concurrency" yaml:"fetch_concurrency" mapstructure:"fetch_concurrency"`

	// MaxContentChars truncates fetched content (default 20000).
	MaxContentChars int `json:"max_content_chars" yaml:"max_content_chars" mapstructure:"max_content_chars"`

	// RequestsPerSecond rate limits each provider; 0 disables limiting.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// OpenAlexEmail joins the OpenAlex polite pool when set.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty" mapstructure:"openalex_email"`

	// WebSearchURL is the endpoint of a JSON web search API.
	WebSearchURL string `json:"web_search_url,omitempty" yaml:"web_search_url,omitempty" mapstructure:"web_search_url"`

	// WebSearchAPIKey is sent as a bearer token to WebSearchURL.
	WebSearchAPIKey string `json:"web_search_api_key,omitempty" yaml:"web_search_api_key,omitempty" mapstructure:"web_search_api_key"`
}

// PlannerConfig holds settings for the outline-convergence loop.
type PlannerConfig struct {
	// GapThreshold is the coverage below which a node gets a directive (default 0.8).
	GapThreshold float64 `json:"gap_threshold" yaml:"gap_threshold" mapstructure:"gap_threshold"`

	// CompletenessThreshold stops the loop once overall completeness reaches it (default 0.8).
	CompletenessThreshold float64 `json:"completeness_threshold" yaml:"completeness_threshold" mapstructure:"completeness_threshold"`

	// MaxIterations bounds the number of search/revise rounds (default 5).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations" mapstructure:"max_iterations"`

	// CoverageTarget is the relevance-weighted evidence mass at which a node
	// counts as fully covered (default 3).
	CoverageTarget float64 `json:"coverage_target" yaml:"coverage_target" mapstructure:"coverage_target"`

	// StallRounds is the number of consecutive unproductive rounds that
	// freezes a node (default 2).
	StallRounds int `json:"stall_rounds" yaml:"stall_rounds" mapstructure:"stall_rounds"`

	// MaxDepth is the deepest level structural edits may create (default 3).
	MaxDepth int `json:"max_depth" yaml:"max_depth" mapstructure:"max_depth"`

	// MaxNodes bounds the outline size (default 30).
	MaxNodes int `json:"max_nodes" yaml:"max_nodes" mapstructure:"max_nodes"`

	// SplitThreshold is the evidence count at which the heuristic proposer
	// splits a leaf by topic; 0 disables splitting (default 10).
	SplitThreshold int `json:"split_threshold" yaml:"split_threshold" mapstructure:"split_threshold"`
}

// CitationPolicy selects how unresolvable citation markers are handled.
type CitationPolicy string

const (
	// CitationStrict drops unknown markers immediately.
	CitationStrict CitationPolicy = "strict"

	// CitationLenient regenerates once with an error notice before dropping.
	CitationLenient CitationPolicy = "lenient"
)

// WriterConfig holds settings for section synthesis.
type WriterConfig struct {
	// CitationFloor is the evidence count below which a broader query
	// supplements the node's own evidence (default 5).
	CitationFloor int `json:"citation_floor" yaml:"citation_floor" mapstructure:"citation_floor"`

	// MaxEvidencePerSection caps evidence per generation call (default 12, at most 15).
	MaxEvidencePerSection int `json:"max_evidence_per_section" yaml:"max_evidence_per_section" mapstructure:"max_evidence_per_section"`

	// CitationPolicy is strict or lenient (default lenient).
	CitationPolicy CitationPolicy `json:"citation_policy" yaml:"citation_policy" mapstructure:"citation_policy"`

	// Concurrency bounds sections generated at once (default 3).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// MaxSectionWords truncates section text at a sentence boundary (default 800).
	MaxSectionWords int `json:"max_section_words" yaml:"max_section_words" mapstructure:"max_section_words"`

	// MaxTokens is passed to the generation backend (default 1500).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Temperature is passed to the generation backend (default 0.3).
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// BibliographyStyle is apa, mla, chicago or ieee (default apa).
	BibliographyStyle string `json:"bibliography_style" yaml:"bibliography_style" mapstructure:"bibliography_style"`
}

// AIConfig holds shared settings for components that call a generation API.
type AIConfig struct {
	// Model is the model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retries after a failed call (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// GenerationConfig holds settings for the generation backend.
type GenerationConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL overrides the API endpoint for compatible servers.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Timeout bounds a single completion call (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// PersistenceBackend selects where task snapshots are stored.
type PersistenceBackend string

const (
	PersistNone   PersistenceBackend = "none"
	PersistSQLite PersistenceBackend = "sqlite"
	PersistRedis  PersistenceBackend = "redis"
)

// PersistenceConfig holds settings for task snapshots.
type PersistenceConfig struct {
	// Backend is none, sqlite or redis (default sqlite).
	Backend PersistenceBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// DataDir holds the SQLite database and exports (default "data").
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty" mapstructure:"redis_password"`
	RedisDB       int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty" mapstructure:"redis_db"`

	// TTL expires redis snapshots; 0 keeps them.
	TTL time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty" mapstructure:"ttl"`
}

// OrchestratorConfig holds run-level budgets.
type OrchestratorConfig struct {
	// Deadline is the wall-clock budget for a whole run; 0 disables it (default 15m).
	Deadline time.Duration `json:"deadline" yaml:"deadline" mapstructure:"deadline"`

	// WritingReserve is the part of Deadline kept for the writing phase
	// (default a third of Deadline).
	WritingReserve time.Duration `json:"writing_reserve" yaml:"writing_reserve" mapstructure:"writing_reserve"`

	// SearchConcurrency bounds directives served at once (default 4).
	SearchConcurrency int `json:"search_concurrency" yaml:"search_concurrency" mapstructure:"search_concurrency"`
}

// LogConfig selects the logger encoding and level.
type LogConfig struct {
	// Env is prod (JSON) or dev (console).
	Env   string `json:"env" yaml:"env" mapstructure:"env"`
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

// WeaverConfig groups all component configurations.
type WeaverConfig struct {
	Evidence     EvidenceConfig     `json:"evidence" yaml:"evidence" mapstructure:"evidence"`
	Retrieval    RetrievalConfig    `json:"retrieval" yaml:"retrieval" mapstructure:"retrieval"`
	Planner      PlannerConfig      `json:"planner" yaml:"planner" mapstructure:"planner"`
	Writer       WriterConfig       `json:"writer" yaml:"writer" mapstructure:"writer"`
	Generation   GenerationConfig   `json:"generation" yaml:"generation" mapstructure:"generation"`
	Persistence  PersistenceConfig  `json:"persistence" yaml:"persistence" mapstructure:"persistence"`
	Orchestrator OrchestratorConfig `json:"orchestrator" yaml:"orchestrator" mapstructure:"orchestrator"`
	Log          LogConfig          `json:"log" yaml:"log" mapstructure:"log"`
}

// MaxEvidencePerCall is the hard upper bound on evidence items given to one
// generation call, whatever the configuration says.
const MaxEvidencePerCall = 15

// DefaultConfig returns a configuration with every default filled in.
func DefaultConfig() WeaverConfig {
	return WeaverConfig{
		Evidence: EvidenceConfig{DefaultLimit: 20},
		Retrieval: RetrievalConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   20 * time.Second,
				UserAgent: "research-weaver/0.1",
			},
			Providers:          []string{"arxiv", "semantic_scholar", "openalex"},
			ResultsPerProvider: 5,
			DirectiveTimeout:   30 * time.Second,
			FetchPages:         true,
			FetchConcurrency:   4,
			MaxContentChars:    20000,
			RequestsPerSecond:  1,
		},
		Planner: PlannerConfig{
			GapThreshold:          0.8,
			CompletenessThreshold: 0.8,
			MaxIterations:         5,
			CoverageTarget:        3,
			StallRounds:           2,
			MaxDepth:              3,
			MaxNodes:              30,
			SplitThreshold:        10,
		},
		Writer: WriterConfig{
			CitationFloor:         5,
			MaxEvidencePerSection: 12,
			CitationPolicy:        CitationLenient,
			Concurrency:           3,
			MaxSectionWords:       800,
			MaxTokens:             1500,
			Temperature:           0.3,
			BibliographyStyle:     "apa",
		},
		Generation: GenerationConfig{
			AIConfig: AIConfig{Model: "gpt-4o-mini", MaxRetries: 2},
			Timeout:  60 * time.Second,
		},
		Persistence: PersistenceConfig{
			Backend: PersistSQLite,
			DataDir: "data",
		},
		Orchestrator: OrchestratorConfig{
			Deadline:          15 * time.Minute,
			WritingReserve:    5 * time.Minute,
			SearchConcurrency: 4,
		},
		Log: LogConfig{Env: "dev", Level: "info"},
	}
}
