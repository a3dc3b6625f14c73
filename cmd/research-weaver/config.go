// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/internal/metrics"
	"github.com/pdiddy/research-weaver/internal/persist"
	"github.com/pdiddy/research-weaver/internal/secrets"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// envKeyReplacer maps nested keys to environment names, so planner.max_iterations
// is read from RESEARCH_WEAVER_PLANNER_MAX_ITERATIONS.
var envKeyReplacer = strings.NewReplacer(".", "_")

// setDefaults registers every default so AutomaticEnv can see nested keys.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()

	v.SetDefault("evidence.default_limit", d.Evidence.DefaultLimit)

	v.SetDefault("retrieval.timeout", d.Retrieval.Timeout)
	v.SetDefault("retrieval.user_agent", d.Retrieval.UserAgent)
	v.SetDefault("retrieval.providers", d.Retrieval.Providers)
	v.SetDefault("retrieval.results_per_provider", d.Retrieval.ResultsPerProvider)
	v.SetDefault("retrieval.directive_timeout", d.Retrieval.DirectiveTimeout)
	v.SetDefault("retrieval.fetch_pages", d.Retrieval.FetchPages)
	v.SetDefault("retrieval.fetch_concurrency", d.Retrieval.FetchConcurrency)
	v.SetDefault("retrieval.max_content_chars", d.Retrieval.MaxContentChars)
	v.SetDefault("retrieval.requests_per_second", d.Retrieval.RequestsPerSecond)
	v.SetDefault("retrieval.semantic_scholar_api_key", "")
	v.SetDefault("retrieval.openalex_email", "")
	v.SetDefault("retrieval.web_search_url", "")
	v.SetDefault("retrieval.web_search_api_key", "")

	v.SetDefault("planner.gap_threshold", d.Planner.GapThreshold)
	v.SetDefault("planner.completeness_threshold", d.Planner.CompletenessThreshold)
	v.SetDefault("planner.max_iterations", d.Planner.MaxIterations)
	v.SetDefault("planner.coverage_target", d.Planner.CoverageTarget)
	v.SetDefault("planner.stall_rounds", d.Planner.StallRounds)
	v.SetDefault("planner.max_depth", d.Planner.MaxDepth)
	v.SetDefault("planner.max_nodes", d.Planner.MaxNodes)
	v.SetDefault("planner.split_threshold", d.Planner.SplitThreshold)

	v.SetDefault("writer.citation_floor", d.Writer.CitationFloor)
	v.SetDefault("writer.max_evidence_per_section", d.Writer.MaxEvidencePerSection)
	v.SetDefault("writer.citation_policy", string(d.Writer.CitationPolicy))
	v.SetDefault("writer.concurrency", d.Writer.Concurrency)
	v.SetDefault("writer.max_section_words", d.Writer.MaxSectionWords)
	v.SetDefault("writer.max_tokens", d.Writer.MaxTokens)
	v.SetDefault("writer.temperature", d.Writer.Temperature)
	v.SetDefault("writer.bibliography_style", d.Writer.BibliographyStyle)

	v.SetDefault("generation.model", d.Generation.Model)
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.max_retries", d.Generation.MaxRetries)
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.timeout", d.Generation.Timeout)

	v.SetDefault("persistence.backend", string(d.Persistence.Backend))
	v.SetDefault("persistence.data_dir", d.Persistence.DataDir)
	v.SetDefault("persistence.redis_addr", d.Persistence.RedisAddr)
	v.SetDefault("persistence.redis_password", "")
	v.SetDefault("persistence.redis_db", 0)
	v.SetDefault("persistence.ttl", d.Persistence.TTL)

	v.SetDefault("orchestrator.deadline", d.Orchestrator.Deadline)
	v.SetDefault("orchestrator.writing_reserve", d.Orchestrator.WritingReserve)
	v.SetDefault("orchestrator.search_concurrency", d.Orchestrator.SearchConcurrency)

	v.SetDefault("log.env", d.Log.Env)
	v.SetDefault("log.level", d.Log.Level)
}

// loadConfig decodes the merged viper state over the defaults and fills
// credentials from .secrets/. An undecodable config falls back to the
// defaults with a warning on stderr.
func loadConfig() types.WeaverConfig {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid configuration, using defaults: %v\n", err)
		cfg = types.DefaultConfig()
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg
}

// openStore opens the configured persistence backend, or returns nil when
// persistence is disabled.
func openStore(cfg types.WeaverConfig) (persist.Store, error) {
	s, err := persist.Open(cfg.Persistence, log)
	if err != nil {
		return nil, fmt.Errorf("opening %s persistence: %w", cfg.Persistence.Backend, err)
	}
	return s, nil
}

// requireStore is openStore for commands that only make sense with a backend.
func requireStore(cfg types.WeaverConfig) (persist.Store, error) {
	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("persistence is disabled; set persistence.backend to sqlite or redis")
	}
	return s, nil
}

// serveMetrics exposes /metrics on addr in the background.
func serveMetrics(addr string) error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return nil
}
