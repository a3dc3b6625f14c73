// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-weaver/pkg/types"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("RESEARCH_WEAVER")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()
}

func TestLoadConfigDefaults(t *testing.T) {
	resetViper(t)
	loadedSecrets = nil

	assert.Equal(t, types.DefaultConfig(), loadConfig())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("RESEARCH_WEAVER_PLANNER_MAX_ITERATIONS", "9")
	t.Setenv("RESEARCH_WEAVER_ORCHESTRATOR_DEADLINE", "90s")
	t.Setenv("RESEARCH_WEAVER_WRITER_CITATION_POLICY", "strict")
	loadedSecrets = map[string]string{"openai-api-key": "sk-test"}
	t.Cleanup(func() { loadedSecrets = nil })

	cfg := loadConfig()
	assert.Equal(t, 9, cfg.Planner.MaxIterations)
	assert.Equal(t, 90*time.Second, cfg.Orchestrator.Deadline)
	assert.Equal(t, types.CitationStrict, cfg.Writer.CitationPolicy)
	assert.Equal(t, "sk-test", cfg.Generation.APIKey)
	assert.Equal(t, types.DefaultConfig().Writer.CitationFloor, cfg.Writer.CitationFloor)
}

func TestRequireStoreRejectsDisabledPersistence(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Persistence.Backend = types.PersistNone
	_, err := requireStore(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persistence is disabled")
}

func TestPrintOutline(t *testing.T) {
	o := &types.Outline{
		Version: 3,
		Title:   "grid storage",
		RootID:  "n0",
		Nodes: map[string]*types.OutlineNode{
			"n0": {NodeID: "n0", Title: "grid storage", ChildIDs: []string{"n1"}},
			"n1": {NodeID: "n1", Title: "Batteries", Level: 1, ParentID: "n0", ChildIDs: []string{"n2"},
				CoverageScore: 0.5, CitedEvidenceIDs: []string{"ev-a", "ev-b"}},
			"n2": {NodeID: "n2", Title: "Flow batteries", Level: 2, ParentID: "n1", Frozen: true},
		},
		OverallCompleteness: 0.42,
	}

	var buf bytes.Buffer
	printOutline(&buf, o, 2)

	want := "grid storage (version 3, iteration 2, in progress, completeness 0.42)\n" +
		"- [n1] Batteries  coverage 0.50, 2 evidence\n" +
		"  - [n2] Flow batteries  coverage 0.00, 0 evidence *\n"
	assert.Equal(t, want, buf.String())
}
