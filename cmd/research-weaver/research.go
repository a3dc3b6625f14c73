// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/internal/generation"
	"github.com/pdiddy/research-weaver/internal/persist"
	"github.com/pdiddy/research-weaver/internal/retrieval"
	"github.com/pdiddy/research-weaver/internal/search"
	"github.com/pdiddy/research-weaver/internal/weaver"
	"github.com/pdiddy/research-weaver/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research [query]",
	Short: "Research a question and write a cited report",
	Long: `Research builds an outline for the query, searches the configured
providers for evidence on every under-covered section, and revises the
outline until its completeness reaches the threshold or the iteration
budget runs out. It then writes each section from that section's own
evidence and validates every citation.

The run is saved after every revision. Pass --resume with a task id to
continue an interrupted run. Ctrl-C stops the run and keeps what was
gathered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResearch,
}

func runResearch(cmd *cobra.Command, args []string) error {
	resumeID, _ := cmd.Flags().GetString("resume")
	if len(args) == 0 && resumeID == "" {
		return fmt.Errorf("a query or --resume <task-id> is required")
	}
	if metricsAddr, _ := cmd.Flags().GetString("metrics-addr"); metricsAddr != "" {
		if err := serveMetrics(metricsAddr); err != nil {
			return err
		}
	}

	cfg := loadConfig()
	if cfg.Generation.APIKey == "" && cfg.Generation.BaseURL == "" {
		return fmt.Errorf("no generation API key: set generation.api_key or add .secrets/openai-api-key")
	}

	providers, err := search.NewProviders(cfg.Retrieval, nil)
	if err != nil {
		return err
	}
	gateway := retrieval.NewGateway(providers, search.NewFetcher(cfg.Retrieval, nil), cfg.Retrieval, log)
	backend := generation.NewRetrying(generation.NewOpenAIBackend(cfg.Generation, log), cfg.Generation, log)

	opts := []weaver.Option{weaver.WithLogger(log), weaver.WithProgress(os.Stderr)}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, weaver.WithSnapshotter(store))
	}

	w, err := weaver.New(cfg, gateway, backend, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var res *types.ResearchResult
	if resumeID != "" {
		res, err = w.Resume(ctx, resumeID)
	} else {
		task := w.NewTask(args[0])
		fmt.Fprintf(os.Stderr, "task %s\n", task.ID)
		res, err = w.Execute(ctx, task)
	}
	if res == nil {
		return err
	}
	if werr := writeOutputs(cmd, res); werr != nil {
		return werr
	}
	printSummary(res)
	return err
}

// writeOutputs writes the report and the structured result where the flags
// ask for them. Without --report the report goes to stdout.
func writeOutputs(cmd *cobra.Command, res *types.ResearchResult) error {
	reportPath, _ := cmd.Flags().GetString("report")
	outPath, _ := cmd.Flags().GetString("out")

	if reportPath == "" {
		fmt.Print(res.Report)
	} else {
		if err := writeFile(reportPath, []byte(res.Report)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "report written to %s\n", reportPath)
	}

	if outPath == "" {
		return nil
	}
	format := persist.FormatYAML
	if strings.EqualFold(filepath.Ext(outPath), ".json") {
		format = persist.FormatJSON
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer f.Close()
	if err := persist.Encode(f, res, format); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "result written to %s\n", outPath)
	return nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func printSummary(res *types.ResearchResult) {
	counts := make(map[types.SectionStatus]int)
	for _, s := range res.Sections {
		counts[s.Status]++
	}
	fmt.Fprintf(os.Stderr, "\nTask %s: %s after %d iterations in %s\n",
		res.TaskID, res.StopReason, res.Iterations, res.Duration.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  evidence:  %d stored, %d cited\n", res.EvidenceCount, len(res.EvidenceIDs))
	fmt.Fprintf(os.Stderr, "  sections:  %d written, %d degraded, %d failed\n",
		counts[types.SectionWritten], counts[types.SectionDegraded], counts[types.SectionFailed])
	log.Debug("research summary", zap.String("task_id", res.TaskID), zap.Int("sections", len(res.Sections)))
}

func init() {
	researchCmd.Flags().Int("max-iterations", 0, "maximum search/revise rounds (default from config)")
	researchCmd.Flags().Float64("threshold", 0, "completeness at which the loop stops (default from config)")
	researchCmd.Flags().Duration("deadline", 0, "wall-clock budget for the whole run (default from config)")
	researchCmd.Flags().String("citation-policy", "", "strict or lenient handling of unknown citations")
	researchCmd.Flags().String("out", "", "write the full result to this file (.yaml or .json)")
	researchCmd.Flags().String("report", "", "write the Markdown report to this file instead of stdout")
	researchCmd.Flags().String("resume", "", "continue the saved task with this id")
	researchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	// Viper prefers a bound flag only once it has been set, so unset
	// flags leave the config value alone.
	_ = viper.BindPFlag("planner.max_iterations", researchCmd.Flags().Lookup("max-iterations"))
	_ = viper.BindPFlag("planner.completeness_threshold", researchCmd.Flags().Lookup("threshold"))
	_ = viper.BindPFlag("orchestrator.deadline", researchCmd.Flags().Lookup("deadline"))
	_ = viper.BindPFlag("writer.citation_policy", researchCmd.Flags().Lookup("citation-policy"))

	rootCmd.AddCommand(researchCmd)
}
