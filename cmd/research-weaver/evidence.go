// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/internal/evidence"
	"github.com/pdiddy/research-weaver/internal/persist"
	"github.com/pdiddy/research-weaver/internal/writer"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// evidenceSearcher is implemented by backends with a cross-task evidence index.
type evidenceSearcher interface {
	SearchEvidence(ctx context.Context, query string, limit int) ([]types.EvidenceItem, error)
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Inspect evidence saved by research runs",
	Long: `Evidence queries the evidence saved by research runs. Use search for
full-text lookup across all tasks, show to browse one task's evidence by
source, topic or near-duplicate fingerprint, and export to dump it.`,
}

// --- search subcommand ---

var evidenceSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over saved evidence",
	Long: `Search looks up saved evidence across every task. With the SQLite backend
built with the sqlite_fts5 tag the query uses FTS5 syntax and results are
ranked; otherwise every term must appear in the title or content.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvidenceSearch,
}

func runEvidenceSearch(cmd *cobra.Command, args []string) error {
	store, err := requireStore(loadConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	searcher, ok := store.(evidenceSearcher)
	if !ok {
		return fmt.Errorf("the configured persistence backend does not support evidence search")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	items, err := searcher.SearchEvidence(context.Background(), args[0], limit)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return persist.ExportEvidence(os.Stdout, items, persist.FormatJSON)
	}
	printEvidenceTable(os.Stdout, items)
	return nil
}

func printEvidenceTable(w io.Writer, items []types.EvidenceItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-19s  %-50s  %-9s  %s\n", "Rank", "ID", "Title", "Relevance", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for i, it := range items {
		title := it.Title
		if title == "" {
			title = it.Summary
		}
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(w, "%-4d  %-19s  %-50s  %9.2f  %s\n", i+1, it.ID, title, it.RelevanceScore, it.SourceURI)
	}
	fmt.Fprintf(w, "\n%d results\n", len(items))
}

// --- show subcommand ---

var evidenceShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Browse one task's evidence by source, topic or fingerprint",
	Long: `Show loads a task's saved evidence and lists it, optionally narrowed to
one source URI (--source), one topic tag (--topic) or the items whose
fingerprint shares the near-duplicate prefix of an id (--near).

--list sources or --list topics prints the distinct values instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvidenceShow,
}

// showOptions selects what evidence show prints.
type showOptions struct {
	Source string
	Topic  string
	Near   string
	List   string
	JSON   bool
}

func runEvidenceShow(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	store, err := requireStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Load(context.Background(), args[0])
	if err != nil {
		return err
	}
	mem := evidence.NewStore(cfg.Evidence, evidence.WithLogger(log))
	if _, rejected := mem.Restore(evidence.Snapshot{Items: snap.Evidence}); rejected > 0 {
		log.Warn("some saved evidence could not be loaded", zap.Int("rejected", rejected))
	}

	var opts showOptions
	opts.Source, _ = cmd.Flags().GetString("source")
	opts.Topic, _ = cmd.Flags().GetString("topic")
	opts.Near, _ = cmd.Flags().GetString("near")
	opts.List, _ = cmd.Flags().GetString("list")
	opts.JSON, _ = cmd.Flags().GetBool("json")
	return showEvidence(os.Stdout, mem, opts)
}

// showEvidence prints the items of s selected by opts. At most one of
// Source, Topic, Near and List may be set.
func showEvidence(w io.Writer, s *evidence.Store, opts showOptions) error {
	set := 0
	for _, v := range []string{opts.Source, opts.Topic, opts.Near, opts.List} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("use only one of --source, --topic, --near and --list")
	}

	var items []types.EvidenceItem
	switch {
	case opts.List == "sources":
		return printValues(w, s.Sources())
	case opts.List == "topics":
		return printValues(w, s.Topics())
	case opts.List != "":
		return fmt.Errorf("unknown list %q (want sources or topics)", opts.List)
	case opts.Near != "":
		if !s.Has(opts.Near) {
			return fmt.Errorf("evidence %s: %w", opts.Near, types.ErrNotFound)
		}
		items = s.NearDuplicates(opts.Near)
	case opts.Source != "":
		items = s.BySource(opts.Source)
	case opts.Topic != "":
		items = s.ByTopic(opts.Topic)
	default:
		items = s.All()
	}

	if opts.JSON {
		return persist.ExportEvidence(w, items, persist.FormatJSON)
	}
	printEvidenceTable(w, items)
	return nil
}

func printValues(w io.Writer, values []string) error {
	for _, v := range values {
		if _, err := fmt.Fprintln(w, v); err != nil {
			return err
		}
	}
	return nil
}

// --- export subcommand ---

var evidenceExportCmd = &cobra.Command{
	Use:   "export <task-id>",
	Short: "Export a task's evidence to YAML, JSON or BibTeX",
	Long: `Export writes every evidence item saved for a task to stdout, as YAML,
JSON or BibTeX entries keyed by evidence id. With --snapshot it writes the
whole task snapshot (outline, evidence and result) to the data directory's
exports folder instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvidenceExport,
}

func runEvidenceExport(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	store, err := requireStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	formatName, _ := cmd.Flags().GetString("format")
	full, _ := cmd.Flags().GetBool("snapshot")
	snap, err := store.Load(context.Background(), args[0])
	if err != nil {
		return err
	}

	if formatName == "bibtex" || formatName == "bib" {
		if full {
			return fmt.Errorf("--snapshot supports yaml and json only")
		}
		_, err := io.WriteString(os.Stdout, writer.BibTeX(snap.Evidence))
		return err
	}
	format, err := persist.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if full {
		path, err := persist.ExportSnapshot(filepath.Join(cfg.Persistence.DataDir, "exports"), snap, format)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "snapshot written to %s\n", path)
		return nil
	}
	return persist.ExportEvidence(os.Stdout, snap.Evidence, format)
}

func init() {
	evidenceSearchCmd.Flags().Int("limit", 20, "maximum number of results")
	evidenceSearchCmd.Flags().Bool("json", false, "output results as JSON")

	evidenceShowCmd.Flags().String("source", "", "only evidence fetched from this source URI")
	evidenceShowCmd.Flags().String("topic", "", "only evidence tagged with this topic")
	evidenceShowCmd.Flags().String("near", "", "evidence sharing this id's near-duplicate prefix")
	evidenceShowCmd.Flags().String("list", "", "print distinct values instead: sources or topics")
	evidenceShowCmd.Flags().Bool("json", false, "output items as JSON")

	evidenceExportCmd.Flags().String("format", "yaml", "export format: yaml, json or bibtex")
	evidenceExportCmd.Flags().Bool("snapshot", false, "write the whole task snapshot to <data-dir>/exports")

	evidenceCmd.AddCommand(evidenceSearchCmd)
	evidenceCmd.AddCommand(evidenceShowCmd)
	evidenceCmd.AddCommand(evidenceExportCmd)
	rootCmd.AddCommand(evidenceCmd)
}
