// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-weaver CLI. The research
// subcommand runs the outline-convergence loop and writes the report;
// evidence, outline and tasks inspect persisted runs.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/internal/logger"
	"github.com/pdiddy/research-weaver/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// log is the process logger, built once flags and config are read.
var log = zap.NewNop()

// rootCmd is the base command for the research-weaver CLI.
var rootCmd = &cobra.Command{
	Use:   "research-weaver",
	Short: "Turn a research question into a cited long-form report",
	Long: `research-weaver gathers evidence for a research question, restructures an
outline until it converges, then writes the report section by section from
small, node-scoped slices of the evidence.

Runs are saved to the configured persistence backend so they can be resumed
with --resume and inspected with the evidence, outline and tasks commands.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		l, err := logger.New(cfg.Log.Env, cfg.Log.Level)
		if err != nil {
			return err
		}
		log = l

		s, err := secrets.Load(".secrets/", log)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-weaver.yaml or ~/.config/research-weaver/research-weaver.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-env", "", "log encoding: dev (console) or prod (JSON)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for the SQLite database and exports")
	rootCmd.PersistentFlags().String("persistence", "", "persistence backend: none, sqlite or redis")
	rootCmd.PersistentFlags().StringSlice("providers", nil, "search providers: arxiv, semantic_scholar, openalex, web")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.env", rootCmd.PersistentFlags().Lookup("log-env"))
	_ = viper.BindPFlag("persistence.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("persistence.backend", rootCmd.PersistentFlags().Lookup("persistence"))
	_ = viper.BindPFlag("retrieval.providers", rootCmd.PersistentFlags().Lookup("providers"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-weaver")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-weaver"))
		}
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("RESEARCH_WEAVER")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
