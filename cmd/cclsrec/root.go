// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/cclsrec/internal/config"
	"github.com/tomtom215/cclsrec/internal/logging"
)

// Version is set at build time.
var Version = "dev"

// app holds the state shared by all subcommands.
type app struct {
	cfgFile  string
	logLevel string
	cfg      *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cclsrec",
		Short: "Train and serve a contrastive sequential recommender",
		Long: `CCLSRec trains a Transformer sequential recommender on user-item
interaction logs and serves next-item recommendations over HTTP.

Examples:
  # Train on the configured interaction log
  cclsrec train --config cclsrec.yaml

  # Evaluate the latest checkpoint on the test split
  cclsrec evaluate

  # Seed the history store and start the API
  cclsrec import-history
  cclsrec serve`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file path (e.g. cclsrec.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")

	root.AddCommand(
		newTrainCmd(a),
		newEvaluateCmd(a),
		newImportHistoryCmd(a),
		newModelsCmd(a),
		newServeCmd(a),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	cfg.Logging.Output = cmd.ErrOrStderr()
	logging.Init(cfg.Logging)
	a.cfg = cfg
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
