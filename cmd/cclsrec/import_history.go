// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cclsrec/internal/logging"
	"github.com/tomtom215/cclsrec/internal/recommend/history"
)

// ImportReport is printed by the import-history command.
type ImportReport struct {
	Imported int `json:"imported"`
	Stored   int `json:"stored"`
}

func newImportHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import-history",
		Short: "Load users' recent items into the history store",
		Long: `Read the configured interaction log and store every kept user's most
recent items, replacing existing histories. The serve command uses these
histories for requests that name a user.`,
		Args: cobra.NoArgs,
		RunE: a.importHistory,
	}
}

func (a *app) importHistory(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	logger := logging.WithComponent("import-history")

	ds, err := loadDataset(ctx, &a.cfg.Data, logger)
	if err != nil {
		return err
	}
	hist, err := history.Open(a.cfg.History)
	if err != nil {
		return err
	}
	defer hist.Close() //nolint:errcheck // closed once on exit

	n, err := hist.ImportDataset(ctx, ds.RecentItems())
	if err != nil {
		return err
	}
	stored, err := hist.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info().Int("imported", n).Int("stored", stored).Msg("User histories imported")
	return printJSON(cmd.OutOrStdout(), ImportReport{Imported: n, Stored: stored})
}
