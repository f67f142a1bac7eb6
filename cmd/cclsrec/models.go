// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cclsrec/internal/recommend/storage"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List stored checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := storage.NewStore(a.cfg.Storage.Dir)
			if err != nil {
				return err
			}
			list, err := store.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}

	var keep int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := storage.NewStore(a.cfg.Storage.Dir)
			if err != nil {
				return err
			}
			removed, err := store.Prune(cmd.Context(), a.cfg.Storage.Name, keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d checkpoint(s)\n", removed)
			return nil
		},
	}
	prune.Flags().IntVar(&keep, "keep", 3, "number of versions to keep")
	cmd.AddCommand(prune)
	return cmd
}
