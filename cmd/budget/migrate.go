package main

import (
	"fmt"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			// initStorage migrates on open.
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			v, err := store.SchemaVersion(ctx)
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Database %s at schema version %d", store.Path(), v)))
			return nil
		},
	}
}
