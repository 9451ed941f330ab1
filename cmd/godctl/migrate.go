package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  "Applies all pending SQL migrations in lexicographic order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pg, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pg.Close() //nolint:errcheck

		if err := pg.Migrate(ctx, logger); err != nil {
			return eris.Wrap(err, "migrate")
		}
		logger.Info("all migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
