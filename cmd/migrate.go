package main

import (
	"sims/internal/entity"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.db.WithContext(cmd.Context()).AutoMigrate(entity.Models()...); err != nil {
				return err
			}
			app.logger.Info("schema migrated")
			return nil
		},
	}
}
