package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/course-swap-api/pkg/config"
	"github.com/noah-isme/course-swap-api/pkg/database"
)

func newMigrateCmd(cli *cliContext) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration management",
	}
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cli.cfg.Storage.Driver != config.StorageDriverPostgres {
				return fmt.Errorf("migrations need STORAGE_DRIVER=postgres, got %q", cli.cfg.Storage.Driver)
			}
			db, err := database.NewPostgres(cmd.Context(), cli.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			applied, err := database.Migrate(cmd.Context(), db, cli.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	})
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List embedded migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			migrations, err := database.LoadMigrations()
			if err != nil {
				return err
			}
			for _, m := range migrations {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.ID, m.Description)
			}
			return nil
		},
	})
	return migrateCmd
}
