package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/school-support/internal/config"
	"github.com/spec-kit/school-support/internal/persistence"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema and seed the admin account",
		Long: `Brings the configured store up to date.

Postgres applies the embedded SQL migrations; SQLite is migrated when opened.
The default admin account is created when missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.cfg.Store.Driver == config.StoreDriverPostgres && !app.cfg.Postgres.RunMigrations {
				pg, err := persistence.NewPostgres(ctx, app.cfg.Postgres, app.logger)
				if err != nil {
					return fmt.Errorf("connect postgres: %w", err)
				}
				defer pg.Close()
				if err := persistence.RunMigrations(ctx, pg.PoolHandle(), app.logger); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
			}
			if err := app.seedAdmin(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s store is up to date\n", app.cfg.Store.Driver)
			return nil
		},
	}
}
