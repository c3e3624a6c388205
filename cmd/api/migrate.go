package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sukudha/academy-service/internal/config"
	"github.com/sukudha/academy-service/internal/observability"
	"github.com/sukudha/academy-service/internal/persistence"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply pending PostgreSQL migrations, or roll back the latest one with --down.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, down)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	return cmd
}

func runMigrate(cmd *cobra.Command, down bool) error {
	cfg, err := config.Load()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if cfg.Store.Driver != config.StoreDriverPostgres {
		return oops.Code("CONFIG_INVALID").Errorf("migrations only apply to STORE_DRIVER=%s", config.StoreDriverPostgres)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		return oops.Code("LOGGER_INIT_FAILED").Wrap(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pg.Close()

	if down {
		err = persistence.RollbackMigration(ctx, pg.PoolHandle(), logger)
	} else {
		err = persistence.RunMigrations(ctx, pg.PoolHandle(), logger)
	}
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("down", down).Wrap(err)
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
