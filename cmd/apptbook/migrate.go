package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"apptbook/internal/store/postgres"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert the Postgres schema",
	}

	for _, dir := range []postgres.MigrateDirection{postgres.MigrateUp, postgres.MigrateDown} {
		short := "Apply pending migrations"
		if dir == postgres.MigrateDown {
			short = "Revert every migration (drops all booking data)"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   string(dir),
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := loadConfig("migrate")
				if err != nil {
					return err
				}
				if cfg.DatabaseURL == "" {
					return errors.New("database.url is required for migrations")
				}

				log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
				db, err := postgres.Open(cmd.Context(), cfg.DatabaseURL, postgres.PoolConfig{MaxOpenConns: 1})
				if err != nil {
					return err
				}
				defer func() {
					if err := postgres.Close(db); err != nil {
						log.Warn("database close failed", slog.Any("err", err))
					}
				}()

				return postgres.RunMigrations(db.DB, dir, log)
			},
		})
	}
	return cmd
}
