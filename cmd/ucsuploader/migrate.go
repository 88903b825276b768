package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tepihealth/ucsuploader/internal/config"
	"github.com/tepihealth/ucsuploader/internal/db"
	"github.com/tepihealth/ucsuploader/internal/exitcode"
	"github.com/tepihealth/ucsuploader/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.Setup(pick(logFormat, cfg.LogFormat), pick(logLevel, cfg.LogLevel))
	ctx := context.Background()

	if cfg.DSN == "" {
		log.Error().Msg("DATABASE_URL is required")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(exitcode.MigrateError)
	}

	log.Info().Msg("all migrations applied successfully")
	return nil
}

// pick prefers the flag value over the environment-derived one.
func pick(flag, env string) string {
	if flag != "" {
		return flag
	}
	return env
}
