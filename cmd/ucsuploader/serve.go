package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tepihealth/ucsuploader/internal/auth"
	"github.com/tepihealth/ucsuploader/internal/config"
	"github.com/tepihealth/ucsuploader/internal/dashboard"
	"github.com/tepihealth/ucsuploader/internal/db"
	"github.com/tepihealth/ucsuploader/internal/dedup"
	"github.com/tepihealth/ucsuploader/internal/exitcode"
	"github.com/tepihealth/ucsuploader/internal/logging"
	"github.com/tepihealth/ucsuploader/internal/server"
	"github.com/tepihealth/ucsuploader/internal/stats"
	"github.com/tepihealth/ucsuploader/internal/upload"
)

var skipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply schema migrations on startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	cfg := config.Load()
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "load config file: %v\n", err)
			os.Exit(exitcode.UsageError)
		}
	}
	log := logging.Setup(pick(logFormat, cfg.LogFormat), pick(logLevel, cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	if !skipMigrations {
		if err := db.ApplyMigrations(ctx, pool, log); err != nil {
			log.Error().Err(err).Msg("migration failed")
			os.Exit(exitcode.MigrateError)
		}
	}

	recorder := stats.NewRecorder(pool)

	srv := &server.Server{
		Gateway: &auth.Gateway{
			OpenSRP:     auth.NewOpenSRPClient(cfg.OpenSRPBaseURL(), 30*time.Second),
			Stats:       recorder,
			Secret:      []byte(cfg.JWTSecret),
			TTL:         cfg.JWTTTL,
			DevUsername: cfg.DevUsername,
			DevPassword: cfg.DevPassword,
			Log:         log,
		},
		Uploads: &upload.Pipeline{
			Registries: dedup.NewClient(cfg.CTCNumbersEndpoint, cfg.ElicitationNumbersEndpoint, cfg.DedupTimeout),
			Stats:      recorder,
			PublicDir:  cfg.PublicDir,
			Log:        log,
		},
		Regions:        recorder,
		Dashboard:      dashboard.NewStore(pool),
		Secret:         []byte(cfg.JWTSecret),
		DashboardUsers: cfg.DashboardUsers,
		Log:            log,
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
			os.Exit(exitcode.ServerError)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			os.Exit(exitcode.ServerError)
		}
	}

	log.Info().Msg("server stopped")
	return nil
}
