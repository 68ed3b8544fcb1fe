// Command server runs the Open Collab Hub API.
//
//	server serve     start the HTTP API (default)
//	server migrate   create or update the database schema and exit
//
// Configuration comes from the environment, optionally seeded by a .env file
// in the working directory. See internal/config for the variables.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ranirkini2004/Open-Hub-API/internal/config"
	"github.com/ranirkini2004/Open-Hub-API/internal/repository/sqlstore"
	"github.com/ranirkini2004/Open-Hub-API/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:           "server",
		Short:         "Open Collab Hub API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(debug)
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, logger)
			if err != nil {
				logger.Error("failed to create server", slog.String("error", err.Error()))
				return err
			}

			// Start blocks until SIGINT or SIGTERM.
			if err := srv.Start(); err != nil {
				logger.Error("server error", slog.String("error", err.Error()))
				return err
			}
			return nil
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(debug)
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}

			// sqlstore.New migrates on open.
			db, err := sqlstore.New(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				logger.Error("migration failed", slog.String("error", err.Error()))
				return err
			}
			defer db.Close()

			logger.Info("schema up to date", slog.String("driver", cfg.Database.Driver))
			return nil
		},
	}

	root.AddCommand(serve, migrate)
	// Running the bare binary serves.
	root.RunE = serve.RunE
	return root
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func loadConfig(logger *slog.Logger) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
