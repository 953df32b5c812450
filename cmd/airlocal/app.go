package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lakeward/airlocal/internal/shell/docker"
	"github.com/lakeward/airlocal/internal/shell/store"
	"github.com/spf13/cobra"
)

// =============================================================================
// App Wiring
// =============================================================================

// app bundles the wired dependencies a command needs.
type app struct {
	cfg    *Config
	logger *slog.Logger
	ledger store.Store
	docker *docker.EngineClient
	runner *docker.Runner
}

// loadConfig reads config and flags without touching Docker or the ledger.
// Commands like render and validate only need this much.
func loadConfig(cmd *cobra.Command) (*Config, *slog.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, nil, usageError(err)
	}

	if dir, _ := cmd.Flags().GetString("project-dir"); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, nil, usageError(fmt.Errorf("failed to resolve project directory: %w", err))
		}
		cfg.ProjectDir = abs
	}

	return cfg, SetupLogger(cfg), nil
}

// newApp wires config, the run ledger, and the Docker client.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	dsn := cfg.LedgerDSN()
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	ledger, err := store.NewSQLiteStore(dsn)
	if err != nil {
		return nil, err
	}

	client, err := docker.NewEngineClient(cfg.Docker.Host)
	if err != nil {
		ledger.Close()
		return nil, err
	}
	if err := client.Ping(); err != nil {
		ledger.Close()
		client.Close()
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		ledger: ledger,
		docker: client,
		runner: docker.NewRunner(client, logger),
	}, nil
}

// Close releases the app's connections.
func (a *app) Close() {
	if err := a.docker.Close(); err != nil {
		a.logger.Error("docker client close error", "error", err)
	}
	if err := a.ledger.Close(); err != nil {
		a.logger.Error("ledger close error", "error", err)
	}
}
