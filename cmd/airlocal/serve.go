package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lakeward/airlocal/internal/shell/api"
	"github.com/lakeward/airlocal/internal/shell/workers"
	"github.com/spf13/cobra"
)

// newServeCmd creates the 'serve' command.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the local status API",
		Long: `Serve the status API: /healthz, /readyz, /v1/status and /v1/runs.
A background monitor polls the stack's container health while the server
is up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return serveAPI(a)
		},
	}
}

// serveAPI runs the HTTP server and monitor until a shutdown signal.
func serveAPI(a *app) error {
	monitor := workers.NewMonitor(a.runner, a.cfg.Project, workers.MonitorConfig{
		Interval: a.cfg.Monitor.Interval,
	}, a.logger)

	// The handler serves /v1/status health from the monitor's snapshot.
	handler := api.NewHandler(a.cfg.Project, a.runner, a.ledger, a.docker, monitor, a.logger)

	httpServer := &http.Server{
		Addr:         a.cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	monitor.Start()
	defer monitor.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting status API", "address", a.cfg.Server.Address())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		a.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}
