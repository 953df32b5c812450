package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lakeward/airlocal/internal/core/domain"
	"github.com/lakeward/airlocal/internal/shell/store"
)

// recordNewRun writes a run and its starting transition in one transaction,
// so the ledger never holds a pending row for an invocation that launched.
func recordNewRun(ctx context.Context, ledger store.Store, run *domain.Run) error {
	return ledger.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateRun(ctx, run); err != nil {
			return err
		}
		_ = run.Transition(domain.StatusStarting)
		return tx.UpdateRun(ctx, run)
	})
}

// settleStoppedRun marks the latest still-live ledger entry stopped.
// Detached runs (local, dbonly) stay "running" in the ledger until the
// stack comes down, so `down` closes them out here. Best-effort: the
// containers are already gone either way.
func settleStoppedRun(ctx context.Context, ledger store.Store, logger *slog.Logger) {
	run, err := ledger.LatestRun(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Error("failed to load latest run", "error", err)
		}
		return
	}
	if run.Status.IsTerminal() {
		return
	}

	run.Stop()
	if err := ledger.UpdateRun(ctx, run); err != nil {
		logger.Error("failed to settle run", "run_id", run.ID, "error", err)
	}
}
