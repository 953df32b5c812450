package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/lakeward/airlocal/internal/core/domain"
	"github.com/lakeward/airlocal/internal/shell/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) store.Store {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordNewRun(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	run := domain.NewRun("local", "/home/dev/airflow")
	require.NoError(t, recordNewRun(ctx, ledger, run))

	got, err := ledger.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStarting, got.Status)
	assert.NotNil(t, got.StartedAt)
}

func TestSettleStoppedRun_DetachedRun(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	run := domain.NewRun("local", "/home/dev/airflow")
	require.NoError(t, recordNewRun(ctx, ledger, run))
	require.NoError(t, run.Transition(domain.StatusRunning))
	require.NoError(t, ledger.UpdateRun(ctx, run))

	settleStoppedRun(ctx, ledger, discardLogger())

	got, err := ledger.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStopped, got.Status)
	assert.NotNil(t, got.FinishedAt)
	assert.Empty(t, got.ErrorMessage)
}

func TestSettleStoppedRun_TerminalRunUntouched(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	run := domain.NewRun("resetdb", "/home/dev/airflow")
	require.NoError(t, recordNewRun(ctx, ledger, run))
	require.NoError(t, run.Transition(domain.StatusRunning))
	require.NoError(t, run.Transition(domain.StatusSucceeded))
	require.NoError(t, ledger.UpdateRun(ctx, run))

	settleStoppedRun(ctx, ledger, discardLogger())

	got, err := ledger.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, got.Status)
}

func TestSettleStoppedRun_EmptyLedger(t *testing.T) {
	ledger := newTestLedger(t)

	// Nothing recorded yet; down on a fresh project must not blow up.
	settleStoppedRun(context.Background(), ledger, discardLogger())
}
