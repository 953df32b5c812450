package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lakeward/airlocal/internal/core/domain"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeFormat is RFC 3339 with a fixed-width nanosecond fraction. Timestamps
// are stored as text and ordered lexicographically, so the fraction must not
// vary in length the way RFC3339Nano's trimmed output does.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID           string  `db:"id"`
	Mode         string  `db:"mode"`
	ProjectDir   string  `db:"project_dir"`
	Status       string  `db:"status"`
	Containers   *string `db:"containers"`
	ExitCode     *int    `db:"exit_code"`
	ErrorMessage string  `db:"error_message"`
	CreatedAt    string  `db:"created_at"`
	StartedAt    *string `db:"started_at"`
	FinishedAt   *string `db:"finished_at"`
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.db, run)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *domain.Run) error {
	return updateRun(ctx, s.db, run)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.db, opts)
}

func (s *SQLiteStore) ListRunsByMode(ctx context.Context, mode string, opts ListOptions) ([]domain.Run, error) {
	return listRunsByMode(ctx, s.db, mode, opts)
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*domain.Run, error) {
	return latestRun(ctx, s.db)
}

func (s *SQLiteStore) PruneRuns(ctx context.Context, keep int) (int, error) {
	return pruneRuns(ctx, s.db, keep)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateRun(ctx context.Context, run *domain.Run) error {
	return updateRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.tx, opts)
}

func (s *txSQLiteStore) ListRunsByMode(ctx context.Context, mode string, opts ListOptions) ([]domain.Run, error) {
	return listRunsByMode(ctx, s.tx, mode, opts)
}

func (s *txSQLiteStore) LatestRun(ctx context.Context) (*domain.Run, error) {
	return latestRun(ctx, s.tx)
}

func (s *txSQLiteStore) PruneRuns(ctx context.Context, keep int) (int, error) {
	return pruneRuns(ctx, s.tx, keep)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createRun(ctx context.Context, exec executor, run *domain.Run) error {
	containersJSON, err := json.Marshal(run.Containers)
	if err != nil {
		return NewStoreError("CreateRun", "run", run.ID, "failed to serialize containers", ErrInvalidData)
	}

	query := `
		INSERT INTO runs (
			id, mode, project_dir, status, containers, exit_code,
			error_message, created_at, started_at, finished_at
		) VALUES (
			:id, :mode, :project_dir, :status, :containers, :exit_code,
			:error_message, :created_at, :started_at, :finished_at
		)`

	row := map[string]any{
		"id":            run.ID,
		"mode":          run.Mode,
		"project_dir":   run.ProjectDir,
		"status":        string(run.Status),
		"containers":    string(containersJSON),
		"exit_code":     run.ExitCode,
		"error_message": run.ErrorMessage,
		"created_at":    run.CreatedAt.Format(timeFormat),
		"started_at":    formatTimePtr(run.StartedAt),
		"finished_at":   formatTimePtr(run.FinishedAt),
	}

	_, err = exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return NewStoreError("CreateRun", "run", run.ID, "run with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateRun", "run", run.ID, err.Error(), err)
	}

	return nil
}

func getRun(ctx context.Context, exec executor, id string) (*domain.Run, error) {
	query := `SELECT * FROM runs WHERE id = ?`

	var row runRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}

	return rowToRun(&row)
}

func updateRun(ctx context.Context, exec executor, run *domain.Run) error {
	containersJSON, err := json.Marshal(run.Containers)
	if err != nil {
		return NewStoreError("UpdateRun", "run", run.ID, "failed to serialize containers", ErrInvalidData)
	}

	query := `
		UPDATE runs SET
			status = :status,
			containers = :containers,
			exit_code = :exit_code,
			error_message = :error_message,
			started_at = :started_at,
			finished_at = :finished_at
		WHERE id = :id`

	row := map[string]any{
		"id":            run.ID,
		"status":        string(run.Status),
		"containers":    string(containersJSON),
		"exit_code":     run.ExitCode,
		"error_message": run.ErrorMessage,
		"started_at":    formatTimePtr(run.StartedAt),
		"finished_at":   formatTimePtr(run.FinishedAt),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateRun", "run", run.ID, err.Error(), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("UpdateRun", "run", run.ID, err.Error(), err)
	}
	if affected == 0 {
		return NewStoreError("UpdateRun", "run", run.ID, "run not found", ErrNotFound)
	}

	return nil
}

func listRuns(ctx context.Context, exec executor, opts ListOptions) ([]domain.Run, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?`

	var rows []runRow
	if err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}

	return rowsToRuns(rows)
}

func listRunsByMode(ctx context.Context, exec executor, mode string, opts ListOptions) ([]domain.Run, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM runs WHERE mode = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`

	var rows []runRow
	if err := exec.SelectContext(ctx, &rows, query, mode, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListRunsByMode", "run", "", err.Error(), err)
	}

	return rowsToRuns(rows)
}

func latestRun(ctx context.Context, exec executor) (*domain.Run, error) {
	query := `SELECT * FROM runs ORDER BY created_at DESC LIMIT 1`

	var row runRow
	err := exec.GetContext(ctx, &row, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("LatestRun", "run", "", "run not found", ErrNotFound)
		}
		return nil, NewStoreError("LatestRun", "run", "", err.Error(), err)
	}

	return rowToRun(&row)
}

func pruneRuns(ctx context.Context, exec executor, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	query := `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY created_at DESC LIMIT ?
		)`

	result, err := exec.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, NewStoreError("PruneRuns", "run", "", err.Error(), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, NewStoreError("PruneRuns", "run", "", err.Error(), err)
	}

	return int(affected), nil
}

// =============================================================================
// Row Conversion
// =============================================================================

func rowToRun(row *runRow) (*domain.Run, error) {
	run := &domain.Run{
		ID:           row.ID,
		Mode:         row.Mode,
		ProjectDir:   row.ProjectDir,
		Status:       domain.RunStatus(row.Status),
		ExitCode:     row.ExitCode,
		ErrorMessage: row.ErrorMessage,
	}

	if row.Containers != nil && *row.Containers != "" && *row.Containers != "null" {
		if err := json.Unmarshal([]byte(*row.Containers), &run.Containers); err != nil {
			return nil, NewStoreError("rowToRun", "run", row.ID, "failed to deserialize containers", ErrInvalidData)
		}
	}

	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "invalid created_at timestamp", ErrInvalidData)
	}
	run.CreatedAt = createdAt

	if run.StartedAt, err = parseTimePtr(row.StartedAt); err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "invalid started_at timestamp", ErrInvalidData)
	}
	if run.FinishedAt, err = parseTimePtr(row.FinishedAt); err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "invalid finished_at timestamp", ErrInvalidData)
	}

	return run, nil
}

func rowsToRuns(rows []runRow) ([]domain.Run, error) {
	runs := make([]domain.Run, 0, len(rows))
	for i := range rows {
		run, err := rowToRun(&rows[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeFormat)
	return &s
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
