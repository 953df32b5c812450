package store

import (
	"context"

	"github.com/lakeward/airlocal/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for the run ledger.
type Store interface {
	// Run operations
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	UpdateRun(ctx context.Context, run *domain.Run) error
	ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error)
	ListRunsByMode(ctx context.Context, mode string, opts ListOptions) ([]domain.Run, error)
	LatestRun(ctx context.Context) (*domain.Run, error)

	// PruneRuns deletes all but the newest keep runs and reports how many
	// rows were removed.
	PruneRuns(ctx context.Context, keep int) (int, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
