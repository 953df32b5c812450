// Package workers contains background workers for airlocal.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lakeward/airlocal/internal/core/domain"
)

// StackReporter reports the aggregated health of a project's containers.
type StackReporter interface {
	StackHealth(ctx context.Context, project string) (*domain.StackHealth, error)
}

// MonitorConfig configures the stack monitor worker.
type MonitorConfig struct {
	// Interval is the time between health poll cycles.
	// Default: 15 seconds.
	Interval time.Duration

	// PollTimeout is the timeout for a single poll.
	// Default: 10 seconds.
	PollTimeout time.Duration
}

// DefaultMonitorConfig returns the default configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:    15 * time.Second,
		PollTimeout: 10 * time.Second,
	}
}

// Monitor periodically polls the running stack and logs health transitions.
// The latest snapshot is kept for callers that want the current view without
// hitting the Docker daemon themselves.
type Monitor struct {
	stack   StackReporter
	project string
	config  MonitorConfig
	logger  *slog.Logger

	// Latest snapshot
	mu   sync.RWMutex
	last *domain.StackHealth

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a new stack monitor worker.
func NewMonitor(stack StackReporter, project string, config MonitorConfig, logger *slog.Logger) *Monitor {
	if config.Interval == 0 {
		config.Interval = 15 * time.Second
	}
	if config.PollTimeout == 0 {
		config.PollTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		stack:   stack,
		project: project,
		config:  config,
		logger:  logger.With("component", "monitor"),
	}
}

// Start begins the monitor background goroutine.
func (m *Monitor) Start() {
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go m.run()

	m.logger.Info("stack monitor started",
		"project", m.project,
		"interval", m.config.Interval,
	)
}

// Stop gracefully stops the monitor.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("stack monitor stopped")
}

// Current returns the latest health snapshot, or nil before the first poll.
func (m *Monitor) Current() *domain.StackHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// run is the main loop that polls health periodically.
func (m *Monitor) run() {
	defer m.wg.Done()

	// Poll immediately on start
	m.runCycle()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.runCycle()
		}
	}
}

// runCycle executes a single health poll and records transitions.
func (m *Monitor) runCycle() {
	ctx, cancel := context.WithTimeout(m.ctx, m.config.PollTimeout)
	defer cancel()

	health, err := m.stack.StackHealth(ctx, m.project)
	if err != nil {
		m.logger.Error("health poll failed", "error", err)
		return
	}

	m.mu.Lock()
	previous := m.last
	m.last = health
	m.mu.Unlock()

	if previous == nil || previous.Status != health.Status {
		m.logTransition(previous, health)
	}
}

// logTransition logs a status change with the services that caused it.
func (m *Monitor) logTransition(previous, current *domain.StackHealth) {
	var from domain.HealthStatus
	if previous != nil {
		from = previous.Status
	}

	unhealthy := make([]string, 0)
	for _, c := range current.Containers {
		if c.Health != domain.HealthStatusHealthy {
			unhealthy = append(unhealthy, c.ServiceName)
		}
	}

	switch current.Status {
	case domain.HealthStatusHealthy:
		m.logger.Info("stack healthy", "from", from)
	default:
		m.logger.Warn("stack health changed",
			"from", from,
			"to", current.Status,
			"affected", unhealthy,
		)
	}
}

// PollNow runs an immediate poll outside the ticker schedule.
func (m *Monitor) PollNow(ctx context.Context) (*domain.StackHealth, error) {
	health, err := m.stack.StackHealth(ctx, m.project)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.last = health
	m.mu.Unlock()

	return health, nil
}
