// Package api exposes the local status API: stack health, containers, and
// the run ledger, served over plain JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lakeward/airlocal/internal/core/domain"
	"github.com/lakeward/airlocal/internal/shell/store"
)

// =============================================================================
// Dependencies
// =============================================================================

// StackReporter reports the live state of a project's containers.
type StackReporter interface {
	Status(ctx context.Context, project string) ([]domain.ContainerInfo, error)
	StackHealth(ctx context.Context, project string) (*domain.StackHealth, error)
}

// RunSource reads the run ledger.
type RunSource interface {
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	ListRuns(ctx context.Context, opts store.ListOptions) ([]domain.Run, error)
	ListRunsByMode(ctx context.Context, mode string, opts store.ListOptions) ([]domain.Run, error)
	LatestRun(ctx context.Context) (*domain.Run, error)
}

// Pinger checks that the Docker daemon is reachable.
type Pinger interface {
	Ping() error
}

// HealthSnapshot serves cached stack health from a background poller.
// Current returns nil before the first poll completes; PollNow forces
// a fresh poll.
type HealthSnapshot interface {
	Current() *domain.StackHealth
	PollNow(ctx context.Context) (*domain.StackHealth, error)
}

// =============================================================================
// Handler
// =============================================================================

// Handler serves the status API for one project.
type Handler struct {
	project  string
	stack    StackReporter
	runs     RunSource
	docker   Pinger
	snapshot HealthSnapshot
	logger   *slog.Logger
}

// NewHandler creates a Handler for the given project. snapshot may be nil,
// in which case every status request inspects the stack directly.
func NewHandler(project string, stack StackReporter, runs RunSource, docker Pinger, snapshot HealthSnapshot, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		project:  project,
		stack:    stack,
		runs:     runs,
		docker:   docker,
		snapshot: snapshot,
		logger:   logger,
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyz)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/runs", h.handleListRuns)
		r.Get("/runs/latest", h.handleLatestRun)
		r.Get("/runs/{id}", h.handleGetRun)
	})

	return r
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"docker": "ok"}
	if err := h.docker.Ping(); err != nil {
		checks["docker"] = "failed"
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"checks": checks,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": checks,
	})
}

// =============================================================================
// Status Handler
// =============================================================================

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	containers, err := h.stack.Status(ctx, h.project)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err)
		return
	}

	health, err := h.stackHealth(ctx)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err)
		return
	}

	resp := StatusResponse{
		Project:    h.project,
		Health:     health.Status,
		Containers: make([]ContainerStatus, 0, len(containers)),
		Services:   health.Containers,
	}
	for _, c := range containers {
		resp.Containers = append(resp.Containers, ContainerStatus{
			ID:      c.ID,
			Service: c.ServiceName,
			Image:   c.Image,
			Status:  c.Status,
			Ports:   c.Ports,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// stackHealth prefers the poller's cached snapshot over a live inspection,
// polling on demand when the cache is still empty.
func (h *Handler) stackHealth(ctx context.Context) (*domain.StackHealth, error) {
	if h.snapshot == nil {
		return h.stack.StackHealth(ctx, h.project)
	}
	if cached := h.snapshot.Current(); cached != nil {
		return cached, nil
	}
	return h.snapshot.PollNow(ctx)
}

// =============================================================================
// Run Handlers
// =============================================================================

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
	}

	var (
		runs []domain.Run
		err  error
	)
	if mode := r.URL.Query().Get("mode"); mode != "" {
		runs, err = h.runs.ListRunsByMode(r.Context(), mode, opts)
	} else {
		runs, err = h.runs.ListRuns(r.Context(), opts)
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.LatestRun(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request error", "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
