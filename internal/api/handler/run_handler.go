package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/matchsync/internal/domain"
	"github.com/timmy/matchsync/internal/logger"
	"github.com/timmy/matchsync/internal/mapping"
	"github.com/timmy/matchsync/internal/service"
	"gorm.io/gorm"
)

// Enricher runs parent enrichment.
type Enricher interface {
	Run(ctx context.Context, targets []*domain.EnrichmentTarget) (*service.RunStats, error)
	Snapshot() *service.RunStats
}

// CatalogSyncer runs catalog collection syncs.
type CatalogSyncer interface {
	Sync(ctx context.Context, collections []*domain.CollectionTarget) (*service.RunStats, error)
}

// RunHistory reads persisted run records.
type RunHistory interface {
	GetByID(ctx context.Context, id string) (*domain.EnrichmentRun, error)
	ListRecent(ctx context.Context, kind domain.RunKind, limit int) ([]domain.EnrichmentRun, error)
}

// RunHandler starts runs in the background and reports on them. Only one
// run (of either kind) may be active at a time.
type RunHandler struct {
	enricher CatalogAndEnrich
	history  RunHistory
	logger   *logger.Logger

	mu            sync.RWMutex
	wg            sync.WaitGroup
	isRunning     bool
	runningKind   domain.RunKind
	cancel        context.CancelFunc
	lastStats     *service.RunStats
	lastRunTime   time.Time
	lastRunStatus string
}

// CatalogAndEnrich bundles both run kinds.
type CatalogAndEnrich struct {
	Enrich  Enricher
	Catalog CatalogSyncer
}

// NewRunHandler creates a new run handler.
// Parameters:
//   - runners: enrichment and catalog services.
//   - history: run record store.
//   - log: logger instance.
// Returns:
//   - *RunHandler: initialized handler.
func NewRunHandler(runners CatalogAndEnrich, history RunHistory, log *logger.Logger) *RunHandler {
	return &RunHandler{enricher: runners, history: history, logger: log}
}

// StartRunRequest represents the run API request.
type StartRunRequest struct {
	Kind        string   `json:"kind" binding:"required,oneof=enrich catalog"`
	Targets     []string `json:"targets"`
	Collections []string `json:"collections"`
}

// RunStatusResponse represents the current run state.
type RunStatusResponse struct {
	IsRunning     bool              `json:"is_running"`
	Kind          string            `json:"kind,omitempty"`
	LastRunTime   string            `json:"last_run_time,omitempty"`
	LastRunStatus string            `json:"last_run_status,omitempty"`
	CurrentStats  *service.RunStats `json:"current_stats,omitempty"`
	Progress      *service.Progress `json:"progress,omitempty"`
}

// StartRun validates the request and launches the run in the background.
// It answers 202 immediately, or 409 when a run is already active.
func (h *RunHandler) StartRun(c *gin.Context) {
	ctx := c.Request.Context()

	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid run request: client_ip=%s, error=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var job func(context.Context) (*service.RunStats, error)
	switch domain.RunKind(req.Kind) {
	case domain.RunKindEnrich:
		names := req.Targets
		if len(names) == 0 {
			names = mapping.TargetNames()
		}
		targets, err := mapping.Lookup(names)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		job = func(ctx context.Context) (*service.RunStats, error) {
			return h.enricher.Enrich.Run(ctx, targets)
		}
	case domain.RunKindCatalog:
		names := req.Collections
		if len(names) == 0 {
			for _, col := range mapping.Collections() {
				names = append(names, col.Name)
			}
		}
		collections, err := mapping.LookupCollections(names)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		job = func(ctx context.Context) (*service.RunStats, error) {
			return h.enricher.Catalog.Sync(ctx, collections)
		}
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Run request rejected: already running, kind=%s, client_ip=%s", req.Kind, c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": service.ErrRunInProgress.Error()})
		return
	}
	// The run outlives the request; only Stop cancels it
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.isRunning = true
	h.runningKind = domain.RunKind(req.Kind)
	h.cancel = cancel
	h.wg.Add(1)
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting run: kind=%s, targets=%v, collections=%v", req.Kind, req.Targets, req.Collections)
	go h.execute(runCtx, job)

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Run started",
		"kind":    req.Kind,
	})
}

func (h *RunHandler) execute(ctx context.Context, job func(context.Context) (*service.RunStats, error)) {
	defer h.wg.Done()

	ctx = logger.FromContextOr(ctx, h.logger).WithContext(ctx)
	start := time.Now()
	stats, err := job(ctx)

	h.mu.Lock()
	h.cancel()
	h.cancel = nil
	h.isRunning = false
	h.lastStats = stats
	h.lastRunTime = time.Now()
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	entry := logger.With(logger.Fields{logger.FieldDurationMs: time.Since(start).Milliseconds()})
	if err != nil {
		entry.Error(ctx, "Background run failed: %v", err)
		return
	}
	entry.Info(ctx, "Background run finished")
}

// Wait blocks until the background run, if any, has finished.
func (h *RunHandler) Wait() {
	h.wg.Wait()
}

// Stop cancels the background run and waits for it. The run stops at its
// next batch boundary.
func (h *RunHandler) Stop() {
	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// GetRunStatus returns the state of the active or last run.
func (h *RunHandler) GetRunStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := RunStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		CurrentStats:  h.lastStats,
	}
	if h.isRunning {
		resp.Kind = string(h.runningKind)
		if h.runningKind == domain.RunKindEnrich {
			resp.CurrentStats = h.enricher.Enrich.Snapshot()
		}
	}
	if resp.CurrentStats != nil {
		end := resp.CurrentStats.EndTime
		if end.IsZero() {
			end = time.Now()
		}
		p := service.ComputeProgress(resp.CurrentStats.Processed, resp.CurrentStats.Total, end.Sub(resp.CurrentStats.StartTime))
		resp.Progress = &p
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

// ListRuns returns recent run records, optionally filtered by kind.
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
		return
	}

	runs, err := h.history.ListRecent(c.Request.Context(), domain.RunKind(c.Query("kind")), limit)
	if err != nil {
		logger.CtxError(c.Request.Context(), "Failed to list runs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun returns one run record.
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.history.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		logger.CtxError(c.Request.Context(), "Failed to get run: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run"})
		return
	}
	c.JSON(http.StatusOK, run)
}
