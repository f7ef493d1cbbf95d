package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/matchsync/internal/domain"
	"github.com/timmy/matchsync/internal/logger"
	"github.com/timmy/matchsync/internal/mapping"
	"github.com/timmy/matchsync/internal/service"
)

// CoverageReporter computes per-target coverage.
type CoverageReporter interface {
	Report(ctx context.Context, targets []*domain.EnrichmentTarget) ([]service.Coverage, error)
}

// CatalogHandler serves read-only views of targets and coverage.
type CatalogHandler struct {
	coverage CoverageReporter
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(coverage CoverageReporter) *CatalogHandler {
	return &CatalogHandler{coverage: coverage}
}

type targetInfo struct {
	Name     string   `json:"name"`
	Table    string   `json:"table"`
	Includes []string `json:"includes"`
	Endpoint string   `json:"endpoint,omitempty"`
}

// ListTargets returns the enrichment targets and catalog collections.
func (h *CatalogHandler) ListTargets(c *gin.Context) {
	var targets, collections []targetInfo
	for _, t := range mapping.Targets() {
		targets = append(targets, targetInfo{Name: t.Name, Table: t.Table, Includes: t.Includes})
	}
	for _, col := range mapping.Collections() {
		collections = append(collections, targetInfo{Name: col.Name, Table: col.Table, Includes: col.Includes, Endpoint: col.Endpoint})
	}
	c.JSON(http.StatusOK, gin.H{"targets": targets, "collections": collections})
}

// Coverage reports how many eligible parents have rows per target.
// ?targets=events,lineups narrows the report.
func (h *CatalogHandler) Coverage(c *gin.Context) {
	names := mapping.TargetNames()
	if raw := c.Query("targets"); raw != "" {
		names = strings.Split(raw, ",")
	}
	targets, err := mapping.Lookup(names)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.coverage.Report(c.Request.Context(), targets)
	if err != nil {
		logger.CtxError(c.Request.Context(), "Coverage report failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "coverage report failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"coverage": report})
}
