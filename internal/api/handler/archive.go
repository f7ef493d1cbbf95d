package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/timmy/matchsync/internal/domain"
	"github.com/timmy/matchsync/internal/logger"
	"github.com/timmy/matchsync/internal/storage"
)

// PayloadReader loads archived bulk responses.
type PayloadReader interface {
	Load(ctx context.Context, runID, chunk string) (map[int64]domain.Payload, error)
}

// ArchiveHandler serves raw payloads archived during a run.
type ArchiveHandler struct {
	payloads PayloadReader
}

// NewArchiveHandler creates a new archive handler. A nil reader means the
// archive is disabled.
func NewArchiveHandler(payloads PayloadReader) *ArchiveHandler {
	return &ArchiveHandler{payloads: payloads}
}

// GetChunk returns one archived chunk, e.g.
// GET /api/v1/runs/:id/payloads/batch-00001-chunk-001
func (h *ArchiveHandler) GetChunk(c *gin.Context) {
	if h.payloads == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payload archive is disabled"})
		return
	}

	runID := c.Param("id")
	chunk := c.Param("chunk")
	if _, err := uuid.Parse(runID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}
	if chunk == "" || strings.Contains(chunk, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chunk name"})
		return
	}

	payloads, err := h.payloads.Load(c.Request.Context(), runID, chunk)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chunk not found"})
		return
	}
	if err != nil {
		logger.CtxError(c.Request.Context(), "Failed to load archived chunk %s/%s: %v", runID, chunk, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chunk"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":   runID,
		"chunk":    chunk,
		"count":    len(payloads),
		"payloads": payloads,
	})
}
