package handlers

import (
	"context"
	"errors"
	"strconv"

	"spsc-fieldsync/internal/core/domain"
	"spsc-fieldsync/internal/core/services"
	"spsc-fieldsync/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SyncHandler exposes the sync engine to the UI: queue statistics,
// triggers and manual retry
type SyncHandler struct {
	statusService *services.StatusService
	syncService   *services.SyncService
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(statusService *services.StatusService, syncService *services.SyncService) *SyncHandler {
	return &SyncHandler{
		statusService: statusService,
		syncService:   syncService,
	}
}

// ============================================================
// GET /api/v1/sync/status
// ============================================================
func (h *SyncHandler) GetStatus(c *fiber.Ctx) error {
	stats, err := h.statusService.GetStats()
	if err != nil {
		return response.InternalServerError(c, "Failed to get sync status")
	}
	return response.Success(c, "Sync status retrieved", fiber.Map{
		"stats":   stats,
		"running": h.syncService.IsRunning(),
	})
}

// ============================================================
// GET /api/v1/sync/queue?limit=50
// ============================================================
func (h *SyncHandler) ListQueue(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)

	items, err := h.statusService.ListQueue(limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list sync queue")
	}
	return response.Success(c, "Sync queue retrieved", items)
}

// ============================================================
// POST /api/v1/sync/trigger — fired on connectivity change or by the
// sync-now button; the pass runs in the background
// ============================================================
func (h *SyncHandler) Trigger(c *fiber.Ctx) error {
	go h.syncService.TriggerSync(context.Background())
	return response.Accepted(c, "Sync pass triggered")
}

// ============================================================
// POST /api/v1/sync/queue/:id/retry
// ============================================================
func (h *SyncHandler) RetryFailed(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid queue item ID")
	}

	item, err := h.statusService.RetryFailed(uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrQueueItemNotFound) {
			return response.NotFound(c, "Queue item not found")
		}
		if errors.Is(err, domain.ErrQueueItemNotFailed) {
			return response.Conflict(c, "Queue item is not in failed status")
		}
		return response.InternalServerError(c, "Failed to retry queue item")
	}
	return response.Success(c, "Queue item queued for retry", item)
}

// ============================================================
// DELETE /api/v1/sync/completed
// ============================================================
func (h *SyncHandler) ClearCompleted(c *fiber.Ctx) error {
	purged, err := h.statusService.ClearCompleted()
	if err != nil {
		return response.InternalServerError(c, "Failed to clear completed items")
	}
	return response.Success(c, "Completed items cleared", fiber.Map{
		"purged": purged,
	})
}
