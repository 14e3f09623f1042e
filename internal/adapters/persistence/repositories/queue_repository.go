package repositories

import (
	"time"
	"unicode/utf8"

	"spsc-fieldsync/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// maxErrorMessageLen bounds the stored error metadata (column size)
const maxErrorMessageLen = 500

// QueueRepository handles sync queue database operations
type QueueRepository struct {
	db *gorm.DB
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(db *gorm.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// ============================================================
// Claiming & settling
// ============================================================

// ClaimBatch selects up to limit pending items with attempts < maxAttempts,
// oldest-created-first, and flips each one's in-flight marker inside the
// selecting transaction. An overlapping pass therefore cannot claim the
// same item. The attempt counter is incremented here, at dispatch time.
func (r *QueueRepository) ClaimBatch(limit, maxAttempts int) ([]models.SyncQueueItem, error) {
	var claimed []models.SyncQueueItem
	now := time.Now()

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("status = ? AND attempts < ? AND in_flight = ?", models.QueuePending, maxAttempts, false).
			Order("created_at ASC, id ASC").
			Limit(limit).
			Find(&claimed).Error; err != nil {
			return err
		}

		for i := range claimed {
			if err := tx.Model(&models.SyncQueueItem{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"in_flight":       true,
					"attempts":        claimed[i].Attempts + 1,
					"last_attempt_at": now,
				}).Error; err != nil {
				return err
			}
			claimed[i].InFlight = true
			claimed[i].Attempts++
			claimed[i].LastAttemptAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkCompleted settles an item as successfully delivered (terminal)
func (r *QueueRepository) MarkCompleted(id uint) error {
	return r.db.Model(&models.SyncQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.QueueCompleted,
			"in_flight":     false,
			"error_message": nil,
		}).Error
}

// MarkFailed records a failed dispatch. With requeue the item stays PENDING
// for the next pass; otherwise it goes FAILED (terminal) until a manual retry.
func (r *QueueRepository) MarkFailed(id uint, errMsg string, requeue bool) error {
	if len(errMsg) > maxErrorMessageLen {
		// Backend error bodies are free text; cut on a rune boundary so the
		// truncation never leaves a broken multi-byte sequence
		errMsg = errMsg[:maxErrorMessageLen]
		for len(errMsg) > 0 && !utf8.ValidString(errMsg) {
			errMsg = errMsg[:len(errMsg)-1]
		}
	}
	updates := map[string]interface{}{
		"in_flight":     false,
		"error_message": errMsg,
	}
	if !requeue {
		updates["status"] = models.QueueFailed
	}
	return r.db.Model(&models.SyncQueueItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Release clears the in-flight marker of a claimed but undispatched item
// (cooperative cancellation between items)
func (r *QueueRepository) Release(id uint) error {
	return r.db.Model(&models.SyncQueueItem{}).
		Where("id = ?", id).
		Update("in_flight", false).Error
}

// ReleaseStale recovers markers orphaned by a crash mid-pass. Items whose
// last attempt started before the cutoff go back to claimable; their
// attempt was already counted.
func (r *QueueRepository) ReleaseStale(before time.Time) (int64, error) {
	res := r.db.Model(&models.SyncQueueItem{}).
		Where("in_flight = ? AND last_attempt_at <= ?", true, before).
		Update("in_flight", false)
	return res.RowsAffected, res.Error
}

// ============================================================
// Status surface
// ============================================================

// GetByID returns a queue item, or nil when absent
func (r *QueueRepository) GetByID(id uint) (*models.SyncQueueItem, error) {
	var item models.SyncQueueItem
	err := r.db.First(&item, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &item, err
}

// CountByStatus returns queue item counts grouped by status
func (r *QueueRepository) CountByStatus() (map[string]int64, error) {
	type result struct {
		Status string
		Count  int64
	}
	var results []result

	err := r.db.Model(&models.SyncQueueItem{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Find(&results).Error

	statusMap := map[string]int64{
		models.QueuePending:   0,
		models.QueueCompleted: 0,
		models.QueueFailed:    0,
	}
	for _, res := range results {
		statusMap[res.Status] = res.Count
	}
	return statusMap, err
}

// List returns queue items ordered failed-first, then pending, then
// completed, newest-first within each bucket
func (r *QueueRepository) List(limit int) ([]models.SyncQueueItem, error) {
	var items []models.SyncQueueItem
	err := r.db.
		Order("CASE status WHEN 'FAILED' THEN 0 WHEN 'PENDING' THEN 1 ELSE 2 END ASC, created_at DESC, id DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// ResetForRetry puts a failed item back to PENDING with a fresh attempt
// budget (explicit user override)
func (r *QueueRepository) ResetForRetry(id uint) error {
	return r.db.Model(&models.SyncQueueItem{}).
		Where("id = ? AND status = ?", id, models.QueueFailed).
		Updates(map[string]interface{}{
			"status":        models.QueuePending,
			"attempts":      0,
			"in_flight":     false,
			"error_message": nil,
		}).Error
}

// PurgeCompleted deletes completed items (explicit administrative action,
// never automatic)
func (r *QueueRepository) PurgeCompleted() (int64, error) {
	res := r.db.Where("status = ?", models.QueueCompleted).
		Delete(&models.SyncQueueItem{})
	return res.RowsAffected, res.Error
}
