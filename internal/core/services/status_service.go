package services

import (
	"spsc-fieldsync/internal/adapters/persistence/models"
	"spsc-fieldsync/internal/adapters/persistence/repositories"
	"spsc-fieldsync/internal/core/domain"
)

const (
	defaultQueueListLimit = 50
	maxQueueListLimit     = 200
)

// StatusService is the read-only queue statistics and manual-retry
// surface exposed to the UI
type StatusService struct {
	queueRepo *repositories.QueueRepository
	eventRepo *repositories.EventRepository
}

// NewStatusService creates a new status service
func NewStatusService(queueRepo *repositories.QueueRepository, eventRepo *repositories.EventRepository) *StatusService {
	return &StatusService{
		queueRepo: queueRepo,
		eventRepo: eventRepo,
	}
}

// SyncStats represents queue counts shown in the UI badge
type SyncStats struct {
	Pending   int64 `json:"pending"`
	Failed    int64 `json:"failed"`
	Completed int64 `json:"completed"`
	Total     int64 `json:"total"`
}

// GetStats returns queue counts by status
func (s *StatusService) GetStats() (*SyncStats, error) {
	counts, err := s.queueRepo.CountByStatus()
	if err != nil {
		return nil, err
	}
	stats := &SyncStats{
		Pending:   counts[models.QueuePending],
		Failed:    counts[models.QueueFailed],
		Completed: counts[models.QueueCompleted],
	}
	stats.Total = stats.Pending + stats.Failed + stats.Completed
	return stats, nil
}

// ListQueue returns queue items, failed first so problems surface at the
// top of the screen
func (s *StatusService) ListQueue(limit int) ([]models.SyncQueueItem, error) {
	if limit <= 0 {
		limit = defaultQueueListLimit
	}
	if limit > maxQueueListLimit {
		limit = maxQueueListLimit
	}
	return s.queueRepo.List(limit)
}

// RetryFailed resets a failed item to pending with a fresh attempt budget
// (explicit user override) and flips its event row back to QUEUED
func (s *StatusService) RetryFailed(id uint) (*models.SyncQueueItem, error) {
	item, err := s.queueRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrQueueItemNotFound
	}
	if item.Status != models.QueueFailed {
		return nil, domain.ErrQueueItemNotFailed
	}

	if err := s.queueRepo.ResetForRetry(id); err != nil {
		return nil, err
	}
	if err := s.eventRepo.MarkEventQueued(domain.EventKind(item.Kind), item.ClientRef); err != nil {
		return nil, err
	}

	return s.queueRepo.GetByID(id)
}

// ClearCompleted purges completed items (explicit administrative action)
func (s *StatusService) ClearCompleted() (int64, error) {
	return s.queueRepo.PurgeCompleted()
}
