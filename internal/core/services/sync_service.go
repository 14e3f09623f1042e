package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"spsc-fieldsync/internal/adapters/persistence/models"
	"spsc-fieldsync/internal/adapters/persistence/repositories"
	"spsc-fieldsync/internal/config"
	"spsc-fieldsync/internal/core/domain"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// SyncService orchestrates the dequeue → dispatch → classify → reconcile
// cycle. A pass claims a batch of eligible queue items, groups them by
// loan and dispatches the groups under a bounded fan-out; items for the
// same loan run sequentially so the reconciler never races two updates
// to one snapshot. Delivery is at-least-once — exactly-once effect is
// the backend's side of the contract, keyed by clientRef.
type SyncService struct {
	queueRepo  *repositories.QueueRepository
	eventRepo  *repositories.EventRepository
	reconciler *ReconcileService
	api        CollectionsAPI
	log        *logrus.Logger

	maxConcurrent int64
	maxRetries    int
	batchLimit    int
	staleAfter    time.Duration

	running atomic.Bool
}

// NewSyncService creates a new sync manager
func NewSyncService(
	queueRepo *repositories.QueueRepository,
	eventRepo *repositories.EventRepository,
	reconciler *ReconcileService,
	api CollectionsAPI,
	log *logrus.Logger,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		queueRepo:     queueRepo,
		eventRepo:     eventRepo,
		reconciler:    reconciler,
		api:           api,
		log:           log,
		maxConcurrent: int64(cfg.MaxConcurrent),
		maxRetries:    cfg.MaxRetries,
		batchLimit:    cfg.BatchLimit,
		staleAfter:    cfg.StaleAfter,
	}
}

// TriggerSync runs one sync pass and blocks until every dispatched item
// settles. A trigger while a pass is already running is a no-op and
// returns false — the single-flight guard against overlapping passes.
func (s *SyncService) TriggerSync(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Debug("sync trigger ignored: pass already running")
		return false
	}
	defer s.running.Store(false)

	s.runPass(ctx)
	return true
}

// IsRunning reports whether a pass is currently in progress
func (s *SyncService) IsRunning() bool {
	return s.running.Load()
}

// runPass executes one full pass over the eligible queue
func (s *SyncService) runPass(ctx context.Context) {
	if released, err := s.queueRepo.ReleaseStale(time.Now().Add(-s.staleAfter)); err != nil {
		s.log.WithError(err).Warn("failed to release stale in-flight items")
	} else if released > 0 {
		s.log.WithField("count", released).Warn("released stale in-flight items")
	}

	// Eligibility allows attempts up to maxRetries inclusive; the failure
	// after that is the one that turns the item FAILED.
	items, err := s.queueRepo.ClaimBatch(s.batchLimit, s.maxRetries+1)
	if err != nil {
		s.log.WithError(err).Error("failed to claim sync batch")
		return
	}
	if len(items) == 0 {
		s.log.Debug("sync pass: queue empty")
		return
	}

	// Group by loan, preserving oldest-first order within and across groups
	groups := make(map[string][]models.SyncQueueItem)
	var order []string
	for _, item := range items {
		if _, seen := groups[item.LoanID]; !seen {
			order = append(order, item.LoanID)
		}
		groups[item.LoanID] = append(groups[item.LoanID], item)
	}

	sem := semaphore.NewWeighted(s.maxConcurrent)
	var wg sync.WaitGroup
	var completed, failed, requeued int64

	for _, loanID := range order {
		group := groups[loanID]

		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled between groups: release undispatched claims and stop
			for _, item := range group {
				if rerr := s.queueRepo.Release(item.ID); rerr != nil {
					s.log.WithError(rerr).WithField("queue_id", item.ID).Warn("failed to release claim")
				}
			}
			continue
		}

		wg.Add(1)
		go func(group []models.SyncQueueItem) {
			defer wg.Done()
			defer sem.Release(1)

			for i := range group {
				if ctx.Err() != nil {
					if rerr := s.queueRepo.Release(group[i].ID); rerr != nil {
						s.log.WithError(rerr).WithField("queue_id", group[i].ID).Warn("failed to release claim")
					}
					continue
				}
				switch s.dispatch(ctx, &group[i]) {
				case dispatchCompleted:
					atomic.AddInt64(&completed, 1)
				case dispatchRequeued:
					atomic.AddInt64(&requeued, 1)
				case dispatchFailed:
					atomic.AddInt64(&failed, 1)
				}
			}
		}(group)
	}

	wg.Wait()

	s.log.WithFields(logrus.Fields{
		"claimed":   len(items),
		"completed": completed,
		"requeued":  requeued,
		"failed":    failed,
	}).Info("sync pass finished")
}

type dispatchOutcome int

const (
	dispatchCompleted dispatchOutcome = iota
	dispatchRequeued
	dispatchFailed
)

// dispatch submits one queue item, reconciles on success and classifies
// on failure. One item's failure never blocks or rolls back others.
func (s *SyncService) dispatch(ctx context.Context, item *models.SyncQueueItem) dispatchOutcome {
	fields := logrus.Fields{
		"queue_id":   item.ID,
		"client_ref": item.ClientRef,
		"loan_id":    item.LoanID,
		"kind":       item.Kind,
		"attempts":   item.Attempts,
	}

	res, err := s.submit(ctx, item)
	if err != nil {
		return s.settleFailure(item, err, fields)
	}

	if err := s.reconciler.Apply(ctx, item, res); err != nil {
		// Local storage fault applying an accepted response. The retry spends
		// attempt budget like any other failure: the duplicate submission on
		// the next pass is absorbed by backend dedup + idempotent
		// reconciliation, and exhaustion surfaces the item as FAILED instead
		// of leaving an unclaimable pending row.
		return s.settleFailure(item, fmt.Errorf("reconcile: %w", err), fields)
	}

	if err := s.queueRepo.MarkCompleted(item.ID); err != nil {
		return s.settleFailure(item, fmt.Errorf("mark completed: %w", err), fields)
	}

	s.log.WithFields(fields).WithField("backend_ref", res.BackendRef).Info("queue item synced")
	return dispatchCompleted
}

// settleFailure classifies a dispatch error and updates the item
func (s *SyncService) settleFailure(item *models.SyncQueueItem, err error, fields logrus.Fields) dispatchOutcome {
	retryable := domain.IsRetryable(err)
	requeue := retryable && item.Attempts <= s.maxRetries

	if merr := s.queueRepo.MarkFailed(item.ID, err.Error(), requeue); merr != nil {
		s.log.WithError(merr).WithFields(fields).Error("failed to record dispatch failure")
	}

	if requeue {
		s.log.WithError(err).WithFields(fields).Warn("sync attempt failed, will retry on next pass")
		return dispatchRequeued
	}

	if merr := s.eventRepo.MarkEventFailed(domain.EventKind(item.Kind), item.ClientRef); merr != nil {
		s.log.WithError(merr).WithFields(fields).Error("failed to mark event failed")
	}
	s.log.WithError(err).WithFields(fields).Error("queue item permanently failed")
	return dispatchFailed
}

// submit decodes the payload snapshot and calls the kind-specific backend
// endpoint with the item's clientRef
func (s *SyncService) submit(ctx context.Context, item *models.SyncQueueItem) (*SubmitResult, error) {
	switch domain.EventKind(item.Kind) {
	case domain.KindPayment:
		var data domain.PaymentData
		if err := json.Unmarshal([]byte(item.Payload), &data); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPayloadCorrupt, err)
		}
		return s.api.SubmitPayment(ctx, item.LoanID, &data, item.ClientRef)
	case domain.KindPTP:
		var data domain.PTPData
		if err := json.Unmarshal([]byte(item.Payload), &data); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPayloadCorrupt, err)
		}
		return s.api.SubmitPTP(ctx, item.LoanID, &data, item.ClientRef)
	case domain.KindNote:
		var data domain.NoteData
		if err := json.Unmarshal([]byte(item.Payload), &data); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPayloadCorrupt, err)
		}
		return s.api.SubmitNote(ctx, item.LoanID, &data, item.ClientRef)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEventKind, item.Kind)
	}
}
