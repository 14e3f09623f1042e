package services

import (
	"context"
	"testing"

	"spsc-fieldsync/internal/adapters/persistence/models"
	"spsc-fieldsync/internal/adapters/persistence/repositories"
	"spsc-fieldsync/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStatsCountsByStatus(t *testing.T) {
	db := setupTestDB(t)
	seedLoan(t, db, "LN001", 3)
	svc := NewStatusService(repositories.NewQueueRepository(db), repositories.NewEventRepository(db))

	for i := 0; i < 3; i++ {
		recordQueuedPayment(t, db, "LN001", 100)
	}
	items := []models.SyncQueueItem{}
	require.NoError(t, db.Order("id ASC").Find(&items).Error)
	require.Len(t, items, 3)
	require.NoError(t, db.Model(&items[0]).Update("status", models.QueueCompleted).Error)
	require.NoError(t, db.Model(&items[1]).Update("status", models.QueueFailed).Error)

	stats, err := svc.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(3), stats.Total)
}

func TestListQueueDefaultsAndCapsLimit(t *testing.T) {
	db := setupTestDB(t)
	seedLoan(t, db, "LN001", 3)
	svc := NewStatusService(repositories.NewQueueRepository(db), repositories.NewEventRepository(db))

	recordQueuedPayment(t, db, "LN001", 100)
	recordQueuedPayment(t, db, "LN001", 200)

	items, err := svc.ListQueue(0)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = svc.ListQueue(1)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	// Oversized limits are clamped rather than rejected
	items, err = svc.ListQueue(100000)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestRetryFailedResetsItemAndEvent(t *testing.T) {
	db := setupTestDB(t)
	seedLoan(t, db, "LN001", 3)
	eventRepo := repositories.NewEventRepository(db)
	svc := NewStatusService(repositories.NewQueueRepository(db), eventRepo)

	item := recordQueuedPayment(t, db, "LN001", 100)
	msg := "server returned 503"
	require.NoError(t, db.Model(&models.SyncQueueItem{}).Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"status":        models.QueueFailed,
			"attempts":      6,
			"error_message": msg,
		}).Error)
	require.NoError(t, eventRepo.MarkEventFailed(domain.KindPayment, item.ClientRef))

	got, err := svc.RetryFailed(item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, got.Status)
	assert.Equal(t, 0, got.Attempts)
	assert.Nil(t, got.ErrorMessage)

	payment, err := eventRepo.GetPaymentByClientRef(item.ClientRef)
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, models.EventQueued, payment.Status)
}

func TestRetryFailedRejectsWrongState(t *testing.T) {
	db := setupTestDB(t)
	seedLoan(t, db, "LN001", 3)
	svc := NewStatusService(repositories.NewQueueRepository(db), repositories.NewEventRepository(db))

	_, err := svc.RetryFailed(9999)
	assert.ErrorIs(t, err, domain.ErrQueueItemNotFound)

	item := recordQueuedPayment(t, db, "LN001", 100)
	_, err = svc.RetryFailed(item.ID)
	assert.ErrorIs(t, err, domain.ErrQueueItemNotFailed)
}

func TestClearCompletedPurgesOnlyCompleted(t *testing.T) {
	db := setupTestDB(t)
	seedLoan(t, db, "LN001", 3)
	svc := NewStatusService(repositories.NewQueueRepository(db), repositories.NewEventRepository(db))

	pending := recordQueuedPayment(t, db, "LN001", 100)
	done := recordQueuedPayment(t, db, "LN001", 200)
	require.NoError(t, db.Model(&models.SyncQueueItem{}).Where("id = ?", done.ID).
		Update("status", models.QueueCompleted).Error)

	purged, err := svc.ClearCompleted()
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	var remaining []models.SyncQueueItem
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, pending.ID, remaining[0].ID)
}

// RetryFailed after exhaustion feeds the item back through a normal pass
func TestManualRetryAfterExhaustionSyncs(t *testing.T) {
	failures := 0
	api := newFakeAPI(func(k domain.EventKind, loanID, ref string) (*SubmitResult, error) {
		failures++
		if failures <= 6 {
			return nil, &domain.ServerError{StatusCode: 503, Body: "maintenance"}
		}
		return &SubmitResult{
			BackendRef: "T8",
			Loan:       &LoanState{OutstandingAmount: decimal.NewFromInt(7000), Bucket: "X"},
		}, nil
	})
	env := newSyncEnv(t, api, 5)
	seedLoan(t, env.db, "LN001", 3)

	payment, err := env.record.RecordPayment("LN001", "AGT7", &PaymentInput{
		Amount: decimal.NewFromInt(500),
		Mode:   "CASH",
	})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.True(t, env.sync.TriggerSync(context.Background()))
	}

	var item models.SyncQueueItem
	require.NoError(t, env.db.Where("client_ref = ?", payment.ClientRef).First(&item).Error)
	require.Equal(t, models.QueueFailed, item.Status)

	_, err = env.status.RetryFailed(item.ID)
	require.NoError(t, err)

	require.True(t, env.sync.TriggerSync(context.Background()))

	require.NoError(t, env.db.Where("client_ref = ?", payment.ClientRef).First(&item).Error)
	assert.Equal(t, models.QueueCompleted, item.Status)

	var got models.Payment
	require.NoError(t, env.db.Where("client_ref = ?", payment.ClientRef).First(&got).Error)
	assert.Equal(t, models.EventSynced, got.Status)
}
