package repositories

import (
	"fmt"

	"spsc-fieldsync/internal/adapters/persistence/models"
	"spsc-fieldsync/internal/core/domain"

	"gorm.io/gorm"
)

// EventRepository handles the append-only event ledger (payments, ptps,
// notes) together with its sync obligations. Every record operation runs
// in a single transaction: the event row, its queue item and the loan's
// dirty flag either all commit or none do — a user action and its sync
// obligation can never diverge.
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// RecordPayment inserts a payment event, enqueues it and marks the loan dirty
func (r *EventRepository) RecordPayment(payment *models.Payment, payload string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return r.enqueue(tx, payment.ClientRef, payment.LoanID, domain.KindPayment, payload)
	})
}

// RecordPTP inserts a promise-to-pay event, enqueues it and marks the loan dirty
func (r *EventRepository) RecordPTP(ptp *models.PromiseToPay, payload string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ptp).Error; err != nil {
			return fmt.Errorf("insert ptp: %w", err)
		}
		return r.enqueue(tx, ptp.ClientRef, ptp.LoanID, domain.KindPTP, payload)
	})
}

// RecordNote inserts a note event, enqueues it and marks the loan dirty
func (r *EventRepository) RecordNote(note *models.Note, payload string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(note).Error; err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
		return r.enqueue(tx, note.ClientRef, note.LoanID, domain.KindNote, payload)
	})
}

// enqueue creates the matching queue item and flags the owning loan dirty,
// inside the caller's transaction
func (r *EventRepository) enqueue(tx *gorm.DB, clientRef, loanID string, kind domain.EventKind, payload string) error {
	item := &models.SyncQueueItem{
		ClientRef: clientRef,
		LoanID:    loanID,
		Kind:      string(kind),
		Payload:   payload,
		Status:    models.QueuePending,
	}
	if err := tx.Create(item).Error; err != nil {
		return fmt.Errorf("enqueue sync item: %w", err)
	}

	if err := tx.Model(&models.LoanSnapshot{}).
		Where("loan_id = ?", loanID).
		Update("is_dirty", true).Error; err != nil {
		return fmt.Errorf("mark loan dirty: %w", err)
	}
	return nil
}

// GetPaymentByClientRef returns a payment event, or nil when absent
func (r *EventRepository) GetPaymentByClientRef(clientRef string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("client_ref = ?", clientRef).First(&payment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &payment, err
}

// GetPTPByClientRef returns a promise-to-pay event, or nil when absent
func (r *EventRepository) GetPTPByClientRef(clientRef string) (*models.PromiseToPay, error) {
	var ptp models.PromiseToPay
	err := r.db.Where("client_ref = ?", clientRef).First(&ptp).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &ptp, err
}

// GetNoteByClientRef returns a note event, or nil when absent
func (r *EventRepository) GetNoteByClientRef(clientRef string) (*models.Note, error) {
	var note models.Note
	err := r.db.Where("client_ref = ?", clientRef).First(&note).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &note, err
}

// MarkEventFailed flips the event row behind a permanently failed queue item
func (r *EventRepository) MarkEventFailed(kind domain.EventKind, clientRef string) error {
	model, err := eventModel(kind)
	if err != nil {
		return err
	}
	return r.db.Model(model).
		Where("client_ref = ?", clientRef).
		Update("status", models.EventFailed).Error
}

// MarkEventQueued puts the event row behind a manually retried queue item
// back to QUEUED
func (r *EventRepository) MarkEventQueued(kind domain.EventKind, clientRef string) error {
	model, err := eventModel(kind)
	if err != nil {
		return err
	}
	return r.db.Model(model).
		Where("client_ref = ?", clientRef).
		Update("status", models.EventQueued).Error
}

// MarkEventSyncedTx acknowledges an event inside the caller's transaction:
// status SYNCED plus the backend reference. Used by the reconciler so the
// acknowledgment commits atomically with the snapshot/schedule merge.
func MarkEventSyncedTx(tx *gorm.DB, kind domain.EventKind, clientRef, backendRef string) error {
	model, err := eventModel(kind)
	if err != nil {
		return err
	}
	return tx.Model(model).
		Where("client_ref = ?", clientRef).
		Updates(map[string]interface{}{
			"status":      models.EventSynced,
			"backend_ref": backendRef,
		}).Error
}

// CountUnsyncedTx counts queued/failed events still outstanding for a loan,
// inside the caller's transaction. The reconciler clears the loan's dirty
// flag only when this reaches zero.
func CountUnsyncedTx(tx *gorm.DB, loanID string) (int64, error) {
	var total int64
	for _, model := range []interface{}{&models.Payment{}, &models.PromiseToPay{}, &models.Note{}} {
		var count int64
		if err := tx.Model(model).
			Where("loan_id = ? AND status <> ?", loanID, models.EventSynced).
			Count(&count).Error; err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}

// eventModel maps an event kind to its ledger table
func eventModel(kind domain.EventKind) (interface{}, error) {
	switch kind {
	case domain.KindPayment:
		return &models.Payment{}, nil
	case domain.KindPTP:
		return &models.PromiseToPay{}, nil
	case domain.KindNote:
		return &models.Note{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEventKind, kind)
	}
}
