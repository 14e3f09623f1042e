package services

import (
	"context"
	"time"

	"spsc-fieldsync/internal/adapters/persistence/models"
	"spsc-fieldsync/internal/adapters/persistence/repositories"
	"spsc-fieldsync/internal/core/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReconcileService merges authoritative server responses back into the
// local cache. One Apply call is one local transaction: snapshot
// overwrite, allocation application and event acknowledgment commit
// together. Application is idempotent — replaying a response already
// applied (duplicate submission after a lost acknowledgment) changes
// nothing.
type ReconcileService struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(db *gorm.DB, log *logrus.Logger) *ReconcileService {
	return &ReconcileService{db: db, log: log}
}

// Apply merges one server response for a settled queue item
func (s *ReconcileService) Apply(ctx context.Context, item *models.SyncQueueItem, res *SubmitResult) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if res.Loan != nil {
			if err := s.overwriteSnapshot(tx, item.LoanID, res.Loan); err != nil {
				return err
			}
		}

		for _, alloc := range res.Allocation {
			if err := s.applyAllocation(tx, item.LoanID, item.ClientRef, alloc); err != nil {
				return err
			}
		}

		if err := repositories.MarkEventSyncedTx(tx, domain.EventKind(item.Kind), item.ClientRef, res.BackendRef); err != nil {
			return err
		}

		return s.clearDirtyIfClean(tx, item.LoanID)
	})
}

// overwriteSnapshot replaces the cached loan fields with server truth.
// Local optimistic values are discardable; no client-side recomputation.
func (s *ReconcileService) overwriteSnapshot(tx *gorm.DB, loanID string, state *LoanState) error {
	updates := map[string]interface{}{
		"outstanding_amount": state.OutstandingAmount,
		"dpd":                state.DPD,
		"bucket":             state.Bucket,
		"next_due_date":      state.NextDueDate,
		"last_synced_at":     time.Now(),
	}
	if state.BackendID != "" {
		updates["backend_id"] = state.BackendID
	}

	res := tx.Model(&models.LoanSnapshot{}).
		Where("loan_id = ?", loanID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Server referenced a loan this device no longer caches. The local
		// cache is a refreshable projection, so log and move on.
		s.log.WithFields(logrus.Fields{
			"loan_id": loanID,
		}).Warn("reconciliation conflict: server response for unknown local loan")
	}
	return nil
}

// applyAllocation adds one allocation to its installment, keyed on
// (loanId, installmentNo, clientRef) so the same allocation is never
// applied twice
func (s *ReconcileService) applyAllocation(tx *gorm.DB, loanID, clientRef string, alloc AllocationEntry) error {
	var existing models.PaymentAllocation
	err := tx.Where("loan_id = ? AND installment_no = ? AND client_ref = ?",
		loanID, alloc.InstallmentNo, clientRef).
		First(&existing).Error
	if err == nil {
		return nil // already applied, replay is a no-op
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	record := models.PaymentAllocation{
		LoanID:        loanID,
		InstallmentNo: alloc.InstallmentNo,
		ClientRef:     clientRef,
		Amount:        alloc.Amount,
	}
	if err := tx.Create(&record).Error; err != nil {
		return err
	}

	var installment models.ScheduleInstallment
	err = tx.Where("loan_id = ? AND installment_no = ?", loanID, alloc.InstallmentNo).
		First(&installment).Error
	if err == gorm.ErrRecordNotFound {
		s.log.WithFields(logrus.Fields{
			"loan_id":        loanID,
			"installment_no": alloc.InstallmentNo,
			"client_ref":     clientRef,
		}).Warn("reconciliation conflict: allocation for unknown installment")
		return nil
	}
	if err != nil {
		return err
	}

	paid := installment.PaidAmount.Add(alloc.Amount)
	status := models.InstallmentPartial
	if paid.GreaterThanOrEqual(installment.Amount) {
		status = models.InstallmentPaid
	}

	return tx.Model(&models.ScheduleInstallment{}).
		Where("id = ?", installment.ID).
		Updates(map[string]interface{}{
			"paid_amount": paid,
			"status":      status,
		}).Error
}

// clearDirtyIfClean clears the loan's dirty flag once no queued or failed
// event remains for it. The event just acknowledged in this transaction is
// already SYNCED, so it no longer counts.
func (s *ReconcileService) clearDirtyIfClean(tx *gorm.DB, loanID string) error {
	remaining, err := repositories.CountUnsyncedTx(tx, loanID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	return tx.Model(&models.LoanSnapshot{}).
		Where("loan_id = ?", loanID).
		Update("is_dirty", false).Error
}
