package services

import (
	"context"
	"time"

	"spsc-fieldsync/internal/core/domain"

	"github.com/shopspring/decimal"
)

// AllocationEntry is one installment allocation in a payment response
type AllocationEntry struct {
	InstallmentNo int             `json:"installmentNo"`
	Amount        decimal.Decimal `json:"amount"`
}

// LoanState is the authoritative loan state returned by the backend
type LoanState struct {
	BackendID         string          `json:"id"`
	OutstandingAmount decimal.Decimal `json:"outstandingAmount"`
	DPD               int             `json:"dpd"`
	Bucket            string          `json:"bucket"`
	NextDueDate       *time.Time      `json:"nextDueDate"`
}

// SubmitResult is the canonical server response for a submitted event.
// Loan and Allocation are only present for payments.
type SubmitResult struct {
	BackendRef string
	Loan       *LoanState
	Allocation []AllocationEntry
}

// CollectionsAPI is the outbound port to the collections backend. Every
// submission attaches the event's clientRef; the backend deduplicates by
// it, so all three calls are safe to repeat with an unchanged clientRef.
type CollectionsAPI interface {
	SubmitPayment(ctx context.Context, loanID string, data *domain.PaymentData, clientRef string) (*SubmitResult, error)
	SubmitPTP(ctx context.Context, loanID string, data *domain.PTPData, clientRef string) (*SubmitResult, error)
	SubmitNote(ctx context.Context, loanID string, data *domain.NoteData, clientRef string) (*SubmitResult, error)
}
