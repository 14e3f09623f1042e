package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Loan cache: snapshots + repayment schedule
// (local projection of backend truth, overwritten on reconcile)
// ============================================================

// Installment status values
const (
	InstallmentPending = "PENDING"
	InstallmentPartial = "PARTIAL"
	InstallmentPaid    = "PAID"
)

type LoanSnapshot struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	LoanID            string          `gorm:"size:30;uniqueIndex;not null" json:"loan_id"`
	BackendID         string          `gorm:"size:40" json:"backend_id"`
	BorrowerName      string          `gorm:"size:100" json:"borrower_name"`
	OutstandingAmount decimal.Decimal `gorm:"type:decimal(14,2);default:0" json:"outstanding_amount"`
	DPD               int             `gorm:"default:0" json:"dpd"`
	Bucket            string          `gorm:"size:10" json:"bucket"`
	NextDueDate       *time.Time      `gorm:"type:date" json:"next_due_date"`
	LastSyncedAt      *time.Time      `json:"last_synced_at"`
	IsDirty           bool            `gorm:"default:false;index" json:"is_dirty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LoanSnapshot) TableName() string {
	return "loans"
}

type ScheduleInstallment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	LoanID        string          `gorm:"size:30;not null;uniqueIndex:ux_loan_installment,priority:1" json:"loan_id"`
	InstallmentNo int             `gorm:"not null;uniqueIndex:ux_loan_installment,priority:2" json:"installment_no"`
	DueDate       time.Time       `gorm:"type:date;not null" json:"due_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	PaidAmount    decimal.Decimal `gorm:"type:decimal(14,2);default:0" json:"paid_amount"`
	Status        string          `gorm:"size:10;default:'PENDING';index" json:"status"`
}

func (ScheduleInstallment) TableName() string {
	return "schedule"
}

// ============================================================
// Event ledger: payments, ptps, notes
// (append-only; status/backend_ref are the only mutable fields)
// ============================================================

// Event status values shared by all three ledgers
const (
	EventQueued = "QUEUED"
	EventSynced = "SYNCED"
	EventFailed = "FAILED"
)

type Payment struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ClientRef   string          `gorm:"size:36;uniqueIndex;not null" json:"client_ref"`
	LoanID      string          `gorm:"size:30;not null;index" json:"loan_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	PaymentDate time.Time       `gorm:"type:date;not null" json:"payment_date"`
	Mode        string          `gorm:"size:20;not null" json:"mode"`
	AgentID     string          `gorm:"size:30;not null" json:"agent_id"`
	Notes       string          `gorm:"size:255" json:"notes"`
	Attachment  string          `gorm:"size:255" json:"attachment"`
	Status      string          `gorm:"size:10;default:'QUEUED';index" json:"status"`
	BackendRef  *string         `gorm:"size:40" json:"backend_ref"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

type PromiseToPay struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ClientRef   string          `gorm:"size:36;uniqueIndex;not null" json:"client_ref"`
	LoanID      string          `gorm:"size:30;not null;index" json:"loan_id"`
	PromiseDate time.Time       `gorm:"type:date;not null" json:"promise_date"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	AgentID     string          `gorm:"size:30;not null" json:"agent_id"`
	Note        string          `gorm:"size:255" json:"note"`
	Status      string          `gorm:"size:10;default:'QUEUED';index" json:"status"`
	BackendRef  *string         `gorm:"size:40" json:"backend_ref"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PromiseToPay) TableName() string {
	return "ptps"
}

type Note struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ClientRef  string    `gorm:"size:36;uniqueIndex;not null" json:"client_ref"`
	LoanID     string    `gorm:"size:30;not null;index" json:"loan_id"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	AgentID    string    `gorm:"size:30;not null" json:"agent_id"`
	Status     string    `gorm:"size:10;default:'QUEUED';index" json:"status"`
	BackendRef *string   `gorm:"size:40" json:"backend_ref"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Note) TableName() string {
	return "notes"
}

// PaymentAllocation records one server allocation applied to the local
// schedule. The unique index on (loan_id, installment_no, client_ref) is
// what makes reconciliation replays no-ops: a duplicate submission after
// a lost acknowledgment returns the same canonical response, and the
// second application finds the row already present.
type PaymentAllocation struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	LoanID        string          `gorm:"size:30;not null;uniqueIndex:ux_allocation,priority:1" json:"loan_id"`
	InstallmentNo int             `gorm:"not null;uniqueIndex:ux_allocation,priority:2" json:"installment_no"`
	ClientRef     string          `gorm:"size:36;not null;uniqueIndex:ux_allocation,priority:3" json:"client_ref"`
	Amount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	AppliedAt     time.Time       `gorm:"autoCreateTime" json:"applied_at"`
}

func (PaymentAllocation) TableName() string {
	return "payment_allocations"
}

// AutoMigrate creates/updates all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&LoanSnapshot{},
		&ScheduleInstallment{},
		&Payment{},
		&PromiseToPay{},
		&Note{},
		&PaymentAllocation{},
		&SyncQueueItem{},
	)
}
