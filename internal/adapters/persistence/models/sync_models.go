package models

import "time"

// ============================================================
// Sync queue: durable work list for offline-recorded events
// ============================================================

// Queue item status values. COMPLETED and FAILED are terminal; a FAILED
// item re-enters PENDING only through an explicit manual retry.
const (
	QueuePending   = "PENDING"
	QueueCompleted = "COMPLETED"
	QueueFailed    = "FAILED"
)

// SyncQueueItem is created in the same transaction as its event row
// (1:1 by client_ref) and carries a snapshot of the payload so dispatch
// never depends on re-reading the ledger. The in_flight marker prevents
// overlapping passes from dispatching the same item twice.
type SyncQueueItem struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ClientRef     string     `gorm:"size:36;uniqueIndex;not null" json:"client_ref"`
	LoanID        string     `gorm:"size:30;not null;index" json:"loan_id"`
	Kind          string     `gorm:"size:10;not null" json:"kind"`
	Payload       string     `gorm:"type:text;not null" json:"-"`
	Attempts      int        `gorm:"default:0" json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at"`
	InFlight      bool       `gorm:"default:false;index" json:"in_flight"`
	Status        string     `gorm:"size:10;default:'PENDING';index" json:"status"`
	ErrorMessage  *string    `gorm:"size:500" json:"error_message"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SyncQueueItem) TableName() string {
	return "sync_queue"
}
