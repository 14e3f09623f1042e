package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventKind identifies the type of a locally recorded collection event
type EventKind string

const (
	KindPayment EventKind = "PAYMENT"
	KindPTP     EventKind = "PTP"
	KindNote    EventKind = "NOTE"
)

// NewClientRef generates the idempotency key for a collection event.
// It is created once, before any network attempt, and reused unchanged
// across every retry so the backend can collapse at-least-once delivery
// into exactly-once effect.
func NewClientRef() string {
	return uuid.NewString()
}

// PaymentData is the payload of a PAYMENT event
type PaymentData struct {
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
	Mode       string          `json:"mode"`
	AgentID    string          `json:"agentId"`
	Notes      string          `json:"notes,omitempty"`
	Attachment string          `json:"attachment,omitempty"`
}

// PTPData is the payload of a PTP (promise-to-pay) event
type PTPData struct {
	PromiseDate time.Time       `json:"promiseDate"`
	Amount      decimal.Decimal `json:"amount"`
	AgentID     string          `json:"agentId"`
	Note        string          `json:"note,omitempty"`
}

// NoteData is the payload of a NOTE event
type NoteData struct {
	Text    string `json:"text"`
	AgentID string `json:"agentId"`
}

// ValidPaymentModes are the payment channels a field agent can record
var ValidPaymentModes = map[string]bool{
	"CASH":          true,
	"UPI":           true,
	"BANK_TRANSFER": true,
	"CHEQUE":        true,
}
