package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"spsc-fieldsync/internal/adapters/persistence/models"
	"spsc-fieldsync/internal/adapters/persistence/repositories"
	"spsc-fieldsync/internal/core/domain"

	"github.com/shopspring/decimal"
)

// RecordService handles local recording of collection events. Each record
// call validates the input, writes the event together with its sync
// obligation in one transaction and returns immediately — delivery to the
// backend happens asynchronously through the sync manager.
type RecordService struct {
	eventRepo *repositories.EventRepository
	loanRepo  *repositories.LoanRepository
}

// NewRecordService creates a new record service
func NewRecordService(eventRepo *repositories.EventRepository, loanRepo *repositories.LoanRepository) *RecordService {
	return &RecordService{
		eventRepo: eventRepo,
		loanRepo:  loanRepo,
	}
}

// PaymentInput represents a payment recorded in the field
type PaymentInput struct {
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
	Mode       string          `json:"mode"`
	Notes      string          `json:"notes"`
	Attachment string          `json:"attachment"`
}

// PTPInput represents a promise-to-pay commitment
type PTPInput struct {
	PromiseDate time.Time       `json:"promise_date"`
	Amount      decimal.Decimal `json:"amount"`
	Note        string          `json:"note"`
}

// NoteInput represents a free-text collection note
type NoteInput struct {
	Text string `json:"text"`
}

// RecordPayment validates and durably records a payment event
func (s *RecordService) RecordPayment(loanID, agentID string, input *PaymentInput) (*models.Payment, error) {
	if err := s.checkLoan(loanID); err != nil {
		return nil, err
	}
	if agentID == "" {
		return nil, domain.ErrAgentRequired
	}
	if !input.Amount.IsPositive() {
		return nil, domain.ErrAmountInvalid
	}
	mode := strings.ToUpper(strings.TrimSpace(input.Mode))
	if !domain.ValidPaymentModes[mode] {
		return nil, domain.ErrInvalidPaymentMode
	}

	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}

	data := domain.PaymentData{
		Amount:     input.Amount,
		Date:       date,
		Mode:       mode,
		AgentID:    agentID,
		Notes:      input.Notes,
		Attachment: input.Attachment,
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode payment payload: %w", err)
	}

	payment := &models.Payment{
		ClientRef:   domain.NewClientRef(),
		LoanID:      loanID,
		Amount:      input.Amount,
		PaymentDate: date,
		Mode:        mode,
		AgentID:     agentID,
		Notes:       input.Notes,
		Attachment:  input.Attachment,
		Status:      models.EventQueued,
	}

	if err := s.eventRepo.RecordPayment(payment, string(payload)); err != nil {
		return nil, err
	}
	return payment, nil
}

// RecordPTP validates and durably records a promise-to-pay event
func (s *RecordService) RecordPTP(loanID, agentID string, input *PTPInput) (*models.PromiseToPay, error) {
	if err := s.checkLoan(loanID); err != nil {
		return nil, err
	}
	if agentID == "" {
		return nil, domain.ErrAgentRequired
	}
	if !input.Amount.IsPositive() {
		return nil, domain.ErrAmountInvalid
	}
	today := time.Now().Truncate(24 * time.Hour)
	if input.PromiseDate.Before(today) {
		return nil, domain.ErrPromiseDatePast
	}

	data := domain.PTPData{
		PromiseDate: input.PromiseDate,
		Amount:      input.Amount,
		AgentID:     agentID,
		Note:        input.Note,
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode ptp payload: %w", err)
	}

	ptp := &models.PromiseToPay{
		ClientRef:   domain.NewClientRef(),
		LoanID:      loanID,
		PromiseDate: input.PromiseDate,
		Amount:      input.Amount,
		AgentID:     agentID,
		Note:        input.Note,
		Status:      models.EventQueued,
	}

	if err := s.eventRepo.RecordPTP(ptp, string(payload)); err != nil {
		return nil, err
	}
	return ptp, nil
}

// RecordNote validates and durably records a note event
func (s *RecordService) RecordNote(loanID, agentID string, input *NoteInput) (*models.Note, error) {
	if err := s.checkLoan(loanID); err != nil {
		return nil, err
	}
	if agentID == "" {
		return nil, domain.ErrAgentRequired
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, domain.ErrNoteEmpty
	}

	data := domain.NoteData{
		Text:    text,
		AgentID: agentID,
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode note payload: %w", err)
	}

	note := &models.Note{
		ClientRef: domain.NewClientRef(),
		LoanID:    loanID,
		Text:      text,
		AgentID:   agentID,
		Status:    models.EventQueued,
	}

	if err := s.eventRepo.RecordNote(note, string(payload)); err != nil {
		return nil, err
	}
	return note, nil
}

// checkLoan ensures the target loan is assigned to this device
func (s *RecordService) checkLoan(loanID string) error {
	loan, err := s.loanRepo.GetByLoanID(loanID)
	if err != nil {
		return err
	}
	if loan == nil {
		return domain.ErrLoanNotFound
	}
	return nil
}
