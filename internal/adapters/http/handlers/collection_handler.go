package handlers

import (
	"errors"

	"spsc-fieldsync/internal/core/domain"
	"spsc-fieldsync/internal/core/services"
	"spsc-fieldsync/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CollectionHandler handles recording of field collection events. Each
// endpoint returns as soon as the event is durably committed locally;
// delivery to the backend is the sync engine's job.
type CollectionHandler struct {
	recordService *services.RecordService
}

// NewCollectionHandler creates a new collection handler
func NewCollectionHandler(recordService *services.RecordService) *CollectionHandler {
	return &CollectionHandler{
		recordService: recordService,
	}
}

// paymentBody is the UI-facing payment request
type paymentBody struct {
	AgentID string `json:"agent_id"`
	services.PaymentInput
}

// ptpBody is the UI-facing promise-to-pay request
type ptpBody struct {
	AgentID string `json:"agent_id"`
	services.PTPInput
}

// noteBody is the UI-facing note request
type noteBody struct {
	AgentID string `json:"agent_id"`
	services.NoteInput
}

// ============================================================
// POST /api/v1/collections/:loanId/payments
// ============================================================
func (h *CollectionHandler) RecordPayment(c *fiber.Ctx) error {
	loanID := c.Params("loanId")

	var body paymentBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	payment, err := h.recordService.RecordPayment(loanID, body.AgentID, &body.PaymentInput)
	if err != nil {
		return recordError(c, err, "Failed to record payment")
	}
	return response.Created(c, "Payment recorded", payment)
}

// ============================================================
// POST /api/v1/collections/:loanId/ptps
// ============================================================
func (h *CollectionHandler) RecordPTP(c *fiber.Ctx) error {
	loanID := c.Params("loanId")

	var body ptpBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	ptp, err := h.recordService.RecordPTP(loanID, body.AgentID, &body.PTPInput)
	if err != nil {
		return recordError(c, err, "Failed to record promise to pay")
	}
	return response.Created(c, "Promise to pay recorded", ptp)
}

// ============================================================
// POST /api/v1/collections/:loanId/notes
// ============================================================
func (h *CollectionHandler) RecordNote(c *fiber.Ctx) error {
	loanID := c.Params("loanId")

	var body noteBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	note, err := h.recordService.RecordNote(loanID, body.AgentID, &body.NoteInput)
	if err != nil {
		return recordError(c, err, "Failed to record note")
	}
	return response.Created(c, "Note recorded", note)
}

// recordError maps record-time failures onto HTTP statuses. Validation
// problems are the caller's fault; anything else is a storage fault that
// left no partial state behind.
func recordError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, domain.ErrLoanNotFound):
		return response.NotFound(c, "Loan not found")
	case errors.Is(err, domain.ErrAmountInvalid),
		errors.Is(err, domain.ErrInvalidPaymentMode),
		errors.Is(err, domain.ErrPromiseDatePast),
		errors.Is(err, domain.ErrNoteEmpty),
		errors.Is(err, domain.ErrAgentRequired):
		return response.BadRequest(c, err.Error())
	default:
		return response.InternalServerError(c, fallback)
	}
}
