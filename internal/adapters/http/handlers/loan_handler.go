package handlers

import (
	"spsc-fieldsync/internal/adapters/persistence/repositories"
	"spsc-fieldsync/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// LoanHandler serves the cached loan projection to the UI. Read-only:
// the cache is hydrated by assignment download and mutated only by the
// reconciler.
type LoanHandler struct {
	loanRepo *repositories.LoanRepository
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanRepo *repositories.LoanRepository) *LoanHandler {
	return &LoanHandler{loanRepo: loanRepo}
}

// ============================================================
// GET /api/v1/loans — the agent's beat, worst bucket first
// ============================================================
func (h *LoanHandler) ListLoans(c *fiber.Ctx) error {
	loans, err := h.loanRepo.ListSnapshots()
	if err != nil {
		return response.InternalServerError(c, "Failed to list loans")
	}
	return response.Success(c, "Loans retrieved", loans)
}

// ============================================================
// GET /api/v1/loans/:loanId — snapshot + installment schedule
// ============================================================
func (h *LoanHandler) GetLoan(c *fiber.Ctx) error {
	loanID := c.Params("loanId")

	loan, err := h.loanRepo.GetByLoanID(loanID)
	if err != nil {
		return response.InternalServerError(c, "Failed to get loan")
	}
	if loan == nil {
		return response.NotFound(c, "Loan not found")
	}

	schedule, err := h.loanRepo.GetSchedule(loanID)
	if err != nil {
		return response.InternalServerError(c, "Failed to get schedule")
	}

	return response.Success(c, "Loan retrieved", fiber.Map{
		"loan":     loan,
		"schedule": schedule,
	})
}
