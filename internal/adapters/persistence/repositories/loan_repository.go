package repositories

import (
	"spsc-fieldsync/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// LoanRepository handles the cached loan projection (snapshots + schedules)
type LoanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// GetByLoanID returns a cached snapshot, or nil when the loan is not
// assigned to this device
func (r *LoanRepository) GetByLoanID(loanID string) (*models.LoanSnapshot, error) {
	var loan models.LoanSnapshot
	err := r.db.Where("loan_id = ?", loanID).First(&loan).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &loan, err
}

// ListSnapshots returns all cached snapshots, worst bucket first
func (r *LoanRepository) ListSnapshots() ([]models.LoanSnapshot, error) {
	var loans []models.LoanSnapshot
	err := r.db.Order("dpd DESC, loan_id ASC").Find(&loans).Error
	return loans, err
}

// GetSchedule returns the cached installment schedule for a loan
func (r *LoanRepository) GetSchedule(loanID string) ([]models.ScheduleInstallment, error) {
	var schedule []models.ScheduleInstallment
	err := r.db.
		Where("loan_id = ?", loanID).
		Order("installment_no ASC").
		Find(&schedule).Error
	return schedule, err
}
