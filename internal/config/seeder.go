package config

import (
	"log"
	"time"

	"spsc-fieldsync/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seeder handles local store seeding
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Println("🌱 Running local store seeders...")

	if err := s.seedAssignedLoans(); err != nil {
		log.Printf("⚠️ Loan seeder skipped: %v", err)
	}

	log.Println("✅ Local store seeding completed")
	return nil
}

// seedAssignedLoans seeds a small beat of assigned loans with schedules.
// This is for development/testing only; in production the loan cache is
// hydrated from the backend's assignment download.
func (s *Seeder) seedAssignedLoans() error {
	var count int64
	s.db.Model(&models.LoanSnapshot{}).Count(&count)
	if count > 0 {
		return nil // Already seeded
	}

	today := time.Now().Truncate(24 * time.Hour)

	loans := []models.LoanSnapshot{
		{
			LoanID:            "LN001",
			BackendID:         "BL-98211",
			BorrowerName:      "Somchai J.",
			OutstandingAmount: decimal.NewFromInt(5000),
			DPD:               12,
			Bucket:            "X",
			NextDueDate:       datePtr(today.AddDate(0, 0, 5)),
		},
		{
			LoanID:            "LN002",
			BackendID:         "BL-98243",
			BorrowerName:      "Pranee K.",
			OutstandingAmount: decimal.NewFromInt(12500),
			DPD:               45,
			Bucket:            "M1",
			NextDueDate:       datePtr(today.AddDate(0, 0, 2)),
		},
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, loan := range loans {
			if err := tx.Create(&loan).Error; err != nil {
				return err
			}
			for i := 1; i <= 5; i++ {
				installment := models.ScheduleInstallment{
					LoanID:        loan.LoanID,
					InstallmentNo: i,
					DueDate:       today.AddDate(0, i-3, 0),
					Amount:        decimal.NewFromInt(2500),
					PaidAmount:    decimal.Zero,
					Status:        models.InstallmentPending,
				}
				if err := tx.Create(&installment).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func datePtr(t time.Time) *time.Time {
	return &t
}
