package repositories

import (
	"path/filepath"
	"testing"
	"time"

	"spsc-fieldsync/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a throwaway on-disk store, mirroring the single-writer
// pool the sidecar runs with
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "fieldsync_test.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// seedLoan creates a snapshot with a 3-installment schedule of 2500 each
func seedLoan(t *testing.T, db *gorm.DB, loanID string) {
	t.Helper()

	loan := models.LoanSnapshot{
		LoanID:            loanID,
		BackendID:         "BL-" + loanID,
		OutstandingAmount: decimal.NewFromInt(7500),
		DPD:               10,
		Bucket:            "X",
	}
	require.NoError(t, db.Create(&loan).Error)

	for i := 1; i <= 3; i++ {
		installment := models.ScheduleInstallment{
			LoanID:        loanID,
			InstallmentNo: i,
			DueDate:       time.Now().AddDate(0, i-2, 0),
			Amount:        decimal.NewFromInt(2500),
			PaidAmount:    decimal.Zero,
			Status:        models.InstallmentPending,
		}
		require.NoError(t, db.Create(&installment).Error)
	}
}
