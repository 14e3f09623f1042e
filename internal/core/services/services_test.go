package services

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"spsc-fieldsync/internal/adapters/persistence/models"
	"spsc-fieldsync/internal/adapters/persistence/repositories"
	"spsc-fieldsync/internal/config"
	"spsc-fieldsync/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func seedLoan(t *testing.T, db *gorm.DB, loanID string, installments int) {
	t.Helper()

	loan := models.LoanSnapshot{
		LoanID:            loanID,
		BackendID:         "BL-" + loanID,
		OutstandingAmount: decimal.NewFromInt(int64(installments) * 2500),
		DPD:               15,
		Bucket:            "X",
	}
	require.NoError(t, db.Create(&loan).Error)

	for i := 1; i <= installments; i++ {
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

func mustParseTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeAPI is a scripted CollectionsAPI double. All three kinds route
// through one respond function; optional hooks let tests observe call
// interleaving or hold a dispatch open.
type fakeAPI struct {
	mu      sync.Mutex
	calls   int
	active  map[string]int
	overlap bool

	started chan struct{} // closed once, on the first call, when set
	release chan struct{} // when set, every call blocks until closed

	respond func(kind domain.EventKind, loanID, clientRef string) (*SubmitResult, error)
}

func newFakeAPI(respond func(kind domain.EventKind, loanID, clientRef string) (*SubmitResult, error)) *fakeAPI {
	return &fakeAPI{
		active:  make(map[string]int),
		respond: respond,
	}
}

func (f *fakeAPI) submit(kind domain.EventKind, loanID, clientRef string) (*SubmitResult, error) {
	f.mu.Lock()
	f.calls++
	f.active[loanID]++
	if f.active[loanID] > 1 {
		f.overlap = true
	}
	started := f.started
	f.started = nil
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if f.release != nil {
		<-f.release
	}

	// Give a parallel dispatch a chance to overlap if serialization is broken
	time.Sleep(2 * time.Millisecond)

	res, err := f.respond(kind, loanID, clientRef)

	f.mu.Lock()
	f.active[loanID]--
	f.mu.Unlock()
	return res, err
}

func (f *fakeAPI) SubmitPayment(_ context.Context, loanID string, _ *domain.PaymentData, clientRef string) (*SubmitResult, error) {
	return f.submit(domain.KindPayment, loanID, clientRef)
}

func (f *fakeAPI) SubmitPTP(_ context.Context, loanID string, _ *domain.PTPData, clientRef string) (*SubmitResult, error) {
	return f.submit(domain.KindPTP, loanID, clientRef)
}

func (f *fakeAPI) SubmitNote(_ context.Context, loanID string, _ *domain.NoteData, clientRef string) (*SubmitResult, error) {
	return f.submit(domain.KindNote, loanID, clientRef)
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAPI) sawOverlap() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlap
}

// syncEnv wires a full engine against the fake backend
type syncEnv struct {
	db        *gorm.DB
	api       *fakeAPI
	record    *RecordService
	sync      *SyncService
	status    *StatusService
	queueRepo *repositories.QueueRepository
	eventRepo *repositories.EventRepository
}

func newSyncEnv(t *testing.T, api *fakeAPI, maxRetries int) *syncEnv {
	t.Helper()

	db := setupTestDB(t)
	log := quietLogger()

	eventRepo := repositories.NewEventRepository(db)
	queueRepo := repositories.NewQueueRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	reconciler := NewReconcileService(db, log)

	cfg := config.SyncConfig{
		MaxConcurrent: 3,
		MaxRetries:    maxRetries,
		BatchLimit:    20,
		StaleAfter:    10 * time.Minute,
	}

	return &syncEnv{
		db:        db,
		api:       api,
		record:    NewRecordService(eventRepo, loanRepo),
		sync:      NewSyncService(queueRepo, eventRepo, reconciler, api, log, cfg),
		status:    NewStatusService(queueRepo, eventRepo),
		queueRepo: queueRepo,
		eventRepo: eventRepo,
	}
}

// okPayment responds like the backend acknowledging a payment: canonical
// loan state plus a single-installment allocation
func okPayment(backendRef string, outstanding int64, installmentNo int, amount int64) func(domain.EventKind, string, string) (*SubmitResult, error) {
	return func(_ domain.EventKind, loanID, _ string) (*SubmitResult, error) {
		return &SubmitResult{
			BackendRef: backendRef,
			Loan: &LoanState{
				BackendID:         "BL-" + loanID,
				OutstandingAmount: decimal.NewFromInt(outstanding),
				DPD:               0,
				Bucket:            "Current",
			},
			Allocation: []AllocationEntry{
				{InstallmentNo: installmentNo, Amount: decimal.NewFromInt(amount)},
			},
		}, nil
	}
}
