package routes

import (
	"spsc-fieldsync/internal/adapters/http/handlers"
	"spsc-fieldsync/internal/adapters/persistence/repositories"
	"spsc-fieldsync/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Setup configures all routes for the device-local API
func Setup(
	app *fiber.App,
	db *gorm.DB,
	recordService *services.RecordService,
	statusService *services.StatusService,
	syncService *services.SyncService,
) {
	loanRepo := repositories.NewLoanRepository(db)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	collectionHandler := handlers.NewCollectionHandler(recordService)
	syncHandler := handlers.NewSyncHandler(statusService, syncService)
	loanHandler := handlers.NewLoanHandler(loanRepo)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// API v1 group
	apiV1 := app.Group("/api/v1")

	// Collection event recording
	collections := apiV1.Group("/collections")
	collections.Post("/:loanId/payments", collectionHandler.RecordPayment)
	collections.Post("/:loanId/ptps", collectionHandler.RecordPTP)
	collections.Post("/:loanId/notes", collectionHandler.RecordNote)

	// Cached loan projection
	loans := apiV1.Group("/loans")
	loans.Get("/", loanHandler.ListLoans)
	loans.Get("/:loanId", loanHandler.GetLoan)

	// Sync engine surface
	sync := apiV1.Group("/sync")
	sync.Get("/status", syncHandler.GetStatus)
	sync.Get("/queue", syncHandler.ListQueue)
	sync.Post("/trigger", syncHandler.Trigger)
	sync.Post("/queue/:id/retry", syncHandler.RetryFailed)
	sync.Delete("/completed", syncHandler.ClearCompleted)
}
