package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"spsc-fieldsync/internal/adapters/backend"
	"spsc-fieldsync/internal/adapters/http/middleware"
	"spsc-fieldsync/internal/adapters/http/routes"
	"spsc-fieldsync/internal/adapters/persistence/models"
	"spsc-fieldsync/internal/adapters/persistence/repositories"
	"spsc-fieldsync/internal/config"
	"spsc-fieldsync/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Open local store
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open local store: %v", err)
	}
	defer config.CloseDatabase()

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Local store migration completed")

	// Seed dev loans so there is something to collect against
	if cfg.IsDev() {
		if err := config.NewSeeder(db).Run(); err != nil {
			log.Printf("⚠️ Warning: Failed to seed local store: %v", err)
		}
	}

	// Engine logger
	engineLog := logrus.New()
	if cfg.IsDev() {
		engineLog.SetLevel(logrus.DebugLevel)
	}

	// Repositories
	eventRepo := repositories.NewEventRepository(db)
	queueRepo := repositories.NewQueueRepository(db)
	loanRepo := repositories.NewLoanRepository(db)

	// Backend transport
	apiClient := backend.NewClient(cfg.Backend)

	// Services
	recordService := services.NewRecordService(eventRepo, loanRepo)
	reconcileService := services.NewReconcileService(db, engineLog)
	syncService := services.NewSyncService(queueRepo, eventRepo, reconcileService, apiClient, engineLog, cfg.Sync)
	statusService := services.NewStatusService(queueRepo, eventRepo)

	// Periodic sync tick
	cronService := services.NewCronService(syncService, engineLog, cfg.Sync.CronSpec)
	if err := cronService.Start(); err != nil {
		log.Fatalf("❌ Failed to start sync scheduler: %v", err)
	}
	defer cronService.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "SPSC fieldSync v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes
	routes.Setup(app, db, recordService, statusService, syncService)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Sync sidecar starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down sync sidecar...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Sync sidecar stopped gracefully")
}
