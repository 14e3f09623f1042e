package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the sync sidecar
type Config struct {
	AppMode  string
	Port     string
	Database DatabaseConfig
	Backend  BackendConfig
	Sync     SyncConfig
}

// DatabaseConfig holds the on-device store configuration
type DatabaseConfig struct {
	Path string
}

// BackendConfig holds the collections backend connection settings
type BackendConfig struct {
	BaseURL        string
	AgentToken     string
	RequestTimeout time.Duration
}

// SyncConfig holds sync engine tuning
type SyncConfig struct {
	MaxConcurrent int
	MaxRetries    int
	BatchLimit    int
	StaleAfter    time.Duration
	CronSpec      string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	config := &Config{
		AppMode:  appMode,
		Port:     getEnv("PORT", "3000"),
		Database: loadDatabaseConfig(),
		Backend:  loadBackendConfig(appMode),
		Sync:     loadSyncConfig(),
	}

	// Set global config
	AppConfig = config

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", appMode)
	return config, nil
}

// loadDatabaseConfig loads the local store config
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Path: getEnv("DB_PATH", "fieldsync.db"),
	}
}

// loadBackendConfig loads backend config based on mode
func loadBackendConfig(mode string) BackendConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	timeoutSec := getEnvInt("BACKEND_TIMEOUT_SECONDS", 10)

	return BackendConfig{
		BaseURL:        getEnv(prefix+"BACKEND_URL", "http://localhost:8080"),
		AgentToken:     getEnv(prefix+"AGENT_TOKEN", ""),
		RequestTimeout: time.Duration(timeoutSec) * time.Second,
	}
}

// loadSyncConfig loads sync engine tuning
func loadSyncConfig() SyncConfig {
	staleMin := getEnvInt("SYNC_STALE_AFTER_MINUTES", 10)

	return SyncConfig{
		MaxConcurrent: getEnvInt("SYNC_MAX_CONCURRENT", 3),
		MaxRetries:    getEnvInt("SYNC_MAX_RETRIES", 5),
		BatchLimit:    getEnvInt("SYNC_BATCH_LIMIT", 20),
		StaleAfter:    time.Duration(staleMin) * time.Minute,
		CronSpec:      getEnv("SYNC_CRON_SPEC", "@every 5m"),
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}
