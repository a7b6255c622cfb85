package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Reconcile ReconcileConfig
	Dedup     DedupConfig
	Queue     QueueConfig
	Extractor ExtractorConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ReconcileConfig holds the value-reconciliation tolerances. These shift with
// statutory rate changes, so they are configuration, not literals.
type ReconcileConfig struct {
	RateRelativeTolerance float64 // hypothesis test in the gross/withheld case
	GrossCheckTolerance   float64 // consistency check in the gross/net case
}

// DedupConfig holds the duplicate-detection parameters.
type DedupConfig struct {
	AmountTolerance float64
	DayWindow       int
}

// QueueConfig holds the upload-queue worker settings.
type QueueConfig struct {
	Workers                 int
	MaxAttempts             int
	HighConfidenceThreshold float32
	ProcessTimeout          time.Duration
}

// ExtractorConfig holds the recognition-service client settings.
type ExtractorConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "file:declara.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Reconcile: ReconcileConfig{
			RateRelativeTolerance: getEnvAsFloat64("RECONCILE_RATE_TOLERANCE", 0.05),
			GrossCheckTolerance:   getEnvAsFloat64("RECONCILE_GROSS_TOLERANCE", 0.02),
		},
		Dedup: DedupConfig{
			AmountTolerance: getEnvAsFloat64("DEDUP_AMOUNT_TOLERANCE", 0.01),
			DayWindow:       getEnvAsInt("DEDUP_DAY_WINDOW", 7),
		},
		Queue: QueueConfig{
			Workers:                 getEnvAsInt("QUEUE_WORKERS", 5),
			MaxAttempts:             getEnvAsInt("QUEUE_MAX_ATTEMPTS", 3),
			HighConfidenceThreshold: getEnvAsFloat32("QUEUE_HIGH_CONFIDENCE", 0.85),
			ProcessTimeout:          getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 3*time.Minute),
		},
		Extractor: ExtractorConfig{
			BaseURL: getEnv("EXTRACTOR_URL", ""),
			APIKey:  getEnv("EXTRACTOR_API_KEY", ""),
			Timeout: getEnvAsDuration("EXTRACTOR_TIMEOUT", 60*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Queue.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "QUEUE_WORKERS must be positive", ErrInvalidInput)
	}
	if c.Queue.MaxAttempts <= 0 {
		return NewAppError("CONFIG_ERROR", "QUEUE_MAX_ATTEMPTS must be positive", ErrInvalidInput)
	}
	if c.Reconcile.RateRelativeTolerance <= 0 || c.Reconcile.GrossCheckTolerance <= 0 {
		return NewAppError("CONFIG_ERROR", "reconcile tolerances must be positive", ErrInvalidInput)
	}
	return nil
}
