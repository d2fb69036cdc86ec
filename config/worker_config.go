package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogPretty   bool

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64

	// Classifier
	ClassifierEnabled    bool
	ClassifierTimeoutSec int

	// State updater
	SaveMaxRetries       int
	TerminalStatusLocked bool

	// Notifications
	WebhookURL        string
	WebhookTimeoutSec int

	// Message archive
	ArchiveTTLDays int

	// Worker
	WorkerID            string
	WorkerCount         int
	WorkerJobTimeoutSec int
	WorkerBatchSize     int

	// Consumer (Redis Stream)
	ConsumerGroup     string
	ConsumerBatchSize int
	ConsumerBlockMS   int

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogPretty:   getEnvBool("LOG_PRETTY", false),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "apptrack"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.2),

		// Classifier
		ClassifierEnabled:    getEnvBool("CLASSIFIER_ENABLED", true),
		ClassifierTimeoutSec: getEnvInt("CLASSIFIER_TIMEOUT_SEC", 20),

		// State updater
		SaveMaxRetries:       getEnvInt("SAVE_MAX_RETRIES", 3),
		TerminalStatusLocked: getEnvBool("TERMINAL_STATUS_LOCKED", false),

		// Notifications
		WebhookURL:        getEnv("NOTIFY_WEBHOOK_URL", ""),
		WebhookTimeoutSec: getEnvInt("NOTIFY_WEBHOOK_TIMEOUT_SEC", 10),

		// Message archive
		ArchiveTTLDays: getEnvInt("ARCHIVE_TTL_DAYS", 90),

		// Worker
		WorkerID:            getEnv("WORKER_ID", generateWorkerID()),
		WorkerCount:         getEnvInt("WORKER_COUNT", 8),
		WorkerJobTimeoutSec: getEnvInt("WORKER_JOB_TIMEOUT_SEC", 60),
		WorkerBatchSize:     getEnvInt("WORKER_BATCH_SIZE", 10),

		// Consumer
		ConsumerGroup:     getEnv("CONSUMER_GROUP", "analysis-workers"),
		ConsumerBatchSize: getEnvInt("CONSUMER_BATCH_SIZE", 10),
		ConsumerBlockMS:   getEnvInt("CONSUMER_BLOCK_MS", 5000),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}, nil
}

// ClassifierTimeout returns the probabilistic-classifier timeout as a duration.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.ClassifierTimeoutSec) * time.Second
}

// WorkerJobTimeout returns the per-job timeout as a duration.
func (c *Config) WorkerJobTimeout() time.Duration {
	return time.Duration(c.WorkerJobTimeoutSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
