// Package config provides environment configuration for the archive server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Storage settings
	DatabasePath        string
	IndexRebuildOnStart bool

	// Sync settings
	SyncBatchSize int
	SyncInterval  time.Duration // 0 disables periodic sync

	// Query settings
	QueryPageSize int

	// Remote service settings
	PoeBaseURL  string
	PoeFormKey  string
	PoePBCookie string

	// Categorization settings
	CategorizerProvider string // "keyword", "openai", "anthropic" or "" to disable
	AnthropicAPIKey     string
	OpenAIAPIKey        string

	// NATS settings (optional status event stream)
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings (auth disabled when secret empty)
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),

		// Storage
		DatabasePath:        getEnv("DATABASE_PATH", "data/poe_archive.db"),
		IndexRebuildOnStart: getBoolEnv("INDEX_REBUILD_ON_START", false),

		// Sync
		SyncBatchSize: getIntEnv("SYNC_BATCH_SIZE", 50),
		SyncInterval:  getDurationEnv("SYNC_INTERVAL", 0),

		// Query
		QueryPageSize: getIntEnv("QUERY_PAGE_SIZE", 20),

		// Remote service
		PoeBaseURL:  getEnv("POE_BASE_URL", ""),
		PoeFormKey:  getEnv("POE_FORMKEY", ""),
		PoePBCookie: getEnv("POE_PB_COOKIE", ""),

		// Categorization
		CategorizerProvider: getEnv("CATEGORIZER", ""),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
