// Package config provides centralized default values for mika-go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

func loadEnvFile() {
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err == nil {
		log.Println("Loading configuration overrides from .env file...")
	}
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvSecret(key string) string {
	val := os.Getenv(key)
	if val != "" {
		log.Printf("Config override: %s=******", key)
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	ShutdownTimeout    time.Duration

	// Database
	DatabaseDriver           string
	DatabaseURL              string
	TursoAuthToken           string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	SlowQueryThreshold       time.Duration

	// Caching
	LandingPageCacheTTL  time.Duration
	CacheCleanupInterval time.Duration
	CacheCleanupVerbose  bool

	// Logging
	LogDirectory  string
	LogLevel      string
	LogJSON       bool
	LogToFile     bool
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Auth (tokens are minted by the external identity provider)
	JWTSecret string

	// Notifications
	ResendAPIKey           string
	NotifyFromEmail        string
	NotifyFromName         string
	NotifyBreakerTimeout   time.Duration
	NotifyBreakerThreshold int

	// Beacon endpoint protection
	TrackRateLimit int
	TrackRateBurst int
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)

	// Database
	DatabaseDriver = getEnvString("DATABASE_DRIVER", "sqlite3")
	DatabaseURL = getEnvString("DATABASE_URL", "file:data/mika.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	TursoAuthToken = getEnvSecret("TURSO_AUTH_TOKEN")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 500*time.Millisecond)

	// Caching
	LandingPageCacheTTL = getEnvDuration("LANDING_PAGE_CACHE_TTL", 10*time.Minute)
	CacheCleanupInterval = getEnvDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute)
	CacheCleanupVerbose = getEnvBool("CACHE_CLEANUP_VERBOSE", false)

	// Logging
	LogDirectory = getEnvString("LOG_DIRECTORY", "logs")
	LogLevel = getEnvString("LOG_LEVEL", "info")
	LogJSON = getEnvBool("LOG_JSON", true)
	LogToFile = getEnvBool("LOG_TO_FILE", true)
	LogMaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", 50)
	LogMaxBackups = getEnvInt("LOG_MAX_BACKUPS", 5)
	LogMaxAgeDays = getEnvInt("LOG_MAX_AGE_DAYS", 14)

	JWTSecret = getEnvSecret("JWT_SECRET")

	// Notifications
	ResendAPIKey = getEnvSecret("RESEND_API_KEY")
	NotifyFromEmail = getEnvString("NOTIFY_FROM_EMAIL", "noreply@mika.so")
	NotifyFromName = getEnvString("NOTIFY_FROM_NAME", "Mika")
	NotifyBreakerTimeout = getEnvDuration("NOTIFY_BREAKER_TIMEOUT", time.Minute)
	NotifyBreakerThreshold = getEnvInt("NOTIFY_BREAKER_THRESHOLD", 5)

	// Beacon endpoint protection
	TrackRateLimit = getEnvInt("TRACK_RATE_LIMIT", 600)
	TrackRateBurst = getEnvInt("TRACK_RATE_BURST", 60)
}
