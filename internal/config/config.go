package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI     string
	DBName       string
	Port         string
	GinMode      string
	CORSOrigins  []string
	BcryptCost   int
	MaxFileSize  int64
	AllowedTypes []string

	FileStorageDir      string
	SyncProcessingLimit int64
	ExtractTimeout      int // seconds, per extraction attempt

	// Remote extraction service (optional fallback extractor)
	ExtractServiceURL     string
	ExtractServiceEnabled bool
	ExtractServiceRPM     int

	// Stuck-finalization reconciler
	ReconcileCron     string
	ReconcileDeadline int // seconds before a processing row counts as stuck

	RateLimitReqs   int
	RateLimitWindow int

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// JWT Token Secrets
	AccessSecret  string
	RefreshSecret string

	// Telemetry
	OTLPEndpoint   string
	TracingEnabled bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/rfp_intake"),
		DBName:       getEnv("DB_NAME", "rfp_intake"),
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		BcryptCost:   getEnvInt("BCRYPT_COST", 12),
		MaxFileSize:  getEnvInt64("MAX_FILE_SIZE", 10485760), // 10MB upload ceiling
		AllowedTypes: strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document,text/plain"), ","),

		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./storage"),
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 2097152), // 2MB processed inline
		ExtractTimeout:      getEnvInt("EXTRACT_TIMEOUT", 120),

		ExtractServiceURL:     getEnv("EXTRACT_SERVICE_URL", "http://localhost:8001"),
		ExtractServiceEnabled: getEnvBool("EXTRACT_SERVICE_ENABLED", false),
		ExtractServiceRPM:     getEnvInt("EXTRACT_SERVICE_RPM", 60),

		ReconcileCron:     getEnv("RECONCILE_CRON", "*/5 * * * *"),
		ReconcileDeadline: getEnvInt("RECONCILE_DEADLINE", 600),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// JWT Token Secrets
		AccessSecret:  getEnv("ACCESS_SECRET", ""),
		RefreshSecret: getEnv("REFRESH_SECRET", ""),

		// Telemetry
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
	}

	// Validate required fields
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("ACCESS_SECRET is required - set it in .env file")
	}

	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("REFRESH_SECRET is required - set it in .env file")
	}

	return cfg, nil
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
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
