package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL overrides the endpoint when building externally retrievable object URLs.
	PublicBaseURL string
}

// LLMConfig selects the generative model provider and bounds its use.
type LLMConfig struct {
	Provider           string
	AnthropicKey       string
	OpenAIKey          string
	ExtractionModel    string
	QueryModel         string
	MaxTokens          int
	TimeoutSec         int
	ExtractionAttempts int
}

// PipelineConfig holds ingestion and query limits.
type PipelineConfig struct {
	ExtractionMode string
	UploadMaxBytes int64
	QueryResultCap int
	NLMaxRounds    int
	NLMaxHistory   int
}

// RedisConfig holds the broker settings used by the extraction queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig sizes the document metadata cache.
type CacheConfig struct {
	Size   int
	TTLSec int
}

// AuthConfig holds the bearer token verification secret.
type AuthConfig struct {
	JWTSecret string
}

const (
	ExtractionInline = "inline"
	ExtractionQueued = "queued"

	maxExtractionAttempts = 3
	maxNLRounds           = 8
)

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Timezone string
	LogLevel string
	Database DatabaseConfig
	MinIO    MinIOConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Auth     AuthConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	provider := strings.ToLower(getEnv("LLM_PROVIDER", "anthropic"))
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"), // default only for non-sensitive value
		Timezone: getEnv("APP_TIMEZONE", "UTC"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:      getEnv("MINIO_ENDPOINT", ""),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:     getEnv("MINIO_SECRET_KEY", ""),
			Bucket:        getEnv("MINIO_BUCKET", ""),
			UseSSL:        getEnvBool("MINIO_USE_SSL", false),
			PublicBaseURL: getEnv("MINIO_PUBLIC_BASE_URL", ""),
		},
		LLM: LLMConfig{
			Provider:           provider,
			AnthropicKey:       getEnv("ANTHROPIC_API_KEY", ""),
			OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
			ExtractionModel:    getEnv("LLM_EXTRACTION_MODEL", defaultModel(provider)),
			QueryModel:         getEnv("LLM_QUERY_MODEL", defaultModel(provider)),
			MaxTokens:          getEnvInt("LLM_MAX_TOKENS", 2048),
			TimeoutSec:         getEnvInt("LLM_TIMEOUT_SEC", 60),
			ExtractionAttempts: clamp(getEnvInt("EXTRACTION_MAX_ATTEMPTS", 1), 1, maxExtractionAttempts),
		},
		Pipeline: PipelineConfig{
			ExtractionMode: extractionMode(getEnv("EXTRACTION_MODE", ExtractionInline)),
			UploadMaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 20<<20)),
			QueryResultCap: clamp(getEnvInt("QUERY_RESULT_CAP", 50), 1, 200),
			NLMaxRounds:    clamp(getEnvInt("NL_MAX_ROUNDS", 4), 1, maxNLRounds),
			NLMaxHistory:   clamp(getEnvInt("NL_MAX_HISTORY", 20), 0, 100),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Size:   getEnvInt("CACHE_SIZE", 1024),
			TTLSec: getEnvInt("CACHE_TTL_SEC", 300),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func defaultModel(provider string) string {
	if provider == "openai" {
		return "gpt-4o-mini"
	}
	return "claude-sonnet-4-20250514"
}

func extractionMode(v string) string {
	if strings.EqualFold(v, ExtractionQueued) {
		return ExtractionQueued
	}
	return ExtractionInline
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
