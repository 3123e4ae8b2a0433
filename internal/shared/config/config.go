package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Document processing modes.
const (
	ProcessingSync  = "sync"
	ProcessingAsync = "async"
	ProcessingQueue = "queue"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	DatabaseURL     string
	Env             string
	LogLevel        string

	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration

	GeminiModel     string
	GroqModel       string
	SummaryModel    string
	ProviderTimeout time.Duration

	MinIntakeLength    int
	ConflictWindow     time.Duration
	MinExtractedChars  int
	DocumentProcessing string
	SQSQueueURL        string
	OCRLanguage        string
	MaxUploadBytes     int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./uploads"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:     dbURL,
		Env:             env,
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		LockTTL:       getDuration("LOCK_TTL", 15*time.Second),

		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash-lite"),
		GroqModel:       getEnv("GROQ_MODEL", "openai/gpt-oss-120b"),
		SummaryModel:    getEnv("SUMMARY_MODEL", "openai/gpt-oss-120b"),
		ProviderTimeout: getDuration("AI_PROVIDER_TIMEOUT", 10*time.Second),

		MinIntakeLength:    getInt("INTAKE_MIN_TEXT_LENGTH", 3),
		ConflictWindow:     getDuration("BOOKING_CONFLICT_WINDOW", 10*time.Minute),
		MinExtractedChars:  getInt("DOCUMENT_MIN_TEXT_CHARS", 50),
		DocumentProcessing: normalizeProcessing(getEnv("DOCUMENT_PROCESSING", ProcessingSync)),
		SQSQueueURL:        getEnv("SQS_QUEUE_URL", ""),
		OCRLanguage:        getEnv("OCR_LANGUAGE", "eng"),
		MaxUploadBytes:     int64(getInt("MAX_UPLOAD_BYTES", 5<<20)),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		log.Printf("config %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProcessing(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ProcessingAsync:
		return ProcessingAsync
	case ProcessingQueue:
		return ProcessingQueue
	default:
		return ProcessingSync
	}
}
