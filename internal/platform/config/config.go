package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string
	JWTKey  []byte

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel  string
	LogFormat string

	SandboxURL              string
	SandboxMaxConcurrency   int
	SandboxDefaultLimitMs   int
	SandboxRetryBackoffMs   int
	MaxSourceBytes          int
	RunStopOnFirstFailure   bool
	SubmitRatePerMinute     int
	HintRatePerMinute       int
	ProgressQueueName       string
	ProgressAggregatorURL   string
	ProgressMaxAttempts     int
	ProgressDedupeTTLHours  int

	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMTemperature float32
	LLMMaxTokens   int

	HintTimeout           time.Duration
	HintHistoryTurns      int
	HintHistoryTTLHours   int
	GuardrailMaxCodeLines int
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:       getEnv("API_PORT", "8080"),
		JWTKey:        []byte(getEnv("JWT_SECRET", "defaultsecret")),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "practice_mentor_db"),
		DBSslMode:     getEnv("DB_SSLMODE", "disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),

		SandboxURL:             getEnv("SANDBOX_URL", "http://localhost:2000"),
		SandboxMaxConcurrency:  getEnvAsInt("SANDBOX_MAX_CONCURRENCY", 8),
		SandboxDefaultLimitMs:  getEnvAsInt("SANDBOX_DEFAULT_TIME_LIMIT_MS", 2000),
		SandboxRetryBackoffMs:  getEnvAsInt("SANDBOX_RETRY_BACKOFF_MS", 250),
		MaxSourceBytes:         getEnvAsInt("MAX_SOURCE_BYTES", 64*1024),
		RunStopOnFirstFailure:  getEnvAsBool("RUN_STOP_ON_FIRST_FAILURE", true),
		SubmitRatePerMinute:    getEnvAsInt("SUBMIT_RATE_PER_MINUTE", 20),
		HintRatePerMinute:      getEnvAsInt("HINT_RATE_PER_MINUTE", 10),
		ProgressQueueName:      getEnv("PROGRESS_QUEUE_NAME", "progress_events_queue"),
		ProgressAggregatorURL:  getEnv("PROGRESS_AGGREGATOR_URL", "http://localhost:8090/api/v1/progress/events"),
		ProgressMaxAttempts:    getEnvAsInt("PROGRESS_MAX_ATTEMPTS", 5),
		ProgressDedupeTTLHours: getEnvAsInt("PROGRESS_DEDUPE_TTL_HOURS", 72),

		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMBaseURL:     getEnv("LLM_BASE_URL", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTemperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.2),
		LLMMaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 512),

		HintTimeout:           time.Duration(getEnvAsInt("HINT_TIMEOUT_SECONDS", 20)) * time.Second,
		HintHistoryTurns:      getEnvAsInt("HINT_HISTORY_TURNS", 10),
		HintHistoryTTLHours:   getEnvAsInt("HINT_HISTORY_TTL_HOURS", 24),
		GuardrailMaxCodeLines: getEnvAsInt("GUARDRAIL_MAX_CODE_LINES", 8),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat32(key string, fallback float32) float32 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 32); err == nil {
		return float32(value)
	}
	return fallback
}
