package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	SMTP      SMTPConfig
	Pool      PoolConfig
	Limits    LimitsConfig
	Pipeline  PipelineConfig
	Retry     RetryConfig
	Providers ProvidersConfig
	Injection InjectionConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

// PoolConfig sizes the run worker pool.
type PoolConfig struct {
	MaxWorkers       int
	MaxRunsPerUser   int
	MaxGlobalActive  int
	TrackedRunMaxAge time.Duration
}

// LimitsConfig configures per-user admission rate limits.
type LimitsConfig struct {
	DailyRuns      int
	RunsPerMinute  int
	UseRedis       bool
}

// PipelineConfig configures run behavior defaults.
type PipelineConfig struct {
	NumItems          int
	MaxRevisions      int
	ForceApproveRound int
	ResearchTTL       time.Duration
	MemoryLimit       int
}

// RetryConfig configures the agent call executor.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	BackoffFactor   float64
	Timeout         time.Duration
	MinLength       int
}

// ProviderConfig describes one LLM endpoint in the fallback cascade.
type ProviderConfig struct {
	Name    string
	Kind    string // "openai" or "ollama"
	BaseURL string
	APIKey  string
	Model   string
}

// ProvidersConfig holds the ordered provider cascade. Primary is first.
type ProvidersConfig struct {
	Primary  ProviderConfig
	Fallback ProviderConfig
}

// InjectionConfig configures the feedback safety screen.
type InjectionConfig struct {
	Enabled             bool
	MinLength           int
	ConfidenceThreshold float64
	CrossValidate       bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "AIG Pipeline"),
		},
		Pool: PoolConfig{
			MaxWorkers:       getEnvAsInt("POOL_MAX_WORKERS", 4),
			MaxRunsPerUser:   getEnvAsInt("POOL_MAX_RUNS_PER_USER", 2),
			MaxGlobalActive:  getEnvAsInt("POOL_MAX_GLOBAL_ACTIVE", 16),
			TrackedRunMaxAge: getEnvAsDuration("POOL_TRACKED_RUN_MAX_AGE", 24*time.Hour),
		},
		Limits: LimitsConfig{
			DailyRuns:     getEnvAsInt("LIMIT_DAILY_RUNS", 20),
			RunsPerMinute: getEnvAsInt("LIMIT_RUNS_PER_MINUTE", 3),
			UseRedis:      getEnvAsBool("LIMIT_USE_REDIS", false),
		},
		Pipeline: PipelineConfig{
			NumItems:          getEnvAsInt("PIPELINE_NUM_ITEMS", 10),
			MaxRevisions:      getEnvAsInt("PIPELINE_MAX_REVISIONS", 3),
			ForceApproveRound: getEnvAsInt("PIPELINE_FORCE_APPROVE_ROUND", 3),
			ResearchTTL:       getEnvAsDuration("PIPELINE_RESEARCH_TTL", 24*time.Hour),
			MemoryLimit:       getEnvAsInt("PIPELINE_MEMORY_LIMIT", 5),
		},
		Retry: RetryConfig{
			MaxAttempts:     getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			InitialInterval: getEnvAsDuration("RETRY_INITIAL_INTERVAL", time.Second),
			BackoffFactor:   getEnvAsFloat("RETRY_BACKOFF_FACTOR", 2.0),
			Timeout:         getEnvAsDuration("RETRY_CALL_TIMEOUT", 120*time.Second),
			MinLength:       getEnvAsInt("RETRY_MIN_RESPONSE_LENGTH", 20),
		},
		Providers: ProvidersConfig{
			Primary: ProviderConfig{
				Name:    getEnv("LLM_PRIMARY_NAME", "primary"),
				Kind:    getEnv("LLM_PRIMARY_KIND", "openai"),
				BaseURL: getEnv("LLM_PRIMARY_BASE_URL", ""),
				APIKey:  getEnv("LLM_PRIMARY_API_KEY", ""),
				Model:   getEnv("LLM_PRIMARY_MODEL", "gpt-4o-mini"),
			},
			Fallback: ProviderConfig{
				Name:    getEnv("LLM_FALLBACK_NAME", "fallback"),
				Kind:    getEnv("LLM_FALLBACK_KIND", "ollama"),
				BaseURL: getEnv("LLM_FALLBACK_BASE_URL", "http://localhost:11434"),
				APIKey:  getEnv("LLM_FALLBACK_API_KEY", ""),
				Model:   getEnv("LLM_FALLBACK_MODEL", "llama3"),
			},
		},
		Injection: InjectionConfig{
			Enabled:             getEnvAsBool("INJECTION_CHECK_ENABLED", true),
			MinLength:           getEnvAsInt("INJECTION_MIN_LENGTH", 12),
			ConfidenceThreshold: getEnvAsFloat("INJECTION_CONFIDENCE_THRESHOLD", 0.7),
			CrossValidate:       getEnvAsBool("INJECTION_CROSS_VALIDATE", true),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
