package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// LLM configuration (OpenAI-compatible protocol)
	OpenAIAPIKey      string  // API key for the chat completion endpoint
	OpenAIModel       string  // Model name: gpt-4-turbo-preview, deepseek-chat, etc.
	OpenAIBaseURL     string  // Custom base URL (optional)
	OpenAIMaxTokens   int     // Max completion tokens (default: 2000)
	OpenAITemperature float32 // Sampling temperature (default: 0.3)
	LLMTimeout        int     // Per-attempt timeout in seconds (default: 10)
	LLMMaxRetries     int     // Retry attempts on transient failures (default: 3)
	LLMRatePerMinute  int     // LLM call budget per minute (default: 60)

	// Cache configuration
	RedisURL     string // Redis connection URL
	CacheTTL     int    // Result cache TTL in seconds (default: 7 days)
	CacheEnabled bool

	// History store configuration
	DatabaseURL string // DSN of the embedded history database

	// Analysis configuration
	HeuristicConfidenceThreshold float64 // LLM fallback threshold (default: 0.8)
	UseLLMFallback               bool
	DefaultTimeMinutes           int // Duration fallback (default: 10)
	AchievementDefaultWeight     int // Weight fallback (default: 10)

	// Observability
	LogLevel       string
	MetricsEnabled bool

	// Security
	PIIRedactionEnabled bool

	// Server
	Mode    string
	Addr    string
	Port    int
	Data    string
	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsLLMEnabled returns true if the LLM fallback can actually be used.
func (p *Profile) IsLLMEnabled() bool {
	return p.UseLLMFallback && p.OpenAIAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvOrDefaultBool returns environment variable value as bool or default value.
func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	// LLM configuration
	p.OpenAIAPIKey = getEnvOrDefault("DIARYSENSE_OPENAI_API_KEY", "")
	p.OpenAIModel = getEnvOrDefault("DIARYSENSE_OPENAI_MODEL", "gpt-4-turbo-preview")
	p.OpenAIBaseURL = getEnvOrDefault("DIARYSENSE_OPENAI_BASE_URL", "")
	p.OpenAIMaxTokens = getEnvOrDefaultInt("DIARYSENSE_OPENAI_MAX_TOKENS", 2000)
	p.OpenAITemperature = float32(getEnvOrDefaultFloat("DIARYSENSE_OPENAI_TEMPERATURE", 0.3))
	p.LLMTimeout = getEnvOrDefaultInt("DIARYSENSE_LLM_TIMEOUT_SECONDS", 10)
	p.LLMMaxRetries = getEnvOrDefaultInt("DIARYSENSE_LLM_MAX_RETRIES", 3)
	p.LLMRatePerMinute = getEnvOrDefaultInt("DIARYSENSE_LLM_RATE_LIMIT_PER_MINUTE", 60)

	// Cache configuration
	p.RedisURL = getEnvOrDefault("DIARYSENSE_REDIS_URL", "redis://localhost:6379/0")
	p.CacheTTL = getEnvOrDefaultInt("DIARYSENSE_CACHE_TTL_SECONDS", 604800)
	p.CacheEnabled = getEnvOrDefaultBool("DIARYSENSE_CACHE_ENABLED", true)

	// History store
	p.DatabaseURL = getEnvOrDefault("DIARYSENSE_DATABASE_URL", "")

	// Analysis configuration
	p.HeuristicConfidenceThreshold = getEnvOrDefaultFloat("DIARYSENSE_HEURISTIC_CONFIDENCE_THRESHOLD", 0.8)
	p.UseLLMFallback = getEnvOrDefaultBool("DIARYSENSE_USE_LLM_FALLBACK", true)
	p.DefaultTimeMinutes = getEnvOrDefaultInt("DIARYSENSE_DEFAULT_TIME_MINUTES", 10)
	p.AchievementDefaultWeight = getEnvOrDefaultInt("DIARYSENSE_ACHIEVEMENT_DEFAULT_WEIGHT", 10)

	// Observability
	p.LogLevel = getEnvOrDefault("DIARYSENSE_LOG_LEVEL", "info")
	p.MetricsEnabled = getEnvOrDefaultBool("DIARYSENSE_METRICS_ENABLED", true)

	// Security
	p.PIIRedactionEnabled = getEnvOrDefaultBool("DIARYSENSE_PII_REDACTION_ENABLED", true)
}

// SlogLevel maps the configured log level to a slog.Level.
func (p *Profile) SlogLevel() slog.Level {
	switch strings.ToLower(p.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.DatabaseURL == "" {
		dbFile := fmt.Sprintf("diarysense_%s.db", p.Mode)
		p.DatabaseURL = filepath.Join(dataDir, dbFile)
	}

	if p.HeuristicConfidenceThreshold < 0 || p.HeuristicConfidenceThreshold > 1 {
		return errors.Errorf("heuristic confidence threshold out of range: %f", p.HeuristicConfidenceThreshold)
	}
	if p.LLMTimeout <= 0 {
		p.LLMTimeout = 10
	}
	if p.LLMMaxRetries <= 0 {
		p.LLMMaxRetries = 3
	}
	if p.DefaultTimeMinutes <= 0 {
		p.DefaultTimeMinutes = 10
	}
	if p.AchievementDefaultWeight <= 0 {
		p.AchievementDefaultWeight = 10
	}

	return nil
}
