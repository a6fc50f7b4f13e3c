package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for Deckforge.
type Config struct {
	DBPath        string
	ServerPort    int
	LogLevel      string
	LLMEndpoint   string
	LLMAPIKey     string
	LLMModels     []string
	LLMTimeout    time.Duration
	SentryDSN     string
	Environment   string
	OutputDir     string
	DebugDir      string
	ShutdownGrace time.Duration
	Retry         RetryConfig
	Research      ResearchConfig
	RateLimit     RateLimitConfig
}

// RetryConfig controls how pipeline stages are retried.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Exponential bool
}

// ResearchConfig controls the research phase fan-out.
type ResearchConfig struct {
	Concurrency int
}

// RateLimitConfig configures the HTTP API token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

const (
	defaultDBPath             = "./data/deckforge.db"
	defaultServerPort         = 8080
	defaultLogLevel           = "info"
	defaultEnvironment        = "development"
	defaultOutputDir          = "./output"
	defaultDebugDir           = "./logs"
	defaultShutdownGrace      = 10 * time.Second
	defaultLLMTimeout         = 3 * time.Minute
	defaultRetryAttempts      = 3
	defaultRetryBaseDelay     = 2 * time.Second
	defaultRetryExponential   = true
	defaultResearchWorkers    = 1
	defaultRateLimitPerSecond = 0.2
	defaultRateLimitBurst     = 3
	defaultRateLimitClientTTL = 10 * time.Minute
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		LLMEndpoint:   os.Getenv("LLM_ENDPOINT"),
		LLMAPIKey:     os.Getenv("LLM_API_KEY"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   getEnv("ENV", defaultEnvironment),
		OutputDir:     getEnv("OUTPUT_DIR", defaultOutputDir),
		DebugDir:      getEnv("DEBUG_DIR", defaultDebugDir),
		ShutdownGrace: defaultShutdownGrace,
	}

	if modelsJSON := os.Getenv("LLM_MODELS"); modelsJSON != "" {
		models, err := parseModels(modelsJSON)
		if err != nil {
			return nil, eris.Wrap(err, "parsing LLM_MODELS")
		}
		cfg.LLMModels = models
	}

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	if cfg.LLMTimeout, err = getDuration("LLM_TIMEOUT", defaultLLMTimeout); err != nil {
		return nil, err
	}

	if cfg.Retry.MaxAttempts, err = getInt("RETRY_MAX_ATTEMPTS", defaultRetryAttempts); err != nil {
		return nil, err
	}
	if cfg.Retry.BaseDelay, err = getDuration("RETRY_BASE_DELAY", defaultRetryBaseDelay); err != nil {
		return nil, err
	}
	if cfg.Retry.Exponential, err = getBool("RETRY_EXPONENTIAL", defaultRetryExponential); err != nil {
		return nil, err
	}

	if cfg.Research.Concurrency, err = getInt("RESEARCH_CONCURRENCY", defaultResearchWorkers); err != nil {
		return nil, err
	}

	if cfg.RateLimit.RequestsPerSecond, err = getFloat("RATE_LIMIT_RPS", defaultRateLimitPerSecond); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Burst, err = getInt("RATE_LIMIT_BURST", defaultRateLimitBurst); err != nil {
		return nil, err
	}
	if cfg.RateLimit.ClientTTL, err = getDuration("RATE_LIMIT_TTL", defaultRateLimitClientTTL); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

// getDuration accepts Go duration strings ("1500ms") or bare integers interpreted as seconds.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func parseModels(raw string) ([]string, error) {
	// Accept either a JSON array of strings or an object with a `models` field.
	var arrayInput []string
	if err := json.Unmarshal([]byte(raw), &arrayInput); err == nil {
		return arrayInput, nil
	}

	var objectInput struct {
		Models []string `json:"models"`
	}
	if err := json.Unmarshal([]byte(raw), &objectInput); err != nil {
		return nil, eris.Wrap(err, "decoding JSON")
	}

	if len(objectInput.Models) == 0 {
		return nil, eris.New("models list is empty")
	}

	return objectInput.Models, nil
}
