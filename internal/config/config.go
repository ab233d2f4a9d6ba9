// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	GRPCPort    string
	CORSOrigins []string
	DBPath      string
	LogLevel    slog.Level

	LLM        LLMConfig
	Friction   FrictionConfig
	Classifier ClassifierConfig
	Microcheck MicrocheckConfig
	Session    SessionConfig
	Telemetry  TelemetryConfig
	RateLimit  RateLimitConfig
	SSE        SSEConfig
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	Provider         string // "openrouter" or "echo"
	APIKey           string
	BaseURL          string
	Model            string
	Timeout          time.Duration
	PriceInputPer1K  float64
	PriceOutputPer1K float64
}

// FrictionConfig controls when guidance unlocks.
type FrictionConfig struct {
	AttemptsRequired int
	MinWords         int
}

// ClassifierConfig selects the turn classifier.
type ClassifierConfig struct {
	Kind    string // "heuristic" or "llm"
	Timeout time.Duration
}

// MicrocheckConfig controls microcheck scheduling.
type MicrocheckConfig struct {
	Enabled       bool
	Frequency     int
	QuestionCount int
	IdleTimeout   time.Duration
}

// SessionConfig controls session residency and retention.
type SessionConfig struct {
	ResidentTTL   time.Duration
	Retention     time.Duration
	SweepInterval time.Duration
}

// TelemetryConfig controls the NDJSON turn log.
type TelemetryConfig struct {
	LogEnabled bool
	LogDir     string
	QueueSize  int
}

// RateLimitConfig controls per-session chat rate limiting.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// SSEConfig controls streaming responses.
type SSEConfig struct {
	MaxBodyBytes int64
	KeepAlive    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("TELEMETRY_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}
	questionCount := getEnvInt("MICROCHECK_QUESTION_COUNT", 2)
	if questionCount < 1 {
		questionCount = 1
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "9090"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		DBPath:      getEnv("DB_PATH", "./data/coach.db"),
		LogLevel:    parseLevel(getEnv("LOG_LEVEL", "info")),
		LLM: LLMConfig{
			Provider:         strings.ToLower(getEnv("LLM_PROVIDER", "openrouter")),
			APIKey:           getEnv("OPENROUTER_API_KEY", ""),
			BaseURL:          getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:            getEnv("OPENROUTER_MODEL_NAME", "meta-llama/Meta-Llama-3.1-8B-Instruct"),
			Timeout:          time.Duration(getEnvInt("OPENROUTER_TIMEOUT_SECONDS", 40)) * time.Second,
			PriceInputPer1K:  getEnvFloat("PRICE_INPUT_PER_1K", 0),
			PriceOutputPer1K: getEnvFloat("PRICE_OUTPUT_PER_1K", 0),
		},
		Friction: FrictionConfig{
			AttemptsRequired: getEnvInt("FRICTION_ATTEMPTS_REQUIRED", 3),
			MinWords:         getEnvInt("FRICTION_MIN_WORDS", 15),
		},
		Classifier: ClassifierConfig{
			Kind:    strings.ToLower(getEnv("CLASSIFIER", "heuristic")),
			Timeout: getEnvDuration("CLASSIFIER_TIMEOUT", 3*time.Second),
		},
		Microcheck: MicrocheckConfig{
			Enabled:       getEnvBool("MICROCHECK_ENABLED", true),
			Frequency:     getEnvInt("MICROCHECK_FREQUENCY", 5),
			QuestionCount: questionCount,
			IdleTimeout:   getEnvDuration("MICROCHECK_IDLE_TIMEOUT", 0),
		},
		Session: SessionConfig{
			ResidentTTL:   getEnvDuration("SESSION_RESIDENT_TTL", 30*time.Minute),
			Retention:     getEnvDuration("SESSION_RETENTION", 30*24*time.Hour),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		},
		Telemetry: TelemetryConfig{
			LogEnabled: getEnvBool("TELEMETRY_LOG_ENABLED", true),
			LogDir:     getEnv("TELEMETRY_LOG_DIR", "./data/logs/turns"),
			QueueSize:  queueSize,
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		SSE: SSEConfig{
			MaxBodyBytes: int64(getEnvInt("SSE_MAX_BODY_BYTES", 1<<20)),
			KeepAlive:    getEnvDuration("SSE_KEEPALIVE", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.LLM.Provider {
	case "openrouter":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required when LLM_PROVIDER=openrouter")
		}
	case "echo":
	default:
		return fmt.Errorf("LLM_PROVIDER must be openrouter or echo, got %q", c.LLM.Provider)
	}
	if c.LLM.Timeout < time.Second || c.LLM.Timeout > 600*time.Second {
		return fmt.Errorf("OPENROUTER_TIMEOUT_SECONDS must be between 1 and 600")
	}
	if c.Friction.AttemptsRequired < 1 {
		return fmt.Errorf("FRICTION_ATTEMPTS_REQUIRED must be >= 1")
	}
	if c.Friction.MinWords < 1 {
		return fmt.Errorf("FRICTION_MIN_WORDS must be >= 1")
	}
	if c.Classifier.Kind != "heuristic" && c.Classifier.Kind != "llm" {
		return fmt.Errorf("CLASSIFIER must be heuristic or llm, got %q", c.Classifier.Kind)
	}
	if c.Microcheck.Frequency < 1 {
		return fmt.Errorf("MICROCHECK_FREQUENCY must be >= 1")
	}
	if c.Microcheck.IdleTimeout < 0 {
		return fmt.Errorf("MICROCHECK_IDLE_TIMEOUT cannot be negative")
	}
	if c.Telemetry.LogEnabled && c.Telemetry.LogDir == "" {
		return fmt.Errorf("TELEMETRY_LOG_DIR cannot be empty")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.SSE.MaxBodyBytes <= 0 {
		return fmt.Errorf("SSE_MAX_BODY_BYTES must be > 0")
	}
	return nil
}

// InMemoryStore reports whether sessions should live only in process memory.
func (c *Config) InMemoryStore() bool {
	return c.DBPath == ":memory:"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go duration strings; a bare integer is read as seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
