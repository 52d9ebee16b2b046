// Package config loads the service configuration from environment variables.
// It is read once at startup and passed by value into constructors.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KamdynS/property-crew/llm"
)

// ErrMissingAPIKey is returned by Validate when a required credential is unset.
var ErrMissingAPIKey = errors.New("missing API key")

// Config holds all application configuration.
type Config struct {
	// Server
	Host         string        `json:"host"`
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"` // 0 = no limit
	GinMode      string        `json:"gin_mode"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"` // text | json

	// LLM
	Provider        llm.Provider `json:"provider"`
	OpenAIAPIKey    string       `json:"-"`
	OpenAIModel     string       `json:"openai_model"`
	AnthropicAPIKey string       `json:"-"`
	AnthropicModel  string       `json:"anthropic_model"`
	GeminiAPIKey    string       `json:"-"`
	GeminiModel     string       `json:"gemini_model"`

	// Tools
	SerperAPIKey   string `json:"-"`
	SearchResults  int    `json:"search_results"`
	ScrapeMaxChars int    `json:"scrape_max_chars"`

	// Crew
	CrewTimeout time.Duration `json:"crew_timeout"` // 0 = no limit
	CrewMaxIter int           `json:"crew_max_iter"`
	CrewMemory  bool          `json:"crew_memory"`

	// Memory backends
	RedisURL    string        `json:"-"`
	MemoryTTL   time.Duration `json:"memory_ttl"`
	DatabaseURL string        `json:"-"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		Host:         getEnv("HOST", "0.0.0.0"),
		Port:         getEnv("PORT", "5000"),
		ReadTimeout:  getDurationEnv("HTTP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDurationEnv("HTTP_WRITE_TIMEOUT", 0),
		GinMode:      getEnv("GIN_MODE", "release"),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		Provider:        llm.Provider(strings.ToLower(getEnv("LLM_PROVIDER", string(llm.ProviderOpenAI)))),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnv("OPENAI_MODEL_NAME", llm.DefaultModels[llm.ProviderOpenAI]),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL_NAME", llm.DefaultModels[llm.ProviderAnthropic]),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL_NAME", llm.DefaultModels[llm.ProviderGemini]),

		SerperAPIKey:   os.Getenv("SERPER_API_KEY"),
		SearchResults:  getIntEnv("SEARCH_RESULTS", 10),
		ScrapeMaxChars: getIntEnv("SCRAPE_MAX_CHARS", 12000),

		CrewTimeout: getDurationEnv("CREW_TIMEOUT", 0),
		CrewMaxIter: getIntEnv("CREW_MAX_ITER", 15),
		CrewMemory:  getBoolEnv("CREW_MEMORY", true),

		RedisURL:    os.Getenv("REDIS_URL"),
		MemoryTTL:   getDurationEnv("MEMORY_TTL", 24*time.Hour),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	switch c.Provider {
	case llm.ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingAPIKey)
		}
	case llm.ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY", ErrMissingAPIKey)
		}
	case llm.ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.Provider)
	}
	if c.SerperAPIKey == "" {
		return fmt.Errorf("%w: SERPER_API_KEY", ErrMissingAPIKey)
	}
	if c.CrewMaxIter <= 0 {
		return fmt.Errorf("CREW_MAX_ITER must be positive")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string { return net.JoinHostPort(c.Host, c.Port) }

// SlogLevel maps LogLevel onto a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
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

// NewLogger builds the process logger from LogFormat and LogLevel.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
