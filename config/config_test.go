package config

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/KamdynS/property-crew/llm"
)

var envVars = []string{
	"HOST", "PORT", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "GIN_MODE",
	"LOG_LEVEL", "LOG_FORMAT",
	"LLM_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL_NAME",
	"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL_NAME", "GEMINI_API_KEY", "GEMINI_MODEL_NAME",
	"SERPER_API_KEY", "SEARCH_RESULTS", "SCRAPE_MAX_CHARS",
	"CREW_TIMEOUT", "CREW_MAX_ITER", "CREW_MEMORY",
	"REDIS_URL", "MEMORY_TTL", "DATABASE_URL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Addr() != "0.0.0.0:5000" {
		t.Errorf("Addr = %q, want 0.0.0.0:5000", cfg.Addr())
	}
	if cfg.Provider != llm.ProviderOpenAI {
		t.Errorf("Provider = %q, want openai", cfg.Provider)
	}
	if cfg.OpenAIModel != "gpt-3.5-turbo" {
		t.Errorf("OpenAIModel = %q, want gpt-3.5-turbo", cfg.OpenAIModel)
	}
	if cfg.WriteTimeout != 0 || cfg.CrewTimeout != 0 {
		t.Errorf("expected no write/crew timeout by default, got %v/%v", cfg.WriteTimeout, cfg.CrewTimeout)
	}
	if cfg.CrewMaxIter != 15 {
		t.Errorf("CrewMaxIter = %d, want 15", cfg.CrewMaxIter)
	}
	if !cfg.CrewMemory {
		t.Error("CrewMemory should default to true")
	}
	if cfg.MemoryTTL != 24*time.Hour {
		t.Errorf("MemoryTTL = %v, want 24h", cfg.MemoryTTL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("CREW_TIMEOUT", "90s")
	t.Setenv("CREW_MEMORY", "no")
	t.Setenv("SEARCH_RESULTS", "not-a-number")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Provider != llm.ProviderGemini {
		t.Errorf("Provider = %q, want gemini", cfg.Provider)
	}
	if cfg.CrewTimeout != 90*time.Second {
		t.Errorf("CrewTimeout = %v", cfg.CrewTimeout)
	}
	if cfg.CrewMemory {
		t.Error("CrewMemory should be false")
	}
	if cfg.SearchResults != 10 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.SearchResults)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}

	cfg.OpenAIAPIKey = "sk-test"
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) || !strings.Contains(err.Error(), "SERPER_API_KEY") {
		t.Fatalf("expected missing serper key, got %v", err)
	}

	cfg.SerperAPIKey = "serper"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Provider = "bedrock"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogFormat: "json", LogLevel: "warn"}
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected log output %q", out)
	}
	if (Config{LogLevel: "bogus"}).SlogLevel() != slog.LevelInfo {
		t.Fatal("unknown level should map to info")
	}
}
