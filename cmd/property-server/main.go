// Command property-server serves GET /api/property, researching an address
// with a crew of LLM agents.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KamdynS/property-crew/config"
	"github.com/KamdynS/property-crew/crew"
	"github.com/KamdynS/property-crew/llm"
	"github.com/KamdynS/property-crew/llm/anthropic"
	"github.com/KamdynS/property-crew/llm/gemini"
	"github.com/KamdynS/property-crew/llm/openai"
	"github.com/KamdynS/property-crew/memory"
	"github.com/KamdynS/property-crew/memory/inmemory"
	"github.com/KamdynS/property-crew/memory/postgres"
	"github.com/KamdynS/property-crew/memory/redis"
	obs "github.com/KamdynS/property-crew/observability"
	"github.com/KamdynS/property-crew/observability/prom"
	"github.com/KamdynS/property-crew/property"
	httpserver "github.com/KamdynS/property-crew/server/http"
	"github.com/KamdynS/property-crew/tools/scrape"
	"github.com/KamdynS/property-crew/tools/search"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	exporter := prom.New()
	obs.SetMetrics(exporter)
	obs.SetTracer(obs.NewDefaultTracer(obs.WithSpanLogger(logger)))

	model, err := buildLLM(ctx, cfg)
	if err != nil {
		return err
	}

	stores, err := buildMemory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.close()

	rt := &crew.Runtime{
		LLM:       model,
		ShortTerm: stores.shortTerm,
		LongTerm:  stores.longTerm,
		Logger:    logger,
		Timeout:   cfg.CrewTimeout,
		MaxIter:   cfg.CrewMaxIter,
	}
	searchTool := search.NewSerperTool(search.Config{
		APIKey:  cfg.SerperAPIKey,
		Results: cfg.SearchResults,
	})
	svc := property.NewService(rt, searchTool,
		property.WithScrapeConfig(scrape.Config{MaxChars: cfg.ScrapeMaxChars}),
		property.WithMemory(cfg.CrewMemory),
		property.WithLogger(logger),
	)

	srv := httpserver.NewServer(svc, httpserver.Config{
		Addr:         cfg.Addr(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Mode:         cfg.GinMode,
		Metrics:      exporter,
		Logger:       logger,
	})
	logger.Info("property crew ready",
		"provider", model.Provider(),
		"model", model.Model(),
		"memory", cfg.CrewMemory,
	)
	return srv.ListenAndServe(ctx)
}

// buildLLM creates a client for every provider with a key. The configured
// provider is the default; the others serve agents that name their models.
func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	clients := make(map[llm.Provider]llm.Client)
	byModel := make(map[string]llm.Client)

	if cfg.OpenAIAPIKey != "" {
		c, err := openai.NewClient(openai.Config{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel})
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		clients[llm.ProviderOpenAI] = llm.NewInstrumentedClient(c)
		byModel[cfg.OpenAIModel] = clients[llm.ProviderOpenAI]
	}
	if cfg.AnthropicAPIKey != "" {
		c, err := anthropic.NewClient(anthropic.Config{APIKey: cfg.AnthropicAPIKey, Model: cfg.AnthropicModel})
		if err != nil {
			return nil, fmt.Errorf("anthropic: %w", err)
		}
		clients[llm.ProviderAnthropic] = llm.NewInstrumentedClient(c)
		byModel[cfg.AnthropicModel] = clients[llm.ProviderAnthropic]
	}
	if cfg.GeminiAPIKey != "" {
		c, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		clients[llm.ProviderGemini] = llm.NewInstrumentedClient(c)
		byModel[cfg.GeminiModel] = clients[llm.ProviderGemini]
	}

	def, ok := clients[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w for provider %s", config.ErrMissingAPIKey, cfg.Provider)
	}
	return llm.NewRouterClient(llm.StaticPolicy{Default: def, ByModel: byModel}), nil
}

type memoryStores struct {
	shortTerm memory.ConversationStore
	longTerm  memory.LongTermStore
	closers   []func()
}

func (m *memoryStores) close() {
	for _, c := range m.closers {
		c()
	}
}

// buildMemory picks Redis for short-term and Postgres for long-term memory
// when configured, and in-process stores otherwise.
func buildMemory(ctx context.Context, cfg config.Config, logger *slog.Logger) (*memoryStores, error) {
	m := &memoryStores{}

	if cfg.RedisURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		client, err := redis.NewClient(connectCtx, cfg.RedisURL)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		m.shortTerm = redis.NewConversationStore(client, "property-crew", cfg.MemoryTTL)
		m.closers = append(m.closers, func() { _ = client.Close() })
		logger.Info("short-term memory", "backend", "redis")
	} else {
		m.shortTerm = inmemory.NewConversationStore(cfg.MemoryTTL)
		logger.Info("short-term memory", "backend", "inmemory")
	}

	if cfg.DatabaseURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pool, err := postgres.Connect(connectCtx, cfg.DatabaseURL)
		if err != nil {
			m.close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		m.closers = append(m.closers, pool.Close)
		store, err := postgres.New(pool, "")
		if err == nil {
			err = store.EnsureSchema(connectCtx)
		}
		if err != nil {
			m.close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		m.longTerm = store
		logger.Info("long-term memory", "backend", "postgres")
	} else {
		m.longTerm = inmemory.NewLongTermStore()
		logger.Info("long-term memory", "backend", "inmemory")
	}
	return m, nil
}
