package property

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KamdynS/property-crew/crew"
	"github.com/KamdynS/property-crew/tools"
	"github.com/KamdynS/property-crew/tools/scrape"
)

// ErrEmptyAddress is returned by Lookup for an empty address. Any other
// string, whitespace included, is researched as given.
var ErrEmptyAddress = errors.New("address is required")

// Service runs one crew per lookup. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	runtime *crew.Runtime
	search  tools.Tool
	scrape  scrape.Config
	memory  bool
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithScrapeConfig sets the settings of the per-lookup scrape tool.
func WithScrapeConfig(cfg scrape.Config) Option {
	return func(s *Service) { s.scrape = cfg }
}

// WithMemory turns crew memory on or off. It is on by default.
func WithMemory(enabled bool) Option {
	return func(s *Service) { s.memory = enabled }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service running crews on rt with the given search
// tool.
func NewService(rt *crew.Runtime, search tools.Tool, opts ...Option) *Service {
	s := &Service{runtime: rt, search: search, memory: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup researches address and returns the crew's final output.
func (s *Service) Lookup(ctx context.Context, address string) (*crew.Output, error) {
	if address == "" {
		return nil, ErrEmptyAddress
	}
	url := RedfinURL(address)
	c := NewCrew(address, Toolset{
		Search: s.search,
		Scrape: scrape.NewWebsiteTool(url, s.scrape),
	})
	c.Memory = s.memory
	c.Runtime = s.runtime

	s.logger.Info("property lookup", "address", address, "scrape_url", url)
	return c.Kickoff(ctx, crew.Inputs{"address": address})
}
