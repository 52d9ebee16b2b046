package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tracer starts spans and finds the active one in a context.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (Span, context.Context)
	SpanFromContext(ctx context.Context) Span
}

// Span is one timed unit of work: an HTTP request, a crew run, a task or a
// model call.
type Span interface {
	SetAttribute(key string, value interface{})
	SetStatus(code StatusCode, message string)
	AddEvent(name string, attributes map[string]interface{})
	// End is idempotent.
	End()
	Context() context.Context
}

type StatusCode int

const (
	StatusCodeUnset StatusCode = iota
	StatusCodeOk
	StatusCodeError
)

func (c StatusCode) String() string {
	switch c {
	case StatusCodeOk:
		return "ok"
	case StatusCodeError:
		return "error"
	}
	return "unset"
}

// Attribute keys. HTTP and genai names follow OTel semantic conventions.
const (
	AttrHTTPMethod   = "http.method"
	AttrHTTPRoute    = "http.route"
	AttrHTTPStatus   = "http.status_code"
	AttrRequestID    = "request.id"
	AttrProvider     = "genai.provider"
	AttrModel        = "genai.model"
	AttrFinishReason = "genai.finish_reason"
	AttrToolName     = "genai.tool.name"
	AttrTokensInput  = "genai.tokens.input"
	AttrTokensOutput = "genai.tokens.output"
	AttrAgentRole    = "crew.agent.role"
	AttrTaskKind     = "crew.task.kind"
	AttrRunID        = "crew.run.id"
)

// Process-wide tracer and metrics sink. Both discard everything until
// cmd/property-server installs real ones.
var (
	TracerImpl  Tracer  = &NoOpTracer{}
	MetricsImpl Metrics = &NoOpMetrics{}
)

func SetTracer(t Tracer) { TracerImpl = t }

func SetMetrics(m Metrics) { MetricsImpl = m }

// NoOpTracer hands out spans that record nothing.
type NoOpTracer struct{}

func (*NoOpTracer) StartSpan(ctx context.Context, _ string) (Span, context.Context) {
	return &NoOpSpan{}, ctx
}

func (*NoOpTracer) SpanFromContext(context.Context) Span { return &NoOpSpan{} }

type NoOpSpan struct{}

func (*NoOpSpan) SetAttribute(string, interface{})        {}
func (*NoOpSpan) SetStatus(StatusCode, string)            {}
func (*NoOpSpan) AddEvent(string, map[string]interface{}) {}
func (*NoOpSpan) End()                                    {}
func (*NoOpSpan) Context() context.Context                { return context.Background() }

// SpanData is the frozen copy of a span taken when it ends.
type SpanData struct {
	Name       string                 `json:"name"`
	RequestID  string                 `json:"request_id,omitempty"`
	StartTime  time.Time              `json:"start_time"`
	EndTime    time.Time              `json:"end_time"`
	Duration   time.Duration          `json:"duration"`
	Status     StatusCode             `json:"status"`
	Message    string                 `json:"message"`
	Attributes map[string]interface{} `json:"attributes"`
	Events     []Event                `json:"events"`
}

type Event struct {
	Name       string                 `json:"name"`
	Time       time.Time              `json:"time"`
	Attributes map[string]interface{} `json:"attributes"`
}

// DefaultTracer keeps a ring of recently finished spans and can mirror each
// one to a slog logger at debug level. Safe for concurrent use.
type DefaultTracer struct {
	mu     sync.Mutex
	spans  []SpanData
	limit  int
	logger *slog.Logger
}

type TracerOption func(*DefaultTracer)

// WithSpanLimit keeps only the most recent n spans; n <= 0 keeps all.
func WithSpanLimit(n int) TracerOption {
	return func(t *DefaultTracer) { t.limit = n }
}

func WithSpanLogger(l *slog.Logger) TracerOption {
	return func(t *DefaultTracer) { t.logger = l }
}

func NewDefaultTracer(opts ...TracerOption) *DefaultTracer {
	t := &DefaultTracer{limit: 1000}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type spanKey struct{}

func (t *DefaultTracer) StartSpan(ctx context.Context, name string) (Span, context.Context) {
	s := &DefaultSpan{
		tracer: t,
		data: SpanData{
			Name:       name,
			StartTime:  time.Now(),
			Attributes: map[string]interface{}{},
		},
	}
	s.data.RequestID, _ = RequestIDFromContext(ctx)
	s.ctx = context.WithValue(ctx, spanKey{}, s)
	return s, s.ctx
}

func (t *DefaultTracer) SpanFromContext(ctx context.Context) Span {
	if s, ok := ctx.Value(spanKey{}).(*DefaultSpan); ok {
		return s
	}
	return &NoOpSpan{}
}

// GetSpans returns finished spans, oldest first.
func (t *DefaultTracer) GetSpans() []SpanData {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SpanData(nil), t.spans...)
}

func (t *DefaultTracer) finish(d SpanData) {
	t.mu.Lock()
	t.spans = append(t.spans, d)
	if over := len(t.spans) - t.limit; t.limit > 0 && over > 0 {
		t.spans = t.spans[over:]
	}
	t.mu.Unlock()

	if t.logger == nil {
		return
	}
	attrs := []any{"span", d.Name, "duration", d.Duration, "status", d.Status.String()}
	if d.RequestID != "" {
		attrs = append(attrs, "request_id", d.RequestID)
	}
	if d.Message != "" {
		attrs = append(attrs, "message", d.Message)
	}
	t.logger.Debug("span finished", attrs...)
}

// DefaultSpan belongs to a DefaultTracer. Mutations after End are dropped.
type DefaultSpan struct {
	tracer *DefaultTracer
	ctx    context.Context

	mu    sync.Mutex
	data  SpanData
	ended bool
}

// update runs fn under the span lock unless the span has ended.
func (s *DefaultSpan) update(fn func(d *SpanData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		fn(&s.data)
	}
}

func (s *DefaultSpan) SetAttribute(key string, value interface{}) {
	s.update(func(d *SpanData) { d.Attributes[key] = value })
}

func (s *DefaultSpan) SetStatus(code StatusCode, message string) {
	s.update(func(d *SpanData) { d.Status, d.Message = code, message })
}

func (s *DefaultSpan) AddEvent(name string, attributes map[string]interface{}) {
	s.update(func(d *SpanData) {
		d.Events = append(d.Events, Event{Name: name, Time: time.Now(), Attributes: attributes})
	})
}

func (s *DefaultSpan) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.data.EndTime = time.Now()
	s.data.Duration = s.data.EndTime.Sub(s.data.StartTime)
	d := s.data
	s.mu.Unlock()
	s.tracer.finish(d)
}

func (s *DefaultSpan) Context() context.Context { return s.ctx }

var (
	_ Tracer = (*NoOpTracer)(nil)
	_ Tracer = (*DefaultTracer)(nil)
	_ Span   = (*NoOpSpan)(nil)
	_ Span   = (*DefaultSpan)(nil)
)
