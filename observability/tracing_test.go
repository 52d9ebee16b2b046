package observability

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDefaultTracerAndHTTPHelpers(t *testing.T) {
	oldT := TracerImpl
	tracer := NewDefaultTracer()
	SetTracer(tracer)
	t.Cleanup(func() { TracerImpl = oldT })

	ctx := WithRequestID(context.Background(), "req-1")
	span, ctx := TracerImpl.StartSpan(ctx, "op")
	span.SetAttribute(AttrHTTPMethod, "GET")
	span.SetStatus(StatusCodeOk, "")
	span.AddEvent("evt", map[string]interface{}{"k": "v"})
	if TracerImpl.SpanFromContext(ctx) != span {
		t.Fatalf("span not stored in context")
	}
	span.End()
	span.End()

	spans := tracer.GetSpans()
	if len(spans) != 1 || spans[0].RequestID != "req-1" || spans[0].Attributes[AttrHTTPMethod] != "GET" {
		t.Fatalf("unexpected spans %+v", spans)
	}

	req := httptest.NewRequest("GET", "/", nil)
	ctx2 := ExtractHTTPContext(context.Background(), req)
	rw := httptest.NewRecorder()
	InjectHTTPHeaders(rw, ctx2)
	if rw.Header().Get(HeaderRequestID) == "" {
		t.Fatalf("missing header")
	}

	req.Header.Set(HeaderRequestID, "given")
	if id, _ := RequestIDFromContext(ExtractHTTPContext(context.Background(), req)); id != "given" {
		t.Fatalf("incoming request id not kept: %q", id)
	}
}

func TestDefaultTracerLimitAndLogger(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tracer := NewDefaultTracer(WithSpanLimit(2), WithSpanLogger(logger))

	for _, name := range []string{"a", "b", "c"} {
		span, _ := tracer.StartSpan(context.Background(), name)
		span.SetStatus(StatusCodeError, "failed "+name)
		span.End()
	}
	spans := tracer.GetSpans()
	if len(spans) != 2 || spans[0].Name != "b" || spans[1].Name != "c" {
		t.Fatalf("limit not applied: %+v", spans)
	}
	if !strings.Contains(buf.String(), "span=c") || !strings.Contains(buf.String(), "status=error") {
		t.Fatalf("span not logged: %s", buf.String())
	}
}
