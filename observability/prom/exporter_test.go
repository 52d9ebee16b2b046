package prom

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestExporterMetricsAndHandler(t *testing.T) {
	e := New()
	httpLabels := map[string]string{"route": "/api/property", "method": "GET", "status_code": "200"}
	e.IncrementRequests(httpLabels)
	e.RecordLatency(3*time.Millisecond, httpLabels)
	e.IncrementTokensUsed(7, map[string]string{"provider": "openai", "model": "gpt-3.5-turbo"})
	e.RecordError("tool_error", map[string]string{"tool_name": "search"})
	e.SetActiveAgents(2)

	rr := httptest.NewRecorder()
	Handler(e).ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body := rr.Body.String()

	for _, want := range []string{
		`property_crew_requests_total{method="GET",route="/api/property",status_code="200"} 1`,
		`property_crew_latency_seconds_count{method="GET",route="/api/property",status_code="200"} 1`,
		`property_crew_tokens_total{model="gpt-3.5-turbo",provider="openai"} 7`,
		`property_crew_errors_total{tool_name="search",type="tool_error"} 1`,
		`property_crew_active_crews 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics body missing %q:\n%s", want, body)
		}
	}
}

func TestExporterConcurrentWrites(t *testing.T) {
	e := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.IncrementRequests(nil)
			e.RecordLatency(time.Millisecond, nil)
		}()
	}
	wg.Wait()

	var sb strings.Builder
	e.WriteTo(&sb)
	if !strings.Contains(sb.String(), "property_crew_requests_total 50") {
		t.Fatalf("unexpected output:\n%s", sb.String())
	}
}
