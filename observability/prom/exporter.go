package prom

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/KamdynS/property-crew/observability"
)

// Exporter implements observability.Metrics and renders the Prometheus text
// format itself. Counters are keyed by their label set.
type Exporter struct {
	mu       sync.Mutex
	prefix   string
	requests map[string]float64
	latency  map[string]float64
	counts   map[string]float64
	tokens   map[string]float64
	errors   map[string]float64
	active   float64
}

// New creates a new in-process exporter. Metric names are prefixed with
// "property_crew".
func New() *Exporter {
	return &Exporter{
		prefix:   "property_crew",
		requests: make(map[string]float64),
		latency:  make(map[string]float64),
		counts:   make(map[string]float64),
		tokens:   make(map[string]float64),
		errors:   make(map[string]float64),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(e *Exporter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		e.WriteTo(w)
	})
}

// WriteTo renders every series, sorted by label set.
func (e *Exporter) WriteTo(w io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.writeFamily(w, "requests_total", "counter", e.requests)
	e.writeFamily(w, "latency_seconds_sum", "counter", e.latency)
	e.writeFamily(w, "latency_seconds_count", "counter", e.counts)
	e.writeFamily(w, "tokens_total", "counter", e.tokens)
	e.writeFamily(w, "errors_total", "counter", e.errors)
	fmt.Fprintf(w, "# TYPE %s_active_crews gauge\n", e.prefix)
	fmt.Fprintf(w, "%s_active_crews %s\n", e.prefix, formatFloat(e.active))
}

func (e *Exporter) writeFamily(w io.Writer, name, kind string, series map[string]float64) {
	if len(series) == 0 {
		return
	}
	fmt.Fprintf(w, "# TYPE %s_%s %s\n", e.prefix, name, kind)
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s_%s%s %s\n", e.prefix, name, k, formatFloat(series[k]))
	}
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func (e *Exporter) IncrementRequests(labels map[string]string) {
	e.mu.Lock()
	e.requests[labelKey(labels)]++
	e.mu.Unlock()
}

func (e *Exporter) RecordLatency(d time.Duration, labels map[string]string) {
	key := labelKey(labels)
	e.mu.Lock()
	e.latency[key] += d.Seconds()
	e.counts[key]++
	e.mu.Unlock()
}

func (e *Exporter) IncrementTokensUsed(tokens int, labels map[string]string) {
	e.mu.Lock()
	e.tokens[labelKey(labels)] += float64(tokens)
	e.mu.Unlock()
}

func (e *Exporter) RecordError(errorType string, labels map[string]string) {
	merged := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		merged[k] = v
	}
	merged["type"] = errorType
	e.mu.Lock()
	e.errors[labelKey(merged)]++
	e.mu.Unlock()
}

func (e *Exporter) SetActiveAgents(count int) {
	e.mu.Lock()
	e.active = float64(count)
	e.mu.Unlock()
}

// labelKey renders labels as {k="v",...} with keys sorted.
func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.Quote(labels[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Ensure interface compliance
var _ observability.Metrics = (*Exporter)(nil)
