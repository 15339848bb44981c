// Package metrics keeps process counters and exposes them in the Prometheus
// text format.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RowanDark/citadel/internal/observability/tracing"
)

type collector interface {
	write(sb *strings.Builder)
}

type series struct {
	name   string
	help   string
	labels []string
}

func (s series) key(values []string) string {
	if len(values) != len(s.labels) {
		panic(fmt.Sprintf("%s: expected %d labels, got %d", s.name, len(s.labels), len(values)))
	}
	return strings.Join(values, "\x00")
}

// labelSet renders {a="x",b="y"} for key, appending extra verbatim.
func (s series) labelSet(key string, extra string) string {
	if len(s.labels) == 0 && extra == "" {
		return ""
	}
	parts := make([]string, 0, len(s.labels)+1)
	if len(s.labels) > 0 {
		for i, v := range strings.Split(key, "\x00") {
			parts = append(parts, fmt.Sprintf("%s=\"%s\"", s.labels[i], escapeLabel(v)))
		}
	}
	if extra != "" {
		parts = append(parts, extra)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func (s series) header(sb *strings.Builder, kind string) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n", s.name, s.help, s.name, kind)
}

type counterVec struct {
	series
	mu     sync.RWMutex
	values map[string]float64
}

func newCounterVec(name, help string, labels ...string) *counterVec {
	return &counterVec{series: series{name, help, labels}, values: make(map[string]float64)}
}

func (cv *counterVec) Add(delta float64, values ...string) {
	key := cv.key(values)
	cv.mu.Lock()
	cv.values[key] += delta
	cv.mu.Unlock()
}

func (cv *counterVec) Inc(values ...string) { cv.Add(1, values...) }

func (cv *counterVec) value(values ...string) float64 {
	cv.mu.RLock()
	defer cv.mu.RUnlock()
	return cv.values[cv.key(values)]
}

func (cv *counterVec) write(sb *strings.Builder) {
	cv.header(sb, "counter")
	cv.mu.RLock()
	defer cv.mu.RUnlock()
	for _, key := range sortedKeys(cv.values) {
		fmt.Fprintf(sb, "%s%s %g\n", cv.name, cv.labelSet(key, ""), cv.values[key])
	}
}

type histogramValue struct {
	counts   []uint64
	sum      float64
	total    uint64
	exemplar string
}

type histogramVec struct {
	series
	buckets []float64
	mu      sync.RWMutex
	values  map[string]*histogramValue
}

func newHistogramVec(name, help string, labels ...string) *histogramVec {
	return &histogramVec{
		series:  series{name, help, labels},
		buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		values:  make(map[string]*histogramValue),
	}
}

// Observe records sample. The trace ID on ctx, if any, is kept as the
// exemplar for the series.
func (hv *histogramVec) Observe(ctx context.Context, sample float64, values ...string) {
	key := hv.key(values)
	hv.mu.Lock()
	defer hv.mu.Unlock()
	entry, ok := hv.values[key]
	if !ok {
		entry = &histogramValue{counts: make([]uint64, len(hv.buckets)+1)}
		hv.values[key] = entry
	}
	entry.sum += sample
	entry.total++
	idx := sort.SearchFloat64s(hv.buckets, sample)
	entry.counts[idx]++
	if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
		entry.exemplar = traceID
	}
}

func (hv *histogramVec) write(sb *strings.Builder) {
	hv.header(sb, "histogram")
	hv.mu.RLock()
	defer hv.mu.RUnlock()
	for _, key := range sortedKeys(hv.values) {
		entry := hv.values[key]
		var cumulative uint64
		for i, upper := range hv.buckets {
			cumulative += entry.counts[i]
			fmt.Fprintf(sb, "%s_bucket%s %d\n", hv.name, hv.labelSet(key, fmt.Sprintf("le=\"%g\"", upper)), cumulative)
		}
		cumulative += entry.counts[len(hv.buckets)]
		fmt.Fprintf(sb, "%s_bucket%s %d\n", hv.name, hv.labelSet(key, "le=\"+Inf\""), cumulative)
		fmt.Fprintf(sb, "%s_sum%s %g", hv.name, hv.labelSet(key, ""), entry.sum)
		if entry.exemplar != "" {
			fmt.Fprintf(sb, " # {trace_id=\"%s\"}", escapeLabel(entry.exemplar))
		}
		sb.WriteString("\n")
		fmt.Fprintf(sb, "%s_count%s %d\n", hv.name, hv.labelSet(key, ""), entry.total)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escapeLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return strings.ReplaceAll(value, "\"", "\\\"")
}

var (
	passes       = newCounterVec("citadel_passes_total", "Cipher passes by mode, direction and outcome.", "mode", "direction", "outcome")
	blocks       = newCounterVec("citadel_blocks_total", "Blocks processed by successful cipher passes.", "mode", "direction")
	passLatency  = newHistogramVec("citadel_pass_duration_seconds", "Duration of cipher passes.", "mode", "direction")
	rpcRequests  = newCounterVec("citadel_rpc_requests_total", "Requests handled by the HTTP and gRPC front ends.", "component", "method")
	rpcErrors    = newCounterVec("citadel_rpc_errors_total", "Requests that ended in an error, by status code.", "component", "method", "code")
	rpcLatency   = newHistogramVec("citadel_rpc_duration_seconds", "Latency of HTTP and gRPC handlers, by status code.", "component", "method", "code")
	recipeEvents = newCounterVec("citadel_recipe_events_total", "Recipe store mutations.", "action")

	collectors = []collector{passes, blocks, passLatency, rpcRequests, rpcErrors, rpcLatency, recipeEvents}
)

// Handler serves every collector in the Prometheus text format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var sb strings.Builder
		for _, c := range collectors {
			c.write(&sb)
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(sb.String()))
	})
}

// ObservePass records one cipher pass. blockCount is only counted when err
// is nil.
func ObservePass(ctx context.Context, mode, direction string, blockCount int, dur time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	passes.Inc(mode, direction, outcome)
	if err == nil {
		blocks.Add(float64(blockCount), mode, direction)
	}
	passLatency.Observe(ctx, dur.Seconds(), mode, direction)
}

// RecordRequest counts a handled request and observes its latency under
// code. The errors counter only moves when failed is set.
func RecordRequest(ctx context.Context, component, method, code string, failed bool, dur time.Duration) {
	rpcRequests.Inc(component, method)
	if failed {
		rpcErrors.Inc(component, method, code)
	}
	rpcLatency.Observe(ctx, dur.Seconds(), component, method, code)
}

// RecordRecipeEvent counts a recipe save or delete.
func RecordRecipeEvent(action string) {
	recipeEvents.Inc(action)
}
