package tracing

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// fileExporter appends finished spans to a JSONL file.
type fileExporter struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

func newFileExporter(path string) (*fileExporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileExporter{f: f, enc: json.NewEncoder(f)}, nil
}

func (e *fileExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return nil
	}
	for _, span := range spans {
		snap := snapshotOf(span)
		if snap == nil {
			continue
		}
		if err := e.enc.Encode(snap); err != nil {
			return err
		}
	}
	return nil
}

func (e *fileExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return nil
	}
	err := e.f.Close()
	e.f = nil
	return err
}

type spanEvent struct {
	Name       string         `json:"name"`
	Time       time.Time      `json:"time"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// SpanSnapshot is the JSON form of a finished span.
type SpanSnapshot struct {
	TraceID      string         `json:"trace_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	Name         string         `json:"name"`
	Kind         SpanKind       `json:"kind"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	Events       []spanEvent    `json:"events,omitempty"`
	Status       SpanStatus     `json:"status"`
	StatusMsg    string         `json:"status_message,omitempty"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	ServiceName  string         `json:"service_name,omitempty"`
}

// Duration returns the elapsed time recorded by the span.
func (s *SpanSnapshot) Duration() time.Duration {
	if s == nil || s.StartTime.IsZero() || s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

func snapshotOf(span sdktrace.ReadOnlySpan) *SpanSnapshot {
	if span == nil || !span.SpanContext().IsValid() {
		return nil
	}
	sc := span.SpanContext()

	attrs := make(map[string]any, len(span.Attributes()))
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = fromAttribute(kv)
	}
	events := make([]spanEvent, 0, len(span.Events()))
	for _, ev := range span.Events() {
		evAttrs := make(map[string]any, len(ev.Attributes))
		for _, kv := range ev.Attributes {
			evAttrs[string(kv.Key)] = fromAttribute(kv)
		}
		events = append(events, spanEvent{Name: ev.Name, Time: ev.Time, Attributes: evAttrs})
	}

	status := StatusUnset
	switch span.Status().Code {
	case codes.Ok:
		status = StatusOK
	case codes.Error:
		status = StatusError
	}

	snap := &SpanSnapshot{
		TraceID:    sc.TraceID().String(),
		SpanID:     sc.SpanID().String(),
		Name:       span.Name(),
		Kind:       fromOTELSpanKind(span.SpanKind()),
		Attributes: attrs,
		Events:     events,
		Status:     status,
		StatusMsg:  span.Status().Description,
		StartTime:  span.StartTime(),
		EndTime:    span.EndTime(),
	}
	if parent := span.Parent(); parent.IsValid() {
		snap.ParentSpanID = parent.SpanID().String()
	}
	if res := span.Resource(); res != nil {
		if v, ok := res.Set().Value(semconv.ServiceNameKey); ok {
			snap.ServiceName = v.AsString()
		}
	}
	return snap
}
