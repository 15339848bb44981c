package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span is the subset of span behaviour the rest of the module relies on.
type Span interface {
	Context() SpanContext
	End()
	EndWithStatus(status SpanStatus, description string)
	SetAttribute(key string, value any)
	AddEvent(name string, attributes map[string]any)
	RecordError(err error)
}

// SpanContext holds W3C trace identity in hex form.
type SpanContext struct {
	TraceID string
	SpanID  string
	Sampled bool
}

// Valid reports whether both identifiers are present.
func (sc SpanContext) Valid() bool {
	return len(sc.TraceID) == 32 && len(sc.SpanID) == 16
}

// SpanStatus represents the outcome of a span.
type SpanStatus string

const (
	StatusUnset SpanStatus = "unset"
	StatusOK    SpanStatus = "ok"
	StatusError SpanStatus = "error"
)

// SpanKind describes the role of the span relative to external systems.
type SpanKind string

const (
	SpanKindInternal SpanKind = "internal"
	SpanKindServer   SpanKind = "server"
	SpanKindClient   SpanKind = "client"
)

type spanConfig struct {
	kind       SpanKind
	attributes map[string]any
}

// SpanStartOption configures StartSpan.
type SpanStartOption func(*spanConfig)

// WithSpanKind sets the span kind.
func WithSpanKind(kind SpanKind) SpanStartOption {
	return func(cfg *spanConfig) { cfg.kind = kind }
}

// WithAttributes attaches attributes to the span on start.
func WithAttributes(attrs map[string]any) SpanStartOption {
	return func(cfg *spanConfig) {
		if cfg.attributes == nil {
			cfg.attributes = make(map[string]any, len(attrs))
		}
		for k, v := range attrs {
			cfg.attributes[k] = v
		}
	}
}

type spanContextKey struct{}

// StartSpan begins a span derived from ctx. When tracing is disabled it
// returns a noop span that still carries any remote parent identity.
func StartSpan(ctx context.Context, name string, opts ...SpanStartOption) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := spanConfig{kind: SpanKindInternal}
	for _, opt := range opts {
		opt(&cfg)
	}

	tracer := CurrentTracer()
	if tracer == nil {
		return ctx, noopSpan{ctx: SpanContextFromContext(ctx)}
	}

	startOpts := []trace.SpanStartOption{trace.WithSpanKind(toOTELSpanKind(cfg.kind))}
	if len(cfg.attributes) > 0 {
		startOpts = append(startOpts, trace.WithAttributes(toAttributes(cfg.attributes)...))
	}
	ctx, span := tracer.tracer.Start(ctx, name, startOpts...)
	return ctx, &otelSpan{span: span}
}

// SpanFromContext returns the active span, or a noop span.
func SpanFromContext(ctx context.Context) Span {
	if ctx == nil {
		return noopSpan{}
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return &otelSpan{span: span}
	}
	return noopSpan{ctx: SpanContextFromContext(ctx)}
}

// SpanContextFromContext returns the identity of the active or remote span.
func SpanContextFromContext(ctx context.Context) SpanContext {
	if ctx == nil {
		return SpanContext{}
	}
	if sc := fromOTELSpanContext(trace.SpanContextFromContext(ctx)); sc.Valid() {
		return sc
	}
	if sc, ok := ctx.Value(spanContextKey{}).(SpanContext); ok {
		return sc
	}
	return SpanContext{}
}

// TraceIDFromContext extracts the trace identifier, or "" when unavailable.
func TraceIDFromContext(ctx context.Context) string {
	sc := SpanContextFromContext(ctx)
	if !sc.Valid() {
		return ""
	}
	return sc.TraceID
}

// WithSpanContext marks sc as the remote parent for spans started from the
// returned context.
func WithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if !sc.Valid() {
		return ctx
	}
	if remote, err := toOTELSpanContext(sc); err == nil {
		ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
	}
	return context.WithValue(ctx, spanContextKey{}, sc)
}

func fromOTELSpanContext(sc trace.SpanContext) SpanContext {
	if !sc.IsValid() {
		return SpanContext{}
	}
	return SpanContext{TraceID: sc.TraceID().String(), SpanID: sc.SpanID().String(), Sampled: sc.IsSampled()}
}

func toOTELSpanContext(sc SpanContext) (trace.SpanContext, error) {
	traceID, err := trace.TraceIDFromHex(sc.TraceID)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("parse trace id: %w", err)
	}
	spanID, err := trace.SpanIDFromHex(sc.SpanID)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("parse span id: %w", err)
	}
	cfg := trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, Remote: true}
	if sc.Sampled {
		cfg.TraceFlags = trace.FlagsSampled
	}
	return trace.NewSpanContext(cfg), nil
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) Context() SpanContext { return fromOTELSpanContext(s.span.SpanContext()) }

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) EndWithStatus(status SpanStatus, description string) {
	switch status {
	case StatusError:
		s.span.SetStatus(codes.Error, description)
	case StatusOK:
		s.span.SetStatus(codes.Ok, description)
	}
	s.span.End()
}

func (s *otelSpan) SetAttribute(key string, value any) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	s.span.SetAttributes(attribute.KeyValue{Key: attribute.Key(key), Value: toAttributeValue(value)})
}

func (s *otelSpan) AddEvent(name string, attributes map[string]any) {
	if len(attributes) == 0 {
		s.span.AddEvent(name)
		return
	}
	s.span.AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

func (s *otelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

type noopSpan struct {
	ctx SpanContext
}

func (n noopSpan) Context() SpanContext           { return n.ctx }
func (noopSpan) End()                             {}
func (noopSpan) EndWithStatus(SpanStatus, string) {}
func (noopSpan) SetAttribute(string, any)         {}
func (noopSpan) AddEvent(string, map[string]any)  {}
func (noopSpan) RecordError(error)                {}

func toAttributes(attrs map[string]any) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, attribute.KeyValue{Key: attribute.Key(k), Value: toAttributeValue(v)})
	}
	return kvs
}

func toAttributeValue(value any) attribute.Value {
	switch v := value.(type) {
	case string:
		return attribute.StringValue(v)
	case bool:
		return attribute.BoolValue(v)
	case int:
		return attribute.IntValue(v)
	case int64:
		return attribute.Int64Value(v)
	case float64:
		return attribute.Float64Value(v)
	case []int:
		return attribute.IntSliceValue(v)
	case fmt.Stringer:
		return attribute.StringValue(v.String())
	default:
		return attribute.StringValue(fmt.Sprint(v))
	}
}

func fromAttribute(kv attribute.KeyValue) any {
	switch kv.Value.Type() {
	case attribute.BOOL:
		return kv.Value.AsBool()
	case attribute.INT64:
		return kv.Value.AsInt64()
	case attribute.FLOAT64:
		return kv.Value.AsFloat64()
	case attribute.STRING:
		return kv.Value.AsString()
	case attribute.INT64SLICE:
		return kv.Value.AsInt64Slice()
	case attribute.STRINGSLICE:
		return kv.Value.AsStringSlice()
	default:
		return kv.Value.Emit()
	}
}

func toOTELSpanKind(kind SpanKind) trace.SpanKind {
	switch kind {
	case SpanKindServer:
		return trace.SpanKindServer
	case SpanKindClient:
		return trace.SpanKindClient
	default:
		return trace.SpanKindInternal
	}
}

func fromOTELSpanKind(kind trace.SpanKind) SpanKind {
	switch kind {
	case trace.SpanKindServer:
		return SpanKindServer
	case trace.SpanKindClient:
		return SpanKindClient
	default:
		return SpanKindInternal
	}
}
