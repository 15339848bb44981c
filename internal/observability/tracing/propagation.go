package tracing

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc/metadata"
)

const traceparentHeader = "traceparent"

var errTraceParent = errors.New("invalid traceparent")

// ParseTraceParent converts a W3C traceparent header into a span context.
func ParseTraceParent(header string) (SpanContext, error) {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 {
		return SpanContext{}, fmt.Errorf("%w: want 4 fields, got %d", errTraceParent, len(parts))
	}
	version, traceID, spanID, flags := parts[0], parts[1], parts[2], parts[3]
	if len(version) != 2 || len(traceID) != 32 || len(spanID) != 16 || len(flags) != 2 {
		return SpanContext{}, fmt.Errorf("%w: malformed field length", errTraceParent)
	}
	for _, field := range []string{version, traceID, spanID, flags} {
		if _, err := hex.DecodeString(field); err != nil {
			return SpanContext{}, fmt.Errorf("%w: %v", errTraceParent, err)
		}
	}
	sc := SpanContext{TraceID: traceID, SpanID: spanID, Sampled: flags[1]&1 == 1}
	if !sc.Valid() || strings.Trim(traceID, "0") == "" || strings.Trim(spanID, "0") == "" {
		return SpanContext{}, fmt.Errorf("%w: zero identifier", errTraceParent)
	}
	return sc, nil
}

// FormatTraceParent renders sc as a W3C traceparent value.
func FormatTraceParent(sc SpanContext) string {
	if !sc.Valid() {
		return ""
	}
	flags := "00"
	if sc.Sampled {
		flags = "01"
	}
	return fmt.Sprintf("00-%s-%s-%s", sc.TraceID, sc.SpanID, flags)
}

// ContextFromHTTP attaches the caller's traceparent, if any, to the request
// context.
func ContextFromHTTP(r *http.Request) context.Context {
	ctx := r.Context()
	sc, err := ParseTraceParent(r.Header.Get(traceparentHeader))
	if err != nil {
		return ctx
	}
	return WithSpanContext(ctx, sc)
}

// InjectHTTP writes the current span context onto h.
func InjectHTTP(ctx context.Context, h http.Header) {
	if sc := SpanContextFromContext(ctx); sc.Valid() {
		h.Set(traceparentHeader, FormatTraceParent(sc))
	}
}

// ContextWithMetadataSpan attaches the traceparent found in incoming gRPC
// metadata to ctx.
func ContextWithMetadataSpan(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	for _, header := range md.Get(traceparentHeader) {
		if sc, err := ParseTraceParent(header); err == nil {
			return WithSpanContext(ctx, sc)
		}
	}
	return ctx
}

// InjectTraceParent adds the current span context to outgoing metadata.
func InjectTraceParent(ctx context.Context) context.Context {
	sc := SpanContextFromContext(ctx)
	if !sc.Valid() {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, traceparentHeader, FormatTraceParent(sc))
}
