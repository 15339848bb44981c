package tracing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/RowanDark/citadel"

// Config controls how tracing is initialised for the process.
type Config struct {
	// ServiceName is recorded on exported spans. Defaults to "citadel".
	ServiceName string
	// SampleRatio is the probability of sampling a root span, clamped to
	// [0,1]. Zero disables tracing.
	SampleRatio float64
	// FilePath receives one JSON object per finished span. Empty disables
	// the file sink; spans are then sampled but not exported.
	FilePath string
}

var (
	globalMu     sync.RWMutex
	globalTracer *Tracer
)

// Setup installs the process tracer. The returned function flushes pending
// spans and must be called before exit.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	tracer, err := newTracer(cfg)
	if err != nil {
		return nil, err
	}
	if tracer == nil {
		return func(context.Context) error { return nil }, nil
	}

	globalMu.Lock()
	previous := globalTracer
	globalTracer = tracer
	globalMu.Unlock()
	if previous != nil {
		_ = previous.Shutdown(ctx)
	}

	otel.SetTracerProvider(tracer.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		globalMu.Lock()
		if globalTracer == tracer {
			globalTracer = nil
		}
		globalMu.Unlock()
		return tracer.Shutdown(ctx)
	}, nil
}

// CurrentTracer returns the active tracer, or nil if tracing is disabled.
func CurrentTracer() *Tracer {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalTracer
}

// Tracer owns the SDK provider for the process.
type Tracer struct {
	provider    *sdktrace.TracerProvider
	tracer      trace.Tracer
	serviceName string
}

func newTracer(cfg Config) (*Tracer, error) {
	ratio := math.Max(0, math.Min(1, cfg.SampleRatio))
	if ratio == 0 {
		return nil, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "citadel"
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(sdkresource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}
	if path := strings.TrimSpace(cfg.FilePath); path != "" {
		exp, err := newFileExporter(path)
		if err != nil {
			return nil, fmt.Errorf("open span file: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	return &Tracer{
		provider:    provider,
		tracer:      provider.Tracer(instrumentationName),
		serviceName: serviceName,
	}, nil
}

// Shutdown flushes exporters and releases resources.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return t.provider.Shutdown(shutdownCtx)
}

// ServiceName returns the configured service name.
func (t *Tracer) ServiceName() string {
	if t == nil {
		return ""
	}
	return t.serviceName
}
