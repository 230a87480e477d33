// Package tracing wires OpenTelemetry into the load generator: one client span
// per request, exported over OTLP, with optional W3C trace context headers so
// the target service can join its own spans to the run.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/flightload/internal/config"
)

const instrumentationName = "github.com/torosent/flightload"

const (
	runIDKey = attribute.Key("flightload.run_id")
	modeKey  = attribute.Key("flightload.mode")
)

// RunInfo identifies the load test whose requests are traced. Both fields land
// on the resource so every exported span can be tied back to one run.
type RunInfo struct {
	ID   string
	Mode string
}

// Provider owns the tracer used by the requesters. A zero or nil Provider is
// valid and traces nothing.
type Provider struct {
	tp        *sdktrace.TracerProvider
	propagate bool
}

// Init builds the provider for one run. Without an OTLP endpoint (flag, config
// or OTEL_EXPORTER_OTLP_ENDPOINT) it returns a provider that exports nothing.
func Init(ctx context.Context, cfg config.TracingConfig, run RunInfo) (*Provider, error) {
	if !cfg.Enabled() {
		return &Provider{}, nil
	}
	p := &Provider{propagate: cfg.ShouldPropagate()}
	sampler, err := samplerFor(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	endpoint := firstNonEmpty(cfg.Endpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if endpoint == "" {
		return p, nil
	}

	exp, err := dialExporter(ctx, cfg.Protocol, endpoint, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(runAttributes(cfg.ServiceName, run)...))
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

// runAttributes names the service (flag, then OTEL_SERVICE_NAME, then
// "flightload") and tags the run.
func runAttributes(serviceName string, run RunInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(firstNonEmpty(serviceName, os.Getenv("OTEL_SERVICE_NAME"), "flightload")),
	}
	if run.ID != "" {
		attrs = append(attrs, runIDKey.String(run.ID))
	}
	if run.Mode != "" {
		attrs = append(attrs, modeKey.String(run.Mode))
	}
	return attrs
}

func samplerFor(rate float64) (sdktrace.Sampler, error) {
	switch {
	case rate < 0 || rate > 1:
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", rate)
	case rate == 0:
		return sdktrace.NeverSample(), nil
	case rate == 1:
		return sdktrace.AlwaysSample(), nil
	}
	return sdktrace.TraceIDRatioBased(rate), nil
}

// dialExporter creates the OTLP span exporter; protocol defaults to grpc.
func dialExporter(ctx context.Context, protocol, endpoint string, plaintext bool) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", protocol)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.tp != nil
}

// Tracer returns the run's tracer, or a no-op tracer when nothing is exported.
func (p *Provider) Tracer() trace.Tracer {
	if !p.Enabled() {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tp.Tracer(instrumentationName)
}

// ShouldPropagate reports whether requests carry W3C trace headers.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// Shutdown flushes buffered spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
