// Package tracing configures OpenTelemetry for the emulator and the admin
// client. Spans are exported to a writer (stdout by default) and propagate
// through Go contexts.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
)

const tracerName = "github.com/Adithya-Monish-Kumar-K/docstore-admin"

// Attribute keys shared by RPC and operation spans.
var (
	AttrRPCMethod      = attribute.Key("rpc.method")
	AttrResourceName   = attribute.Key("admin.resource.name")
	AttrOperationName  = attribute.Key("admin.operation.name")
	AttrOperationType  = attribute.Key("admin.operation.type")
	AttrOperationState = attribute.Key("admin.operation.state")
)

// Provider owns the SDK tracer provider installed by Setup.
type Provider struct {
	provider *sdktrace.TracerProvider
}

// Setup installs a global tracer provider exporting to stdout. When tracing
// is disabled the global no-op provider stays in place and Shutdown is a
// no-op.
func Setup(cfg config.TracingConfig, version string) (*Provider, error) {
	return SetupWriter(cfg, version, os.Stdout)
}

// SetupWriter is Setup with an explicit export destination.
func SetupWriter(cfg config.TracingConfig, version string, w io.Writer) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}
	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	otel.SetTracerProvider(provider)
	return &Provider{provider: provider}, nil
}

// Shutdown flushes buffered spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// Tracer returns the tracer of this module.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named name as a child of the span in ctx.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TraceID returns the hex trace ID of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
