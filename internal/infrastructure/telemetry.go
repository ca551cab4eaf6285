package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/architeacher/adaptivebreaker/internal/config"
)

const (
	ExporterTypeGRPC   = "grpc"
	ExporterTypeStdOut = "stdout"

	attrCommitSHA = "service.commit_sha"
)

var ErrUnsupportedExporter = errors.New("unsupported trace exporter")

// spanExporter builds an exporter and the func releasing what it holds
// beyond the exporter itself.
type spanExporter func(ctx context.Context, cfg config.Telemetry) (sdktrace.SpanExporter, func() error, error)

var spanExporters = map[string]spanExporter{
	ExporterTypeGRPC:   collectorExporter,
	ExporterTypeStdOut: stdoutExporter,
}

// NewTracerProvider creates the tracer provider spans of guarded calls and
// admin requests are exported through, and installs it as the global one.
// The returned shutdown flushes pending spans before closing the exporter.
func NewTracerProvider(app config.App, cfg config.Telemetry) (trace.TracerProvider, func(context.Context) error, error) {
	ctx := context.Background()

	newExporter, ok := spanExporters[strings.ToLower(cfg.ExporterType)]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedExporter, cfg.ExporterType)
	}

	res, err := serviceResource(ctx, app, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("building trace resource: %w", err)
	}

	exporter, release, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.Traces.SamplerRatio)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), release())
	}

	return tp, shutdown, nil
}

// NewNoopTracerProvider is used when tracing is disabled.
func NewNoopTracerProvider() trace.TracerProvider {
	return noop.NewTracerProvider()
}

// serviceResource describes the breaker host. The OTel service name wins over
// the app name so one binary can report under several names.
func serviceResource(ctx context.Context, app config.App, cfg config.Telemetry) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = app.ServiceName
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		semconv.ServiceVersion(app.ServiceVersion),
		semconv.DeploymentEnvironment(app.Env.Name),
	}

	if app.CommitSHA != "" {
		attrs = append(attrs, attribute.String(attrCommitSHA, app.CommitSHA))
	}

	return resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
}

// sampler keeps every root span at ratio 1 and otherwise samples by trace id,
// always following the parent's decision.
func sampler(ratio float64) sdktrace.Sampler {
	root := sdktrace.AlwaysSample()
	if ratio < 1 {
		root = sdktrace.TraceIDRatioBased(ratio)
	}

	return sdktrace.ParentBased(root)
}

func collectorExporter(ctx context.Context, cfg config.Telemetry) (sdktrace.SpanExporter, func() error, error) {
	conn, err := grpc.NewClient(
		net.JoinHostPort(cfg.OtelGRPCHost, cfg.OtelGRPCPort),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing trace collector: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()

		return nil, nil, fmt.Errorf("creating collector exporter: %w", err)
	}

	return exporter, conn.Close, nil
}

func stdoutExporter(context.Context, config.Telemetry) (sdktrace.SpanExporter, func() error, error) {
	exporter, err := stdouttrace.New()
	if err != nil {
		return nil, nil, fmt.Errorf("creating stdout exporter: %w", err)
	}

	return exporter, func() error { return nil }, nil
}
