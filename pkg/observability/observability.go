// Package observability wires OpenTelemetry traces and metrics around the
// arithmetic engine: one counter per recorded operation, one per failure
// kind, and spans for replay sessions. Nothing here feeds back into a
// computation or an audit entry.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/RealDaniG/QFS-sub007/pkg/auditlog"
	"github.com/RealDaniG/QFS-sub007/pkg/config"
)

const instrumentationName = "qfs.certmath"

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string // host:port, gRPC
	BatchTimeout   time.Duration
	Enabled        bool
	Insecure       bool
}

// ConfigFrom enables export when an OTLP endpoint is configured.
func ConfigFrom(cfg *config.Config, version string) *Config {
	return &Config{
		ServiceName:    "qfs-certmath",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		BatchTimeout:   5 * time.Second,
		Enabled:        cfg.OTLPEndpoint != "",
		Insecure:       cfg.OTLPInsecure,
	}
}

// Provider owns the trace and metric providers and the engine instruments.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	operations metric.Int64Counter
	failures   metric.Int64Counter
	sessions   metric.Int64Counter
	duration   metric.Float64Histogram
}

// New creates a provider exporting over OTLP/gRPC. A disabled config yields
// a provider backed by the global no-op implementations.
func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = &Config{ServiceName: "qfs-certmath"}
	}
	p := &Provider{
		config: cfg,
		logger: slog.Default().With("component", "observability"),
	}

	if !cfg.Enabled {
		p.tracer = otel.Tracer(instrumentationName)
		p.meter = otel.Meter(instrumentationName)
		if err := p.initInstruments(); err != nil {
			return nil, err
		}
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init metric provider: %w", err)
	}

	p.tracer = p.tracerProvider.Tracer(instrumentationName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	p.meter = p.meterProvider.Meter(instrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	if err := p.initInstruments(); err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", cfg.ServiceName,
		"endpoint", cfg.OTLPEndpoint,
		"insecure", cfg.Insecure,
	)
	return p, nil
}

// NewWithProviders builds a Provider on caller-owned providers.
func NewWithProviders(mp metric.MeterProvider, tp trace.TracerProvider) (*Provider, error) {
	p := &Provider{
		config: &Config{ServiceName: "qfs-certmath", Enabled: true},
		tracer: tp.Tracer(instrumentationName),
		meter:  mp.Meter(instrumentationName),
		logger: slog.Default().With("component", "observability"),
	}
	if err := p.initInstruments(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments() error {
	var err error

	p.operations, err = p.meter.Int64Counter("qfs.math.operations",
		metric.WithDescription("Audited arithmetic operations, successful or not"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return err
	}

	p.failures, err = p.meter.Int64Counter("qfs.math.failures",
		metric.WithDescription("Audited arithmetic operations that failed, by error kind"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return err
	}

	p.sessions, err = p.meter.Int64Counter("qfs.audit.sessions",
		metric.WithDescription("Audit sessions run to completion, by outcome"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return err
	}

	p.duration, err = p.meter.Float64Histogram("qfs.audit.session.duration",
		metric.WithDescription("Wall time of an audit session"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	return err
}

// Shutdown flushes and stops providers created by New.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown metric provider", "error", err)
		}
	}
	return nil
}

func (p *Provider) Tracer() trace.Tracer { return p.tracer }

func (p *Provider) Meter() metric.Meter { return p.meter }

// EntryAppended counts one audited operation. It implements
// auditlog.Observer so a Provider can be attached to any LogContext.
func (p *Provider) EntryAppended(e auditlog.Entry) {
	ctx := context.Background()
	op := attribute.String("operation", e.Operation)
	p.operations.Add(ctx, 1, metric.WithAttributes(op))
	if kind, failed := e.Outputs["error"]; failed {
		p.failures.Add(ctx, 1, metric.WithAttributes(op, attribute.String("kind", kind)))
	}
}

// TrackSession starts a span for one audit session. The returned function
// ends it, recording the digest on success or the error otherwise.
func (p *Provider) TrackSession(ctx context.Context, session string) (context.Context, func(digest string, err error)) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "qfs.session",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("qfs.session", session)),
	)
	return ctx, func(digest string, err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
		} else {
			span.SetAttributes(attribute.String("qfs.digest", digest))
		}
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		p.sessions.Add(ctx, 1, attrs)
		p.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		span.End()
	}
}
