// Package observability builds the OpenTelemetry tracer and meter providers
// used by the carekit HTTP client and sandbox.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mindhaven/carekit/logger"
)

// Provider manages the lifecycle of the tracer and meter providers.
type Provider interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
	// Shutdown flushes pending telemetry and releases exporters.
	Shutdown(ctx context.Context) error
	ForceFlush(ctx context.Context) error
}

type provider struct {
	config         Config
	log            logger.Logger
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	mu             sync.Mutex
}

// NewProvider creates providers for cfg and installs them, together with the
// W3C trace-context propagator, as the otel globals. A disabled cfg yields
// no-op providers and leaves the globals alone.
func NewProvider(cfg *Config, log logger.Logger) (Provider, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if log == nil {
		log = logger.Nop()
	}

	safeCfg := cfg.withDefaults()
	if err := safeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}
	if !safeCfg.Enabled {
		log.Debug().Msg("Observability disabled, using no-op providers")
		return newNoopProvider(), nil
	}

	p := &provider{config: safeCfg, log: log}

	res, err := p.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	if err := p.initTraceProvider(res); err != nil {
		return nil, fmt.Errorf("failed to initialize trace provider: %w", err)
	}
	if err := p.initMeterProvider(res); err != nil {
		_ = p.tracerProvider.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
	}

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("service", safeCfg.ServiceName).
		Str("endpoint", safeCfg.Endpoint).
		Str("protocol", safeCfg.Protocol).
		Msg("Observability provider initialized")
	return p, nil
}

func (p *provider) writer() io.Writer {
	if p.config.Writer != nil {
		return p.config.Writer
	}
	return os.Stdout
}

func (p *provider) createResource() (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(p.config.ServiceName)),
	}
	if p.config.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(p.config.ServiceVersion)))
	}
	if p.config.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironmentName(p.config.Environment)))
	}
	custom, err := resource.New(context.Background(), attrs...)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), custom)
}

func (p *provider) initTraceProvider(res *resource.Resource) error {
	exporter, err := p.createTraceExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(p.config.SampleRate))),
	)
	return nil
}

func (p *provider) createTraceExporter() (sdktrace.SpanExporter, error) {
	if p.config.Endpoint == EndpointStdout {
		return stdouttrace.New(stdouttrace.WithWriter(p.writer()), stdouttrace.WithPrettyPrint())
	}

	switch p.config.Protocol {
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(p.config.Endpoint)}
		if p.config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(p.config.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(p.config.Headers))
		}
		return otlptracehttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.Endpoint)}
		if p.config.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(p.config.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(p.config.Headers))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("trace protocol '%s': %w", p.config.Protocol, ErrInvalidProtocol)
	}
}

func (p *provider) TracerProvider() trace.TracerProvider {
	return p.tracerProvider
}

func (p *provider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

// Shutdown stops both providers, flushing buffered spans and metrics.
//
//nolint:dupl // Shutdown and ForceFlush have similar structure but different semantics
func (p *provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown trace provider: %w", err))
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// ForceFlush exports pending telemetry without stopping the providers.
//
//nolint:dupl // Shutdown and ForceFlush have similar structure but different semantics
func (p *provider) ForceFlush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if err := p.tracerProvider.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush trace provider: %w", err))
	}
	if err := p.meterProvider.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush meter provider: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("flush errors: %w", errors.Join(errs...))
	}
	return nil
}
