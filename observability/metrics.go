package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc/credentials/insecure"
)

func (p *provider) initMeterProvider(res *resource.Resource) error {
	exporter, err := p.createMetricExporter()
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(p.config.MetricInterval))
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	return nil
}

func (p *provider) createMetricExporter() (sdkmetric.Exporter, error) {
	if p.config.Endpoint == EndpointStdout {
		return stdoutmetric.New(stdoutmetric.WithWriter(p.writer()), stdoutmetric.WithPrettyPrint())
	}

	switch p.config.Protocol {
	case ProtocolHTTP:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(p.config.Endpoint)}
		if p.config.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(p.config.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(p.config.Headers))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.Endpoint)}
		if p.config.Insecure {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(p.config.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(p.config.Headers))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("metrics protocol '%s': %w", p.config.Protocol, ErrInvalidProtocol)
	}
}
