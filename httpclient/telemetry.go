package httpclient

import (
	"context"
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/mindhaven/carekit/httpclient"
	spanName            = "carekit.http.send"

	// MetricRequests counts attempts by method and outcome
	MetricRequests = "carekit.http.client.requests"
	// MetricDuration records attempt latency in seconds
	MetricDuration = "carekit.http.client.duration"

	outcomeSuccess = "success"
)

type telemetry struct {
	tracer     oteltrace.Tracer
	propagator propagation.TextMapPropagator
	requests   metric.Int64Counter
	duration   metric.Float64Histogram
}

// newTelemetry builds instruments from the given providers, falling back to
// the otel globals when nil.
func newTelemetry(tp oteltrace.TracerProvider, mp metric.MeterProvider) *telemetry {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(instrumentationName)
	requests, err := meter.Int64Counter(MetricRequests,
		metric.WithDescription("HTTP client attempts by method and outcome"),
		metric.WithUnit("{request}"))
	if err != nil {
		requests, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Int64Counter(MetricRequests)
	}
	duration, err := meter.Float64Histogram(MetricDuration,
		metric.WithDescription("HTTP client attempt duration"),
		metric.WithUnit("s"))
	if err != nil {
		duration, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Float64Histogram(MetricDuration)
	}

	return &telemetry{
		tracer: tp.Tracer(instrumentationName),
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		requests: requests,
		duration: duration,
	}
}

func (t *telemetry) start(ctx context.Context, method, rawURL string) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, spanName,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", rawURL),
		))
}

// inject writes traceparent and baggage headers for the span in ctx.
func (t *telemetry) inject(ctx context.Context, header nethttp.Header) {
	t.propagator.Inject(ctx, propagation.HeaderCarrier(header))
}

// finish closes the span and records metrics for one attempt.
func (t *telemetry) finish(ctx context.Context, span oteltrace.Span, method string, statusCode int, elapsed time.Duration, ce *ClassifiedError) {
	outcome := outcomeSuccess
	if ce != nil {
		outcome = ce.Kind().String()
	}
	if statusCode != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", statusCode))
	}
	if ce != nil {
		span.SetAttributes(attribute.String("carekit.error.kind", outcome))
		span.RecordError(ce)
		span.SetStatus(codes.Error, ce.Kind().String())
	}
	span.End()

	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("outcome", outcome),
	)
	t.requests.Add(ctx, 1, attrs)
	t.duration.Record(ctx, elapsed.Seconds(), attrs)
}
