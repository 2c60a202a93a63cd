// Package testing provides in-memory OpenTelemetry providers and assertion
// helpers for carekit tests. Nothing here talks to a collector.
//
// Usage:
//
//	tp := NewTestTraceProvider()
//	defer tp.Shutdown(context.Background())
//
//	client := httpclient.NewBuilder(log).WithTelemetry(tp, nil)
//	...
//	spans := NewSpanCollector(t, tp.Exporter).WithName("carekit.http.send")
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const attrValueMismatchErrMsg = "attribute %s value mismatch"

// TestTraceProvider wraps the SDK TracerProvider and its in-memory exporter.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider exports spans synchronously into memory.
func NewTestTraceProvider() *TestTraceProvider {
	exporter := tracetest.NewInMemoryExporter()
	return &TestTraceProvider{
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)),
		Exporter:       exporter,
	}
}

// TestMeterProvider wraps the SDK MeterProvider and a manual reader.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider collects metrics only when Collect is called.
func NewTestMeterProvider() *TestMeterProvider {
	reader := sdkmetric.NewManualReader()
	return &TestMeterProvider{
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		Reader:        reader,
	}
}

// Collect reads every metric recorded so far.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, tmp.Reader.Collect(context.Background(), &rm), "failed to collect metrics")
	return rm
}

// SpanCollector filters captured spans fluently.
type SpanCollector struct {
	t     *testing.T
	spans tracetest.SpanStubs
}

func NewSpanCollector(t *testing.T, exporter *tracetest.InMemoryExporter) *SpanCollector {
	t.Helper()
	return &SpanCollector{t: t, spans: exporter.GetSpans()}
}

func (sc *SpanCollector) Len() int {
	return len(sc.spans)
}

// Get returns the span at index, failing the test when out of range.
func (sc *SpanCollector) Get(index int) tracetest.SpanStub {
	sc.t.Helper()
	require.Less(sc.t, index, len(sc.spans), "span index out of bounds")
	return sc.spans[index]
}

func (sc *SpanCollector) WithName(name string) *SpanCollector {
	return sc.filter(func(s *tracetest.SpanStub) bool { return s.Name == name })
}

func (sc *SpanCollector) WithAttribute(key string, value any) *SpanCollector {
	return sc.filter(func(s *tracetest.SpanStub) bool {
		for _, attr := range s.Attributes {
			if attr.Key == attribute.Key(key) && matchesValue(attr.Value, value) {
				return true
			}
		}
		return false
	})
}

func (sc *SpanCollector) filter(keep func(*tracetest.SpanStub) bool) *SpanCollector {
	filtered := make(tracetest.SpanStubs, 0, len(sc.spans))
	for i := range sc.spans {
		if keep(&sc.spans[i]) {
			filtered = append(filtered, sc.spans[i])
		}
	}
	return &SpanCollector{t: sc.t, spans: filtered}
}

func (sc *SpanCollector) AssertCount(expected int) *SpanCollector {
	sc.t.Helper()
	assert.Len(sc.t, sc.spans, expected, "unexpected number of spans")
	return sc
}

func matchesValue(v attribute.Value, expected any) bool {
	switch e := expected.(type) {
	case string:
		return v.AsString() == e
	case int:
		return v.AsInt64() == int64(e)
	case int64:
		return v.AsInt64() == e
	case bool:
		return v.AsBool() == e
	default:
		return false
	}
}

// AssertSpanAttribute asserts that span carries key with the expected value.
func AssertSpanAttribute(t *testing.T, span *tracetest.SpanStub, key string, expected any) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) != key {
			continue
		}
		switch v := expected.(type) {
		case string:
			assert.Equal(t, v, attr.Value.AsString(), attrValueMismatchErrMsg, key)
		case int:
			assert.Equal(t, int64(v), attr.Value.AsInt64(), attrValueMismatchErrMsg, key)
		case int64:
			assert.Equal(t, v, attr.Value.AsInt64(), attrValueMismatchErrMsg, key)
		case bool:
			assert.Equal(t, v, attr.Value.AsBool(), attrValueMismatchErrMsg, key)
		default:
			t.Fatalf("unsupported attribute value type: %T", expected)
		}
		return
	}
	t.Errorf("attribute %s not found in span", key)
}

func AssertSpanStatus(t *testing.T, span *tracetest.SpanStub, expected codes.Code) {
	t.Helper()
	assert.Equal(t, expected, span.Status.Code, "span status code mismatch")
}

// FindMetric returns the named metric or nil.
func FindMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// SumByAttribute totals an int64 counter grouped by the value of key.
func SumByAttribute(t *testing.T, rm metricdata.ResourceMetrics, name, key string) map[string]int64 {
	t.Helper()
	m := FindMetric(rm, name)
	require.NotNil(t, m, "metric %s not found", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is %T, not an int64 sum", name, m.Data)

	out := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.Emit()] += dp.Value
	}
	return out
}

// HistogramCount totals observations across every data point of a float64 histogram.
func HistogramCount(t *testing.T, rm metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	m := FindMetric(rm, name)
	require.NotNil(t, m, "metric %s not found", name)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "metric %s is %T, not a float64 histogram", name, m.Data)

	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	return count
}
