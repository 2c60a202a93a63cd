package observability

import (
	"fmt"
	"io"
	"maps"
	"time"
)

const (
	// EndpointStdout selects the pretty-printing stdout exporters.
	EndpointStdout = "stdout"

	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"

	defaultSampleRate     = 1.0
	defaultMetricInterval = 30 * time.Second
	defaultBatchTimeout   = 5 * time.Second
)

// Config controls trace and metric export.
type Config struct {
	// Enabled turns the SDK providers on. When false NewProvider returns no-ops.
	Enabled bool

	ServiceName    string
	ServiceVersion string
	Environment    string

	// Endpoint is EndpointStdout or a collector host:port.
	Endpoint string
	// Protocol is ProtocolHTTP or ProtocolGRPC for OTLP endpoints.
	Protocol string
	Insecure bool
	Headers  map[string]string

	// SampleRate is the fraction of traces recorded. Zero selects 1.0.
	SampleRate     float64
	MetricInterval time.Duration
	BatchTimeout   time.Duration

	// Writer receives stdout exporter output. Nil selects os.Stdout.
	Writer io.Writer
}

// withDefaults returns a copy with zero values replaced.
func (c Config) withDefaults() Config {
	if c.Protocol == "" {
		c.Protocol = ProtocolHTTP
	}
	if c.SampleRate == 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.MetricInterval <= 0 {
		c.MetricInterval = defaultMetricInterval
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = defaultBatchTimeout
	}
	c.Headers = maps.Clone(c.Headers)
	return c
}

// Validate checks an enabled configuration. Disabled configurations are always valid.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if c.Endpoint != EndpointStdout && c.Protocol != ProtocolHTTP && c.Protocol != ProtocolGRPC {
		return fmt.Errorf("protocol '%s': %w", c.Protocol, ErrInvalidProtocol)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return ErrInvalidSampleRate
	}
	return nil
}
