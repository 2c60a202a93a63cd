package observability

import "errors"

// ErrNilConfig is returned when NewProvider is called with a nil Config.
var ErrNilConfig = errors.New("observability: config is nil")

// ErrMissingServiceName is returned when observability is enabled but no service name is configured.
var ErrMissingServiceName = errors.New("observability: service name is required when observability is enabled")

// ErrMissingEndpoint is returned when observability is enabled without an endpoint.
var ErrMissingEndpoint = errors.New("observability: endpoint is required when observability is enabled")

// ErrInvalidProtocol is returned when the protocol is not "http" or "grpc".
var ErrInvalidProtocol = errors.New("observability: protocol must be either 'http' or 'grpc'")

// ErrInvalidSampleRate is returned when the sample rate is outside [0.0, 1.0].
var ErrInvalidSampleRate = errors.New("observability: trace sample rate must be between 0.0 and 1.0")
