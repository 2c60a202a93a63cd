package config

import (
	"net"
	"strconv"
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the full carekit configuration. Keys are lower-case and
// dot-separated, e.g. "retry.maxretries"; the matching environment variable
// is CAREKIT_RETRY_MAXRETRIES.
type Config struct {
	App           AppConfig           `koanf:"app" json:"app"`
	Client        ClientConfig        `koanf:"client" json:"client"`
	Retry         RetryConfig         `koanf:"retry" json:"retry"`
	Auth          AuthConfig          `koanf:"auth" json:"auth"`
	Session       SessionConfig       `koanf:"session" json:"session"`
	Log           LogConfig           `koanf:"log" json:"log"`
	Observability ObservabilityConfig `koanf:"observability" json:"observability"`
	Sandbox       SandboxConfig       `koanf:"sandbox" json:"sandbox"`

	// k holds the underlying Koanf instance for keys outside the struct
	k *koanf.Koanf
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name string `koanf:"name" json:"name" validate:"required"`
	Env  string `koanf:"env" json:"env" validate:"oneof=development staging production"`
}

// ClientConfig configures the outbound HTTP client.
type ClientConfig struct {
	BaseURL         string            `koanf:"baseurl" json:"baseurl" validate:"required,url"`
	Timeout         time.Duration     `koanf:"timeout" json:"timeout" validate:"gt=0"`
	Headers         map[string]string `koanf:"headers" json:"headers"`
	RateLimit       RateLimitConfig   `koanf:"ratelimit" json:"ratelimit"`
	RequestIDHeader string            `koanf:"requestidheader" json:"requestidheader" validate:"required"`

	// LogPayloads logs masked request and response bodies at debug level.
	LogPayloads        bool `koanf:"logpayloads" json:"logpayloads"`
	MaxPayloadLogBytes int  `koanf:"maxpayloadlogbytes" json:"maxpayloadlogbytes" validate:"gte=0"`
}

// RateLimitConfig throttles outbound requests. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps" json:"rps" validate:"gte=0"`
	Burst int     `koanf:"burst" json:"burst" validate:"gte=0"`
}

// RetryConfig mirrors retry.Policy.
type RetryConfig struct {
	MaxRetries   int           `koanf:"maxretries" json:"maxretries" validate:"gte=0,lte=10"`
	InitialDelay time.Duration `koanf:"initialdelay" json:"initialdelay" validate:"gte=0"`
	Multiplier   float64       `koanf:"multiplier" json:"multiplier" validate:"gte=1"`
	MaxDelay     time.Duration `koanf:"maxdelay" json:"maxdelay" validate:"gte=0"`
}

// AuthConfig controls what happens when the session expires.
type AuthConfig struct {
	EntryPath string `koanf:"entrypath" json:"entrypath" validate:"required,startswith=/"`
}

// SessionConfig selects and configures the session store.
type SessionConfig struct {
	Driver string             `koanf:"driver" json:"driver" validate:"oneof=memory file redis"`
	File   SessionFileConfig  `koanf:"file" json:"file"`
	Redis  SessionRedisConfig `koanf:"redis" json:"redis"`
}

type SessionFileConfig struct {
	Path string `koanf:"path" json:"path"`
}

type SessionRedisConfig struct {
	Addr     string        `koanf:"addr" json:"addr" validate:"omitempty,hostname_port"`
	Password string        `koanf:"password" json:"-"`
	DB       int           `koanf:"db" json:"db" validate:"gte=0"`
	Key      string        `koanf:"key" json:"key"`
	TTL      time.Duration `koanf:"ttl" json:"ttl" validate:"gte=0"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" validate:"oneof=trace debug info warn error fatal"`
	Pretty bool   `koanf:"pretty" json:"pretty"`
}

// ObservabilityConfig configures tracing and metrics export.
type ObservabilityConfig struct {
	Enabled  bool   `koanf:"enabled" json:"enabled"`
	Service  string `koanf:"service" json:"service"`
	Endpoint string `koanf:"endpoint" json:"endpoint"`
	Protocol string `koanf:"protocol" json:"protocol" validate:"oneof=http grpc"`
	Insecure bool   `koanf:"insecure" json:"insecure"`
}

// SandboxConfig configures the local sandbox backend.
type SandboxConfig struct {
	Host string `koanf:"host" json:"host"`
	Port int    `koanf:"port" json:"port" validate:"gte=1,lte=65535"`
	OTP  string `koanf:"otp" json:"-" validate:"len=6,numeric"`
}

// Address returns host:port for the sandbox listener.
func (s SandboxConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
