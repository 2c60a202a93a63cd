// Package config loads carekit configuration from defaults, an optional YAML
// file and CAREKIT_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is stripped from environment variables before mapping.
	EnvPrefix = "CAREKIT_"
	// DefaultFile is read from the working directory when present.
	DefaultFile = "carekit.yaml"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Session drivers
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
)

// Load reads configuration with priority:
// 1. Environment variables (highest priority)
// 2. carekit.yaml in the working directory, if present
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads path instead of carekit.yaml. An
// explicit path must exist.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadYAML(k, path); err != nil {
		return nil, err
	}

	if err := k.Load(envprovider.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envKey converts CAREKIT_SESSION_REDIS_ADDR to session.redis.addr.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

func loadYAML(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name": "carekit",
		"app.env":  EnvDevelopment,

		"client.baseurl":            "http://127.0.0.1:8089",
		"client.timeout":            "30s",
		"client.requestidheader":    "X-Request-ID",
		"client.ratelimit.rps":      0,
		"client.ratelimit.burst":    0,
		"client.logpayloads":        false,
		"client.maxpayloadlogbytes": 2048,

		"retry.maxretries":   3,
		"retry.initialdelay": "1s",
		"retry.multiplier":   2.0,
		"retry.maxdelay":     "0s",

		"auth.entrypath": "/login",

		"session.driver":    DriverMemory,
		"session.file.path": "",
		"session.redis.key": "carekit:session",
		"session.redis.db":  0,
		"session.redis.ttl": "0s",

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled":  false,
		"observability.service":  "carekit",
		"observability.endpoint": "stdout",
		"observability.protocol": "http",
		"observability.insecure": true,

		"sandbox.host": "127.0.0.1",
		"sandbox.port": 8089,
		"sandbox.otp":  "123456",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
