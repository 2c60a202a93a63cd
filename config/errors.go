package config

import (
	"fmt"
	"strings"
)

// ConfigError represents a configuration error with actionable guidance.
// All error messages are lowercase following Go conventions.
//
//nolint:revive // ConfigError is intentionally named for clarity in external API usage
type ConfigError struct {
	Category string   // "missing" or "invalid"
	Field    string   // config key, e.g. "session.redis.addr"
	Message  string   // user-friendly error message (lowercase)
	Action   string   // actionable instruction (lowercase)
	Details  []string // additional details or examples
}

func (e *ConfigError) Error() string {
	var parts []string
	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("config_%s:", e.Category))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	if len(e.Details) > 0 {
		parts = append(parts, strings.Join(e.Details, "; "))
	}
	return strings.Join(parts, " ")
}

// NewMissingFieldError creates an error for a required missing configuration field.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Category: "missing",
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to %s", EnvVar(field), field, DefaultFile),
	}
}

// NewInvalidFieldError creates an error for an invalid configuration value.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{
		Category: "invalid",
		Field:    field,
		Message:  message,
	}
	if len(validOptions) > 0 {
		err.Action = fmt.Sprintf("must be one of: %s", strings.Join(validOptions, ", "))
	}
	return err
}

// EnvVar returns the environment variable that sets key.
func EnvVar(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
