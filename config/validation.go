package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks struct tags and the rules that span sections. Every
// problem is returned, joined, as *ConfigError values.
func Validate(cfg *Config) error {
	var errs []error

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, toConfigError(fe))
		}
	}

	errs = append(errs, validateSession(&cfg.Session)...)
	errs = append(errs, validateObservability(&cfg.Observability)...)

	return errors.Join(errs...)
}

func validateSession(cfg *SessionConfig) []error {
	var errs []error
	switch cfg.Driver {
	case DriverFile:
		if strings.TrimSpace(cfg.File.Path) == "" {
			errs = append(errs, NewMissingFieldError("session.file.path"))
		}
	case DriverRedis:
		if cfg.Redis.Addr == "" {
			errs = append(errs, NewMissingFieldError("session.redis.addr"))
		}
	}
	return errs
}

func validateObservability(cfg *ObservabilityConfig) []error {
	if !cfg.Enabled {
		return nil
	}
	var errs []error
	if cfg.Service == "" {
		errs = append(errs, NewMissingFieldError("observability.service"))
	}
	if cfg.Endpoint == "" {
		errs = append(errs, NewMissingFieldError("observability.endpoint"))
	}
	return errs
}

// toConfigError maps a validator failure onto the config key that caused it.
func toConfigError(fe validator.FieldError) *ConfigError {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "url":
		return NewInvalidFieldError(field, "must be an absolute url", nil)
	case "hostname_port":
		return NewInvalidFieldError(field, "must be host:port", nil)
	case "startswith":
		return NewInvalidFieldError(field, fmt.Sprintf("must start with %q", fe.Param()), nil)
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param()), nil)
	}
}
