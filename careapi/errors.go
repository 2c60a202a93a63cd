package careapi

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidInput is matched by every input validation failure. Such
// failures are raised before any request is sent.
var ErrInvalidInput = errors.New("careapi: invalid input")

// InputError lists the fields that failed validation, keyed by their JSON name.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Retryable reports false so the retry executor never repeats a bad input.
func (e *InputError) Retryable() bool { return false }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("segment", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "." && s != ".."
	})
	return v
}

// checkID validates an identifier that becomes a single URL path segment.
func checkID(field, id string) error {
	err := validate.Var(id, "required,segment")
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return &InputError{Fields: map[string]string{field: describe(verrs[0])}}
}

// check validates in and converts failures to *InputError.
func check(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldName(fe)] = describe(fe)
	}
	return &InputError{Fields: fields}
}

func fieldName(fe validator.FieldError) string {
	if fe.Field() == "AppointmentID" {
		return "appointmentId"
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "e164":
		return "must be an E.164 phone number"
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	case "numeric":
		return "must contain digits only"
	case "datetime":
		return "must be a date in YYYY-MM-DD form"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "hexadecimal":
		return "must be hexadecimal"
	case "segment":
		return "must not be a dot segment"
	default:
		return "is invalid"
	}
}
