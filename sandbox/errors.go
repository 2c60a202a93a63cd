package sandbox

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mindhaven/carekit/logger"
)

// APIError is rendered as {"message": ..., "errors": {field: message}}.
type APIError struct {
	Status  int               `json:"-"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func newAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}

func (e *APIError) withField(field, message string) *APIError {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = message
	return e
}

func errUnauthorized() *APIError {
	return newAPIError(http.StatusUnauthorized, "session expired, sign in again")
}

func errNotFound(what string) *APIError {
	return newAPIError(http.StatusNotFound, what+" not found")
}

// errorHandler maps handler errors onto the error envelope.
func errorHandler(log logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		apiErr := toAPIError(err)
		if apiErr.Status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(apiErr.Status)
			return
		}
		_ = c.JSON(apiErr.Status, apiErr)
	}
}

// toAPIError converts any handler error into the envelope it renders as.
func toAPIError(err error) *APIError {
	var ae *APIError
	var ve *ValidationError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &ve):
		return &APIError{Status: http.StatusUnprocessableEntity, Message: "validation failed", Fields: ve.Fields}
	case errors.As(err, &he):
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return &APIError{Status: he.Code, Message: msg}
	default:
		return &APIError{Status: http.StatusInternalServerError, Message: "internal server error"}
	}
}
