package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind is the category a failed attempt is sorted into. The kind alone
// decides whether the attempt may be retried.
type Kind int

const (
	// Unclassified covers failures that are not about the remote call itself:
	// interceptor errors, a cancelled context, a malformed request.
	Unclassified Kind = iota
	// NetworkUnreachable means no response arrived at all.
	NetworkUnreachable
	// AuthExpired is a 401. The session is cleared before it is returned.
	AuthExpired
	// ClientRequestError is any other 4xx. The payload is kept for inspection.
	ClientRequestError
	// ServerError is a 5xx.
	ServerError
)

func (k Kind) String() string {
	switch k {
	case NetworkUnreachable:
		return "network_unreachable"
	case AuthExpired:
		return "auth_expired"
	case ClientRequestError:
		return "client_request_error"
	case ServerError:
		return "server_error"
	default:
		return "unclassified"
	}
}

// Retryable reports whether failures of this kind may be retried.
func (k Kind) Retryable() bool {
	return k == NetworkUnreachable || k == ServerError
}

// User-facing messages per kind. ClientRequestError uses the payload message instead.
const (
	MessageNetworkUnreachable = "Unable to reach the server. Please check your internet connection."
	MessageAuthExpired        = "Your session has expired. Please sign in again."
	MessageServerError        = "Something went wrong on our side. Please try again later."
	MessageUnclassified       = "The request could not be completed."
)

// ClassifiedError describes one failed attempt. It is immutable once built.
type ClassifiedError struct {
	kind       Kind
	statusCode int
	message    string
	body       []byte
	method     string
	url        string
	cause      error
}

// NewError builds a ClassifiedError. The user-facing message is derived from
// kind, or from the payload's "message" field for client request errors.
func NewError(kind Kind, statusCode int, body []byte, cause error) *ClassifiedError {
	return &ClassifiedError{
		kind:       kind,
		statusCode: statusCode,
		message:    messageFor(kind, statusCode, body),
		body:       body,
		cause:      cause,
	}
}

func (e *ClassifiedError) withRequest(method, rawURL string) *ClassifiedError {
	c := *e
	c.method = method
	c.url = rawURL
	return &c
}

func (e *ClassifiedError) Error() string {
	var b strings.Builder
	b.WriteString("httpclient: ")
	b.WriteString(e.kind.String())
	if e.method != "" {
		fmt.Fprintf(&b, ": %s %s", e.method, e.url)
	}
	if e.statusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.statusCode)
	}
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

// Kind returns the failure category.
func (e *ClassifiedError) Kind() Kind { return e.kind }

// StatusCode returns the HTTP status, or 0 when no response was received.
func (e *ClassifiedError) StatusCode() int { return e.statusCode }

// HasResponse reports whether a status line was received.
func (e *ClassifiedError) HasResponse() bool { return e.statusCode != 0 }

// Retryable implements the contract the retry executor checks for.
func (e *ClassifiedError) Retryable() bool { return e.kind.Retryable() }

// Message is the text to show the user.
func (e *ClassifiedError) Message() string { return e.message }

// Body returns the response payload exactly as received.
func (e *ClassifiedError) Body() []byte { return e.body }

// Method and URL identify the request that failed.
func (e *ClassifiedError) Method() string { return e.method }

func (e *ClassifiedError) URL() string { return e.url }

func (e *ClassifiedError) Unwrap() error { return e.cause }

// FieldErrors extracts per-field validation messages from the payload. Both
// {"errors":{"phone":"invalid"}} and {"errors":[{"field":"phone","message":"invalid"}]}
// are understood. Arrays of messages are joined with "; ".
func (e *ClassifiedError) FieldErrors() map[string]string {
	if len(e.body) == 0 || !gjson.ValidBytes(e.body) {
		return nil
	}
	errs := gjson.GetBytes(e.body, "errors")
	if !errs.Exists() {
		return nil
	}

	out := make(map[string]string)
	switch {
	case errs.IsObject():
		errs.ForEach(func(key, value gjson.Result) bool {
			out[key.String()] = joinMessages(value)
			return true
		})
	case errs.IsArray():
		errs.ForEach(func(_, item gjson.Result) bool {
			field := item.Get("field").String()
			if field != "" {
				out[field] = item.Get("message").String()
			}
			return true
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func joinMessages(v gjson.Result) string {
	if !v.IsArray() {
		return v.String()
	}
	parts := make([]string, 0, len(v.Array()))
	for _, item := range v.Array() {
		parts = append(parts, item.String())
	}
	return strings.Join(parts, "; ")
}

func messageFor(kind Kind, statusCode int, body []byte) string {
	switch kind {
	case NetworkUnreachable:
		return MessageNetworkUnreachable
	case AuthExpired:
		return MessageAuthExpired
	case ServerError:
		return MessageServerError
	case ClientRequestError:
		if msg := payloadMessage(body); msg != "" {
			return msg
		}
		return fmt.Sprintf("Request failed with status %d.", statusCode)
	default:
		return MessageUnclassified
	}
}

func payloadMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"message", "error.message", "error"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// KindForStatus maps a non-2xx status code to its kind.
func KindForStatus(statusCode int) Kind {
	switch {
	case statusCode == 401:
		return AuthExpired
	case statusCode >= 400 && statusCode < 500:
		return ClientRequestError
	case statusCode >= 500 && statusCode < 600:
		return ServerError
	default:
		return Unclassified
	}
}

// Classify sorts an arbitrary error. ClassifiedErrors are returned as is.
// Transport failures without response metadata become NetworkUnreachable,
// cancellation and everything else Unclassified. Nil yields nil.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	if ce, ok := AsClassified(err); ok {
		return ce
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(Unclassified, 0, nil, err)
	}
	if isNetworkError(err) {
		return NewError(NetworkUnreachable, 0, nil, err)
	}
	return NewError(Unclassified, 0, nil, err)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// AsClassified finds a ClassifiedError in err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsKind reports whether err carries a ClassifiedError of kind k.
func IsKind(err error, k Kind) bool {
	ce, ok := AsClassified(err)
	return ok && ce.kind == k
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
