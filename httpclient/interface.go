package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/url"
	"time"

	"github.com/mindhaven/carekit/session"
	"github.com/mindhaven/carekit/trace"
)

const (
	// HeaderXRequestID is the default header carrying the request ID
	HeaderXRequestID = trace.HeaderXRequestID
	// HeaderIdempotencyKey carries the key pinned with trace.WithIdempotencyKey
	HeaderIdempotencyKey = trace.HeaderIdempotencyKey
	// HeaderAuthorization carries the bearer token
	HeaderAuthorization = "Authorization"
)

// Client sends requests to the booking backend. Every method makes exactly
// one attempt; wrap calls in a retry.Executor to retry.
type Client interface {
	// Send transmits req using req.Method. A non-2xx outcome returns a
	// *ClassifiedError and, when a status line arrived, the response too.
	Send(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
}

// Request is one call. Path is joined to the base URL unless it is absolute.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    []byte
}

// NewJSONRequest marshals body as the payload of a request.
func NewJSONRequest(method, path string, body any) (*Request, error) {
	req := &Request{Method: method, Path: path}
	if body == nil {
		return req, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: encode %s %s body: %w", method, path, err)
	}
	req.Body = data
	return req, nil
}

// Response represents an HTTP response with tracking information
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
}

// RequestInterceptor is called before sending the request
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving the response
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// SessionStore is what the client needs from the session: the token to
// attach and a way to drop it on 401.
type SessionStore interface {
	session.TokenSource
	Clear(ctx context.Context) error
}

// AuthObserver is notified after an AuthExpired response cleared the session.
type AuthObserver interface {
	OnAuthExpired(ctx context.Context, err *ClassifiedError)
}

// AuthObserverFunc adapts a function to AuthObserver.
type AuthObserverFunc func(ctx context.Context, err *ClassifiedError)

func (f AuthObserverFunc) OnAuthExpired(ctx context.Context, err *ClassifiedError) {
	f(ctx, err)
}

// Config holds the client configuration
type Config struct {
	BaseURL              string
	Timeout              time.Duration
	DefaultHeaders       map[string]string
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	// RequestIDHeader names the header the request ID goes out on (default: X-Request-ID)
	RequestIDHeader string
	// LogPayloads enables debug-level logging of body payloads
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int
}
