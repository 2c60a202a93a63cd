package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/mindhaven/carekit/logger"
)

const (
	// DefaultTimeout is the default request timeout duration
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPayloadLogBytes caps logged payloads when payload logging is on
	DefaultMaxPayloadLogBytes = 2048

	contentTypeJSON = "application/json"
)

// client implements the Client interface
type client struct {
	httpClient           *nethttp.Client
	logger               logger.Logger
	config               *Config
	baseURL              *url.URL
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	auth                 *authGuard
	telemetry            *telemetry
	callCount            int64
}

// NewClient creates a client with default configuration and no session.
func NewClient(log logger.Logger) Client {
	c, _ := NewBuilder(log).Build()
	return c
}

// Builder provides a fluent interface for configuring the client
type Builder struct {
	config         *Config
	logger         logger.Logger
	store          SessionStore
	observers      []AuthObserver
	limiter        *rate.Limiter
	transport      nethttp.RoundTripper
	tracerProvider oteltrace.TracerProvider
	meterProvider  metric.MeterProvider
}

// NewBuilder creates a new client builder. Content-Type: application/json
// is a default header from the start.
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		config: &Config{
			Timeout:              DefaultTimeout,
			DefaultHeaders:       map[string]string{"Content-Type": contentTypeJSON},
			RequestInterceptors:  []RequestInterceptor{},
			ResponseInterceptors: []ResponseInterceptor{},
			RequestIDHeader:      HeaderXRequestID,
			MaxPayloadLogBytes:   DefaultMaxPayloadLogBytes,
		},
		logger: log,
	}
}

// WithBaseURL sets the URL relative request paths are joined to
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithTimeout sets the request timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithSession attaches the bearer token from store to every request and
// clears store when the backend answers 401.
func (b *Builder) WithSession(store SessionStore) *Builder {
	b.store = store
	return b
}

// WithAuthObserver registers o to run after a 401 cleared the session
func (b *Builder) WithAuthObserver(o AuthObserver) *Builder {
	b.observers = append(b.observers, o)
	return b
}

// WithRateLimit caps outbound requests to rps with the given burst.
// rps <= 0 disables limiting.
func (b *Builder) WithRateLimit(rps float64, burst int) *Builder {
	if rps <= 0 {
		b.limiter = nil
		return b
	}
	if burst < 1 {
		burst = 1
	}
	b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return b
}

// WithRequestIDHeader sets the header the request ID is sent on
func (b *Builder) WithRequestIDHeader(header string) *Builder {
	b.config.RequestIDHeader = header
	return b
}

// WithPayloadLogging logs request and response bodies at debug level, up to maxBytes each
func (b *Builder) WithPayloadLogging(maxBytes int) *Builder {
	b.config.LogPayloads = true
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// WithTelemetry sets the providers spans and metrics are recorded with.
// Without it the otel global providers are used.
func (b *Builder) WithTelemetry(tp oteltrace.TracerProvider, mp metric.MeterProvider) *Builder {
	b.tracerProvider = tp
	b.meterProvider = mp
	return b
}

// WithTransport replaces the underlying round tripper
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// Build creates the client. Built-in interceptors run before the ones added
// with WithRequestInterceptor, in this order: rate limit, bearer token,
// request ID, idempotency key.
func (b *Builder) Build() (Client, error) {
	var base *url.URL
	if b.config.BaseURL != "" {
		u, err := url.Parse(b.config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("httpclient: invalid base URL %q: %w", b.config.BaseURL, err)
		}
		if !u.IsAbs() {
			return nil, fmt.Errorf("httpclient: base URL %q must be absolute", b.config.BaseURL)
		}
		base = u
	}

	var interceptors []RequestInterceptor
	if b.limiter != nil {
		interceptors = append(interceptors, NewRateLimitInterceptor(b.limiter))
	}
	if b.store != nil {
		interceptors = append(interceptors, NewBearerInterceptor(b.store))
	}
	interceptors = append(interceptors,
		NewRequestIDInterceptor(b.config.RequestIDHeader),
		NewIdempotencyKeyInterceptor(),
	)
	interceptors = append(interceptors, b.config.RequestInterceptors...)

	return &client{
		httpClient: &nethttp.Client{
			Timeout:   b.config.Timeout,
			Transport: b.transport,
		},
		logger:               b.logger,
		config:               b.config,
		baseURL:              base,
		requestInterceptors:  interceptors,
		responseInterceptors: append([]ResponseInterceptor(nil), b.config.ResponseInterceptors...),
		auth:                 newAuthGuard(b.store, b.logger, b.observers),
		telemetry:            newTelemetry(b.tracerProvider, b.meterProvider),
	}, nil
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Patch performs a PATCH request
func (c *client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, req)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Do sends req with method, overriding req.Method
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if req == nil {
		return c.Send(ctx, nil)
	}
	r := *req
	r.Method = method
	return c.Send(ctx, &r)
}

// Send makes exactly one attempt.
func (c *client) Send(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, NewError(Unclassified, 0, nil, errors.New("request cannot be nil"))
	}
	method := req.Method
	if method == "" {
		method = nethttp.MethodGet
	}

	start := time.Now()
	callCount := atomic.AddInt64(&c.callCount, 1)

	target, err := c.resolveURL(req)
	if err != nil {
		return nil, NewError(Unclassified, 0, nil, err).withRequest(method, req.Path)
	}

	ctx, span := c.telemetry.start(ctx, method, target)
	resp, ce := c.send(ctx, method, target, req, start, callCount)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.telemetry.finish(ctx, span, method, status, time.Since(start), ce)

	if ce == nil {
		return resp, nil
	}
	if ce.Kind() == AuthExpired {
		c.auth.expire(ctx, ce)
	}
	return resp, ce
}

func (c *client) send(ctx context.Context, method, target string, req *Request, start time.Time, callCount int64) (*Response, *ClassifiedError) {
	httpReq, ce := c.buildRequest(ctx, method, target, req)
	if ce != nil {
		return nil, ce
	}

	c.logRequest(httpReq, req)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		ce := c.classifyTransportError(ctx, err).withRequest(method, target)
		c.logFailure(method, target, time.Since(start), ce)
		return nil, ce
	}

	resp, ce := c.buildResponse(ctx, start, callCount, httpReq, httpResp)
	if ce != nil {
		ce = ce.withRequest(method, target)
		c.logFailure(method, target, time.Since(start), ce)
		return nil, ce
	}

	if IsSuccessStatus(resp.StatusCode) {
		c.logResponse(resp, nil)
		return resp, nil
	}

	ce = NewError(KindForStatus(resp.StatusCode), resp.StatusCode, resp.Body, nil).withRequest(method, target)
	c.logResponse(resp, ce)
	return resp, ce
}

// resolveURL joins a relative path to the base URL and merges req.Query.
func (c *client) resolveURL(req *Request) (string, error) {
	ref, err := url.Parse(req.Path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", req.Path, err)
	}

	var u *url.URL
	switch {
	case ref.IsAbs():
		u = ref
	case c.baseURL == nil:
		return "", fmt.Errorf("relative path %q without a base URL", req.Path)
	default:
		u, err = joinEscaped(c.baseURL, ref)
		if err != nil {
			return "", fmt.Errorf("invalid request path %q: %w", req.Path, err)
		}
	}

	if len(req.Query) > 0 {
		q := u.Query()
		for key, values := range req.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// joinEscaped appends ref's escaped path to base's. Escaped separators and
// dot segments in ref are sent as given.
func joinEscaped(base, ref *url.URL) (*url.URL, error) {
	u := *base
	u.RawQuery = ref.RawQuery
	if ref.EscapedPath() == "" {
		return &u, nil
	}
	joined := strings.TrimSuffix(base.EscapedPath(), "/") + "/" + strings.TrimPrefix(ref.EscapedPath(), "/")
	decoded, err := url.PathUnescape(joined)
	if err != nil {
		return nil, err
	}
	u.Path = decoded
	u.RawPath = joined
	return &u, nil
}

// classifyTransportError sorts a failure that produced no response. A done
// caller context is Unclassified. Anything else, including the client
// timeout firing before a status line, means the network let us down.
func (c *client) classifyTransportError(ctx context.Context, err error) *ClassifiedError {
	if ctx.Err() != nil {
		return NewError(Unclassified, 0, nil, err)
	}
	return NewError(NetworkUnreachable, 0, nil, err)
}

// applyHeaders applies headers to the HTTP request
func (c *client) applyHeaders(httpReq *nethttp.Request, req *Request) {
	// Apply default headers first
	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}

	// Apply request-specific headers (these override defaults)
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if httpReq.Header.Get("Content-Type") == "" && req.Body != nil {
		httpReq.Header.Set("Content-Type", contentTypeJSON)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", contentTypeJSON)
	}
}

// buildRequest constructs an *http.Request, applies headers, runs request
// interceptors and injects trace context.
func (c *client) buildRequest(ctx context.Context, method, target string, req *Request) (*nethttp.Request, *ClassifiedError) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, NewError(Unclassified, 0, nil, fmt.Errorf("build request: %w", err)).withRequest(method, target)
	}

	c.applyHeaders(httpReq, req)

	if err := c.runRequestInterceptors(ctx, httpReq); err != nil {
		return nil, NewError(Unclassified, 0, nil, fmt.Errorf("request interceptor: %w", err)).withRequest(method, target)
	}
	c.telemetry.inject(ctx, httpReq.Header)
	return httpReq, nil
}

// buildResponse runs response interceptors, reads body, and builds a Response.
func (c *client) buildResponse(ctx context.Context, start time.Time, callCount int64, httpReq *nethttp.Request, httpResp *nethttp.Response) (*Response, *ClassifiedError) {
	defer httpResp.Body.Close()

	if err := c.runResponseInterceptors(ctx, httpReq, httpResp); err != nil {
		return nil, NewError(Unclassified, 0, nil, fmt.Errorf("response interceptor: %w", err))
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, c.classifyTransportError(ctx, fmt.Errorf("read response body: %w", err))
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
		Stats: Stats{
			ElapsedTime: time.Since(start),
			CallCount:   callCount,
		},
	}, nil
}

// runRequestInterceptors executes all request interceptors
func (c *client) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (c *client) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range c.responseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

// logRequest logs the outgoing request
func (c *client) logRequest(httpReq *nethttp.Request, req *Request) {
	logEvent := c.logger.Debug().
		Str("direction", "outbound").
		Str("method", httpReq.Method).
		Str("url", httpReq.URL.String()).
		Interface("headers", httpReq.Header)

	if c.config.LogPayloads && len(req.Body) > 0 {
		logEvent = logEvent.Bytes("body", c.payloadForLog(req.Body))
	}

	logEvent.Msg("HTTP client request")
}

// logResponse logs the incoming response
func (c *client) logResponse(resp *Response, ce *ClassifiedError) {
	logEvent := c.logger.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount)

	if ce != nil {
		logEvent = logEvent.Str("kind", ce.Kind().String())
	}
	if c.config.LogPayloads && len(resp.Body) > 0 {
		logEvent = logEvent.Bytes("body", c.payloadForLog(resp.Body))
	}

	logEvent.Msg("HTTP client response")
}

func (c *client) logFailure(method, target string, elapsed time.Duration, ce *ClassifiedError) {
	c.logger.Debug().
		Str("direction", "inbound").
		Str("method", method).
		Str("url", target).
		Dur("elapsed", elapsed).
		Str("kind", ce.Kind().String()).
		Err(ce.Unwrap()).
		Msg("HTTP client request failed")
}

var payloadFilter = logger.NewSensitiveDataFilter(nil)

// payloadForLog masks sensitive keys at any depth of a JSON payload before it
// is truncated. Payloads that are not JSON are logged by size only.
func (c *client) payloadForLog(body []byte) []byte {
	masked, ok := payloadFilter.FilterJSON(body)
	if !ok {
		return []byte(fmt.Sprintf("<%d bytes, not JSON>", len(body)))
	}
	return c.truncate(masked)
}

func (c *client) truncate(b []byte) []byte {
	limit := c.config.MaxPayloadLogBytes
	if limit <= 0 || len(b) <= limit {
		return b
	}
	return b[:limit]
}
