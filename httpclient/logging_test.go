package httpclient

import (
	"bytes"
	"context"
	"maps"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindhaven/carekit/logger"
)

const (
	testClientRequest  = "HTTP client request"
	testClientResponse = "HTTP client response"
	testClientFailed   = "HTTP client request failed"
)

// fakeLogEvent implements logger.LogEvent for testing
type fakeLogEvent struct {
	logger *fakeLogger
	level  string
	fields map[string]any
}

func (e *fakeLogEvent) Msg(msg string) {
	e.logger.mu.Lock()
	defer e.logger.mu.Unlock()
	e.logger.events = append(e.logger.events, loggedEvent{
		level:   e.level,
		fields:  maps.Clone(e.fields),
		message: msg,
	})
}

func (e *fakeLogEvent) Msgf(format string, _ ...any) {
	e.Msg(format)
}

func (e *fakeLogEvent) Err(err error) logger.LogEvent {
	e.fields["error"] = err
	return e
}

func (e *fakeLogEvent) Str(key, value string) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int(key string, value int) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int64(key string, value int64) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Uint64(key string, value uint64) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Bool(key string, value bool) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Dur(key string, d time.Duration) logger.LogEvent {
	e.fields[key] = d
	return e
}

func (e *fakeLogEvent) Interface(key string, i any) logger.LogEvent {
	e.fields[key] = i
	return e
}

func (e *fakeLogEvent) Bytes(key string, val []byte) logger.LogEvent {
	e.fields[key] = val
	return e
}

// fakeLogger implements logger.Logger for testing
type fakeLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

type loggedEvent struct {
	level   string
	fields  map[string]any
	message string
}

func (l *fakeLogger) event(level string) logger.LogEvent {
	return &fakeLogEvent{logger: l, level: level, fields: make(map[string]any)}
}

func (l *fakeLogger) Info() logger.LogEvent  { return l.event("info") }
func (l *fakeLogger) Error() logger.LogEvent { return l.event("error") }
func (l *fakeLogger) Debug() logger.LogEvent { return l.event("debug") }
func (l *fakeLogger) Warn() logger.LogEvent  { return l.event("warn") }
func (l *fakeLogger) Fatal() logger.LogEvent { return l.event("fatal") }

func (l *fakeLogger) WithContext(_ any) logger.Logger { return l }

func (l *fakeLogger) WithFields(_ map[string]any) logger.Logger { return l }

func (l *fakeLogger) byMessage(msg string) []loggedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []loggedEvent
	for _, e := range l.events {
		if e.message == msg {
			out = append(out, e)
		}
	}
	return out
}

func TestLoggingOutboundAndInbound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	log := &fakeLogger{}
	c, err := NewBuilder(log).WithBaseURL(server.URL).Build()
	require.NoError(t, err)

	_, err = c.Get(context.Background(), &Request{Path: "/centres", Body: []byte(`{"q":1}`)})
	require.NoError(t, err)

	out := log.byMessage(testClientRequest)
	require.Len(t, out, 1)
	assert.Equal(t, "debug", out[0].level)
	assert.Equal(t, "outbound", out[0].fields["direction"])
	assert.Equal(t, http.MethodGet, out[0].fields["method"])
	assert.Equal(t, server.URL+"/centres", out[0].fields["url"])
	assert.NotContains(t, out[0].fields, "body", "payloads are not logged by default")

	in := log.byMessage(testClientResponse)
	require.Len(t, in, 1)
	assert.Equal(t, "inbound", in[0].fields["direction"])
	assert.Equal(t, http.StatusOK, in[0].fields["status"])
	assert.NotContains(t, in[0].fields, "kind")
}

func TestLoggingPayloadsTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"slot already taken"}`))
	}))
	defer server.Close()

	log := &fakeLogger{}
	c, err := NewBuilder(log).WithBaseURL(server.URL).WithPayloadLogging(8).Build()
	require.NoError(t, err)

	_, err = c.Post(context.Background(), &Request{Path: "/appointments", Body: []byte(`{"slot":"s-1"}`)})
	require.Error(t, err)

	out := log.byMessage(testClientRequest)
	require.Len(t, out, 1)
	assert.Equal(t, []byte(`{"slot":`), out[0].fields["body"])

	in := log.byMessage(testClientResponse)
	require.Len(t, in, 1)
	assert.Equal(t, ClientRequestError.String(), in[0].fields["kind"])
	assert.Len(t, in[0].fields["body"], 8)
}

func TestLoggingPayloadsMasked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/upload" {
			_, _ = w.Write([]byte("otp=654321"))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"token":"tok-secret","user":{"phone":"+919876543210"}}}`))
	}))
	defer server.Close()

	log := &fakeLogger{}
	c, err := NewBuilder(log).WithBaseURL(server.URL).WithPayloadLogging(4096).Build()
	require.NoError(t, err)

	_, err = c.Post(context.Background(), &Request{
		Path: "/auth/otp/verify",
		Body: []byte(`{"phone":"+919876543210","otp":"123456"}`),
	})
	require.NoError(t, err)

	out := log.byMessage(testClientRequest)
	require.Len(t, out, 1)
	assert.JSONEq(t, `{"phone":"+***3210","otp":"***"}`, string(out[0].fields["body"].([]byte)))

	in := log.byMessage(testClientResponse)
	require.Len(t, in, 1)
	assert.JSONEq(t, `{"data":{"token":"***","user":{"phone":"+***3210"}}}`, string(in[0].fields["body"].([]byte)))

	_, err = c.Post(context.Background(), &Request{Path: "/upload", Body: []byte("otp=123456")})
	require.NoError(t, err)
	out = log.byMessage(testClientRequest)
	require.Len(t, out, 2)
	assert.Equal(t, []byte("<10 bytes, not JSON>"), out[1].fields["body"])
}

func TestLoggingPayloadsMaskedWithZerolog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"token":"tok-secret"}}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "debug", false, nil)
	c, err := NewBuilder(log).WithBaseURL(server.URL).WithPayloadLogging(4096).Build()
	require.NoError(t, err)

	_, err = c.Post(context.Background(), &Request{
		Path: "/auth/otp/verify",
		Body: []byte(`{"phone":"+919876543210","otp":"123456"}`),
	})
	require.NoError(t, err)

	output := buf.String()
	assert.NotContains(t, output, "123456")
	assert.NotContains(t, output, "tok-secret")
	assert.NotContains(t, output, "9876543210")
}

func TestLoggingTransportFailure(t *testing.T) {
	log := &fakeLogger{}
	c, err := NewBuilder(log).
		WithBaseURL("http://booking.invalid").
		WithTransport(roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, errConnRefused
		})).
		Build()
	require.NoError(t, err)

	_, err = c.Get(context.Background(), &Request{Path: "/centres"})
	require.Error(t, err)

	failed := log.byMessage(testClientFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, NetworkUnreachable.String(), failed[0].fields["kind"])
	assert.Empty(t, log.byMessage(testClientResponse))
}
