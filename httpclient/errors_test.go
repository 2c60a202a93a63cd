package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "unclassified", Unclassified.String())
	assert.Equal(t, "network_unreachable", NetworkUnreachable.String())
	assert.Equal(t, "auth_expired", AuthExpired.String())
	assert.Equal(t, "client_request_error", ClientRequestError.String())
	assert.Equal(t, "server_error", ServerError.String())
	assert.Equal(t, "unclassified", Kind(99).String())
}

func TestKindRetryable(t *testing.T) {
	assert.True(t, NetworkUnreachable.Retryable())
	assert.True(t, ServerError.Retryable())
	assert.False(t, AuthExpired.Retryable())
	assert.False(t, ClientRequestError.Retryable())
	assert.False(t, Unclassified.Retryable())
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, AuthExpired, KindForStatus(401))
	assert.Equal(t, ClientRequestError, KindForStatus(400))
	assert.Equal(t, ClientRequestError, KindForStatus(499))
	assert.Equal(t, ServerError, KindForStatus(500))
	assert.Equal(t, ServerError, KindForStatus(599))
	assert.Equal(t, Unclassified, KindForStatus(304))
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		status int
		body   string
		want   string
	}{
		{name: "network", kind: NetworkUnreachable, want: MessageNetworkUnreachable},
		{name: "auth", kind: AuthExpired, status: 401, want: MessageAuthExpired},
		{name: "server", kind: ServerError, status: 503, want: MessageServerError},
		{name: "client_payload_message", kind: ClientRequestError, status: 409, body: `{"message":"Slot already booked"}`, want: "Slot already booked"},
		{name: "client_nested_error", kind: ClientRequestError, status: 400, body: `{"error":{"message":"bad otp"}}`, want: "bad otp"},
		{name: "client_error_string", kind: ClientRequestError, status: 400, body: `{"error":"bad otp"}`, want: "bad otp"},
		{name: "client_no_payload", kind: ClientRequestError, status: 404, want: "Request failed with status 404."},
		{name: "client_non_json", kind: ClientRequestError, status: 400, body: `<html>`, want: "Request failed with status 400."},
		{name: "unclassified", kind: Unclassified, want: MessageUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := NewError(tt.kind, tt.status, []byte(tt.body), nil)
			assert.Equal(t, tt.want, ce.Message())
		})
	}
}

func TestFieldErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{name: "object_form", body: `{"errors":{"phone":"invalid","otp":"expired"}}`, want: map[string]string{"phone": "invalid", "otp": "expired"}},
		{name: "object_with_arrays", body: `{"errors":{"date":["required","must be YYYY-MM-DD"]}}`, want: map[string]string{"date": "required; must be YYYY-MM-DD"}},
		{name: "array_form", body: `{"errors":[{"field":"slot","message":"taken"},{"message":"no field"}]}`, want: map[string]string{"slot": "taken"}},
		{name: "no_errors", body: `{"message":"nope"}`, want: nil},
		{name: "empty_errors", body: `{"errors":{}}`, want: nil},
		{name: "not_json", body: `oops`, want: nil},
		{name: "empty_body", body: ``, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := NewError(ClientRequestError, 422, []byte(tt.body), nil)
			assert.Equal(t, tt.want, ce.FieldErrors())
		})
	}
}

func TestClassify(t *testing.T) {
	existing := NewError(ServerError, 503, nil, nil)

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "classified_passthrough", err: fmt.Errorf("wrapped: %w", existing), want: ServerError},
		{name: "net_op_error", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: NetworkUnreachable},
		{name: "dns_error", err: &net.DNSError{Err: "no such host", Name: "api.invalid"}, want: NetworkUnreachable},
		{name: "canceled", err: context.Canceled, want: Unclassified},
		{name: "deadline", err: fmt.Errorf("op: %w", context.DeadlineExceeded), want: Unclassified},
		{name: "plain", err: errors.New("something else"), want: Unclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := Classify(tt.err)
			require.NotNil(t, ce)
			assert.Equal(t, tt.want, ce.Kind())
		})
	}

	assert.Same(t, existing, Classify(existing))
	assert.Nil(t, Classify(nil))
}

func TestClassifiedErrorFormatting(t *testing.T) {
	cause := errors.New("connection reset")
	ce := NewError(NetworkUnreachable, 0, nil, cause).withRequest("GET", "http://api/centres")
	assert.Equal(t, "httpclient: network_unreachable: GET http://api/centres: connection reset", ce.Error())
	assert.ErrorIs(t, ce, cause)

	ce = NewError(ServerError, 502, nil, nil).withRequest("POST", "http://api/appointments")
	assert.Equal(t, "httpclient: server_error: POST http://api/appointments: status 502", ce.Error())

	assert.Equal(t, "httpclient: unclassified", NewError(Unclassified, 0, nil, nil).Error())
}

func TestIsKindAndAsClassified(t *testing.T) {
	err := fmt.Errorf("book: %w", NewError(AuthExpired, 401, nil, nil))
	assert.True(t, IsKind(err, AuthExpired))
	assert.False(t, IsKind(err, ServerError))
	assert.False(t, IsKind(errors.New("x"), Unclassified))

	_, ok := AsClassified(errors.New("x"))
	assert.False(t, ok)
}

func TestIsSuccessStatus(t *testing.T) {
	assert.True(t, IsSuccessStatus(200))
	assert.True(t, IsSuccessStatus(204))
	assert.False(t, IsSuccessStatus(199))
	assert.False(t, IsSuccessStatus(300))
}
