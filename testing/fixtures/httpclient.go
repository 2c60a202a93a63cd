package fixtures

import (
	"encoding/json"
	"net/http"

	"github.com/mindhaven/carekit/httpclient"
	"github.com/mindhaven/carekit/testing/mocks"
)

// Envelope wraps data the way the backend does: {"data": ...}.
func Envelope(data any) []byte {
	b, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		panic(err)
	}
	return b
}

// ErrorPayload builds {"message": ..., "errors": {...}}.
func ErrorPayload(message string, fields map[string]string) []byte {
	body := map[string]any{"message": message}
	if len(fields) > 0 {
		body["errors"] = fields
	}
	b, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return b
}

// JSONResponse returns a response whose body is data in the envelope.
func JSONResponse(status int, data any) *httpclient.Response {
	return &httpclient.Response{
		StatusCode: status,
		Body:       Envelope(data),
		Headers:    http.Header{"Content-Type": {"application/json"}},
	}
}

// ClassifiedError returns the error the client produces for status with
// the given payload message.
func ClassifiedError(status int, message string, fields map[string]string) *httpclient.ClassifiedError {
	return httpclient.NewError(httpclient.KindForStatus(status), status, ErrorPayload(message, fields), nil)
}

// NewRespondingClient returns a mock client answering every request with
// data in a 200 envelope.
func NewRespondingClient(data any) *mocks.MockHTTPClient {
	client := &mocks.MockHTTPClient{}
	client.ExpectAny(JSONResponse(http.StatusOK, data), nil)
	return client
}

// NewFailingClient returns a mock client failing every request with status.
func NewFailingClient(status int, message string) *mocks.MockHTTPClient {
	client := &mocks.MockHTTPClient{}
	ce := ClassifiedError(status, message, nil)
	client.ExpectAny(&httpclient.Response{StatusCode: status, Body: ce.Body()}, ce)
	return client
}
