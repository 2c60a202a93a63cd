package mocks

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"github.com/mindhaven/carekit/httpclient"
)

// MockHTTPClient provides a testify-based mock implementation of httpclient.Client.
// Every verb funnels into Do, so one expectation per method and path covers
// callers regardless of which helper they use.
//
// Example usage:
//
//	client := &mocks.MockHTTPClient{}
//	client.ExpectDo(http.MethodGet, "/centres", &httpclient.Response{StatusCode: 200, Body: body}, nil)
type MockHTTPClient struct {
	mock.Mock
}

var _ httpclient.Client = (*MockHTTPClient)(nil)

// Do implements httpclient.Client
func (m *MockHTTPClient) Do(ctx context.Context, method string, req *httpclient.Request) (*httpclient.Response, error) {
	path := ""
	if req != nil {
		path = req.Path
	}
	args := m.Called(ctx, method, path)
	resp, _ := args.Get(0).(*httpclient.Response)
	return resp, args.Error(1)
}

// Send implements httpclient.Client
func (m *MockHTTPClient) Send(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	method := http.MethodGet
	if req != nil && req.Method != "" {
		method = req.Method
	}
	return m.Do(ctx, method, req)
}

// Get implements httpclient.Client
func (m *MockHTTPClient) Get(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return m.Do(ctx, http.MethodGet, req)
}

// Post implements httpclient.Client
func (m *MockHTTPClient) Post(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return m.Do(ctx, http.MethodPost, req)
}

// Put implements httpclient.Client
func (m *MockHTTPClient) Put(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return m.Do(ctx, http.MethodPut, req)
}

// Patch implements httpclient.Client
func (m *MockHTTPClient) Patch(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return m.Do(ctx, http.MethodPatch, req)
}

// Delete implements httpclient.Client
func (m *MockHTTPClient) Delete(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return m.Do(ctx, http.MethodDelete, req)
}

// ExpectDo sets up an expectation for one method and path.
func (m *MockHTTPClient) ExpectDo(method, path string, resp *httpclient.Response, err error) *mock.Call {
	return m.On("Do", mock.Anything, method, path).Return(resp, err)
}

// ExpectAny answers every request with resp and err.
func (m *MockHTTPClient) ExpectAny(resp *httpclient.Response, err error) *mock.Call {
	return m.On("Do", mock.Anything, mock.Anything, mock.Anything).Return(resp, err)
}
