package fixtures

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/mindhaven/carekit/httpclient"
	"github.com/mindhaven/carekit/session"
	tconst "github.com/mindhaven/carekit/testing"
)

func TestSignedInStores(t *testing.T) {
	ctx := context.Background()

	tok, err := NewSignedInStore().Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, tconst.TestToken, tok)

	m := NewSignedInMockStore()
	s, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, tconst.TestPhone, s.User.Phone)

	_, err = NewSignedOutMockStore().Token(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestTestSession(t *testing.T) {
	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := TestSession(at)
	assert.Equal(t, at, s.IssuedAt)
	assert.Equal(t, tconst.TestUserID, s.User.ID)
}

func TestResponses(t *testing.T) {
	resp := JSONResponse(http.StatusCreated, map[string]string{"id": "a1"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "a1", gjson.GetBytes(resp.Body, "data.id").String())

	ce := ClassifiedError(http.StatusUnprocessableEntity, "validation failed", map[string]string{"phone": "invalid"})
	assert.Equal(t, httpclient.ClientRequestError, ce.Kind())
	assert.Equal(t, "validation failed", ce.Message())
	assert.Equal(t, map[string]string{"phone": "invalid"}, ce.FieldErrors())

	assert.False(t, gjson.GetBytes(ErrorPayload("boom", nil), "errors").Exists())
}

func TestClients(t *testing.T) {
	ctx := context.Background()

	resp, err := NewRespondingClient([]string{"x"}).Get(ctx, &httpclient.Request{Path: "/anything"})
	require.NoError(t, err)
	assert.Equal(t, "x", gjson.GetBytes(resp.Body, "data.0").String())

	resp, err = NewFailingClient(http.StatusServiceUnavailable, "down").Post(ctx, &httpclient.Request{Path: "/x"})
	require.Error(t, err)
	assert.True(t, httpclient.IsKind(err, httpclient.ServerError))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
