package fixtures

import (
	"context"
	"time"

	"github.com/mindhaven/carekit/session"
	tconst "github.com/mindhaven/carekit/testing"
	"github.com/mindhaven/carekit/testing/mocks"
)

// TestSession returns a session for the test user issued at issuedAt.
func TestSession(issuedAt time.Time) *session.Session {
	return &session.Session{
		Token: tconst.TestToken,
		User: &session.Profile{
			ID:    tconst.TestUserID,
			Name:  "Test User",
			Phone: tconst.TestPhone,
		},
		IssuedAt: issuedAt,
	}
}

// NewSignedInStore returns a memory store holding TestSession.
func NewSignedInStore() *session.MemoryStore {
	store := session.NewMemoryStore()
	_ = store.Save(context.Background(), TestSession(time.Now()))
	return store
}

// NewSignedInMockStore returns a mock store that hands out the test token
// and accepts Clear.
func NewSignedInMockStore() *mocks.MockSessionStore {
	store := &mocks.MockSessionStore{}
	store.ExpectToken(tconst.TestToken, nil)
	store.ExpectLoad(TestSession(time.Now()), nil)
	store.ExpectClear(nil)
	return store
}

// NewSignedOutMockStore returns a mock store with no session.
func NewSignedOutMockStore() *mocks.MockSessionStore {
	store := &mocks.MockSessionStore{}
	store.ExpectToken("", session.ErrNoSession)
	store.ExpectLoad(nil, session.ErrNoSession)
	store.ExpectClear(nil)
	return store
}
