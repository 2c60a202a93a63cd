package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mindhaven/carekit/session"
)

// MockSessionStore provides a testify-based mock implementation of session.Store.
//
// Example usage:
//
//	store := &mocks.MockSessionStore{}
//	store.ExpectToken("tok-1", nil)
//	store.ExpectClear(nil)
type MockSessionStore struct {
	mock.Mock
}

var _ session.Store = (*MockSessionStore)(nil)

// Load implements session.Store
func (m *MockSessionStore) Load(ctx context.Context) (*session.Session, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*session.Session)
	return s, args.Error(1)
}

// Save implements session.Store
func (m *MockSessionStore) Save(ctx context.Context, s *session.Session) error {
	return m.Called(ctx, s).Error(0)
}

// Clear implements session.Store
func (m *MockSessionStore) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Token implements session.TokenSource
func (m *MockSessionStore) Token(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// ExpectLoad sets up an expectation for Load.
func (m *MockSessionStore) ExpectLoad(s *session.Session, err error) *mock.Call {
	return m.On("Load", mock.Anything).Return(s, err)
}

// ExpectSave sets up an expectation for Save with any session.
func (m *MockSessionStore) ExpectSave(err error) *mock.Call {
	return m.On("Save", mock.Anything, mock.AnythingOfType("*session.Session")).Return(err)
}

// ExpectClear sets up an expectation for Clear.
func (m *MockSessionStore) ExpectClear(err error) *mock.Call {
	return m.On("Clear", mock.Anything).Return(err)
}

// ExpectToken sets up an expectation for Token.
func (m *MockSessionStore) ExpectToken(token string, err error) *mock.Call {
	return m.On("Token", mock.Anything).Return(token, err)
}
