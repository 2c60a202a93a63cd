// Package session holds the signed-in user's bearer token and profile.
//
// The HTTP client reads the token through TokenSource on every request and
// clears the whole session through Store when the backend answers 401. Stores
// are safe for concurrent use and every Clear is idempotent.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNoSession is returned by Load when nobody is signed in.
var ErrNoSession = errors.New("session: no active session")

// Profile is the signed-in user as returned by OTP verification.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Session pairs the bearer token with the user it was issued to.
type Session struct {
	Token    string    `json:"token"`
	User     *Profile  `json:"user,omitempty"`
	IssuedAt time.Time `json:"issuedAt"`
}

// TokenSource yields the current bearer token. An empty token with a nil
// error means the request goes out unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Store persists the session between calls.
type Store interface {
	TokenSource
	// Load returns ErrNoSession when no session is stored.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	// Clear removes token and profile together. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// tokenFromLoad adapts a Load result to the TokenSource contract.
func tokenFromLoad(s *Session, err error) (string, error) {
	if errors.Is(err, ErrNoSession) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

func validateForSave(s *Session) error {
	if s == nil || s.Token == "" {
		return errors.New("session: token is required")
	}
	return nil
}
