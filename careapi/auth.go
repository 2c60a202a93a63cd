package careapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mindhaven/carekit/httpclient"
	"github.com/mindhaven/carekit/session"
)

// AuthService signs users in with a phone OTP.
type AuthService struct {
	c     *caller
	store session.Store
}

// SendOTP asks the backend to text a one-time password to phone.
func (s *AuthService) SendOTP(ctx context.Context, phone string) (*OTPChallenge, error) {
	in := OTPRequest{Phone: phone}
	if err := check(in); err != nil {
		return nil, err
	}
	out, err := send[OTPChallenge](ctx, s.c, http.MethodPost, "/auth/otp/send", in)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyOTP exchanges the OTP for a session and saves it.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, otp string) (*session.Session, error) {
	in := OTPVerification{Phone: phone, OTP: otp}
	if err := check(in); err != nil {
		return nil, err
	}
	res, err := send[AuthResult](ctx, s.c, http.MethodPost, "/auth/otp/verify", in)
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, errors.New("careapi: verification returned no token")
	}

	user := res.User
	sess := &session.Session{Token: res.Token, User: &user, IssuedAt: time.Now().UTC()}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.c.log.Info().Str("user_id", user.ID).Str("phone", user.Phone).Msg("Signed in")
	return sess, nil
}

// Logout revokes the token on the backend and clears the local session.
// The session is cleared even when the backend call fails. A 401 means the
// token was already gone and is not reported.
func (s *AuthService) Logout(ctx context.Context) error {
	_, err := send[struct{}](ctx, s.c, http.MethodPost, "/auth/logout", nil)
	if httpclient.IsKind(err, httpclient.AuthExpired) {
		err = nil
	}
	return errors.Join(err, s.store.Clear(ctx))
}

// CurrentUser returns the signed-in profile, or session.ErrNoSession.
func (s *AuthService) CurrentUser(ctx context.Context) (*session.Profile, error) {
	sess, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if sess.User == nil {
		return nil, session.ErrNoSession
	}
	return sess.User, nil
}
