package httpclient

import (
	"context"
	"fmt"
	nethttp "net/http"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/mindhaven/carekit/logger"
	"github.com/mindhaven/carekit/session"
)

// NewBearerInterceptor attaches "Authorization: Bearer <token>" when src has
// a token. Without one the request goes out unauthenticated.
func NewBearerInterceptor(src session.TokenSource) RequestInterceptor {
	return func(ctx context.Context, req *nethttp.Request) error {
		token, err := src.Token(ctx)
		if err != nil {
			return fmt.Errorf("read session token: %w", err)
		}
		if token != "" {
			req.Header.Set(HeaderAuthorization, "Bearer "+token)
		}
		return nil
	}
}

// authGuard reacts to AuthExpired: it clears the session and then tells the
// observers. Concurrent 401s share one clear and one round of notifications.
type authGuard struct {
	store  SessionStore
	log    logger.Logger
	group  singleflight.Group
	notify []AuthObserver
}

// newAuthGuard copies observers, so a Builder reused after Build cannot
// change the set a built client notifies.
func newAuthGuard(store SessionStore, log logger.Logger, observers []AuthObserver) *authGuard {
	return &authGuard{store: store, log: log, notify: slices.Clone(observers)}
}

// expire runs the AuthExpired side effects. The clear uses a context
// detached from cancellation so an abandoned caller still logs the user out.
func (g *authGuard) expire(ctx context.Context, ce *ClassifiedError) {
	_, _, _ = g.group.Do("expire", func() (any, error) {
		if g.store != nil {
			if err := g.store.Clear(context.WithoutCancel(ctx)); err != nil {
				g.log.Error().Err(err).Msg("Failed to clear session after 401")
			} else {
				g.log.Info().Str("url", ce.URL()).Msg("Session expired, cleared stored credentials")
			}
		}
		for _, o := range g.notify {
			o.OnAuthExpired(ctx, ce)
		}
		return nil, nil
	})
}
