package sandbox

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/propagation"
)

const (
	ctxUserID = "sandbox.user_id"
	ctxToken  = "sandbox.token"
)

func (s *Server) setupMiddlewares() {
	e := s.echo

	e.Use(middleware.RequestID())
	e.Use(otelecho.Middleware(s.cfg.ServiceName,
		otelecho.WithTracerProvider(s.tp),
		otelecho.WithPropagators(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		)),
	))
	e.Use(s.requestLogger())
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			s.log.Error().
				Err(err).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Bytes("stack", stack).
				Msg("Panic recovered")
			return err
		},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(s.faults.middleware())
}

// requestLogger writes one line per request. Server errors log at error,
// client errors at warn and everything else at debug.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = toAPIError(err).Status
			}
			req := c.Request()

			event := s.log.Debug()
			switch {
			case status >= http.StatusInternalServerError:
				event = s.log.Error()
			case status >= http.StatusBadRequest:
				event = s.log.Warn()
			}
			event.
				Str("method", req.Method).
				Str("route", c.Path()).
				Str("path", req.URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("Request completed")
			return err
		}
	}
}

// requireAuth resolves the bearer token to a user or answers 401.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok || token == "" || s.faults.isRevoked(token) {
			return errUnauthorized()
		}

		s.state.mu.Lock()
		userID, ok := s.state.tokens[token]
		s.state.mu.Unlock()
		if !ok {
			return errUnauthorized()
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxToken, token)
		return next(c)
	}
}

// idempotent replays the stored response when a mutation is repeated with
// the same Idempotency-Key.
func (s *Server) idempotent(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Header.Get(HeaderIdempotencyKey)
		if key == "" {
			return next(c)
		}

		s.state.mu.Lock()
		cached, ok := s.state.idempotent[cacheKey(c, key)]
		s.state.mu.Unlock()
		if ok {
			s.log.Debug().Str("idempotency_key", key).Str("route", c.Path()).Msg("Replaying stored response")
			return c.JSON(cached.status, envelope{Data: cached.body})
		}
		return next(c)
	}
}

func cacheKey(c echo.Context, key string) string {
	return c.Request().Method + " " + c.Request().URL.Path + " " + key
}

type envelope struct {
	Data any `json:"data"`
}

// respond writes data in the success envelope and remembers it for the
// request's idempotency key.
func (s *Server) respond(c echo.Context, status int, data any) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.respondLocked(c, status, data)
}

// respondLocked is respond for callers already holding the state lock.
func (s *Server) respondLocked(c echo.Context, status int, data any) error {
	if key := c.Request().Header.Get(HeaderIdempotencyKey); key != "" && c.Request().Method != http.MethodGet {
		s.state.idempotent[cacheKey(c, key)] = cachedResponse{status: status, body: data}
	}
	return c.JSON(status, envelope{Data: data})
}

// bind decodes and validates the request body into v.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return newAPIError(http.StatusBadRequest, "malformed request body")
	}
	return c.Validate(v)
}

func userID(c echo.Context) string {
	id, _ := c.Get(ctxUserID).(string)
	return id
}
