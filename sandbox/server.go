// Package sandbox is an in-memory stand-in for the booking backend. It serves
// the same endpoints and envelopes as production, seeds a small clinician
// directory, and can script failures through Faults. carectl serves it
// locally and the careapi tests run against it.
package sandbox

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/mindhaven/carekit/logger"
	"github.com/mindhaven/carekit/trace"
)

// HeaderIdempotencyKey deduplicates retried mutations.
const HeaderIdempotencyKey = trace.HeaderIdempotencyKey

const (
	DefaultOTP       = "123456"
	DefaultKeyID     = "rzp_test_sandbox"
	defaultKeySecret = "sandbox-secret"
)

// Config configures a sandbox server.
type Config struct {
	Host string
	Port int
	// OTP is the one code every phone number accepts.
	OTP string
	// KeyID and KeySecret stand in for Razorpay API keys.
	KeyID     string
	KeySecret string
	// ServiceName names the sandbox's spans.
	ServiceName string
}

func (c Config) withDefaults() Config {
	if c.OTP == "" {
		c.OTP = DefaultOTP
	}
	if c.KeyID == "" {
		c.KeyID = DefaultKeyID
	}
	if c.KeySecret == "" {
		c.KeySecret = defaultKeySecret
	}
	if c.ServiceName == "" {
		c.ServiceName = "carekit-sandbox"
	}
	return c
}

// Server is the sandbox backend.
type Server struct {
	echo   *echo.Echo
	cfg    Config
	log    logger.Logger
	state  *state
	faults *Faults
	tp     oteltrace.TracerProvider
	now    func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces time.Now, which decides whether a slot is in the past.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithTracerProvider traces requests with tp instead of the otel global.
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(s *Server) { s.tp = tp }
}

// New creates a sandbox server with its routes registered.
func New(cfg Config, log logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		cfg:    cfg.withDefaults(),
		log:    log,
		faults: newFaults(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tp == nil {
		s.tp = otel.GetTracerProvider()
	}
	s.state = newState(func() time.Time { return s.now() })

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(log)
	e.Validator = NewValidator()
	s.echo = e

	s.setupMiddlewares()
	s.registerRoutes()
	return s
}

// Handler exposes the router, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Faults returns the fault injector.
func (s *Server) Faults() *Faults {
	return s.faults
}

// Address returns host:port the server listens on.
func (s *Server) Address() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().
		Str("address", s.Address()).
		Str("otp", s.cfg.OTP).
		Msg("Starting sandbox backend")

	server := &http.Server{
		Addr:              s.Address(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.echo.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown waits for in-flight requests within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// SignPayment returns the checkout signature the sandbox accepts for a
// payment: hex HMAC-SHA256 of "orderID|paymentID" under the key secret.
func (s *Server) SignPayment(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Server) registerRoutes() {
	e := s.echo
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.POST("/auth/otp/send", s.sendOTP, s.idempotent)
	e.POST("/auth/otp/verify", s.verifyOTP, s.idempotent)
	e.POST("/auth/logout", s.logout, s.requireAuth)

	e.GET("/clinicians", s.listClinicians)
	e.GET("/clinicians/:id", s.getClinician)
	e.GET("/clinicians/:id/slots", s.listSlots)
	e.GET("/centres", s.listCentres)
	e.GET("/centres/:id", s.getCentre)

	authed := e.Group("", s.requireAuth)
	authed.POST("/appointments", s.bookAppointment, s.idempotent)
	authed.GET("/appointments", s.listAppointments)
	authed.GET("/appointments/:id", s.getAppointment)
	authed.POST("/appointments/:id/cancel", s.cancelAppointment, s.idempotent)
	authed.POST("/payments/orders", s.createOrder, s.idempotent)
	authed.POST("/payments/verify", s.verifyPayment, s.idempotent)
	authed.POST("/notifications/whatsapp", s.sendWhatsApp, s.idempotent)
}
