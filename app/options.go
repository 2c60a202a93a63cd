package app

import (
	"io"
	"net/http"

	"github.com/mindhaven/carekit/logger"
	"github.com/mindhaven/carekit/navigation"
	"github.com/mindhaven/carekit/observability"
	"github.com/mindhaven/carekit/retry"
	"github.com/mindhaven/carekit/session"
)

// Options overrides components New would otherwise build from config.
type Options struct {
	Logger        logger.Logger
	LogWriter     io.Writer
	Observability observability.Provider
	Store         session.Store
	Navigator     navigation.Navigator
	Transport     http.RoundTripper
	Sleeper       retry.Sleeper
	RetryStatus   retry.StatusFunc
}

// Option mutates Options.
type Option func(*Options)

// WithLogger replaces the config-built logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithLogWriter sends log output to w instead of stdout.
func WithLogWriter(w io.Writer) Option {
	return func(o *Options) { o.LogWriter = w }
}

// WithObservability supplies a ready provider. The app does not shut it down.
func WithObservability(p observability.Provider) Option {
	return func(o *Options) { o.Observability = p }
}

// WithStore replaces the driver-selected session store. The app does not close it.
func WithStore(s session.Store) Option {
	return func(o *Options) { o.Store = s }
}

func WithNavigator(n navigation.Navigator) Option {
	return func(o *Options) { o.Navigator = n }
}

func WithTransport(rt http.RoundTripper) Option {
	return func(o *Options) { o.Transport = rt }
}

// WithSleeper replaces the wait between retries, mostly for tests.
func WithSleeper(s retry.Sleeper) Option {
	return func(o *Options) { o.Sleeper = s }
}

// WithRetryStatus receives every retry state change.
func WithRetryStatus(fn retry.StatusFunc) Option {
	return func(o *Options) { o.RetryStatus = fn }
}

func collect(opts []Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
