package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mindhaven/carekit/careapi"
	"github.com/mindhaven/carekit/config"
	"github.com/mindhaven/carekit/httpclient"
	"github.com/mindhaven/carekit/logger"
	"github.com/mindhaven/carekit/navigation"
	"github.com/mindhaven/carekit/observability"
	"github.com/mindhaven/carekit/retry"
	"github.com/mindhaven/carekit/session"
)

// Builder constructs an App one step at a time. Each step checks that the
// steps it depends on ran and records the first failure; later steps are
// skipped once an error is set.
type Builder struct {
	cfg  *config.Config
	opts *Options

	app *App
	err error
}

// NewAppBuilder creates an empty builder.
func NewAppBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the configuration and overrides.
func (b *Builder) WithConfig(cfg *config.Config, opts *Options) *Builder {
	if b.err != nil {
		return b
	}
	if cfg == nil {
		b.err = errors.New("app: configuration is required")
		return b
	}
	if opts == nil {
		opts = &Options{}
	}
	b.cfg = cfg
	b.opts = opts
	b.app = &App{cfg: cfg}
	return b
}

// CreateLogger builds the logger from log.level and log.pretty.
func (b *Builder) CreateLogger() *Builder {
	if b.err != nil {
		return b
	}
	if b.app == nil {
		b.err = errors.New("app: configuration required before creating logger")
		return b
	}

	switch {
	case b.opts.Logger != nil:
		b.app.logger = b.opts.Logger
	case b.opts.LogWriter != nil:
		b.app.logger = logger.NewWithWriter(b.opts.LogWriter, b.cfg.Log.Level, b.cfg.Log.Pretty, nil)
	default:
		b.app.logger = logger.NewWithWriter(os.Stdout, b.cfg.Log.Level, b.cfg.Log.Pretty, nil)
	}

	b.app.logger.Debug().
		Str("app", b.cfg.App.Name).
		Str("env", b.cfg.App.Env).
		Str("base_url", b.cfg.Client.BaseURL).
		Msg("Starting application")
	return b
}

// CreateObservability builds the trace and metric providers.
func (b *Builder) CreateObservability() *Builder {
	if !b.ready("creating observability") {
		return b
	}
	if b.opts.Observability != nil {
		b.app.provider = b.opts.Observability
		return b
	}

	provider, err := observability.NewProvider(ObservabilityConfig(b.cfg), b.app.logger)
	if err != nil {
		b.err = fmt.Errorf("app: observability: %w", err)
		return b
	}
	b.app.provider = provider
	b.onClose(func(ctx context.Context) error { return provider.Shutdown(ctx) })
	return b
}

// CreateSessionStore opens the store selected by session.driver.
func (b *Builder) CreateSessionStore() *Builder {
	if !b.ready("creating session store") {
		return b
	}
	if b.opts.Store != nil {
		b.app.store = b.opts.Store
		return b
	}

	sc := b.cfg.Session
	switch sc.Driver {
	case "", config.DriverMemory:
		b.app.store = session.NewMemoryStore()
	case config.DriverFile:
		store, err := session.NewFileStore(sc.File.Path)
		if err != nil {
			b.err = fmt.Errorf("app: file session store: %w", err)
			return b
		}
		b.app.store = store
	case config.DriverRedis:
		store, err := session.NewRedisStore(session.RedisConfig{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			Key:      sc.Redis.Key,
			TTL:      sc.Redis.TTL,
		})
		if err != nil {
			b.err = fmt.Errorf("app: redis session store: %w", err)
			return b
		}
		b.app.store = store
		b.onClose(closerFor(store))
	default:
		b.err = fmt.Errorf("app: unknown session driver %q", sc.Driver)
		return b
	}

	b.app.logger.Debug().Str("driver", sc.Driver).Msg("Session store ready")
	return b
}

// CreateNavigation sets up the navigator and the redirect taken when the
// session expires.
func (b *Builder) CreateNavigation() *Builder {
	if !b.ready("creating navigation") {
		return b
	}
	nav := b.opts.Navigator
	if nav == nil {
		nav = navigation.NewHistoryNavigator("/")
	}
	b.app.navigator = nav
	b.app.redirector = navigation.NewRedirector(nav, b.cfg.Auth.EntryPath, b.app.logger)
	return b
}

// CreateClient builds the authenticated HTTP client.
func (b *Builder) CreateClient() *Builder {
	if !b.ready("creating client") {
		return b
	}
	if b.app.store == nil || b.app.redirector == nil || b.app.provider == nil {
		b.err = errors.New("app: session store, navigation and observability required before creating client")
		return b
	}

	cc := b.cfg.Client
	builder := httpclient.NewBuilder(b.app.logger).
		WithBaseURL(cc.BaseURL).
		WithTimeout(cc.Timeout).
		WithSession(b.app.store).
		WithAuthObserver(b.app.redirector).
		WithRateLimit(cc.RateLimit.RPS, cc.RateLimit.Burst).
		WithTelemetry(b.app.provider.TracerProvider(), b.app.provider.MeterProvider())
	if cc.RequestIDHeader != "" {
		builder = builder.WithRequestIDHeader(cc.RequestIDHeader)
	}
	for k, v := range cc.Headers {
		builder = builder.WithDefaultHeader(k, v)
	}
	if cc.LogPayloads {
		builder = builder.WithPayloadLogging(cc.MaxPayloadLogBytes)
	}
	if b.opts.Transport != nil {
		builder = builder.WithTransport(b.opts.Transport)
	}

	client, err := builder.Build()
	if err != nil {
		b.err = fmt.Errorf("app: http client: %w", err)
		return b
	}
	b.app.client = client
	return b
}

// CreateExecutor builds the retry executor from the retry section.
func (b *Builder) CreateExecutor() *Builder {
	if !b.ready("creating retry executor") {
		return b
	}

	rc := b.cfg.Retry
	policy := retry.Policy{
		MaxRetries:        rc.MaxRetries,
		InitialDelay:      rc.InitialDelay,
		BackoffMultiplier: rc.Multiplier,
		MaxDelay:          rc.MaxDelay,
	}
	if err := policy.Validate(); err != nil {
		b.err = fmt.Errorf("app: %w", err)
		return b
	}

	execOpts := []retry.Option{retry.WithLogger(b.app.logger)}
	if b.opts.Sleeper != nil {
		execOpts = append(execOpts, retry.WithSleeper(b.opts.Sleeper))
	}
	if b.opts.RetryStatus != nil {
		execOpts = append(execOpts, retry.WithStatus(b.opts.RetryStatus))
	}
	b.app.executor = retry.New(policy, execOpts...)
	return b
}

// CreateAPI builds the careapi services on the client and executor.
func (b *Builder) CreateAPI() *Builder {
	if !b.ready("creating api") {
		return b
	}
	if b.app.client == nil || b.app.executor == nil {
		b.err = errors.New("app: client and retry executor required before creating api")
		return b
	}
	b.app.api = careapi.New(b.app.client, b.app.executor, b.app.store, b.app.logger)
	return b
}

// Build returns the App or the first error. On error everything opened so
// far is closed.
func (b *Builder) Build() (*App, error) {
	if b.err != nil {
		if b.app != nil && b.app.logger != nil {
			_ = b.app.Close(context.Background())
		}
		return nil, b.err
	}
	if b.app == nil || b.app.api == nil {
		return nil, errors.New("app: build steps incomplete")
	}
	return b.app, nil
}

func (b *Builder) ready(step string) bool {
	if b.err != nil {
		return false
	}
	if b.app == nil || b.app.logger == nil {
		b.err = fmt.Errorf("app: logger required before %s", step)
		return false
	}
	return true
}

func (b *Builder) onClose(fn func(context.Context) error) {
	b.app.closers = append(b.app.closers, fn)
}

// ObservabilityConfig maps the observability section onto the provider config.
func ObservabilityConfig(cfg *config.Config) *observability.Config {
	obs := cfg.Observability
	return &observability.Config{
		Enabled:        obs.Enabled,
		ServiceName:    obs.Service,
		ServiceVersion: cfg.GetString("app.version", "dev"),
		Environment:    cfg.App.Env,
		Endpoint:       obs.Endpoint,
		Protocol:       obs.Protocol,
		Insecure:       obs.Insecure,
	}
}
