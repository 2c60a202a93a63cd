// Package app wires configuration into one ready-to-use client stack:
// logger, telemetry, session store, navigation, HTTP client, retry executor
// and the careapi services.
package app

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/mindhaven/carekit/careapi"
	"github.com/mindhaven/carekit/config"
	"github.com/mindhaven/carekit/httpclient"
	"github.com/mindhaven/carekit/logger"
	"github.com/mindhaven/carekit/navigation"
	"github.com/mindhaven/carekit/observability"
	"github.com/mindhaven/carekit/retry"
	"github.com/mindhaven/carekit/session"
)

// App holds the components built at startup. It is passed down instead of
// reaching for package-level singletons.
type App struct {
	cfg        *config.Config
	logger     logger.Logger
	provider   observability.Provider
	store      session.Store
	navigator  navigation.Navigator
	redirector *navigation.Redirector
	client     httpclient.Client
	executor   *retry.Executor
	api        *careapi.API

	closers   []func(context.Context) error
	closeOnce sync.Once
	closeErr  error
}

// New builds an App from cfg. Components passed through opts take the
// place of the ones cfg would select.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	return NewAppBuilder().
		WithConfig(cfg, collect(opts)).
		CreateLogger().
		CreateObservability().
		CreateSessionStore().
		CreateNavigation().
		CreateClient().
		CreateExecutor().
		CreateAPI().
		Build()
}

func (a *App) Config() *config.Config { return a.cfg }
func (a *App) Logger() logger.Logger { return a.logger }
func (a *App) Observability() observability.Provider { return a.provider }
func (a *App) Store() session.Store { return a.store }
func (a *App) Navigator() navigation.Navigator { return a.navigator }
func (a *App) Redirector() *navigation.Redirector { return a.redirector }
func (a *App) Client() httpclient.Client { return a.client }
func (a *App) Executor() *retry.Executor { return a.executor }
func (a *App) API() *careapi.API { return a.api }

// Close releases what New opened, newest first. Later calls return the
// first result.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		var errs []error
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
		if a.closeErr != nil {
			a.logger.Error().Err(a.closeErr).Msg("Application shutdown finished with errors")
			return
		}
		a.logger.Debug().Msg("Application shutdown complete")
	})
	return a.closeErr
}

func closerFor(c io.Closer) func(context.Context) error {
	return func(context.Context) error { return c.Close() }
}
