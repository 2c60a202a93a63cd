package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindhaven/carekit/app"
	"github.com/mindhaven/carekit/logger"
	"github.com/mindhaven/carekit/observability"
	"github.com/mindhaven/carekit/sandbox"
)

const sandboxShutdownTimeout = 10 * time.Second

func newSandboxCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "sandbox",
		Short: "Serve the in-memory backend on sandbox.host:sandbox.port",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.loadConfig()
			if err != nil {
				return err
			}
			log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Pretty, nil)

			obsCfg := app.ObservabilityConfig(cfg)
			obsCfg.ServiceName += "-sandbox"
			provider, err := observability.NewProvider(obsCfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = observability.Shutdown(provider, observability.DefaultShutdownTimeout) }()

			sb := sandbox.New(sandbox.Config{
				Host:        cfg.Sandbox.Host,
				Port:        cfg.Sandbox.Port,
				OTP:         cfg.Sandbox.OTP,
				KeyID:       cfg.GetString("sandbox.keyid"),
				KeySecret:   cfg.GetString("sandbox.keysecret"),
				ServiceName: obsCfg.ServiceName,
			}, log, sandbox.WithTracerProvider(provider.TracerProvider()))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- sb.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("Shutting down sandbox backend")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), sandboxShutdownTimeout)
			defer cancel()
			if err := sb.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return <-errCh
		},
	}
}
