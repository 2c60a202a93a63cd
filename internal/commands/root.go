package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mindhaven/carekit/app"
	"github.com/mindhaven/carekit/config"
)

// runtime carries the global flags and test overrides down to commands.
type runtime struct {
	configPath string
	debug      bool
	opts       []app.Option
}

// Execute runs the CLI.
func Execute(version string) error {
	root := NewRootCmd(version)
	err := root.Execute()
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) {
			fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		}
	}
	return err
}

// NewRootCmd builds the command tree. opts are passed to every app.New.
func NewRootCmd(version string, opts ...app.Option) *cobra.Command {
	rt := &runtime{opts: opts}

	root := &cobra.Command{
		Use:           "carectl",
		Short:         "Book and manage care appointments against the MindHaven backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "Config file (default: ./"+config.DefaultFile+" if present)")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", false, "Log at debug level to stderr")

	root.AddCommand(newSandboxCmd(rt))
	root.AddCommand(newLoginCmd(rt))
	root.AddCommand(newVerifyCmd(rt))
	root.AddCommand(newLogoutCmd(rt))
	root.AddCommand(newWhoamiCmd(rt))
	root.AddCommand(newCentresCmd(rt))
	root.AddCommand(newCliniciansCmd(rt))
	root.AddCommand(newSlotsCmd(rt))
	root.AddCommand(newBookCmd(rt))
	root.AddCommand(newAppointmentsCmd(rt))
	root.AddCommand(newCancelCmd(rt))
	root.AddCommand(newPayCmd(rt))

	return root
}

// loadConfig reads config and applies the global flags. The memory session
// driver cannot outlive one command, so the CLI keeps sessions in a file.
func (rt *runtime) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(rt.configPath)
	if err != nil {
		return nil, err
	}
	if rt.debug {
		cfg.Log.Level = "debug"
	}
	if cfg.Session.Driver == config.DriverMemory {
		path, err := defaultSessionPath()
		if err != nil {
			return nil, err
		}
		cfg.Session.Driver = config.DriverFile
		cfg.Session.File.Path = path
	}
	return cfg, nil
}

func defaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate session file: %w", err)
	}
	return filepath.Join(dir, "carekit", "session.json"), nil
}

// withApp builds the app, runs fn and prints its result. Failures are
// printed as JSON too.
func (rt *runtime) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) (any, error)) error {
	out := cmd.OutOrStdout()

	cfg, err := rt.loadConfig()
	if err != nil {
		return printError(out, err)
	}

	opts := append([]app.Option{app.WithLogWriter(cmd.ErrOrStderr())}, rt.opts...)
	a, err := app.New(cfg, opts...)
	if err != nil {
		return printError(out, err)
	}
	defer func() { _ = a.Close(context.Background()) }()

	data, err := fn(cmd.Context(), a)
	if err != nil {
		return printError(out, err)
	}
	return printSuccess(out, data)
}
