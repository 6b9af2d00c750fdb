// Package cmd defines the CLI commands for the progressdemo executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/stage-progress/internal/app"
	"github.com/JakeFAU/stage-progress/internal/config"
	"github.com/JakeFAU/stage-progress/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// appKeyType is the key for storing the App in the command context.
type appKeyType struct{}

// newApp is the application factory; tests replace it.
var newApp = func(ctx context.Context, cfg config.Config, out io.Writer, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, out, logger)
}

// newLogger builds the process logger; tests replace it.
var newLogger = logging.New

// session owns the services built for one command execution.
type session struct {
	cfgFile string
	app     *app.App
	logger  *zap.Logger
}

// newRootCmd creates the root command. Services are built in
// PersistentPreRunE and released by session.shutdown, which runs whether or
// not the subcommand failed.
func newRootCmd() (*cobra.Command, *session) {
	s := &session{}
	cmd := &cobra.Command{
		Use:   "progressdemo",
		Short: "Run a multi-stage workload with live stage progress.",
		Long: `progressdemo drives a simulated two-stage computation through the
stage-progress reporter. Progress is rendered on the configured display,
persisted to the configured store and exported as Prometheus metrics.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(s.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			s.logger, err = newLogger(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return err
			}
			s.app, err = newApp(cmd.Context(), cfg, cmd.ErrOrStderr(), s.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKeyType{}, s.app))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&s.cfgFile, "config", "", "config file (YAML); PROGRESS_* env vars override it")
	cmd.AddCommand(newRunCmd(), newServeCmd())
	return cmd, s
}

// shutdown flushes pending stage events and releases the store.
func (s *session) shutdown() error {
	if s.app == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.app.Close(ctx)
	if s.logger != nil {
		_ = s.logger.Sync()
	}
	return err
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKeyType{}).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd, s := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	return errors.Join(err, s.shutdown())
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signalContext()
	err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
