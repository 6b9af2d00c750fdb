package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newServeCmd creates the 'serve' subcommand: it exposes the status API,
// executes one demo run and keeps serving until interrupted.
func newServeCmd() *cobra.Command {
	var flags runFlags
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the status API while a demo workload runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if port <= 0 {
				port = appInstance.Config().Server.Port
			}
			logger := appInstance.Logger()

			srv := &http.Server{
				Addr:              net.JoinHostPort("", strconv.Itoa(port)),
				Handler:           appInstance.Server().Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			serveErr := make(chan error, 1)
			go func() {
				logger.Info("status API listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			if err := runDemo(cmd, appInstance, flags); err != nil {
				logger.Error("demo run failed", zap.Error(err))
			}

			select {
			case <-cmd.Context().Done():
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("status API: %w", err)
				}
			}
			ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown status API: %w", err)
			}
			return nil
		},
	}
	addRunFlags(cmd, &flags)
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}
