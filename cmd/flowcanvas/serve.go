// ABOUTME: The serve subcommand: runs the HTTP editor API with session cleanup and graceful shutdown.
// ABOUTME: Every session gets its own canvas store and generation machine built from the config.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/2389-research/flowcanvas/editor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP editor server",
		Long:  `Serves the canvas editing API, node previews, saved documents, and Prometheus metrics.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadRuntime(cmd, "stderr")
			if err != nil {
				return err
			}
			defer rt.Close()
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				rt.cfg.Addr = addr
			}
			return serve(cmd.Context(), rt)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides config)")
	return cmd
}

// serve blocks until ctx ends or the listener fails.
func serve(ctx context.Context, rt *runtime) error {
	sessions := editor.NewStore(rt.cfg.Sessions.Max, rt.cfg.Sessions.TTL, editor.WithFactory(rt.newCanvas))
	defer sessions.Close()
	stopCleanup := sessions.StartCleanup(rt.cfg.Sessions.CleanupInterval)
	defer stopCleanup()

	opts := []editor.ServerOption{
		editor.WithLogger(rt.logger.Named("http")),
		editor.WithMetrics(rt.metrics),
		editor.WithAllowedOrigins(rt.cfg.AllowedOrigins),
	}
	if rt.repo != nil {
		opts = append(opts, editor.WithRepository(rt.repo))
	}
	srv := editor.NewServer(sessions, opts...).HTTPServer(rt.cfg.Addr)

	serverErrors := make(chan error, 1)
	go func() {
		rt.logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("storage", rt.cfg.Storage.Driver),
			zap.String("generator", rt.cfg.Generation.Generator))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
		rt.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			rt.logger.Warn("graceful shutdown did not complete", zap.Error(err))
			return srv.Close()
		}
		return nil
	}
}
