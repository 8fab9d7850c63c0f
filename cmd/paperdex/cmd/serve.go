package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/paperdex/paperdex/internal/api"
	perrors "github.com/paperdex/paperdex/internal/errors"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP search API",
		Long: `Start the HTTP server. On startup the index is reconciled with the
record store incrementally; pass --rebuild (or set index.rebuild_on_start)
to force a full delete-and-recreate rebuild instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), rebuild)
		},
	}

	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Force a full index rebuild on startup")
	return cmd
}

func runServe(ctx context.Context, forceRebuild bool) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.cleanup()

	pass := app.manager.Sync
	if forceRebuild || app.cfg.Index.RebuildOnStart {
		pass = app.manager.Rebuild
	}
	err = perrors.Retry(ctx, perrors.DefaultRetryConfig(), func() error {
		_, passErr := pass(ctx)
		return passErr
	})
	if err != nil {
		return fmt.Errorf("startup index pass failed: %w", err)
	}
	app.service.InvalidateCache()

	server := api.NewServer(app.service, app.manager, app.engine, app.logger, app.cfg.HTTP.APIKeys)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.cfg.HTTP.Port),
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(app.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(app.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		app.logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		app.logger.Info("shutting down", "reason", "context cancelled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	app.logger.Info("server stopped")
	return nil
}
