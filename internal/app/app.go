// Package app orchestrates the long-running components of the inbox
// service: the HTTP server and the task scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"zapdesk/internal/scheduler"
	"zapdesk/internal/server"
)

// App ties the HTTP server and the scheduler into one lifecycle.
type App struct {
	logger          *slog.Logger
	srv             *http.Server
	sched           *scheduler.Scheduler
	shutdownTimeout time.Duration
}

// New assembles the application from already-constructed components.
func New(logger *slog.Logger, srv *http.Server, sched *scheduler.Scheduler, shutdownTimeout time.Duration) *App {
	return &App{
		logger:          logger.With("component", "app"),
		srv:             srv,
		sched:           sched,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run starts all components and blocks until the context is cancelled or
// a component fails. Shutdown is graceful: in-flight HTTP requests and
// running scheduled jobs get to finish within the shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP server", "addr", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx, a.srv); err != nil {
			a.logger.Error("HTTP server shutdown failed", "error", err)
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler")
		if err := a.sched.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Application stopped due to error", "error", err)
		return err
	}
	a.logger.Info("Application stopped gracefully")
	return nil
}
