package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "PriceCast/pkg/http"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
)

// Component is a background worker started before the HTTP server and
// stopped after it.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type kafkaComponent struct {
	c *pkgkafka.Consumer
}

// KafkaComponent adapts a consumer, whose Start takes no context.
func KafkaComponent(c *pkgkafka.Consumer) Component { return kafkaComponent{c: c} }

func (k kafkaComponent) Start(context.Context) error { return k.c.Start() }
func (k kafkaComponent) Stop(ctx context.Context) error { return k.c.Stop(ctx) }

// App encapsulates the entire application lifecycle.
type App struct {
	logger          *applogger.Logger
	httpServer      *xhttp.Server
	components      []Component
	shutdownTimeout time.Duration
}

func New(l *applogger.Logger, httpServer *xhttp.Server, shutdownTimeout time.Duration) *App {
	if l == nil {
		l = applogger.Nop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	return &App{logger: l, httpServer: httpServer, shutdownTimeout: shutdownTimeout}
}

func (a *App) AddComponent(c Component) {
	if c != nil {
		a.components = append(a.components, c)
	}
}

// Run starts everything and blocks until ctx is done, a termination signal
// arrives or the HTTP listener fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := make([]Component, 0, len(a.components))
	for _, c := range a.components {
		if err := c.Start(ctx); err != nil {
			a.stopComponents(started)
			return fmt.Errorf("start component: %w", err)
		}
		started = append(started, c)
	}

	var errCh <-chan error
	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.stopComponents(started)
			return fmt.Errorf("start http server: %w", err)
		}
		errCh = a.httpServer.Errors()
	}
	a.logger.Info("application started", applogger.Int("components", len(started)))

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		runErr = err
	}

	if err := a.shutdown(started); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown stops the HTTP server first so no new work is accepted, then the
// components in reverse start order.
func (a *App) shutdown(started []Component) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if err := a.stopComponentsCtx(shutdownCtx, started); err != nil {
		errs = append(errs, err)
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) stopComponents(started []Component) {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	_ = a.stopComponentsCtx(ctx, started)
}

func (a *App) stopComponentsCtx(ctx context.Context, started []Component) error {
	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Stop(ctx); err != nil {
			a.logger.Warn("component stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
