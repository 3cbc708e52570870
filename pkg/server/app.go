package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"CourtArb/internal/handler/ws"
	"CourtArb/pkg/config"
	xhttp "CourtArb/pkg/http"
	applogger "CourtArb/pkg/logger"
)

// Loop is a long-running component stopped through its context.
type Loop interface {
	Run(ctx context.Context) error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg  *config.Config
	l    *applogger.Logger
	loop Loop
	hub  *ws.Hub
	http *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, loop Loop, hub *ws.Hub, srv *xhttp.Server) *App {
	if l == nil {
		l = applogger.NewNop()
	}
	return &App{cfg: cfg, l: l, loop: loop, hub: hub, http: srv}
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the hub, the aggregation loop and the HTTP server, and
// shuts them down in reverse order once ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.hub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.hub.Run(runCtx)
		}()
	}

	loopErr := make(chan error, 1)
	if a.loop != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.loop.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				loopErr <- err
			}
		}()
	}

	if a.http != nil {
		if err := a.http.Start(); err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("http server start: %w", err)
		}
	}
	a.l.Info("courtarb started",
		applogger.String("env", a.cfg.Environment),
		applogger.Duration("interval", a.cfg.Aggregator.Interval),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case runErr = <-loopErr:
		a.l.Error("aggregation loop stopped", applogger.Error(runErr))
	}

	return errors.Join(runErr, a.shutdown(cancel, &wg))
}

// shutdown gracefully stops all services.
func (a *App) shutdown(cancel context.CancelFunc, wg *sync.WaitGroup) error {
	var errs []error
	if a.http != nil {
		ctx, done := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		if err := a.http.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
		done()
	}

	cancel()
	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(a.cfg.Server.ShutdownTimeout):
		errs = append(errs, fmt.Errorf("background workers did not stop within %s", a.cfg.Server.ShutdownTimeout))
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
