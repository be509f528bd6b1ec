package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"KalshiFlow/internal/usecase"
	xhttp "KalshiFlow/pkg/http"
	applogger "KalshiFlow/pkg/logger"
)

type closer struct {
	name  string
	close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	log        *applogger.Logger
	httpServer *xhttp.Server
	ranker     *usecase.MarketRanker
	background []func(ctx context.Context)
	closers    []closer
}

// New creates a new App instance with all dependencies.
func New(log *applogger.Logger, httpServer *xhttp.Server, ranker *usecase.MarketRanker) *App {
	return &App{
		log:        log,
		httpServer: httpServer,
		ranker:     ranker,
	}
}

// AddBackground registers a loop that runs until shutdown begins.
func (a *App) AddBackground(fn func(ctx context.Context)) {
	a.background = append(a.background, fn)
}

// AddCloser registers an infrastructure client to close on shutdown, after the
// HTTP server and pending snapshot publishes are done.
func (a *App) AddCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, fn := range a.background {
		go fn(bgCtx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}

	if a.ranker != nil {
		a.ranker.Shutdown()
	}

	// flush aggregated logs while the producer is still open
	a.log.RemoveCollector()

	for _, c := range a.closers {
		if err := c.close(); err != nil {
			a.log.Warn("close error", applogger.String("component", c.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return firstErr
}
