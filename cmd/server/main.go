package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"brick/internal/platform/config"
	"brick/internal/platform/httpserver"
	"brick/internal/platform/logger"
	"brick/internal/platform/otel"
)

// main wires the engine, exposes the ops router, and keeps the server
// lifecycle small. Business logic lives in the internal component packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := otel.Setup(ctx, cfg.Otel)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("release resources", "error", err)
		}
	}()
	if err := a.bootstrap(ctx); err != nil {
		return err
	}

	ops := httpserver.NewOpsHandler(a.registry, a.checks, log)
	srv := httpserver.New(cfg.Server.Addr, httpserver.NewOpsRouter(ops))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting brick", "addr", cfg.Server.Addr, "state_backend", cfg.State.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
