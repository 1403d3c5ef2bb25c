package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/friendbook/backend/internal/config"
	"github.com/friendbook/backend/internal/handlers"
	"github.com/friendbook/backend/internal/httpserver"
	"github.com/friendbook/backend/internal/logging"
	"github.com/friendbook/backend/internal/middleware"
)

const cleanupTimeout = 10 * time.Second

// Run bootstraps the friendbook backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer runCleanup(logger, "store", store.close)

	publisher, closePublisher, err := openPublisher(ctx, cfg.Events, logger)
	if err != nil {
		return err
	}
	defer runCleanup(logger, "event publisher", closePublisher)

	media, err := openMediaStorage(ctx, cfg.ObjectStore)
	if err != nil {
		return err
	}
	if media == nil {
		logger.Warn("no object store bucket configured, media uploads are disabled")
	}

	deps := buildDependencies(store, publisher, media, cfg)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitRequests, 0)
	handler := middleware.RateLimit(limiter, "/healthz")(mux)
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.ForwardedFor(cfg.TrustedProxies)(handler)

	logger.Info("serving friendbook", "port", cfg.AppPort, "store", cfg.Store)
	return httpserver.New(cfg.AppPort, handler, logger).Run(ctx)
}

func runCleanup(logger *slog.Logger, name string, cleanup func(context.Context) error) {
	if cleanup == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := cleanup(ctx); err != nil {
		logger.Error("cleanup failed", "component", name, "error", err)
	}
}
