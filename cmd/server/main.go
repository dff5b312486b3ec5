package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/multiris/multiris/internal/api"
	"github.com/multiris/multiris/internal/app"
	"github.com/multiris/multiris/internal/config"
	"github.com/multiris/multiris/internal/identity"
	"github.com/multiris/multiris/internal/logger"
	"github.com/multiris/multiris/internal/metrics"
	"github.com/multiris/multiris/internal/middleware"
	"github.com/multiris/multiris/internal/session"
	"github.com/multiris/multiris/internal/storage"
	"github.com/multiris/multiris/pkg/types"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, closer, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.Info("storage ready", "backend", cfg.StorageBackend)

	m := metrics.New()
	records := storage.NewRecords(kv)

	verifier := identity.NewVerifier(identity.Config{
		AppID:   cfg.WorldAppID,
		BaseURL: cfg.VerifyBaseURL,
		Timeout: cfg.VerifyTimeout,
		Metrics: m,
	})
	sessions := session.NewManager(verifier, records, session.Config{
		Action:   cfg.WorldAuthAction,
		Secret:   []byte(cfg.SessionSecret),
		TTL:      cfg.SessionTTL,
		MinLevel: types.VerificationLevel(cfg.MinVerificationLevel),
	})

	coordinator := app.NewCoordinator(records, sessions, app.WithMetrics(m))
	if err := coordinator.Load(ctx); err != nil {
		return err
	}
	slog.Info("state restored")

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitEnabled)
	server := api.NewServer(cfg, coordinator, sessions, verifier, m,
		rateLimiter,
		middleware.NewIdempotency(records),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error { return rateLimiter.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStore opens the configured KVStore
func openStore(ctx context.Context, cfg *config.Config) (storage.KVStore, io.Closer, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		s, err := storage.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, closerFunc(func() error { s.Close(); return nil }), nil
	case config.BackendSQLite:
		s, err := storage.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return storage.NewMemoryStore(), closerFunc(func() error { return nil }), nil
	}
}
