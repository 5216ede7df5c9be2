// Package main is the entry point for the Posada reservation console server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lunahq/posada/internal/backend"
	"github.com/lunahq/posada/internal/config"
	"github.com/lunahq/posada/internal/crud"
	"github.com/lunahq/posada/internal/definition"
	"github.com/lunahq/posada/internal/observability"
	"github.com/lunahq/posada/internal/reservation"
	"github.com/lunahq/posada/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Load resource schemas and build the registry.
	loader := definition.NewLoader(cfg.Definitions.Directories, logger)
	schemas, err := loader.Load()
	if err != nil {
		logger.Error("schema loading failed", zap.Error(err))
		return 1
	}
	registry := definition.NewRegistry(schemas)
	metrics.SetSchemasLoaded(float64(registry.Len()))

	// Backend client and resource controllers.
	client := backend.NewHTTPClient(cfg.Backend, logger)
	manager := crud.NewManager(registry, client, logger, metrics)

	// Reservation session store and workflow engine.
	store, err := buildSessionStore(ctx, cfg.Reservation.Store, logger)
	if err != nil {
		logger.Error("session store initialization failed", zap.Error(err))
		return 1
	}
	defer store.Close()

	engine := reservation.NewEngine(client, store, cfg.Reservation, logger, metrics)

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	go engine.Run(bgCtx, time.Minute)

	authenticator, err := transport.NewAuthenticator(cfg.Identity)
	if err != nil {
		logger.Error("authenticator initialization failed", zap.Error(err))
		return 1
	}

	readiness := observability.ReadinessChecks{
		SchemasLoaded: func() bool { return registry.Len() > 0 },
		SessionStore: observability.HealthCheckFunc(func(ctx context.Context) error {
			return store.Ping(ctx)
		}),
		Backend: client,
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		Authenticate: authenticator.Middleware,
		Manager:      manager,
		Reservations: engine,
		Readiness:    readiness,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("schemas", registry.Len()),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Stop the purge loop and wait for pending session closes.
	bgCancel()
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Error("reservation engine shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildSessionStore creates the reservation session store based on config.
func buildSessionStore(ctx context.Context, cfg config.ReservationStoreConfig, logger *zap.Logger) (reservation.Store, error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory session store")
		return reservation.NewMemoryStore(), nil
	case "postgres":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			if cfg.DSNEnv != "" {
				return nil, fmt.Errorf("session store: %s environment variable not set", cfg.DSNEnv)
			}
			logger.Warn("session store DSN not configured, using in-memory store")
			return reservation.NewMemoryStore(), nil
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("session store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("session store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("session store: ping: %w", err)
		}

		store := reservation.NewPgStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("session store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported session store driver: %q", cfg.Driver)
	}
}
