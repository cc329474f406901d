package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frank1beans/tender-reconciler/internal/analysis"
	analysismodule "github.com/frank1beans/tender-reconciler/internal/analysis/module"
	"github.com/frank1beans/tender-reconciler/internal/catalogidx"
	"github.com/frank1beans/tender-reconciler/internal/embedding"
	"github.com/frank1beans/tender-reconciler/internal/events"
	apphttp "github.com/frank1beans/tender-reconciler/internal/http"
	"github.com/frank1beans/tender-reconciler/internal/http/router"
	"github.com/frank1beans/tender-reconciler/internal/matching"
	"github.com/frank1beans/tender-reconciler/internal/reconcile"
	reconcilemodule "github.com/frank1beans/tender-reconciler/internal/reconcile/module"
	"github.com/frank1beans/tender-reconciler/internal/scheduler"
	"github.com/frank1beans/tender-reconciler/internal/search"
	"github.com/frank1beans/tender-reconciler/platform/ai/embeddings"
	"github.com/frank1beans/tender-reconciler/platform/config"
	"github.com/frank1beans/tender-reconciler/platform/db"
	"github.com/frank1beans/tender-reconciler/platform/logger"
	"github.com/frank1beans/tender-reconciler/platform/qdrant"
	"github.com/frank1beans/tender-reconciler/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// poolHealth adapts *pgxpool.Pool to apphttp.HealthChecker for the /api/health
// readiness probe.
type poolHealth struct {
	pool *pgxpool.Pool
}

func (h poolHealth) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	embeddingClient := embeddings.NewClient(embeddings.Config{
		BaseURL: cfg.GetEmbeddingServiceURL(),
		APIKey:  cfg.GetEmbeddingAPIKey(),
	})
	embedder := embedding.NewService(embeddingClient, cfg.GetNLPModelID(), cfg.GetNLPMaxLength(), cfg.GetNLPBatchSize())

	vectorClient := qdrant.NewClient(qdrant.Config{
		BaseURL:    cfg.GetQdrantURL(),
		APIKey:     cfg.GetQdrantAPIKey(),
		Collection: cfg.GetQdrantCollection(),
	})

	syncClient, closeSyncClient := initSyncClient(cfg, log)
	if closeSyncClient != nil {
		defer closeSyncClient()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	reconcileRepo := reconcile.NewRepository(pool)
	catalogProvider := catalogidx.NewProvider(reconcileRepo, matching.DefaultThresholds())
	reconcileService := reconcile.NewService(reconcileRepo, catalogProvider, log)
	reconcileMod := reconcilemodule.NewModule(reconcileService, syncClient, val)

	analysisDataset := analysis.NewDataset(pool, nil)
	analysisCache := analysis.NewCache(pool)
	analysisThresholds := analysis.Thresholds{
		MediaPercent: cfg.GetCriticitaMediaPercent(),
		AltaPercent:  cfg.GetCriticitaAltaPercent(),
	}
	analysisMod := analysismodule.NewModule(analysisDataset, analysisCache, analysisThresholds)

	searchMod := search.NewModule(pool, vectorClient, embedder, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   poolHealth{pool: pool},
		EventBus: eventBus,
		Modules: []apphttp.Module{
			reconcileMod,
			analysisMod,
			searchMod,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initSyncClient wires the asynq client that hands sync_price_list_offers
// jobs off to cmd/scheduler's worker. Returns a nil client when Redis is
// not configured, in which case the reconcile module's /sync endpoint
// responds 503 rather than failing startup.
func initSyncClient(cfg *config.Config, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; background offer sync is disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() { _ = client.Close() }
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
