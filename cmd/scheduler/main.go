package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frank1beans/tender-reconciler/internal/analysis"
	"github.com/frank1beans/tender-reconciler/internal/catalogidx"
	"github.com/frank1beans/tender-reconciler/internal/events"
	"github.com/frank1beans/tender-reconciler/internal/matching"
	"github.com/frank1beans/tender-reconciler/internal/reconcile"
	"github.com/frank1beans/tender-reconciler/internal/scheduler"
	"github.com/frank1beans/tender-reconciler/platform/config"
	"github.com/frank1beans/tender-reconciler/platform/db"
	"github.com/frank1beans/tender-reconciler/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	reconcileRepo := reconcile.NewRepository(pool)
	catalogProvider := catalogidx.NewProvider(reconcileRepo, matching.DefaultThresholds())
	reconcileService := reconcile.NewService(reconcileRepo, catalogProvider, log)
	jobProcessor := reconcile.NewJobProcessor(reconcileRepo, reconcileService)

	analysisCache := analysis.NewCache(pool)

	worker, err := scheduler.NewWorker(cfg, pool, eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	worker.SetOfferSyncProcessor(jobProcessor)
	worker.SetAnalysisCacheSweeper(analysisCache)

	sweepInterval := cfg.GetCacheSweepInterval()
	go runCacheSweepLoop(ctx, analysisCache, sweepInterval, log)

	worker.Run(ctx)
}

// runCacheSweepLoop evicts stale analysis cache entries on a fixed
// interval, independent of the asynq-driven TaskAnalysisCacheSweep path
// (§4.6 "Sweep").
func runCacheSweepLoop(ctx context.Context, cache *analysis.Cache, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cache.Sweep(ctx)
			log.Info("analysis cache sweep completed")
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
