package scheduler

import (
	"context"
	"fmt"

	"github.com/frank1beans/tender-reconciler/internal/events"
	"github.com/frank1beans/tender-reconciler/platform/config"
	"github.com/frank1beans/tender-reconciler/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	pool   *pgxpool.Pool
	bus    events.Bus
	log    *logger.Logger
	offers OfferSyncProcessor
	cache  AnalysisCacheSweeper
}

// OfferSyncProcessor runs sync_price_list_offers (§4.5) for a staged import
// job. Implemented by internal/reconcile.
type OfferSyncProcessor interface {
	SyncPriceListOffers(ctx context.Context, payload SyncPriceListOffersPayload) (matched, unmatched int, err error)
}

// AnalysisCacheSweeper evicts stale analysis cache entries (§4.6). Implemented
// by internal/analysis.
type AnalysisCacheSweeper interface {
	Sweep(ctx context.Context)
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		pool:   pool,
		bus:    bus,
		log:    log,
	}

	mux.HandleFunc(TaskSyncPriceListOffers, w.handleSyncPriceListOffers)
	mux.HandleFunc(TaskAnalysisCacheSweep, w.handleAnalysisCacheSweep)

	return w, nil
}

// SetOfferSyncProcessor wires the reconciliation engine into the worker.
// Kept settable (rather than a constructor argument) because the worker and
// the processor are constructed on opposite sides of an import cycle in
// cmd/scheduler's composition root.
func (w *Worker) SetOfferSyncProcessor(p OfferSyncProcessor) {
	w.offers = p
}

// SetAnalysisCacheSweeper wires the analysis cache into the worker.
func (w *Worker) SetAnalysisCacheSweeper(s AnalysisCacheSweeper) {
	w.cache = s
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleSyncPriceListOffers(ctx context.Context, task *asynq.Task) error {
	if w.offers == nil {
		return fmt.Errorf("offer sync processor is not configured")
	}

	payload, err := ParseSyncPriceListOffersPayload(task)
	if err != nil {
		return err
	}

	matched, unmatched, err := w.offers.SyncPriceListOffers(ctx, payload)
	if err != nil {
		return err
	}

	if w.bus != nil {
		w.bus.Publish(ctx, events.OffersSynced{
			BaseEvent:     events.NewBaseEvent(),
			CommessaID:    payload.CommessaID,
			ComputoID:     payload.ComputoID,
			MatchedItems:  matched,
			UnmatchedRows: unmatched,
		})
	}

	return nil
}

func (w *Worker) handleAnalysisCacheSweep(ctx context.Context, _ *asynq.Task) error {
	if w.cache == nil {
		return nil
	}
	w.cache.Sweep(ctx)
	return nil
}
