package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/frank1beans/tender-reconciler/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
}

// OfferSyncScheduler lets HTTP handlers hand a parsed bidder return off to
// the background worker instead of running sync_price_list_offers (§4.5)
// inline on the request goroutine.
type OfferSyncScheduler interface {
	EnqueueSyncPriceListOffers(ctx context.Context, payload SyncPriceListOffersPayload) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueSyncPriceListOffers(ctx context.Context, payload SyncPriceListOffersPayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewSyncPriceListOffersTask(payload)
	if err != nil {
		return err
	}

	// Dedupe on (computo, bidder): a second upload for the same return
	// before the first job finishes replaces it rather than racing it.
	taskID := fmt.Sprintf("sync-offers-%d-%s", payload.ComputoID, payload.Bidder)
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.TaskID(taskID))
	if err != nil && err != asynq.ErrTaskIDConflict {
		return err
	}
	return nil
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
