package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskSyncPriceListOffers is the asynq task type name for a batched
// per-bidder offer-sync job (§4.5 sync_price_list_offers). Parsing a return
// file and reconciling it against the catalog can take longer than an HTTP
// request budget allows once a commessa has several thousand price-list
// rows, so the commit runs as a background job. The enqueuing request only
// reports that the task was queued; no endpoint reports the job's progress.
const TaskSyncPriceListOffers = "import.sync_price_list_offers"

// TaskAnalysisCacheSweep evicts analysis cache entries older than the cache
// TTL regardless of version (§4.6), run on a fixed interval by cmd/scheduler.
const TaskAnalysisCacheSweep = "analysis.cache_sweep"

// SyncPriceListOffersPayload carries everything the worker needs to run
// sync_price_list_offers without re-parsing the original upload: the caller
// (the import HTTP handler) has already parsed the file into ParsedVoce rows
// before enqueuing and staged them under ParsedLinesRef.
type SyncPriceListOffersPayload struct {
	JobID      string `json:"jobId"`
	CommessaID int64  `json:"commessaId"`
	ComputoID  int64  `json:"computoId"`
	Bidder     string `json:"bidder"`
	// ParsedLinesRef carries the staged parse result inline as a JSON
	// string (see reconcile.EncodeStagedLines); it is not a reference to
	// object storage or a staging table.
	ParsedLinesRef string `json:"parsedLinesRef"`
}

// AnalysisCacheSweepPayload is empty: the sweep walks every cached entry.
type AnalysisCacheSweepPayload struct{}

func NewSyncPriceListOffersTask(payload SyncPriceListOffersPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSyncPriceListOffers, data), nil
}

func ParseSyncPriceListOffersPayload(task *asynq.Task) (SyncPriceListOffersPayload, error) {
	var payload SyncPriceListOffersPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SyncPriceListOffersPayload{}, err
	}
	return payload, nil
}

func NewAnalysisCacheSweepTask() (*asynq.Task, error) {
	data, err := json.Marshal(AnalysisCacheSweepPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalysisCacheSweep, data), nil
}
