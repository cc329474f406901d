package reconcile

import (
	"context"
	"encoding/json"

	"github.com/frank1beans/tender-reconciler/internal/matching"
	"github.com/frank1beans/tender-reconciler/internal/scheduler"
)

// stagedLines is what an import handler JSON-encodes into a
// scheduler.SyncPriceListOffersPayload's ParsedLinesRef field. Return files
// stay small enough (at most a few thousand rows) that inlining the parsed
// lines into the asynq payload is simpler than staging them in a separate
// table or object store.
type stagedLines struct {
	Lines    []ParsedReturnLine    `json:"lines"`
	Fallback ProjectLineProductMap `json:"fallback"`
}

// EncodeStagedLines serializes a parsed return's lines for
// scheduler.Client.EnqueueSyncPriceListOffers's ParsedLinesRef.
func EncodeStagedLines(lines []ParsedReturnLine, fallback ProjectLineProductMap) (string, error) {
	data, err := json.Marshal(stagedLines{Lines: lines, Fallback: fallback})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JobProcessor adapts Service to scheduler.OfferSyncProcessor, the
// interface cmd/scheduler's asynq worker calls into.
type JobProcessor struct {
	repo    *Repository
	service *Service
}

func NewJobProcessor(repo *Repository, service *Service) *JobProcessor {
	return &JobProcessor{repo: repo, service: service}
}

// SyncPriceListOffers loads the target computo, decodes its staged lines,
// and runs Service.SyncPriceListOffers against them.
func (p *JobProcessor) SyncPriceListOffers(ctx context.Context, payload scheduler.SyncPriceListOffersPayload) (matched, unmatched int, err error) {
	computo, err := p.repo.GetComputo(ctx, payload.ComputoID)
	if err != nil {
		return 0, 0, err
	}

	var staged stagedLines
	if payload.ParsedLinesRef != "" {
		if err := json.Unmarshal([]byte(payload.ParsedLinesRef), &staged); err != nil {
			return 0, 0, err
		}
	}

	result, err := p.service.SyncPriceListOffers(ctx, computo, staged.Lines, staged.Fallback, matching.DefaultThresholds())
	if err != nil {
		return 0, 0, err
	}
	return result.MatchedItems, result.UnmatchedRows, nil
}
