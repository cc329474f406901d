// Package events provides domain event definitions on top of the platform
// event bus. Event/Handler/Bus/BaseEvent are aliases to their platform/events
// counterparts (like InMemoryBus in bus.go) so that domain events built here
// satisfy the bus's interfaces without a second, merely-structurally-similar
// set of types.
package events

import (
	platformevents "github.com/frank1beans/tender-reconciler/platform/events"
)

type Event = platformevents.Event
type BaseEvent = platformevents.BaseEvent
type Handler = platformevents.Handler
type HandlerFunc = platformevents.HandlerFunc
type Bus = platformevents.Bus

var NewBaseEvent = platformevents.NewBaseEvent

// =============================================================================
// Import / reconciliation domain events
// =============================================================================

// ImportJobQueued is published when a bidder return file has been parsed and
// its offer-sync job has been handed to the scheduler (§4.5 sync_price_list_offers).
type ImportJobQueued struct {
	BaseEvent
	JobID      string `json:"jobId"`
	CommessaID int64  `json:"commessaId"`
	ComputoID  int64  `json:"computoId"`
	Bidder     string `json:"bidder"`
}

func (e ImportJobQueued) EventName() string { return "import.job.queued" }

// OffersSynced is published once sync_price_list_offers has committed the
// offer rows for a return computo.
type OffersSynced struct {
	BaseEvent
	CommessaID    int64 `json:"commessaId"`
	ComputoID     int64 `json:"computoId"`
	MatchedItems  int   `json:"matchedItems"`
	UnmatchedRows int   `json:"unmatchedRows"`
}

func (e OffersSynced) EventName() string { return "import.offers.synced" }

// AnalysisCacheInvalidated is published whenever a write touches a row that
// feeds build_commessa_dataset's version string (§4.6), so subscribers that
// hold their own derived caches can drop them eagerly instead of waiting for
// the version string to naturally drift.
type AnalysisCacheInvalidated struct {
	BaseEvent
	CommessaID int64  `json:"commessaId"`
	Reason     string `json:"reason"`
}

func (e AnalysisCacheInvalidated) EventName() string { return "analysis.cache.invalidated" }
