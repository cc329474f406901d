// Package analysis implements C6 (analysis cache), C7 (WBS aggregation) and
// C8 (trends & heatmap). Grounded on
// original_source/backend/app/services/analysis/{cache,wbs,trends}.py.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// cacheTTL is the fixed 5-minute freshness window (§4.6 "Get").
const cacheTTL = 5 * time.Minute

type cacheEntry struct {
	version   string
	storedAt  time.Time
	payload   any
}

// Cache is the per-process analysis cache described in §4.6: version-keyed,
// 5-minute TTL, no disk persistence, guarded by a single reentrant-style
// lock (a sync.Mutex here — Go has no built-in reentrant mutex, and this
// cache's Get/Put never call back into themselves, so a plain mutex gives
// the same exclusion the spec asks for without the cost of hand-rolling
// reentrancy).
type Cache struct {
	pool *pgxpool.Pool

	mu      sync.Mutex
	entries map[int64]cacheEntry
}

func NewCache(pool *pgxpool.Pool) *Cache {
	return &Cache{pool: pool, entries: make(map[int64]cacheEntry)}
}

// Version computes the commessa-scoped version string (§4.6): the join of
// MAX(updated_at) of Computo, MAX(id) of VoceComputo, MAX(updated_at) of
// PriceListOffer, MAX(updated_at) of PriceListItem, separated by "|".
// Missing values contribute "".
func (c *Cache) Version(ctx context.Context, commessaID int64) (string, error) {
	var computoMax, offerMax, itemMax *time.Time
	var voceMax *int64

	row := c.pool.QueryRow(ctx, `
		SELECT
			(SELECT MAX(updated_at) FROM computi WHERE commessa_id = $1),
			(SELECT MAX(v.id) FROM voce_computo v JOIN computi c ON c.id = v.computo_id WHERE c.commessa_id = $1),
			(SELECT MAX(updated_at) FROM price_list_offers WHERE commessa_id = $1),
			(SELECT MAX(updated_at) FROM price_list_items WHERE commessa_id = $1)
	`, commessaID)
	if err := row.Scan(&computoMax, &voceMax, &offerMax, &itemMax); err != nil {
		return "", err
	}

	parts := []string{
		formatTime(computoMax),
		formatInt64(voceMax),
		formatTime(offerMax),
		formatTime(itemMax),
	}
	return strings.Join(parts, "|"), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

// Get returns the cached payload iff its stored version equals the
// recomputed version and its age is within the TTL; otherwise it reports a
// miss (§4.6 "Get").
func (c *Cache) Get(ctx context.Context, commessaID int64) (any, bool, error) {
	currentVersion, err := c.Version(ctx, commessaID)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[commessaID]
	if !ok {
		return nil, false, nil
	}
	if entry.version != currentVersion {
		return nil, false, nil
	}
	if time.Since(entry.storedAt) > cacheTTL {
		return nil, false, nil
	}
	return entry.payload, true, nil
}

// Put overwrites the cached entry for a commessa with a freshly computed
// payload and the version it was computed against.
func (c *Cache) Put(ctx context.Context, commessaID int64, payload any) error {
	version, err := c.Version(ctx, commessaID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[commessaID] = cacheEntry{version: version, storedAt: time.Now(), payload: payload}
	return nil
}

// Sweep evicts every entry older than the TTL regardless of version,
// reclaiming memory for commessas that are no longer being viewed. Run
// periodically by cmd/scheduler (scheduler.TaskAnalysisCacheSweep).
func (c *Cache) Sweep(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.entries {
		if time.Since(entry.storedAt) > cacheTTL {
			delete(c.entries, id)
		}
	}
}
