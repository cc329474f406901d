// Package repository backs C9 (catalog search) with the Postgres queries
// Service needs: loading catalog items with a current-model embedding,
// the lexical fallback scan, and the project-quantity/offer enrichment.
// Grounded on catalog_search_service.py's SQLAlchemy queries.
package repository

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/frank1beans/tender-reconciler/internal/domain"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EmbeddedItem is a catalog row whose stored embedding matches the
// requested model id/dimension, eligible for the per-commessa vector index
// (§4.9 step 4 "items whose stored vector has the current model id
// and dimension").
type EmbeddedItem struct {
	Item   domain.PriceListItem
	Vector []float32
}

// ItemsWithCurrentEmbedding loads every catalog item for a commessa whose
// stored embedding vector matches modelID/dimension.
func (r *Repository) ItemsWithCurrentEmbedding(ctx context.Context, commessaID int64, modelID string, dimension int) ([]EmbeddedItem, error) {
	items, err := r.allItems(ctx, commessaID)
	if err != nil {
		return nil, err
	}

	out := make([]EmbeddedItem, 0, len(items))
	for _, item := range items {
		if item.Embedding == nil || item.Embedding.ModelID != modelID {
			continue
		}
		if dimension > 0 && item.Embedding.Dimension != dimension {
			continue
		}
		if dimension > 0 && len(item.Embedding.Vector) != dimension {
			continue
		}
		out = append(out, EmbeddedItem{Item: item, Vector: item.Embedding.Vector})
	}
	return out, nil
}

// ItemsByID loads catalog rows by id, preserving no particular order.
func (r *Repository) ItemsByID(ctx context.Context, ids []int64) (map[int64]domain.PriceListItem, error) {
	if len(ids) == 0 {
		return map[int64]domain.PriceListItem{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, commessa_id, product_id, item_code, item_description, unit_label,
			wbs6_code, wbs6_description, wbs7_code, wbs7_description
		FROM price_list_items WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]domain.PriceListItem, len(ids))
	for rows.Next() {
		item, err := scanPriceListItem(rows)
		if err != nil {
			return nil, err
		}
		result[item.ID] = item
	}
	return result, rows.Err()
}

// LexicalFallback implements §4.9 step 8: a full-text contains-all-tokens
// scan over a lowercased composite of code/description/wbs6/wbs7, scoped
// (per the original's preserved scope bug, documented in SPEC_FULL.md) to
// the given candidate set — candidates being whatever rows were already
// loaded as FAISS hits, or the full catalog when that set is empty.
func (r *Repository) LexicalFallback(ctx context.Context, commessaID int64, tokens []string, candidateIDs []int64, limit int) ([]domain.PriceListItem, error) {
	var items []domain.PriceListItem
	var err error
	if len(candidateIDs) > 0 {
		byID, ferr := r.ItemsByID(ctx, candidateIDs)
		err = ferr
		for _, item := range byID {
			items = append(items, item)
		}
	} else {
		items, err = r.allItems(ctx, commessaID)
	}
	if err != nil {
		return nil, err
	}

	matches := make([]domain.PriceListItem, 0, limit)
	for _, item := range items {
		haystack := strings.ToLower(strings.Join([]string{
			item.ItemCode, item.ItemDescription, item.Wbs6Description, item.Wbs7Description,
		}, " "))
		if containsAllTokens(haystack, tokens) {
			matches = append(matches, item)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ItemCode < matches[j].ItemCode })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func containsAllTokens(haystack string, tokens []string) bool {
	for _, token := range tokens {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}

func (r *Repository) allItems(ctx context.Context, commessaID int64) ([]domain.PriceListItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, commessa_id, product_id, item_code, item_description, unit_label,
			wbs6_code, wbs6_description, wbs7_code, wbs7_description,
			embedding_model_id, embedding_vector, embedding_dimension
		FROM price_list_items WHERE commessa_id = $1
	`, commessaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.PriceListItem
	for rows.Next() {
		var item domain.PriceListItem
		var modelID *string
		var vector []float32
		var dimension *int
		if err := rows.Scan(&item.ID, &item.CommessaID, &item.ProductID, &item.ItemCode, &item.ItemDescription,
			&item.UnitLabel, &item.Wbs6Code, &item.Wbs6Description, &item.Wbs7Code, &item.Wbs7Description,
			&modelID, &vector, &dimension); err != nil {
			return nil, err
		}
		if modelID != nil && dimension != nil {
			item.Embedding = &domain.EmbeddingPayload{ModelID: *modelID, Vector: vector, Dimension: *dimension}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanPriceListItem(rows interface {
	Scan(...any) error
}) (domain.PriceListItem, error) {
	var item domain.PriceListItem
	err := rows.Scan(&item.ID, &item.CommessaID, &item.ProductID, &item.ItemCode, &item.ItemDescription,
		&item.UnitLabel, &item.Wbs6Code, &item.Wbs6Description, &item.Wbs7Code, &item.Wbs7Description)
	return item, err
}

// OfferEntry is one (label, figures) row used to compose offer_prices
// (§4.9 step 9, "ordered by round asc, label asc, updated_at desc").
type OfferEntry struct {
	Label     string
	Price     decimal.Decimal
	Quantity  *decimal.Decimal
	Round     *int
	ComputoID int64
	UpdatedAt time.Time
}

// ProjectQuantity sums VoceComputo.quantity per price_list_item_id across
// project computi (§4.9 step 9).
func (r *Repository) ProjectQuantity(ctx context.Context, priceListItemID int64) (decimal.Decimal, error) {
	var total *decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT SUM(v.quantity)
		FROM voce_computo v
		JOIN computi c ON c.id = v.computo_id
		WHERE c.type = 'project' AND v.product_id = $1::text
	`, priceListItemID).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if total == nil {
		return decimal.Zero, nil
	}
	return *total, nil
}

// ProjectUnitPrice returns the project's recorded unit price for an item,
// if any line references it.
func (r *Repository) ProjectUnitPrice(ctx context.Context, priceListItemID int64) (*decimal.Decimal, error) {
	var price *decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT v.unit_price
		FROM voce_computo v
		JOIN computi c ON c.id = v.computo_id
		WHERE c.type = 'project' AND v.product_id = $1::text
		LIMIT 1
	`, priceListItemID).Scan(&price)
	if err != nil {
		return nil, err
	}
	return price, nil
}

// OffersForItem loads every bidder offer recorded against a price list
// item, for §4.9 step 9's offer_prices map.
func (r *Repository) OffersForItem(ctx context.Context, priceListItemID int64) ([]OfferEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.impresa_label, o.unit_price, o.quantity, o.round_number, o.computo_id, o.updated_at
		FROM price_list_offers o WHERE o.price_list_item_id = $1
		ORDER BY o.round_number ASC NULLS LAST, o.impresa_label ASC, o.updated_at DESC
	`, priceListItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []OfferEntry
	for rows.Next() {
		var e OfferEntry
		if err := rows.Scan(&e.Label, &e.Price, &e.Quantity, &e.Round, &e.ComputoID, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
