// Package reconcile implements C5: offer reconciliation and the manual
// price-edit flow (sync_price_list_offers, manual_price_update,
// rebuild_computo_from_offers). Grounded on
// original_source/backend/app/services/importers/offers.py and the
// teacher's pgx repository style (e.g. internal/leads/repository).
package reconcile

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frank1beans/tender-reconciler/internal/domain"
)

// ErrNotFound mirrors the teacher's repository sentinel error.
var ErrNotFound = errors.New("reconcile: not found")

// Repository is the pgx-backed persistence layer for price_list_offers and
// the voce_computo rows a return computo owns.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DeleteOffersForComputo removes every offer row for a return computo
// before a re-sync (§4.5 step 1 "delete existing offers for this computo").
func (r *Repository) DeleteOffersForComputo(ctx context.Context, computoID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM price_list_offers WHERE computo_id = $1`, computoID)
	return err
}

// UpsertOffer inserts or overwrites the single offer row keyed by
// (computo_id, price_list_item_id) — "subsequent matches overwrite" (§4.5 step 2).
func (r *Repository) UpsertOffer(ctx context.Context, offer domain.PriceListOffer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO price_list_offers
			(price_list_item_id, commessa_id, computo_id, impresa_id, impresa_label, round_number, unit_price, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (computo_id, price_list_item_id) DO UPDATE SET
			impresa_id = EXCLUDED.impresa_id,
			impresa_label = EXCLUDED.impresa_label,
			round_number = EXCLUDED.round_number,
			unit_price = EXCLUDED.unit_price,
			quantity = EXCLUDED.quantity,
			updated_at = now()
		RETURNING id
	`, offer.PriceListItemID, offer.CommessaID, offer.ComputoID, offer.ImpresaID, offer.ImpresaLabel,
		offer.RoundNumber, offer.UnitPrice, offer.Quantity).Scan(&id)
	return id, err
}

// OffersByComputo loads every offer currently recorded for a return
// computo, keyed by price_list_item_id, for rebuild_computo_from_offers.
func (r *Repository) OffersByComputo(ctx context.Context, computoID int64) (map[int64]domain.PriceListOffer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, price_list_item_id, commessa_id, computo_id, impresa_id, impresa_label, round_number, unit_price, quantity, created_at, updated_at
		FROM price_list_offers WHERE computo_id = $1
	`, computoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offers := make(map[int64]domain.PriceListOffer)
	for rows.Next() {
		var o domain.PriceListOffer
		if err := rows.Scan(&o.ID, &o.PriceListItemID, &o.CommessaID, &o.ComputoID, &o.ImpresaID, &o.ImpresaLabel,
			&o.RoundNumber, &o.UnitPrice, &o.Quantity, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		offers[o.PriceListItemID] = o
	}
	return offers, rows.Err()
}

// GetOffer fetches a single offer by computo + catalog item, used by
// manual_price_update to decide insert vs. update semantics.
func (r *Repository) GetOffer(ctx context.Context, computoID, priceListItemID int64) (domain.PriceListOffer, error) {
	var o domain.PriceListOffer
	err := r.pool.QueryRow(ctx, `
		SELECT id, price_list_item_id, commessa_id, computo_id, impresa_id, impresa_label, round_number, unit_price, quantity, created_at, updated_at
		FROM price_list_offers WHERE computo_id = $1 AND price_list_item_id = $2
	`, computoID, priceListItemID).Scan(&o.ID, &o.PriceListItemID, &o.CommessaID, &o.ComputoID, &o.ImpresaID, &o.ImpresaLabel,
		&o.RoundNumber, &o.UnitPrice, &o.Quantity, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PriceListOffer{}, ErrNotFound
	}
	return o, err
}

// ProjectLines loads the project computo's voce_computo rows for a
// commessa, used to rebuild the return snapshot from offers.
func (r *Repository) ProjectLines(ctx context.Context, commessaID int64) ([]domain.VoceComputo, error) {
	return r.voceComputoRows(ctx, `
		SELECT v.id, v.computo_id, v.commessa_id, v.order_index, v.progressivo, v.code, v.description, v.uom,
			v.quantity, v.unit_price, v.amount, v.note
		FROM voce_computo v
		JOIN computi c ON c.id = v.computo_id
		WHERE c.commessa_id = $1 AND c.type = 'project'
		ORDER BY v.order_index
	`, commessaID)
}

// ReturnLines loads a return computo's voce_computo rows in creation order.
func (r *Repository) ReturnLines(ctx context.Context, computoID int64) ([]domain.VoceComputo, error) {
	return r.voceComputoRows(ctx, `
		SELECT id, computo_id, commessa_id, order_index, progressivo, code, description, uom, quantity, unit_price, amount, note
		FROM voce_computo WHERE computo_id = $1 ORDER BY order_index
	`, computoID)
}

func (r *Repository) voceComputoRows(ctx context.Context, query string, arg int64) ([]domain.VoceComputo, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.VoceComputo
	for rows.Next() {
		var v domain.VoceComputo
		if err := rows.Scan(&v.ID, &v.ComputoID, &v.CommessaID, &v.OrderIndex, &v.Progressivo, &v.Code, &v.Description,
			&v.UOM, &v.Quantity, &v.UnitPrice, &v.Amount, &v.Note); err != nil {
			return nil, err
		}
		lines = append(lines, v)
	}
	return lines, rows.Err()
}

// ReplaceVoceComputo deletes and bulk re-inserts a return computo's line
// items in one transaction, used by rebuild_computo_from_offers.
func (r *Repository) ReplaceVoceComputo(ctx context.Context, computoID int64, lines []domain.VoceComputo) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM voce_computo WHERE computo_id = $1`, computoID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, v := range lines {
		batch.Queue(`
			INSERT INTO voce_computo (computo_id, commessa_id, order_index, progressivo, code, description, uom, quantity, unit_price, amount, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, v.ComputoID, v.CommessaID, v.OrderIndex, v.Progressivo, v.Code, v.Description, v.UOM, v.Quantity, v.UnitPrice, v.Amount, v.Note)
	}
	if batch.Len() > 0 {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return err
			}
		}
		if err := results.Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetComputo loads a computo's type and commessa for manual_price_update's
// guard ("fail if computo is not a return or not in this commessa").
func (r *Repository) GetComputo(ctx context.Context, computoID int64) (domain.Computo, error) {
	var c domain.Computo
	var typ string
	err := r.pool.QueryRow(ctx, `
		SELECT id, commessa_id, type, bidder, round_number, file_ref, total_amount, total_quantity, note, created_at, updated_at
		FROM computi WHERE id = $1
	`, computoID).Scan(&c.ID, &c.CommessaID, &typ, &c.Bidder, &c.RoundNumber, &c.FileRef, &c.TotalAmount, &c.TotalQuantity,
		&c.Note, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Computo{}, ErrNotFound
	}
	c.Type = domain.ComputoType(typ)
	return c, err
}

// UpdateComputoNote overwrites a computo's free-text annotation, used by
// reviewers to record context (e.g. "re-run after catalog fix") alongside a
// return or estimate.
func (r *Repository) UpdateComputoNote(ctx context.Context, computoID int64, note string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE computi SET note = $2, updated_at = now() WHERE id = $1`, computoID, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ItemsForCommessa loads every catalog row for a commessa, the data
// catalogidx.Provider indexes into the lexical lookup maps before each
// reconciliation run.
func (r *Repository) ItemsForCommessa(ctx context.Context, commessaID int64) ([]domain.PriceListItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, commessa_id, product_id, item_code, item_description, unit_id, unit_label, wbs6_code, wbs6_description,
			wbs7_code, wbs7_description, source_file, preventivo_id, created_at, updated_at
		FROM price_list_items WHERE commessa_id = $1
	`, commessaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.PriceListItem
	for rows.Next() {
		var item domain.PriceListItem
		if err := rows.Scan(&item.ID, &item.CommessaID, &item.ProductID, &item.ItemCode, &item.ItemDescription, &item.UnitID,
			&item.UnitLabel, &item.Wbs6Code, &item.Wbs6Description, &item.Wbs7Code, &item.Wbs7Description, &item.SourceFile,
			&item.PreventivoID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetPriceListItem loads a single catalog row by id, used when rebuilding a
// snapshot line's wbs/description from its resolved item.
func (r *Repository) GetPriceListItem(ctx context.Context, id int64) (domain.PriceListItem, error) {
	var item domain.PriceListItem
	err := r.pool.QueryRow(ctx, `
		SELECT id, commessa_id, product_id, item_code, item_description, unit_id, unit_label, wbs6_code, wbs6_description,
			wbs7_code, wbs7_description, source_file, preventivo_id, created_at, updated_at
		FROM price_list_items WHERE id = $1
	`, id).Scan(&item.ID, &item.CommessaID, &item.ProductID, &item.ItemCode, &item.ItemDescription, &item.UnitID,
		&item.UnitLabel, &item.Wbs6Code, &item.Wbs6Description, &item.Wbs7Code, &item.Wbs7Description, &item.SourceFile,
		&item.PreventivoID, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PriceListItem{}, ErrNotFound
	}
	return item, err
}
