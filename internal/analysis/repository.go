package analysis

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frank1beans/tender-reconciler/internal/domain"
)

// returnComputo bundles one bidder return's lines with the lookups Dataset.Build
// needs: voce_id -> project voce_id (via legacy_vocecomputo_id) and
// price_list_item_id -> recorded offer.
type returnComputo struct {
	computo         domain.Computo
	lines           []domain.VoceComputo
	voceToProjectID map[int64]int64
	offersByItem    map[string]domain.PriceListOffer
}

func (r returnComputo) bidderLabel() string {
	if r.computo.Bidder != nil && *r.computo.Bidder != "" {
		return *r.computo.Bidder
	}
	return "sconosciuto"
}

func (d *Dataset) loadProjectLines(ctx context.Context, commessaID int64) ([]domain.VoceComputo, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT v.id, v.computo_id, v.commessa_id, v.order_index, v.progressivo, v.code, v.description, v.uom,
			v.quantity, v.unit_price, v.amount, v.note,
			v.wbs6_code, v.wbs6_description, v.wbs7_code, v.wbs7_description, v.product_id
		FROM voce_computo v
		JOIN computi c ON c.id = v.computo_id
		WHERE c.commessa_id = $1 AND c.type = 'project'
		ORDER BY v.order_index
	`, commessaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVoceComputoRows(rows)
}

func (d *Dataset) loadReturnComputi(ctx context.Context, commessaID int64) ([]returnComputo, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, commessa_id, type, bidder, round_number, file_ref, total_amount, total_quantity, note, created_at, updated_at
		FROM computi WHERE commessa_id = $1 AND type = 'return'
		ORDER BY created_at
	`, commessaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var computi []domain.Computo
	for rows.Next() {
		var c domain.Computo
		var typ string
		if err := rows.Scan(&c.ID, &c.CommessaID, &typ, &c.Bidder, &c.RoundNumber, &c.FileRef, &c.TotalAmount,
			&c.TotalQuantity, &c.Note, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Type = domain.ComputoType(typ)
		computi = append(computi, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]returnComputo, 0, len(computi))
	for _, c := range computi {
		lineRows, err := d.pool.Query(ctx, `
			SELECT v.id, v.computo_id, v.commessa_id, v.order_index, v.progressivo, v.code, v.description, v.uom,
				v.quantity, v.unit_price, v.amount, v.note,
				v.wbs6_code, v.wbs6_description, v.wbs7_code, v.wbs7_description, v.product_id,
				v.legacy_vocecomputo_id
			FROM voce_computo v WHERE v.computo_id = $1 ORDER BY v.order_index
		`, c.ID)
		if err != nil {
			return nil, err
		}

		var lines []domain.VoceComputo
		voceToProjectID := make(map[int64]int64)
		for lineRows.Next() {
			var v domain.VoceComputo
			var wbs6Code, wbs6Desc, wbs7Code, wbs7Desc, productID string
			var legacyVoceID *int64
			if err := lineRows.Scan(&v.ID, &v.ComputoID, &v.CommessaID, &v.OrderIndex, &v.Progressivo, &v.Code,
				&v.Description, &v.UOM, &v.Quantity, &v.UnitPrice, &v.Amount, &v.Note,
				&wbs6Code, &wbs6Desc, &wbs7Code, &wbs7Desc, &productID, &legacyVoceID); err != nil {
				lineRows.Close()
				return nil, err
			}
			v.WbsLevels[5] = domain.WbsLevel{Level: 6, Code: wbs6Code, Description: wbs6Desc}
			v.WbsLevels[6] = domain.WbsLevel{Level: 7, Code: wbs7Code, Description: wbs7Desc}
			v.Metadata.ProductID = productID
			lines = append(lines, v)
			if legacyVoceID != nil {
				voceToProjectID[v.ID] = *legacyVoceID
			}
		}
		lineRows.Close()
		if err := lineRows.Err(); err != nil {
			return nil, err
		}

		offerRows, err := d.pool.Query(ctx, `
			SELECT price_list_item_id, id, commessa_id, computo_id, impresa_id, impresa_label, round_number, unit_price, quantity, created_at, updated_at
			FROM price_list_offers WHERE computo_id = $1
		`, c.ID)
		if err != nil {
			return nil, err
		}
		offersByItem := make(map[string]domain.PriceListOffer)
		for offerRows.Next() {
			var itemID int64
			var o domain.PriceListOffer
			if err := offerRows.Scan(&itemID, &o.ID, &o.CommessaID, &o.ComputoID, &o.ImpresaID, &o.ImpresaLabel,
				&o.RoundNumber, &o.UnitPrice, &o.Quantity, &o.CreatedAt, &o.UpdatedAt); err != nil {
				offerRows.Close()
				return nil, err
			}
			offersByItem[strconv.FormatInt(itemID, 10)] = o
		}
		offerRows.Close()
		if err := offerRows.Err(); err != nil {
			return nil, err
		}

		result = append(result, returnComputo{
			computo:         c,
			lines:           lines,
			voceToProjectID: voceToProjectID,
			offersByItem:    offersByItem,
		})
	}

	return result, nil
}

func scanVoceComputoRows(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]domain.VoceComputo, error) {
	var lines []domain.VoceComputo
	for rows.Next() {
		var v domain.VoceComputo
		var wbs6Code, wbs6Desc, wbs7Code, wbs7Desc, productID string
		if err := rows.Scan(&v.ID, &v.ComputoID, &v.CommessaID, &v.OrderIndex, &v.Progressivo, &v.Code, &v.Description,
			&v.UOM, &v.Quantity, &v.UnitPrice, &v.Amount, &v.Note, &wbs6Code, &wbs6Desc, &wbs7Code, &wbs7Desc, &productID); err != nil {
			return nil, err
		}
		v.WbsLevels[5] = domain.WbsLevel{Level: 6, Code: wbs6Code, Description: wbs6Desc}
		v.WbsLevels[6] = domain.WbsLevel{Level: 7, Code: wbs7Code, Description: wbs7Desc}
		v.Metadata.ProductID = productID
		lines = append(lines, v)
	}
	return lines, rows.Err()
}
