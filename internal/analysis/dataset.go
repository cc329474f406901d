package analysis

import (
	"context"
	"math"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/frank1beans/tender-reconciler/internal/domain"
)

// OfferFigures is the per-bidder (quantity, unit_price, amount, note)
// triple attached to a dataset entry (§4.7 step 2 "offerte").
type OfferFigures struct {
	Quantity  float64
	UnitPrice float64
	Amount    float64
	Note      string
}

// DatasetEntry is one merged project line plus every bidder's offer
// figures, keyed by AggregationKey (§4.7 step 2/5).
type DatasetEntry struct {
	VoceID            int64
	AggregationKey    string
	Code              string
	Description       string
	UOM               string
	Quantity          float64
	UnitPriceProject  float64
	AmountProject     float64
	Wbs6Code          string
	Wbs6Description   string
	Wbs7Code          string
	Wbs7Description   string
	Offerte           map[string]OfferFigures // bidder label -> figures
}

// CommessaDataset is the merged per-line dataset every analysis (WBS,
// trends, heatmap) is derived from (§4.7 build_commessa_dataset).
type CommessaDataset struct {
	CommessaID int64
	Bidders    []string // stable order, for average-offer denominators
	Entries    []DatasetEntry
}

// HiddenCodes is an external collaborator providing, per WBS level, the set
// of codes hidden from analyses (§4.7 step 4). A nil/empty provider hides
// nothing.
type HiddenCodes interface {
	IsHidden(level int, code string) bool
}

// Dataset builds build_commessa_dataset: loads project + return lines
// grouped by computo, overrides prices with recorded offers where present,
// hides codes per the visibility collaborator, and merges by aggregation
// key (§4.7 steps 1-5).
type Dataset struct {
	pool   *pgxpool.Pool
	hidden HiddenCodes
}

func NewDataset(pool *pgxpool.Pool, hidden HiddenCodes) *Dataset {
	return &Dataset{pool: pool, hidden: hidden}
}

// Build assembles the CommessaDataset for one commessa.
func (d *Dataset) Build(ctx context.Context, commessaID int64) (*CommessaDataset, error) {
	projectLines, err := d.loadProjectLines(ctx, commessaID)
	if err != nil {
		return nil, err
	}

	returns, err := d.loadReturnComputi(ctx, commessaID)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]*DatasetEntry, len(projectLines))
	order := make([]string, 0, len(projectLines))

	for _, line := range projectLines {
		if d.isHiddenLine(line) {
			continue
		}
		key := aggregationKey(line)
		entry, ok := merged[key]
		if !ok {
			entry = &DatasetEntry{
				VoceID:          line.ID,
				AggregationKey:  key,
				Code:            line.Code,
				Description:     line.Description,
				UOM:             line.UOM,
				Wbs6Code:        line.Wbs6Code(),
				Wbs6Description: line.Wbs6Description(),
				Wbs7Code:        line.Wbs7Code(),
				Wbs7Description: line.Wbs7Description(),
				Offerte:         make(map[string]OfferFigures),
			}
			merged[key] = entry
			order = append(order, key)
		}
		qty := decimalOrZero(line.Quantity)
		price := decimalOrZero(line.UnitPrice)
		amount := decimalOrZero(line.Amount)
		entry.Quantity += qty
		entry.AmountProject += amount
		_ = price
	}

	bidderSeen := make(map[string]struct{})
	var bidders []string

	for _, ret := range returns {
		bidderLabel := ret.bidderLabel()
		if _, ok := bidderSeen[bidderLabel]; !ok {
			bidderSeen[bidderLabel] = struct{}{}
			bidders = append(bidders, bidderLabel)
		}

		for _, line := range ret.lines {
			projectVoiceID, ok := ret.voceToProjectID[line.ID]
			if !ok {
				continue
			}
			projectLine, ok := findByID(projectLines, projectVoiceID)
			if !ok {
				continue
			}
			if d.isHiddenLine(projectLine) {
				continue
			}
			key := aggregationKey(projectLine)
			entry, ok := merged[key]
			if !ok {
				continue
			}

			unitPrice := decimalOrZero(line.UnitPrice)
			quantity := decimalOrZero(line.Quantity)
			// §4.7 step 3: a recorded offer overrides the return line's
			// price; amount is offer.unit_price × offer_or_return.quantity.
			if offer, ok := ret.offersByItem[projectLine.Metadata.ProductID]; ok {
				unitPrice = offer.UnitPrice.InexactFloat64()
				if offer.Quantity != nil {
					quantity = offer.Quantity.InexactFloat64()
				}
			}
			amount := unitPrice * quantity

			existing := entry.Offerte[bidderLabel]
			existing.Quantity += quantity
			existing.Amount += amount
			existing.Note = line.Note
			entry.Offerte[bidderLabel] = existing
		}
	}

	sort.Strings(bidders)

	entries := make([]DatasetEntry, 0, len(order))
	for _, key := range order {
		entry := merged[key]
		if entry.Quantity != 0 {
			entry.UnitPriceProject = round4(entry.AmountProject / entry.Quantity)
		}
		for label, figures := range entry.Offerte {
			if figures.Quantity != 0 {
				figures.UnitPrice = round4(figures.Amount / figures.Quantity)
			}
			entry.Offerte[label] = figures
		}
		entries = append(entries, *entry)
	}

	return &CommessaDataset{CommessaID: commessaID, Bidders: bidders, Entries: entries}, nil
}

// BuildRoundTotals loads every return computo for a commessa and reduces it
// to one (bidder, round, total amount) row, the input TrendRound aggregates
// from. The total is each return computo's own recorded total_amount when
// present, else the sum of its lines' offer-overridden amounts.
func (d *Dataset) BuildRoundTotals(ctx context.Context, commessaID int64) ([]RoundTotal, error) {
	returns, err := d.loadReturnComputi(ctx, commessaID)
	if err != nil {
		return nil, err
	}

	totals := make([]RoundTotal, 0, len(returns))
	for _, ret := range returns {
		round := 0
		if ret.computo.RoundNumber != nil {
			round = *ret.computo.RoundNumber
		}

		var amount float64
		if ret.computo.TotalAmount != nil {
			amount = ret.computo.TotalAmount.InexactFloat64()
		} else {
			for _, line := range ret.lines {
				unitPrice := decimalOrZero(line.UnitPrice)
				quantity := decimalOrZero(line.Quantity)
				if offer, ok := ret.offersByItem[line.Metadata.ProductID]; ok {
					unitPrice = offer.UnitPrice.InexactFloat64()
					if offer.Quantity != nil {
						quantity = offer.Quantity.InexactFloat64()
					}
				}
				amount += unitPrice * quantity
			}
		}

		totals = append(totals, RoundTotal{
			Bidder: ret.bidderLabel(),
			Round:  round,
			Amount: amount,
		})
	}

	return totals, nil
}

func (d *Dataset) isHiddenLine(line domain.VoceComputo) bool {
	if d.hidden == nil {
		return false
	}
	for level := 1; level <= 7; level++ {
		code := line.WbsLevels[level-1].Code
		if code != "" && d.hidden.IsHidden(level, code) {
			return true
		}
	}
	return false
}

// aggregationKey groups return/project lines that represent the same
// priced item across rounds. Falls back to the code when a resolved
// product id is absent.
func aggregationKey(line domain.VoceComputo) string {
	if line.Metadata.ProductID != "" {
		return line.Metadata.ProductID
	}
	return line.Code
}

func decimalOrZero(v *decimal.Decimal) float64 {
	if v == nil {
		return 0
	}
	return v.InexactFloat64()
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func findByID(lines []domain.VoceComputo, id int64) (domain.VoceComputo, bool) {
	for _, l := range lines {
		if l.ID == id {
			return l, true
		}
	}
	return domain.VoceComputo{}, false
}
