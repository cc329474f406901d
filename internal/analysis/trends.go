package analysis

import (
	"fmt"
	"math"
	"sort"
)

// bidderPalette is the fixed 8-entry color palette §4.8 assigns
// deterministically by bidder base-label, so the same bidder keeps the same
// color across rounds.
var bidderPalette = [8]string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728",
	"#9467bd", "#8c564b", "#e377c2", "#7f7f7f",
}

// BidderColor deterministically maps a bidder's base label to one of the 8
// palette entries via a stable string hash (FNV-1a), so repeated calls for
// the same label always agree without needing shared mutable state.
func BidderColor(bidderLabel string) string {
	var hash uint32 = 2166136261
	for i := 0; i < len(bidderLabel); i++ {
		hash ^= uint32(bidderLabel[i])
		hash *= 16777619
	}
	return bidderPalette[hash%uint32(len(bidderPalette))]
}

// RoundPoint is one round's figure for trend_round's per-bidder series
// (§4.8 "offerte:[{round, round_label, importo, delta%}]").
type RoundPoint struct {
	Round      int
	RoundLabel string
	Importo    float64
	DeltaPct   float64 // vs. the prior round; 0 for the first round
}

// BidderTrend is one bidder's full round series plus its overall delta.
type BidderTrend struct {
	Bidder          string
	Color           string
	Offerte         []RoundPoint
	DeltaComplessivo float64 // vs. the first round
}

// RoundTotal is a (bidder, round, total amount) row, the input
// TrendRound aggregates from.
type RoundTotal struct {
	Bidder string
	Round  int
	Amount float64
}

// TrendRound implements §4.8's trend_round: a per-bidder series indexed by
// round_number, delta computed vs. the prior round, delta_complessivo vs.
// the first round. impresaFilter, if non-empty, restricts to one bidder.
func TrendRound(totals []RoundTotal, impresaFilter string) []BidderTrend {
	byBidder := make(map[string][]RoundTotal)
	var order []string
	for _, t := range totals {
		if impresaFilter != "" && t.Bidder != impresaFilter {
			continue
		}
		if _, ok := byBidder[t.Bidder]; !ok {
			order = append(order, t.Bidder)
		}
		byBidder[t.Bidder] = append(byBidder[t.Bidder], t)
	}
	sort.Strings(order)

	trends := make([]BidderTrend, 0, len(order))
	for _, bidder := range order {
		rounds := byBidder[bidder]
		sort.Slice(rounds, func(i, j int) bool { return rounds[i].Round < rounds[j].Round })

		points := make([]RoundPoint, 0, len(rounds))
		var prior float64
		var first float64
		for i, r := range rounds {
			var deltaPct float64
			if i > 0 && math.Abs(prior) > 1e-9 {
				deltaPct = (r.Amount - prior) / prior * 100
			}
			if i == 0 {
				first = r.Amount
			}
			points = append(points, RoundPoint{
				Round:      r.Round,
				RoundLabel: fmt.Sprintf("Round %d", r.Round),
				Importo:    round4(r.Amount),
				DeltaPct:   round4(deltaPct),
			})
			prior = r.Amount
		}

		var deltaComplessivo float64
		if len(rounds) > 0 && math.Abs(first) > 1e-9 {
			deltaComplessivo = (rounds[len(rounds)-1].Amount - first) / first * 100
		}

		trends = append(trends, BidderTrend{
			Bidder:           bidder,
			Color:            BidderColor(bidder),
			Offerte:          points,
			DeltaComplessivo: round4(deltaComplessivo),
		})
	}

	return trends
}

// HeatmapCell is one (WBS6, bidder) cell (§4.8 heatmap_competitivita).
type HeatmapCell struct {
	Importo  float64
	DeltaPct float64
}

// HeatmapRow is one WBS6 category's cells across all bidders.
type HeatmapRow struct {
	Wbs6Code        string
	Wbs6Description string
	ProjectAmount   float64
	Cells           map[string]HeatmapCell // bidder -> cell
}

// HeatmapCompetitivita implements §4.8's heatmap_competitivita: a matrix of
// (importo_offerta, delta%) per (WBS6, bidder), with absent bidders
// appearing as (0, 0). Categories are sorted by project amount desc.
func HeatmapCompetitivita(dataset *CommessaDataset) []HeatmapRow {
	type bucket struct {
		code, description string
		projectAmount      float64
		bidderAmount       map[string]float64
	}

	buckets := make(map[string]*bucket)
	var order []string

	for _, entry := range dataset.Entries {
		code := entry.Wbs6Code
		desc := entry.Wbs6Description
		if code == "" {
			code = nonClassificataLabel
			desc = nonClassificataLabel
		}
		b, ok := buckets[code]
		if !ok {
			b = &bucket{code: code, description: desc, bidderAmount: make(map[string]float64)}
			buckets[code] = b
			order = append(order, code)
		}
		b.projectAmount += entry.AmountProject
		for label, figures := range entry.Offerte {
			b.bidderAmount[label] += figures.Amount
		}
	}

	rows := make([]HeatmapRow, 0, len(order))
	for _, code := range order {
		b := buckets[code]
		cells := make(map[string]HeatmapCell, len(dataset.Bidders))
		for _, bidder := range dataset.Bidders {
			amount, ok := b.bidderAmount[bidder]
			if !ok {
				cells[bidder] = HeatmapCell{}
				continue
			}
			var deltaPct float64
			if math.Abs(b.projectAmount) > 1e-9 {
				deltaPct = (amount - b.projectAmount) / b.projectAmount * 100
			}
			cells[bidder] = HeatmapCell{Importo: round4(amount), DeltaPct: round4(deltaPct)}
		}
		rows = append(rows, HeatmapRow{
			Wbs6Code:        b.code,
			Wbs6Description: b.description,
			ProjectAmount:   round4(b.projectAmount),
			Cells:           cells,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].ProjectAmount > rows[j].ProjectAmount })
	return rows
}
