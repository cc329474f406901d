package domain

// MatchedLine is one row of matching_report.matched / .missing (§4.4.4).
type MatchedLine struct {
	ProjectLabel    string
	ExcelLabel      string
	Price           float64
	ProjectQuantity float64
	ReturnQuantity  float64
	QuantityDelta   float64
}

// QuantityTotals carries the aggregate quantity reconciliation (§4.4.3).
type QuantityTotals struct {
	Progetto float64
	Ritorno  float64
	Delta    float64
}

// MissingPriceItem is one unresolved LC-mode catalog reference (§4.4.4).
type MissingPriceItem struct {
	PriceListItemID int64
	ItemCode        string
	ItemDescription string
}

// PriceConflictSample is one of the divergent prices recorded for a conflict.
type PriceConflictSample struct {
	Source string
	Price  float64
}

// PriceConflict is one (price_list_item) id that received more than one
// distinct price within a single LC import (§4.5 step 3).
type PriceConflict struct {
	PriceListItemID int64
	ItemCode        string
	ItemDescription string
	Prices          []float64
	Samples         []PriceConflictSample
}

// MatchingReport is the structured report attached to a Computo after
// alignment, in either non-LC or LC shape (§4.4.4).
type MatchingReport struct {
	// Non-LC mode.
	Matched               []MatchedLine
	Missing               []MatchedLine
	ExcelOnly             []string
	ExcelOnlyGroups       []string
	QuantityMismatches    []string
	QuantityTotals        QuantityTotals
	QuantityTotalMismatch bool
	TotalAmountMismatch   bool

	// Progressive-mode diagnostics (§4.4.1).
	PriceStabilizations    []string
	ZeroGuardViolations    []string
	ProgressPriceConflicts []string

	// LC mode.
	IsLC               bool
	TotalPriceItems    int
	MatchedPriceItems  int
	MissingPriceItems  []MissingPriceItem
	UnmatchedRowSample []string
	PriceConflicts     []PriceConflict
}

// RemoveMissingPriceItem drops priceListItemID from MissingPriceItems (if
// present) and increments MatchedPriceItems, mirroring manual_price_update's
// report bookkeeping (§4.5 step 2). A no-op if the item was not listed as
// missing.
func (m *MatchingReport) RemoveMissingPriceItem(priceListItemID int64) {
	if m == nil {
		return
	}
	for i, item := range m.MissingPriceItems {
		if item.PriceListItemID == priceListItemID {
			m.MissingPriceItems = append(m.MissingPriceItems[:i], m.MissingPriceItems[i+1:]...)
			m.MatchedPriceItems++
			return
		}
	}
}
