package matching

import (
	"fmt"
	"math"

	"github.com/frank1beans/tender-reconciler/internal/domain"
)

// voceLabel mirrors report.py's voce_label: prefer the code, fall back to a
// shortened description.
func voceLabel(code, description string) string {
	return lineLabel(code, description)
}

func shortenLabel(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max] + "…"
}

func formatQuantityValue(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

func formatQuantityForWarning(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// BuildMatchingReport assembles the §4.4.4 matching report for the non-LC
// path (progressive or description-only alignment): matched/missing lines,
// quantity totals, excel-only rows, price stabilizations and zero-guard
// violations, plus the declared-vs-computed totals comparison.
func BuildMatchingReport(
	result ReturnAlignmentResult,
	declaredTotalAmount, declaredTotalQuantity *float64,
) domain.MatchingReport {
	report := domain.MatchingReport{
		ExcelOnly:              append([]string(nil), result.ReturnOnlyLabels...),
		ExcelOnlyGroups:        append([]string(nil), result.ExcelOnlyGroups...),
		PriceStabilizations:    append([]string(nil), result.PriceAdjustments...),
		ZeroGuardViolations:    append([]string(nil), result.ZeroGuardViolations...),
		QuantityMismatches:     append([]string(nil), result.ProgressQuantityMismatches...),
		ProgressPriceConflicts: append([]string(nil), result.ProgressPriceConflicts...),
	}

	var computedAmount, computedQuantity float64
	for _, line := range result.AlignedLines {
		projectQty := floatOrZero(line.ProjectLine.Quantity)
		returnQty := floatOrZero(line.Quantity)
		matched := domain.MatchedLine{
			ProjectLabel:    voceLabel(line.Code, line.Description),
			Price:           floatOrZero(line.UnitPrice),
			ProjectQuantity: projectQty,
			ReturnQuantity:  returnQty,
			QuantityDelta:   returnQty - projectQty,
		}
		if line.MissingFromReturn {
			report.Missing = append(report.Missing, matched)
			continue
		}
		report.Matched = append(report.Matched, matched)
		if line.Amount != nil {
			computedAmount += *line.Amount
		}
		if line.Quantity != nil {
			computedQuantity += *line.Quantity
		}
	}

	report.QuantityTotals = domain.QuantityTotals{
		Ritorno: computedQuantity,
	}

	if declaredTotalAmount != nil {
		if math.Abs(computedAmount-*declaredTotalAmount) > 0.01 {
			report.TotalAmountMismatch = true
		}
	}
	if declaredTotalQuantity != nil {
		report.QuantityTotals.Progetto = *declaredTotalQuantity
		report.QuantityTotals.Delta = computedQuantity - *declaredTotalQuantity
		if math.Abs(report.QuantityTotals.Delta) > 1e-4 {
			report.QuantityTotalMismatch = true
		}
	}

	return report
}

// BuildLcMatchingReport assembles the §4.4.4 matching report shape used for
// description-only (LC, "lista lavorazioni") alignment: it reports matched
// price-list coverage plus any unresolved or conflicting price entries
// discovered while reconciling the offer against the catalog (§4.5).
func BuildLcMatchingReport(
	result ReturnAlignmentResult,
	totalPriceItems int,
	missingPriceItems []domain.MissingPriceItem,
	priceConflicts []domain.PriceConflict,
) domain.MatchingReport {
	report := domain.MatchingReport{
		IsLC:              true,
		TotalPriceItems:   totalPriceItems,
		MatchedPriceItems: result.MatchedCount,
		MissingPriceItems: missingPriceItems,
		PriceConflicts:    priceConflicts,
	}
	for _, label := range result.ReturnOnlyLabels {
		report.UnmatchedRowSample = append(report.UnmatchedRowSample, label)
		if len(report.UnmatchedRowSample) >= 20 {
			break
		}
	}
	for _, line := range result.AlignedLines {
		label := voceLabel(line.Code, line.Description)
		matched := domain.MatchedLine{
			ProjectLabel:    label,
			Price:           floatOrZero(line.UnitPrice),
			ProjectQuantity: floatOrZero(line.ProjectLine.Quantity),
			ReturnQuantity:  floatOrZero(line.Quantity),
		}
		matched.QuantityDelta = matched.ReturnQuantity - matched.ProjectQuantity
		if line.MissingFromReturn {
			report.Missing = append(report.Missing, matched)
			continue
		}
		report.Matched = append(report.Matched, matched)
	}
	return report
}
