package matching

import (
	"testing"

	"github.com/frank1beans/tender-reconciler/internal/domain"
)

func floatp(v float64) *float64 { return &v }
func intp(v int) *int           { return &v }

func wbs6(code string) []domain.WbsLevel {
	return []domain.WbsLevel{{Level: 6, Code: code, Description: "impianti meccanici"}}
}

func TestAlignProgressiveMatchesByWbsAndCode(t *testing.T) {
	cfg := DefaultThresholds()
	project := []ProjectLine{
		{
			OrderIndex: 1, Progressivo: intp(1), Code: "A001010",
			Description: "fornitura e posa caldaia a condensazione da 24kw completa di accessori",
			Quantity:    floatp(2), UnitPrice: floatp(850), WbsLevels: wbs6("A001"),
		},
	}
	returns := []ParsedVoce{
		{
			Progressivo: intp(1), Code: "A001010",
			Description: "fornitura e posa caldaia a condensazione da 24kw completa di accessori",
			Quantity:    floatp(2), UnitPrice: floatp(850), WbsLevels: wbs6("A001"),
		},
	}

	result := alignProgressive(project, returns, cfg)

	if result.MatchedCount != 1 {
		t.Fatalf("expected 1 match, got %d", result.MatchedCount)
	}
	if len(result.AlignedLines) != 1 || result.AlignedLines[0].MissingFromReturn {
		t.Fatalf("expected one non-missing aligned line, got %+v", result.AlignedLines)
	}
	if len(result.ReturnOnlyLabels) != 0 {
		t.Fatalf("expected no return-only labels, got %v", result.ReturnOnlyLabels)
	}
}

func TestAlignProgressiveFlagsMissingAndReturnOnly(t *testing.T) {
	cfg := DefaultThresholds()
	project := []ProjectLine{
		{OrderIndex: 1, Code: "B002020", Description: "scavo a sezione ristretta in terreno di qualsiasi natura e consistenza", Quantity: floatp(10), UnitPrice: floatp(20)},
	}
	returns := []ParsedVoce{
		{Code: "Z999999", Description: "opera completamente estranea al computo di riferimento e senza alcun token condiviso", Quantity: floatp(1), UnitPrice: floatp(5)},
	}

	result := alignProgressive(project, returns, cfg)

	if result.MatchedCount != 0 {
		t.Fatalf("expected no matches, got %d", result.MatchedCount)
	}
	if !result.AlignedLines[0].MissingFromReturn {
		t.Fatalf("expected project line to be missing_from_return")
	}
	if len(result.ReturnOnlyLabels) != 1 {
		t.Fatalf("expected one return-only label, got %v", result.ReturnOnlyLabels)
	}
}

func TestAlignProgressivePriceStabilization(t *testing.T) {
	cfg := DefaultThresholds()
	project := []ProjectLine{
		{OrderIndex: 1, Code: "A001010", Description: "fornitura e posa caldaia a condensazione", Quantity: floatp(1), UnitPrice: floatp(850)},
	}
	returns := []ParsedVoce{
		{Code: "A001010", Description: "fornitura e posa caldaia a condensazione", Quantity: floatp(1), UnitPrice: floatp(850000)},
	}

	result := alignProgressive(project, returns, cfg)

	if len(result.PriceAdjustments) != 1 {
		t.Fatalf("expected a price adjustment, got %v", result.PriceAdjustments)
	}
	if result.AlignedLines[0].UnitPrice == nil || *result.AlignedLines[0].UnitPrice != 850 {
		t.Fatalf("expected stabilized price 850, got %+v", result.AlignedLines[0].UnitPrice)
	}
}

func TestAlignProgressiveZeroGuardViolation(t *testing.T) {
	cfg := DefaultThresholds()
	project := []ProjectLine{
		{OrderIndex: 1, Code: "A004010999", Description: "mark up fee di commessa", Quantity: floatp(1), UnitPrice: floatp(0)},
	}
	returns := []ParsedVoce{
		{Code: "A004010999", Description: "mark up fee di commessa", Quantity: floatp(1), UnitPrice: floatp(500)},
	}

	result := alignProgressive(project, returns, cfg)

	if len(result.ZeroGuardViolations) != 1 {
		t.Fatalf("expected a zero-guard violation, got %v", result.ZeroGuardViolations)
	}
}

func TestAlignDescriptionOnlyMatchesBySignature(t *testing.T) {
	cfg := DefaultThresholds()
	project := []ProjectLine{
		{OrderIndex: 1, Code: "C001", Description: "Tinteggiatura pareti interne con pittura lavabile", Quantity: floatp(100), UnitPrice: floatp(8)},
	}
	returns := []ParsedVoce{
		{Code: "LC-01", Description: "Tinteggiatura pareti interne con pittura lavabile", Quantity: floatp(100), UnitPrice: floatp(7.5)},
	}

	result := alignDescriptionOnly(project, returns, cfg)

	if result.MatchedCount != 1 {
		t.Fatalf("expected 1 match, got %d", result.MatchedCount)
	}
	if result.AlignedLines[0].UnitPrice == nil || *result.AlignedLines[0].UnitPrice != 7.5 {
		t.Fatalf("expected return price to win, got %+v", result.AlignedLines[0].UnitPrice)
	}
}

func TestBuildMatchingReportFlagsTotalMismatch(t *testing.T) {
	cfg := DefaultThresholds()
	project := []ProjectLine{
		{OrderIndex: 1, Code: "A001010", Description: "fornitura e posa caldaia a condensazione", Quantity: floatp(2), UnitPrice: floatp(850)},
	}
	returns := []ParsedVoce{
		{Code: "A001010", Description: "fornitura e posa caldaia a condensazione", Quantity: floatp(2), UnitPrice: floatp(850)},
	}
	result := alignProgressive(project, returns, cfg)

	declaredAmount := floatp(10000)
	declaredQty := floatp(2)
	report := BuildMatchingReport(result, declaredAmount, declaredQty)

	if !report.TotalAmountMismatch {
		t.Fatalf("expected a declared-vs-computed amount mismatch")
	}
	if report.QuantityTotalMismatch {
		t.Fatalf("did not expect a quantity mismatch")
	}
}
