package analysis

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Criticality is the classify_delta output bucket (§4.7 classify_delta).
type Criticality string

const (
	CriticitaAlta  Criticality = "alta"
	CriticitaMedia Criticality = "media"
	CriticitaBassa Criticality = "bassa"
)

// ClassifyDelta returns "alta" if |deltaPercent| >= altaPercent, "media" if
// >= mediaPercent, else "bassa" (§4.7 classify_delta).
func ClassifyDelta(deltaPercent, mediaPercent, altaPercent float64) Criticality {
	abs := math.Abs(deltaPercent)
	switch {
	case abs >= altaPercent:
		return CriticitaAlta
	case abs >= mediaPercent:
		return CriticitaMedia
	default:
		return CriticitaBassa
	}
}

// Thresholds are the commessa's configured media/alta boundary percentages
// (domain.Settings.CriticitaMediaPercent / CriticitaAltaPercent).
type Thresholds struct {
	MediaPercent float64
	AltaPercent  float64
}

// Wbs6Voce is one category line of the WBS6 analysis table
// (§4.7 build_wbs6_voce).
type Wbs6Voce struct {
	Code                string
	Description         string
	ProjectTotal        float64
	AverageOffer        float64
	DeltaPercentuale    float64
	DeltaAssoluto       float64
	MediaPrezzoUnitario float64
	MediaImportoTotale  float64
	OfferteConsiderate  int
	ImportoMinimo       float64
	ImportoMassimo      float64
	ImpresaMin          string
	ImpresaMax          string
	DeviazioneStandard  float64
	Criticita           Criticality
	Direzione           string // "al rialzo" | "al ribasso" | "stabile"
}

// Wbs6Counts is conteggi_criticita (§4.7 step, end).
type Wbs6Counts struct {
	Alta  int
	Media int
	Bassa int
}

// Wbs6Analysis is build_wbs6_analysis's output: one category row per
// (WBS6 code, WBS6 description) pair plus the criticality tally.
type Wbs6Analysis struct {
	Categories []Wbs6Voce
	Counts     Wbs6Counts
}

const nonClassificataLabel = "Non Classificata WBS6"

// BuildWbs6Analysis groups dataset entries by (wbs6_code, wbs6_description)
// and computes per-category aggregates (§4.7 build_wbs6_analysis /
// build_wbs6_voce).
func BuildWbs6Analysis(dataset *CommessaDataset, totalBidders int, thresholds Thresholds) Wbs6Analysis {
	type bucket struct {
		code, description string
		projectTotal       float64
		offerTotals        map[string]float64 // bidder -> total amount offered in this category
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
		key := code + "\x00" + desc
		b, ok := buckets[key]
		if !ok {
			b = &bucket{code: code, description: desc, offerTotals: make(map[string]float64)}
			buckets[key] = b
			order = append(order, key)
		}
		b.projectTotal += entry.AmountProject
		for label, figures := range entry.Offerte {
			b.offerTotals[label] += figures.Amount
		}
	}

	categories := make([]Wbs6Voce, 0, len(order))
	counts := Wbs6Counts{}

	for _, key := range order {
		b := buckets[key]

		// §4.7 "average offer = sum(offers)/total_bidders (absent bidders
		// count as 0)".
		sumOffers := 0.0
		var amounts []float64
		var labels []string
		for label, amount := range b.offerTotals {
			sumOffers += amount
			amounts = append(amounts, amount)
			labels = append(labels, label)
		}

		denominator := float64(totalBidders)
		var avgOffer float64
		if denominator > 0 {
			avgOffer = sumOffers / denominator
		}

		var deltaPct float64
		if math.Abs(b.projectTotal) > 1e-9 {
			deltaPct = (avgOffer - b.projectTotal) / b.projectTotal * 100
		}
		deltaAbs := avgOffer - b.projectTotal

		minAmount, maxAmount := math.Inf(1), math.Inf(-1)
		minLabel, maxLabel := "", ""
		for i, amount := range amounts {
			if amount < minAmount {
				minAmount = amount
				minLabel = labels[i]
			}
			if amount > maxAmount {
				maxAmount = amount
				maxLabel = labels[i]
			}
		}
		if len(amounts) == 0 {
			minAmount, maxAmount = 0, 0
		}

		direction := "stabile"
		if deltaAbs > 1e-9 {
			direction = "al rialzo"
		} else if deltaAbs < -1e-9 {
			direction = "al ribasso"
		}

		criticita := ClassifyDelta(deltaPct, thresholds.MediaPercent, thresholds.AltaPercent)
		switch criticita {
		case CriticitaAlta:
			counts.Alta++
		case CriticitaMedia:
			counts.Media++
		default:
			counts.Bassa++
		}

		mediaImporto := 0.0
		if len(amounts) > 0 {
			mediaImporto = sumOffers / float64(len(amounts))
		}

		categories = append(categories, Wbs6Voce{
			Code:                b.code,
			Description:         b.description,
			ProjectTotal:        round4(b.projectTotal),
			AverageOffer:        round4(avgOffer),
			DeltaPercentuale:    round4(deltaPct),
			DeltaAssoluto:       round4(deltaAbs),
			MediaPrezzoUnitario: 0, // computed at the voce (line) level by callers that need it; see DatasetEntry.UnitPriceProject
			MediaImportoTotale:  round4(mediaImporto),
			OfferteConsiderate:  len(amounts),
			ImportoMinimo:       round4(minAmount),
			ImportoMassimo:      round4(maxAmount),
			ImpresaMin:          minLabel,
			ImpresaMax:          maxLabel,
			DeviazioneStandard:  populationStdDev(amounts),
			Criticita:           criticita,
			Direzione:           direction,
		})
	}

	sort.Slice(categories, func(i, j int) bool { return categories[i].ProjectTotal > categories[j].ProjectTotal })

	return Wbs6Analysis{Categories: categories, Counts: counts}
}

// populationStdDev computes the population standard deviation (divides by
// N, not N-1) of values, returning 0 for fewer than two points
// (§4.7 "deviazione_standard (population stdev, ≥2 points)").
func populationStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return round4(math.Sqrt(sumSquares / float64(len(values))))
}

// DecimalThresholds converts domain.Settings percentages (stored as
// decimal.Decimal) to the plain floats ClassifyDelta/BuildWbs6Analysis use.
func DecimalThresholds(media, alta decimal.Decimal) Thresholds {
	return Thresholds{
		MediaPercent: media.InexactFloat64(),
		AltaPercent:  alta.InexactFloat64(),
	}
}
