// Package transport holds the HTTP response shapes for C6/C7/C8 (analysis
// cache, WBS aggregation, trends & heatmap), mirroring internal/search's
// plain-DTO style.
package transport

// Wbs6VoceOut is one category row of GET /commesse/:id/wbs6.
type Wbs6VoceOut struct {
	Code                string  `json:"code"`
	Description         string  `json:"description"`
	ProjectTotal        float64 `json:"projectTotal"`
	AverageOffer        float64 `json:"averageOffer"`
	DeltaPercentuale    float64 `json:"deltaPercentuale"`
	DeltaAssoluto       float64 `json:"deltaAssoluto"`
	MediaPrezzoUnitario float64 `json:"mediaPrezzoUnitario"`
	MediaImportoTotale  float64 `json:"mediaImportoTotale"`
	ImpresaMin          string  `json:"impresaMin"`
	ImpresaMax          string  `json:"impresaMax"`
	DeviazioneStandard  float64 `json:"deviazioneStandard"`
	Criticita           string  `json:"criticita"`
	Direzione           string  `json:"direzione"`
}

// Wbs6AnalysisOut is the full response of GET /commesse/:id/wbs6.
type Wbs6AnalysisOut struct {
	Categories []Wbs6VoceOut `json:"categories"`
	Counts     struct {
		Alta  int `json:"alta"`
		Media int `json:"media"`
		Bassa int `json:"bassa"`
	} `json:"counts"`
}

// RoundPointOut is one bidder's figures for a single round.
type RoundPointOut struct {
	Round            int     `json:"round"`
	Amount           float64 `json:"amount"`
	DeltaVsPrior     float64 `json:"deltaVsPrior"`
	DeltaComplessivo float64 `json:"deltaComplessivo"`
}

// BidderTrendOut is one bidder's full round series.
type BidderTrendOut struct {
	Bidder string          `json:"bidder"`
	Color  string          `json:"color"`
	Points []RoundPointOut `json:"points"`
}

// HeatmapCellOut is one (wbs6, bidder) cell.
type HeatmapCellOut struct {
	Bidder       string  `json:"bidder"`
	Amount       float64 `json:"amount"`
	DeltaPercent float64 `json:"deltaPercent"`
}

// HeatmapRowOut is one WBS6 category's row of bidder cells.
type HeatmapRowOut struct {
	Wbs6Code        string           `json:"wbs6Code"`
	Wbs6Description string           `json:"wbs6Description"`
	Cells           []HeatmapCellOut `json:"cells"`
}
