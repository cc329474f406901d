// Package handler exposes C6 (analysis cache), C7 (WBS aggregation) and C8
// (trends & heatmap) over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/frank1beans/tender-reconciler/internal/analysis"
	"github.com/frank1beans/tender-reconciler/internal/analysis/transport"
	"github.com/frank1beans/tender-reconciler/platform/httpkit"
)

const msgInvalidCommessaID = "invalid commessaId"

// Handler wires the analysis cache around build_commessa_dataset plus the
// three derived views (WBS6 table, round trends, competitiveness heatmap).
type Handler struct {
	dataset    *analysis.Dataset
	cache      *analysis.Cache
	thresholds analysis.Thresholds
}

func New(dataset *analysis.Dataset, cache *analysis.Cache, thresholds analysis.Thresholds) *Handler {
	return &Handler{dataset: dataset, cache: cache, thresholds: thresholds}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:commessaId/wbs6", h.Wbs6)
	rg.GET("/:commessaId/trends", h.Trends)
	rg.GET("/:commessaId/heatmap", h.Heatmap)
}

func commessaIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("commessaId"), 10, 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidCommessaID, nil)
		return 0, false
	}
	return id, true
}

// loadDataset serves build_commessa_dataset from the cache when the
// commessa's version string hasn't drifted, else rebuilds and repopulates
// it (§4.6 "Get"/"Put").
func (h *Handler) loadDataset(ctx context.Context, commessaID int64) (*analysis.CommessaDataset, error) {
	if cached, ok, err := h.cache.Get(ctx, commessaID); err != nil {
		return nil, err
	} else if ok {
		return cached.(*analysis.CommessaDataset), nil
	}

	dataset, err := h.dataset.Build(ctx, commessaID)
	if err != nil {
		return nil, err
	}
	_ = h.cache.Put(ctx, commessaID, dataset)
	return dataset, nil
}

// Wbs6 implements GET /commesse/:commessaId/wbs6 (§4.7 build_wbs6_analysis).
func (h *Handler) Wbs6(c *gin.Context) {
	commessaID, ok := commessaIDParam(c)
	if !ok {
		return
	}

	dataset, err := h.loadDataset(c.Request.Context(), commessaID)
	if httpkit.HandleError(c, err) {
		return
	}

	analysisResult := analysis.BuildWbs6Analysis(dataset, len(dataset.Bidders), h.thresholds)
	httpkit.OK(c, toWbs6AnalysisOut(analysisResult))
}

// Trends implements GET /commesse/:commessaId/trends?impresa= (§4.8
// trend_round).
func (h *Handler) Trends(c *gin.Context) {
	commessaID, ok := commessaIDParam(c)
	if !ok {
		return
	}

	totals, err := h.dataset.BuildRoundTotals(c.Request.Context(), commessaID)
	if httpkit.HandleError(c, err) {
		return
	}

	impresaFilter := c.Query("impresa")
	trends := analysis.TrendRound(totals, impresaFilter)

	out := make([]transport.BidderTrendOut, 0, len(trends))
	for _, t := range trends {
		points := make([]transport.RoundPointOut, 0, len(t.Offerte))
		for _, p := range t.Offerte {
			points = append(points, transport.RoundPointOut{
				Round:            p.Round,
				Amount:           p.Importo,
				DeltaVsPrior:     p.DeltaPct,
				DeltaComplessivo: t.DeltaComplessivo,
			})
		}
		out = append(out, transport.BidderTrendOut{Bidder: t.Bidder, Color: t.Color, Points: points})
	}
	httpkit.OK(c, out)
}

// Heatmap implements GET /commesse/:commessaId/heatmap (§4.8
// heatmap_competitivita).
func (h *Handler) Heatmap(c *gin.Context) {
	commessaID, ok := commessaIDParam(c)
	if !ok {
		return
	}

	dataset, err := h.loadDataset(c.Request.Context(), commessaID)
	if httpkit.HandleError(c, err) {
		return
	}

	rows := analysis.HeatmapCompetitivita(dataset)
	out := make([]transport.HeatmapRowOut, 0, len(rows))
	for _, row := range rows {
		cells := make([]transport.HeatmapCellOut, 0, len(row.Cells))
		for bidder, cell := range row.Cells {
			cells = append(cells, transport.HeatmapCellOut{Bidder: bidder, Amount: cell.Importo, DeltaPercent: cell.DeltaPct})
		}
		out = append(out, transport.HeatmapRowOut{Wbs6Code: row.Wbs6Code, Wbs6Description: row.Wbs6Description, Cells: cells})
	}
	httpkit.OK(c, out)
}

func toWbs6AnalysisOut(a analysis.Wbs6Analysis) transport.Wbs6AnalysisOut {
	out := transport.Wbs6AnalysisOut{Categories: make([]transport.Wbs6VoceOut, 0, len(a.Categories))}
	for _, cat := range a.Categories {
		out.Categories = append(out.Categories, transport.Wbs6VoceOut{
			Code:                cat.Code,
			Description:         cat.Description,
			ProjectTotal:        cat.ProjectTotal,
			AverageOffer:        cat.AverageOffer,
			DeltaPercentuale:    cat.DeltaPercentuale,
			DeltaAssoluto:       cat.DeltaAssoluto,
			MediaPrezzoUnitario: cat.MediaPrezzoUnitario,
			MediaImportoTotale:  cat.MediaImportoTotale,
			ImpresaMin:          cat.ImpresaMin,
			ImpresaMax:          cat.ImpresaMax,
			DeviazioneStandard:  cat.DeviazioneStandard,
			Criticita:           string(cat.Criticita),
			Direzione:           cat.Direzione,
		})
	}
	out.Counts.Alta = a.Counts.Alta
	out.Counts.Media = a.Counts.Media
	out.Counts.Bassa = a.Counts.Bassa
	return out
}
