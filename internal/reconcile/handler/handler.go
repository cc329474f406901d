// Package handler exposes C5 (offer reconciliation & manual edits) over
// HTTP, mirroring internal/search/handler's structure.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/frank1beans/tender-reconciler/internal/domain"
	"github.com/frank1beans/tender-reconciler/internal/reconcile"
	"github.com/frank1beans/tender-reconciler/internal/reconcile/transport"
	"github.com/frank1beans/tender-reconciler/internal/scheduler"
	"github.com/frank1beans/tender-reconciler/platform/httpkit"
	"github.com/frank1beans/tender-reconciler/platform/validator"
)

const (
	msgInvalidRequest    = "invalid request"
	msgValidationFailed  = "validation failed"
	msgInvalidComputoID  = "invalid computoId"
)

// Handler wires C5's HTTP surface: manual price edits, a rebuild trigger,
// and enqueuing a full bidder-return sync onto the scheduler worker.
type Handler struct {
	service *reconcile.Service
	sync    *scheduler.Client
	val     *validator.Validator
}

func New(service *reconcile.Service, sync *scheduler.Client, val *validator.Validator) *Handler {
	return &Handler{service: service, sync: sync, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:computoId/offers/manual", h.ManualPriceUpdate)
	rg.POST("/:computoId/rebuild", h.Rebuild)
	rg.POST("/:computoId/sync", h.Sync)
	rg.PUT("/:computoId/note", h.SetNote)
}

func computoIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("computoId"), 10, 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidComputoID, nil)
		return 0, false
	}
	return id, true
}

// ManualPriceUpdate implements POST /computi/:computoId/offers/manual
// (§4.5 manual_price_update).
func (h *Handler) ManualPriceUpdate(c *gin.Context) {
	computoID, ok := computoIDParam(c)
	if !ok {
		return
	}

	var req transport.ManualPriceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	report, err := h.service.ManualPriceUpdate(c.Request.Context(), computoID, req.PriceListItemID, req.UnitPrice, req.Quantity)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toMatchingReportOut(report))
}

// Rebuild implements POST /computi/:computoId/rebuild (§4.5
// rebuild_computo_from_offers).
func (h *Handler) Rebuild(c *gin.Context) {
	computoID, ok := computoIDParam(c)
	if !ok {
		return
	}

	computo, err := h.service.GetComputo(c.Request.Context(), computoID)
	if httpkit.HandleError(c, err) {
		return
	}

	report, err := h.service.RebuildComputoFromOffers(c.Request.Context(), computo)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toMatchingReportOut(report))
}

// Sync implements POST /computi/:computoId/sync: stages the uploaded
// return's parsed lines and hands sync_price_list_offers off to the
// scheduler worker (§4.5) rather than running it inline.
func (h *Handler) Sync(c *gin.Context) {
	computoID, ok := computoIDParam(c)
	if !ok {
		return
	}

	var req transport.SyncOffersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	if h.sync == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "background sync is not configured", nil)
		return
	}

	lines := make([]reconcile.ParsedReturnLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, reconcile.ParsedReturnLine{
			Progressivo: l.Progressivo,
			Code:        l.Code,
			Description: l.Description,
			UOM:         l.UOM,
			Wbs6Code:    l.Wbs6Code,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			ImpresaID:   l.ImpresaID,
			Impresa:     l.Impresa,
			RoundNumber: l.RoundNumber,
		})
	}

	ref, err := reconcile.EncodeStagedLines(lines, nil)
	if httpkit.HandleError(c, err) {
		return
	}

	payload := scheduler.SyncPriceListOffersPayload{
		ComputoID:      computoID,
		Bidder:         req.Bidder,
		ParsedLinesRef: ref,
	}
	if err := h.sync.EnqueueSyncPriceListOffers(c.Request.Context(), payload); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.SyncOffersResponse{Enqueued: true})
}

// SetNote implements PUT /computi/:computoId/note: a reviewer-authored
// annotation, sanitized server-side before storage.
func (h *Handler) SetNote(c *gin.Context) {
	computoID, ok := computoIDParam(c)
	if !ok {
		return
	}

	var req transport.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	if err := h.service.SetComputoNote(c.Request.Context(), computoID, req.Note); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"updated": true})
}

func toMatchingReportOut(report *domain.MatchingReport) transport.MatchingReportOut {
	if report == nil {
		return transport.MatchingReportOut{}
	}
	return transport.MatchingReportOut{
		IsLC:              report.IsLC,
		TotalPriceItems:   report.TotalPriceItems,
		MatchedPriceItems: report.MatchedPriceItems,
		MissingPriceItems: len(report.MissingPriceItems),
		MatchedLines:      len(report.Matched),
		MissingLines:      len(report.Missing),
	}
}
