// Package transport holds the HTTP request/response shapes for C5
// (offer reconciliation & manual edits), mirroring the plain DTO style
// internal/search/transport uses.
package transport

import "github.com/shopspring/decimal"

// ManualPriceUpdateRequest is the body of POST
// /computi/:computoId/offers/manual (§4.5 manual_price_update).
type ManualPriceUpdateRequest struct {
	PriceListItemID int64            `json:"priceListItemId" validate:"required"`
	UnitPrice       decimal.Decimal  `json:"unitPrice" validate:"required"`
	Quantity        *decimal.Decimal `json:"quantity,omitempty"`
}

// SyncOffersRequest is the body of POST /computi/:computoId/sync (§4.5
// sync_price_list_offers), enqueued for background processing.
type SyncOffersRequest struct {
	Bidder string         `json:"bidder" validate:"required"`
	Lines  []ReturnLineIn `json:"lines" validate:"required,dive"`
}

// ReturnLineIn is one parsed row of an uploaded bidder return file.
type ReturnLineIn struct {
	Progressivo *int             `json:"progressivo,omitempty"`
	Code        string           `json:"code,omitempty"`
	Description string           `json:"description,omitempty"`
	UOM         string           `json:"uom,omitempty"`
	Wbs6Code    string           `json:"wbs6Code,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unitPrice,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	ImpresaID   *int64           `json:"impresaId,omitempty"`
	Impresa     string           `json:"impresa,omitempty"`
	RoundNumber *int             `json:"roundNumber,omitempty"`
}

// SyncOffersResponse acknowledges that the sync job was enqueued.
type SyncOffersResponse struct {
	Enqueued bool `json:"enqueued"`
}

// NoteRequest is the body of PUT /computi/:computoId/note.
type NoteRequest struct {
	Note string `json:"note"`
}

// MatchingReportOut summarizes a computo's matching report after a rebuild.
type MatchingReportOut struct {
	IsLC              bool  `json:"isLc"`
	TotalPriceItems   int   `json:"totalPriceItems,omitempty"`
	MatchedPriceItems int   `json:"matchedPriceItems,omitempty"`
	MissingPriceItems int   `json:"missingPriceItems,omitempty"`
	MatchedLines      int   `json:"matchedLines,omitempty"`
	MissingLines      int   `json:"missingLines,omitempty"`
}
