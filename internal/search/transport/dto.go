package transport

// SearchRequest is the catalog search query (§4.9).
type SearchRequest struct {
	Query      string `form:"q" json:"q" validate:"required,min=2,max=200"`
	CommessaID int64  `form:"commessaId" json:"commessaId" validate:"required"`
	TopK       int    `form:"topK" json:"topK" validate:"omitempty,min=1,max=100"`
}

// OfferPrice is one bidder's recorded price for a matched item
// (§4.9 step 9 "offer_prices").
type OfferPrice struct {
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Round     *int    `json:"round,omitempty"`
	ComputoID int64   `json:"computoId"`
}

// SearchResultItem is one matched catalog item (§4.9, final response
// shape).
type SearchResultItem struct {
	PriceListItemID int64                 `json:"priceListItemId"`
	ItemCode        string                 `json:"itemCode"`
	Description     string                 `json:"description"`
	Wbs6Code        string                 `json:"wbs6Code,omitempty"`
	Wbs6Description string                 `json:"wbs6Description,omitempty"`
	Score           float64                `json:"score"`
	MatchReason      string                `json:"matchReason"` // "semantic" | "lexical"
	ProjectPrice    *float64               `json:"projectPrice,omitempty"`
	ProjectQuantity float64                `json:"projectQuantity"`
	OfferPrices     map[string]OfferPrice  `json:"offerPrices"`
}

// SearchResponse is the full catalog search result set.
type SearchResponse struct {
	Items []SearchResultItem `json:"items"`
	Total int                `json:"total"`
}
