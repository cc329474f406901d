// Package domain holds the entity types shared across the reconciliation
// engine: Commessa, Computo, VoceComputo and the catalog/offer rows they
// are reconciled against. These mirror §3 of the specification.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComputoType distinguishes a project estimate from a bidder's return.
type ComputoType string

const (
	ComputoTypeProject ComputoType = "project"
	ComputoTypeReturn  ComputoType = "return"
)

// RoundMode controls how a return import resolves round_number collisions.
type RoundMode string

const (
	RoundModeReplace RoundMode = "replace"
	RoundModeNew     RoundMode = "new"
	RoundModeAuto    RoundMode = "auto"
)

// Commessa is the top-level work contract aggregate.
type Commessa struct {
	ID         int64
	Code       string
	Name       string
	BusinessUnit string
}

// Computo is a line-item document: either a project estimate or a bidder return.
type Computo struct {
	ID             int64
	CommessaID     int64
	Type           ComputoType
	Bidder         *string
	RoundNumber    *int
	FileRef        string
	TotalAmount    *decimal.Decimal
	TotalQuantity  *decimal.Decimal
	Note           string
	MatchingReport *MatchingReport
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WbsLevel is one of the seven WBS levels attached to a line item.
type WbsLevel struct {
	Level       int
	Code        string
	Description string
}

// VoceComputoMetadata is the typed sidecar for the heterogeneous metadata
// bag the original carried as a dynamically-typed dict (see SPEC_FULL.md §9
// / spec.md §9 "Dynamic typing → tagged variants").
type VoceComputoMetadata struct {
	MissingFromReturn bool
	LockReturnPrice   bool
	GroupTotalOnly    bool
	GroupAllocation   string
	ProductID         string
	Extras            map[string]string
}

// VoceComputo is the flat legacy line-item row, exclusively owned by one Computo.
type VoceComputo struct {
	ID           int64
	ComputoID    int64
	CommessaID   int64
	OrderIndex   int
	Progressivo  *int
	Code         string
	Description  string
	UOM          string
	Quantity     *decimal.Decimal
	UnitPrice    *decimal.Decimal
	Amount       *decimal.Decimal
	Note         string
	WbsLevels    [7]WbsLevel // index i holds level i+1
	Metadata     VoceComputoMetadata
}

// Wbs6Code returns the level-6 WBS code, if present.
func (v *VoceComputo) Wbs6Code() string { return v.WbsLevels[5].Code }

// Wbs6Description returns the level-6 WBS description, if present.
func (v *VoceComputo) Wbs6Description() string { return v.WbsLevels[5].Description }

// Wbs7Code returns the level-7 WBS code, if present.
func (v *VoceComputo) Wbs7Code() string { return v.WbsLevels[6].Code }

// Wbs7Description returns the level-7 WBS description, if present.
func (v *VoceComputo) Wbs7Description() string { return v.WbsLevels[6].Description }

// Impresa is a bidder. Identity is by NormalizedLabel.
type Impresa struct {
	ID              int64
	Label           string
	NormalizedLabel string
}

// PriceListItem is a catalog row: the canonical identity of a priceable
// good/service within a commessa.
type PriceListItem struct {
	ID                int64
	CommessaID        int64
	ProductID         *string
	ItemCode          string
	ItemDescription   string
	UnitID            *int64
	UnitLabel         string
	Wbs6Code          string
	Wbs6Description   string
	Wbs7Code          string
	Wbs7Description   string
	PriceLists        map[string]float64
	Embedding         *EmbeddingPayload
	SourceFile        string
	PreventivoID      *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// EmbeddingPayload is the typed sidecar for extra_metadata.nlp.
type EmbeddingPayload struct {
	ModelID    string
	Vector     []float32
	Dimension  int
	Attributes map[string]any
}

// PriceListOffer is one bidder's price for one catalog item within one return computo.
type PriceListOffer struct {
	ID              int64
	PriceListItemID int64
	CommessaID      int64
	ComputoID       int64
	ImpresaID       *int64
	ImpresaLabel    string
	RoundNumber     *int
	UnitPrice       decimal.Decimal
	Quantity        *decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Settings is the commessa-wide (or global) singleton of tunable thresholds.
type Settings struct {
	CriticitaMediaPercent decimal.Decimal
	CriticitaAltaPercent  decimal.Decimal
	NLPModelID            string
	NLPMaxLength          int
	NLPBatchSize          int
}

// DefaultSettings returns the documented defaults (§3: media 25, alta 50).
func DefaultSettings() Settings {
	return Settings{
		CriticitaMediaPercent: decimal.NewFromInt(25),
		CriticitaAltaPercent:  decimal.NewFromInt(50),
		NLPModelID:            "sentence-transformers/paraphrase-multilingual-mpnet-base-v2",
		NLPMaxLength:          256,
		NLPBatchSize:          32,
	}
}
