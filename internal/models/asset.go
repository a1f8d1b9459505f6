// internal/models/asset.go
package models

import "time"

// AssetType identifies the kind of entity an asset represents.
type AssetType string

const (
	AssetTypeCharacter AssetType = "character"
	AssetTypeCreator   AssetType = "creator"
	AssetTypeComic     AssetType = "comic"
)

// PricingSource records how a share price was derived.
type PricingSource string

const (
	PricingSourceMathematical         PricingSource = "mathematical"
	PricingSourceMathematicalFallback PricingSource = "mathematical_fallback"
)

// AssetProposal is a fully computed candidate asset prior to persistence.
// Symbol is deterministic for a given (BaseName, Variant, SourceID) triple,
// so re-running transformation on the same inputs yields the same proposal.
type AssetProposal struct {
	Type        AssetType              `json:"type"`
	Name        string                 `json:"name"`
	BaseName    string                 `json:"baseName"`
	Variant     string                 `json:"variant,omitempty"`
	Symbol      string                 `json:"symbol"`
	Category    string                 `json:"category"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Pricing     *PricingResult         `json:"pricing,omitempty"`
}

// PricingResult is attached to a proposal and never persisted on its own.
type PricingResult struct {
	SharePrice       float64        `json:"sharePrice"`
	TotalMarketValue float64        `json:"totalMarketValue"`
	TotalFloat       int64          `json:"totalFloat"`
	Breakdown        PriceBreakdown `json:"breakdown"`
	Source           PricingSource  `json:"source"`
	CalculatedAt     time.Time      `json:"calculatedAt"`
}

// PriceBreakdown exposes the components of the pricing formula for audit.
type PriceBreakdown struct {
	Era                string  `json:"era"`
	BaseMarketValue    float64 `json:"baseMarketValue"`
	TierMultiplier     float64 `json:"tierMultiplier"`
	AppearanceModifier float64 `json:"appearanceModifier"`
	FranchiseWeight    float64 `json:"franchiseWeight"`
}

// TierClassification is the pricing input derived from name, publisher and
// appearance heuristics.
type TierClassification struct {
	Tier                    int     `json:"tier"`
	IsVariant               bool    `json:"isVariant"`
	RoleWeightedAppearances float64 `json:"roleWeightedAppearances,omitempty"`
}

// InsertedAsset is a row actually created by a bulk insert. Batches that hit
// the symbol conflict path do not produce entries here.
type InsertedAsset struct {
	ID     int64  `json:"id"`
	Symbol string `json:"symbol"`
}
