// internal/pricing/engine.go
package pricing

import (
	"fmt"
	"math"
	"time"

	"asset-workers/internal/models"

	"asset-workers/internal/common/logger"
)

const (
	minSharePrice = 50
	maxSharePrice = 6000
	sharesPerCopy = 100
)

// EraConfig fixes the market value and physical supply assumed for assets of
// one publication era. Base values are calibrated so typical share prices
// land inside the $50-$6,000 band.
type EraConfig struct {
	BaseMarketValue float64
	TotalSupply     int64
	YearMin         int
	YearMax         int
}

var eraConfigs = map[string]EraConfig{
	"golden": {BaseMarketValue: 1_050_000_000, TotalSupply: 3000, YearMin: 1938, YearMax: 1955},
	"silver": {BaseMarketValue: 800_000_000, TotalSupply: 8000, YearMin: 1956, YearMax: 1970},
	"bronze": {BaseMarketValue: 750_000_000, TotalSupply: 15000, YearMin: 1971, YearMax: 1985},
	"modern": {BaseMarketValue: 300_000_000, TotalSupply: 20000, YearMin: 1986, YearMax: 2100},
}

// Franchise tier weights for characters.
var franchiseTierWeights = map[int]float64{
	1: 0.35,  // flagship heroes
	2: 0.15,  // variants and second generation
	3: -0.10, // sidekicks
	4: -0.25, // henchmen and minor villains
}

// Creator prestige tier weights.
var creatorTierWeights = map[int]float64{
	1: 0.40,  // legends
	2: 0.22,  // superstars
	3: 0.10,  // top artists
	4: -0.20, // unknowns
}

// Input carries everything the closed-form price needs. No field triggers a
// network call; pricing is fully deterministic given the input.
type Input struct {
	AssetType models.AssetType
	Name      string
	Era       string

	// Character specific.
	FranchiseTier  int
	KeyAppearances int
	IsVariant      bool

	// Creator specific.
	CreatorTier             int
	RoleWeightedAppearances float64
}

// Engine computes closed-form tiered prices.
type Engine struct {
	logger logger.Logger
}

func NewEngine(log logger.Logger) *Engine {
	return &Engine{logger: log}
}

// Price runs the master formula:
//
//	sharePrice = BaseEraMarketValue × TierMultiplier ×
//	             (1 + AppearanceModifier + TierWeight) ÷ TotalFloat
//
// clamped to [$50, $6,000] and rounded to cents. TotalMarketValue is
// recomputed from the final share price so price × float stays consistent.
func (e *Engine) Price(input Input) (*models.PricingResult, error) {
	eraConfig, ok := eraConfigs[input.Era]
	if !ok {
		return nil, fmt.Errorf("unknown era %q", input.Era)
	}

	baseMarketValue := eraConfig.BaseMarketValue
	tierMultiplier := 1.0
	appearanceModifier := 0.0
	tierWeight := 0.0

	switch input.AssetType {
	case models.AssetTypeCharacter:
		if input.FranchiseTier != 0 {
			w, ok := franchiseTierWeights[input.FranchiseTier]
			if !ok {
				return nil, fmt.Errorf("unknown franchise tier %d", input.FranchiseTier)
			}
			tierWeight = w
		}
		appearanceModifier = appearanceModifierFor(float64(input.KeyAppearances))
		if input.IsVariant {
			tierMultiplier *= variantMultiplier
		}

	case models.AssetTypeCreator:
		if input.CreatorTier != 0 {
			w, ok := creatorTierWeights[input.CreatorTier]
			if !ok {
				return nil, fmt.Errorf("unknown creator tier %d", input.CreatorTier)
			}
			tierWeight = w
		}
		appearanceModifier = appearanceModifierFor(input.RoleWeightedAppearances)

	case models.AssetTypeComic:
		// Comics use base era pricing with no appearance modifier.

	default:
		return nil, fmt.Errorf("unknown asset type %q", input.AssetType)
	}

	totalFloat := eraConfig.TotalSupply * sharesPerCopy

	totalMarketValue := baseMarketValue * tierMultiplier * (1 + appearanceModifier + tierWeight)
	sharePrice := totalMarketValue / float64(totalFloat)

	sharePrice = math.Max(minSharePrice, math.Min(maxSharePrice, sharePrice))
	sharePrice = math.Round(sharePrice*100) / 100

	totalMarketValue = math.Round(sharePrice*float64(totalFloat)*100) / 100

	return &models.PricingResult{
		SharePrice:       sharePrice,
		TotalMarketValue: totalMarketValue,
		TotalFloat:       totalFloat,
		Source:           models.PricingSourceMathematical,
		CalculatedAt:     time.Now().UTC(),
		Breakdown: models.PriceBreakdown{
			Era:                input.Era,
			BaseMarketValue:    baseMarketValue,
			TierMultiplier:     tierMultiplier,
			AppearanceModifier: appearanceModifier,
			FranchiseWeight:    tierWeight,
		},
	}, nil
}

// PriceWithFallback never fails: any pricing error is absorbed into a fixed
// tier-2 silver-era computation marked mathematical_fallback, so a malformed
// asset is still priced rather than dropped from its batch.
func (e *Engine) PriceWithFallback(input Input) *models.PricingResult {
	result, err := e.Price(input)
	if err == nil {
		return result
	}

	if e.logger != nil {
		e.logger.Warn("pricing failed, using fallback computation", map[string]interface{}{
			"asset": input.Name,
			"error": err.Error(),
		})
	}

	fallback, fallbackErr := e.Price(Input{
		AssetType:     models.AssetTypeCharacter,
		Name:          input.Name,
		Era:           "silver",
		FranchiseTier: 2,
		IsVariant:     input.IsVariant,
	})
	if fallbackErr != nil {
		// The fixed input is always valid; this branch is unreachable.
		panic(fallbackErr)
	}

	fallback.Source = models.PricingSourceMathematicalFallback
	return fallback
}

// variantMultiplier discounts variant incarnations to 60% of the original.
const variantMultiplier = 0.6

// appearanceModifierFor applies a logarithmic curve capped at +0.45:
// min(0.45, ln(1 + appearances) / 5).
func appearanceModifierFor(appearances float64) float64 {
	if appearances <= 0 {
		return 0
	}
	return math.Min(0.45, math.Log(1+appearances)/5)
}

// EraForYear maps a publication year onto its era name.
func EraForYear(year int) string {
	switch {
	case year < 1956:
		return "golden"
	case year < 1971:
		return "silver"
	case year < 1986:
		return "bronze"
	default:
		return "modern"
	}
}
