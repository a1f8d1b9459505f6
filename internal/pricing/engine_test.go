// internal/pricing/engine_test.go
package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-workers/internal/common/logger"
	"asset-workers/internal/models"
)

func newTestEngine() *Engine {
	return NewEngine(logger.NewNoOpLogger())
}

func TestPrice_SilverCharacterTier2(t *testing.T) {
	engine := newTestEngine()

	result, err := engine.Price(Input{
		AssetType:      models.AssetTypeCharacter,
		Name:           "Moon Knight",
		Era:            "silver",
		FranchiseTier:  2,
		KeyAppearances: 20,
	})

	require.NoError(t, err)
	// 800M x (1 + 0.45 + 0.15) / 800,000 shares
	assert.Equal(t, 1600.00, result.SharePrice)
	assert.Equal(t, int64(800_000), result.TotalFloat)
	assert.Equal(t, 1_280_000_000.00, result.TotalMarketValue)
	assert.Equal(t, models.PricingSourceMathematical, result.Source)
	assert.Equal(t, "silver", result.Breakdown.Era)
	assert.Equal(t, 0.45, result.Breakdown.AppearanceModifier)
	assert.Equal(t, 0.15, result.Breakdown.FranchiseWeight)
}

func TestPrice_GoldenVariantDiscount(t *testing.T) {
	engine := newTestEngine()

	result, err := engine.Price(Input{
		AssetType:      models.AssetTypeCharacter,
		Name:           "Captain America (House of M)",
		Era:            "golden",
		FranchiseTier:  1,
		KeyAppearances: 100,
		IsVariant:      true,
	})

	require.NoError(t, err)
	// 1.05B x 0.6 x (1 + 0.45 + 0.35) / 300,000 shares
	assert.Equal(t, 3780.00, result.SharePrice)
	assert.Equal(t, 0.6, result.Breakdown.TierMultiplier)
}

func TestPrice_ModernComicBasePricing(t *testing.T) {
	engine := newTestEngine()

	result, err := engine.Price(Input{
		AssetType: models.AssetTypeComic,
		Name:      "Spawn #1",
		Era:       "modern",
	})

	require.NoError(t, err)
	assert.Equal(t, 150.00, result.SharePrice)
	assert.Equal(t, int64(2_000_000), result.TotalFloat)
	assert.Equal(t, 0.0, result.Breakdown.AppearanceModifier)
}

func TestPrice_CreatorTierWeights(t *testing.T) {
	engine := newTestEngine()

	result, err := engine.Price(Input{
		AssetType:               models.AssetTypeCreator,
		Name:                    "Stan Lee",
		Era:                     "silver",
		CreatorTier:             1,
		RoleWeightedAppearances: 100,
	})

	require.NoError(t, err)
	// 800M x (1 + 0.45 + 0.40) / 800,000 shares
	assert.Equal(t, 1850.00, result.SharePrice)
	assert.Equal(t, 0.40, result.Breakdown.FranchiseWeight)
}

func TestPrice_ClampedToMaximum(t *testing.T) {
	engine := newTestEngine()

	result, err := engine.Price(Input{
		AssetType:      models.AssetTypeCharacter,
		Name:           "Superman",
		Era:            "golden",
		FranchiseTier:  1,
		KeyAppearances: 5000,
	})

	require.NoError(t, err)
	// Unclamped value is 6300; the band tops out at 6000.
	assert.Equal(t, 6000.00, result.SharePrice)
	assert.Equal(t, 6000.00*300_000, result.TotalMarketValue)
}

func TestPrice_MarketValueInvariant(t *testing.T) {
	engine := newTestEngine()

	result, err := engine.Price(Input{
		AssetType:      models.AssetTypeCharacter,
		Name:           "Nightwing",
		Era:            "bronze",
		FranchiseTier:  3,
		KeyAppearances: 10,
	})

	require.NoError(t, err)
	assert.InDelta(t, result.SharePrice*float64(result.TotalFloat), result.TotalMarketValue, 0.01)
	assert.GreaterOrEqual(t, result.SharePrice, 50.0)
	assert.LessOrEqual(t, result.SharePrice, 6000.0)
}

func TestPrice_UnknownEra(t *testing.T) {
	engine := newTestEngine()

	_, err := engine.Price(Input{
		AssetType: models.AssetTypeCharacter,
		Name:      "Atom",
		Era:       "atomic",
	})

	assert.Error(t, err)
}

func TestPriceWithFallback_NeverFails(t *testing.T) {
	engine := newTestEngine()

	result := engine.PriceWithFallback(Input{
		AssetType: models.AssetType("publisher"),
		Name:      "Malformed",
		Era:       "no-such-era",
	})

	assert.NotNil(t, result)
	assert.Equal(t, models.PricingSourceMathematicalFallback, result.Source)
	// Fixed tier-2 silver computation: 800M x 1.15 / 800,000 shares.
	assert.Equal(t, 1150.00, result.SharePrice)
}

func TestPriceWithFallback_PassesThroughValidInput(t *testing.T) {
	engine := newTestEngine()

	result := engine.PriceWithFallback(Input{
		AssetType: models.AssetTypeComic,
		Name:      "Spawn #1",
		Era:       "modern",
	})

	assert.Equal(t, models.PricingSourceMathematical, result.Source)
}

func TestEraForYear(t *testing.T) {
	assert.Equal(t, "golden", EraForYear(1939))
	assert.Equal(t, "silver", EraForYear(1962))
	assert.Equal(t, "bronze", EraForYear(1975))
	assert.Equal(t, "modern", EraForYear(1992))
	assert.Equal(t, "modern", EraForYear(2024))
}
