// Package assets turns corpus records into tradable asset rows.
package assets

import (
	"fmt"
	"regexp"
	"strings"

	"asset-workers/internal/common/logger"
	"asset-workers/internal/models"
	"asset-workers/internal/names"
	"asset-workers/internal/pricing"
	"asset-workers/internal/symbol"
	"asset-workers/internal/vector"
)

var (
	parenVariantPattern   = regexp.MustCompile(`^(.+?)\s*\(([^)]+)\)$`)
	bracketVariantPattern = regexp.MustCompile(`^(.+?)\s*\[([^\]]+)\]$`)
	dashVariantPattern    = regexp.MustCompile(`^(.+?)\s*-\s*(.+)$`)
)

// maxDashVariantLen keeps "Batman - Dark Knight" a variant while
// leaving long dash-joined titles alone.
const maxDashVariantLen = 30

// ParseVariantName splits a display name into its base name and
// variant designation. "Captain America (House of M)",
// "Spider-Man [2099]" and "Batman - Dark Knight" all carry variants.
func ParseVariantName(name string) (baseName, variant string) {
	if m := parenVariantPattern.FindStringSubmatch(name); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	if m := bracketVariantPattern.FindStringSubmatch(name); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	if m := dashVariantPattern.FindStringSubmatch(name); m != nil && len(m[2]) < maxDashVariantLen {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return name, ""
}

// Transformer converts vector corpus records into priced asset
// proposals ready for bulk insertion.
type Transformer struct {
	canon      *names.Canonicalizer
	engine     *pricing.Engine
	heuristics *pricing.Heuristics
	classifier *pricing.Classifier
	logger     logger.Logger
}

func NewTransformer(canon *names.Canonicalizer, engine *pricing.Engine, heuristics *pricing.Heuristics, log logger.Logger) *Transformer {
	return &Transformer{
		canon:      canon,
		engine:     engine,
		heuristics: heuristics,
		classifier: pricing.NewClassifier(),
		logger:     log,
	}
}

// Transform builds the proposals for one corpus record: the base asset
// plus a variant asset when the name carries a variant designation.
func (t *Transformer) Transform(record models.VectorRecord) []models.AssetProposal {
	metadata := record.Metadata
	name := metadataString(metadata, "name")
	if name == "" {
		name = strings.TrimSuffix(metadataString(metadata, "filename"), ".md")
		name = strings.ReplaceAll(name, "_", " ")
	}
	if name == "" {
		name = record.ID
	}

	publisher := inferPublisher(record.ID, metadata)
	assetType := inferAssetType(record.ID, metadata)
	category := vector.InferCategory(record)
	description := metadataString(metadata, "description")

	baseName, variant := ParseVariantName(name)
	baseName = t.canon.GenerateVariants(baseName).Canonical

	proposals := []models.AssetProposal{
		t.buildProposal(record.ID, assetType, category, publisher, baseName, "", description, metadata),
	}

	if variant != "" {
		proposals = append(proposals,
			t.buildProposal(record.ID, assetType, category, publisher, baseName, variant, description, metadata))
	}

	return proposals
}

func (t *Transformer) buildProposal(sourceID string, assetType models.AssetType, category, publisher, baseName, variant, description string, metadata map[string]interface{}) models.AssetProposal {
	displayName := baseName
	if variant != "" {
		displayName = fmt.Sprintf("%s (%s)", baseName, variant)
	}
	if description == "" {
		description = defaultDescription(assetType, baseName, publisher, variant)
	}

	enriched := map[string]interface{}{
		"sourceId":  sourceID,
		"publisher": publisher,
	}
	for k, v := range metadata {
		enriched[k] = v
	}
	if variant != "" {
		enriched["variant"] = variant
	}

	return models.AssetProposal{
		Type:        assetType,
		Name:        displayName,
		BaseName:    baseName,
		Variant:     variant,
		Symbol:      symbol.Generate(baseName, variant, sourceID),
		Category:    category,
		Description: description,
		Metadata:    enriched,
		Pricing:     t.price(assetType, displayName, description, variant != ""),
	}
}

func (t *Transformer) price(assetType models.AssetType, name, description string, isVariant bool) *models.PricingResult {
	era := t.heuristics.DetectEra(name, description)
	appearances := t.heuristics.Appearances(description)

	input := pricing.Input{
		AssetType: assetType,
		Name:      name,
		Era:       era,
		IsVariant: isVariant,
	}

	switch assetType {
	case models.AssetTypeCharacter:
		tier := t.classifier.ClassifyCharacter(pricing.CharacterInput{
			Name:        name,
			Appearances: appearances,
			IsVariant:   isVariant,
		})
		input.FranchiseTier = tier.Tier
		input.KeyAppearances = t.heuristics.KeyAppearances(description, appearances)
	case models.AssetTypeCreator:
		tier := t.classifier.ClassifyCreator(pricing.CreatorInput{
			Name:                    name,
			RoleWeightedAppearances: float64(appearances),
		})
		input.CreatorTier = tier.Tier
		input.RoleWeightedAppearances = tier.RoleWeightedAppearances
	case models.AssetTypeComic:
		input.FranchiseTier = t.classifier.ClassifyComic(pricing.ComicInput{Name: name, IsVariant: isVariant}).Tier
	}

	return t.engine.PriceWithFallback(input)
}

func inferPublisher(id string, metadata map[string]interface{}) string {
	if pub := metadataString(metadata, "publisher"); pub != "" {
		return pub
	}
	lower := strings.ToLower(id)
	switch {
	case strings.Contains(lower, "marvel"):
		return "Marvel"
	case strings.Contains(lower, "dc"):
		return "DC"
	}
	return "Unknown"
}

func inferAssetType(id string, metadata map[string]interface{}) models.AssetType {
	category := metadataString(metadata, "category")
	switch {
	case category == vector.CategoryCreators || strings.Contains(id, "creator"):
		return models.AssetTypeCreator
	case category == vector.CategoryComics || strings.Contains(id, "comic") || metadataString(metadata, "type") == "comics":
		return models.AssetTypeComic
	}
	return models.AssetTypeCharacter
}

func defaultDescription(assetType models.AssetType, baseName, publisher, variant string) string {
	if variant != "" {
		return fmt.Sprintf("%s - %s incarnation", baseName, variant)
	}
	switch assetType {
	case models.AssetTypeCreator:
		return fmt.Sprintf("%s - Comic creator", baseName)
	case models.AssetTypeComic:
		return fmt.Sprintf("%s - %s comic", baseName, publisher)
	}
	return fmt.Sprintf("%s - %s character", baseName, publisher)
}

func metadataString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}
