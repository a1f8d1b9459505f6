// internal/pricing/classifier.go
package pricing

import (
	"strings"

	"asset-workers/internal/models"
)

// Flagship characters get tier 1 on name recognition alone.
var flagshipNames = []string{
	"spider-man", "batman", "superman", "wonder woman", "captain america",
	"iron man", "hulk", "thor", "wolverine", "flash", "green lantern",
}

// Creators whose prestige puts them in tier 1 regardless of output volume.
var legendCreators = []string{
	"stan lee", "jack kirby", "bob kane", "bill finger", "steve ditko",
	"osamu tezuka", "will eisner",
}

// CharacterInput feeds the character classification branch.
type CharacterInput struct {
	Name        string
	Publisher   string
	Appearances int
	IsVariant   bool
}

// CreatorInput feeds the creator classification branch.
type CreatorInput struct {
	Name                    string
	RoleWeightedAppearances float64
}

// ComicInput feeds the comic classification branch.
type ComicInput struct {
	Name      string
	Publisher string
	IsVariant bool
}

// Classifier assigns franchise/prestige tiers from name and appearance
// heuristics. It is deterministic and needs no external data.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// ClassifyCharacter tiers a character: flagship names are tier 1, heavy
// appearance counts tier 2, moderate ones tier 3, the long tail tier 4.
func (c *Classifier) ClassifyCharacter(input CharacterInput) models.TierClassification {
	nameLower := strings.ToLower(input.Name)

	tier := 4
	for _, flagship := range flagshipNames {
		if strings.Contains(nameLower, flagship) {
			tier = 1
			break
		}
	}

	if tier == 4 {
		switch {
		case input.Appearances > 1000:
			tier = 2
		case input.Appearances > 100:
			tier = 3
		}
	}

	return models.TierClassification{
		Tier:      tier,
		IsVariant: input.IsVariant,
	}
}

// ClassifyCreator tiers a creator by prestige and weighted output.
func (c *Classifier) ClassifyCreator(input CreatorInput) models.TierClassification {
	nameLower := strings.ToLower(input.Name)

	tier := 4
	for _, legend := range legendCreators {
		if strings.Contains(nameLower, legend) {
			tier = 1
			break
		}
	}

	if tier == 4 {
		switch {
		case input.RoleWeightedAppearances > 500:
			tier = 2
		case input.RoleWeightedAppearances > 50:
			tier = 3
		}
	}

	return models.TierClassification{
		Tier:                    tier,
		RoleWeightedAppearances: input.RoleWeightedAppearances,
	}
}

// ClassifyComic tiers an issue. Most issues sit at tier 3; variants keep the
// variant flag for the pricing discount.
func (c *Classifier) ClassifyComic(input ComicInput) models.TierClassification {
	return models.TierClassification{
		Tier:      3,
		IsVariant: input.IsVariant,
	}
}
