// internal/pricing/heuristics.go
package pricing

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultAppearances       = 50
	DefaultKeyAppearanceRatio = 0.20
)

var (
	eraWordPattern    = regexp.MustCompile(`(?i)\b(golden|silver|bronze|modern)\s+age\b`)
	yearPattern       = regexp.MustCompile(`\b(19[3-9]\d|20[0-2]\d)\b`)
	appearancePattern = regexp.MustCompile(`(?i)\b(\d{1,6})\s+(?:issue\s+)?appearances?\b`)
	keyIssuePattern   = regexp.MustCompile(`(?i)\b(\d{1,5})\s+key\s+(?:issues?|appearances?)\b`)
	flagshipPattern   = regexp.MustCompile(`(?i)\b(flagship|main|original)\b`)
)

// Heuristics parses pricing inputs out of free-text descriptions. The key
// appearance ratio is configurable; the historical default treats 20% of all
// appearances as key appearances.
type Heuristics struct {
	KeyAppearanceRatio float64
}

func NewHeuristics(keyAppearanceRatio float64) *Heuristics {
	if keyAppearanceRatio <= 0 {
		keyAppearanceRatio = DefaultKeyAppearanceRatio
	}
	return &Heuristics{KeyAppearanceRatio: keyAppearanceRatio}
}

// DetectEra infers the publication era from a name plus any free-text
// metadata. An explicit "<era> Age" phrase wins; otherwise the first
// plausible publication year decides; silver is the default.
func (h *Heuristics) DetectEra(name string, texts ...string) string {
	candidates := append([]string{name}, texts...)

	for _, text := range candidates {
		if m := eraWordPattern.FindStringSubmatch(text); m != nil {
			return strings.ToLower(m[1])
		}
	}

	for _, text := range candidates {
		if m := yearPattern.FindString(text); m != "" {
			year, _ := strconv.Atoi(m)
			return EraForYear(year)
		}
	}

	return "silver"
}

// Appearances extracts a total appearance count from a description,
// defaulting to 50 when nothing matches.
func (h *Heuristics) Appearances(description string) int {
	if m := appearancePattern.FindStringSubmatch(description); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return defaultAppearances
}

// KeyAppearances extracts an explicit key-issue count, falling back to the
// configured ratio of total appearances.
func (h *Heuristics) KeyAppearances(description string, appearances int) int {
	if m := keyIssuePattern.FindStringSubmatch(description); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return int(float64(appearances) * h.KeyAppearanceRatio)
}

// FranchiseTier infers tier 1 when the description uses flagship language,
// tier 2 otherwise.
func (h *Heuristics) FranchiseTier(description string) int {
	if flagshipPattern.MatchString(description) {
		return 1
	}
	return 2
}
