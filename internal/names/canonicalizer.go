// internal/names/canonicalizer.go
package names

import (
	"regexp"
	"strings"
	"sync"
)

// NameVariants is the expansion of one canonical name into every form a
// data source might list it under.
type NameVariants struct {
	Canonical   string   `json:"canonical"`
	Variants    []string `json:"variants"`
	Aliases     []string `json:"aliases"`
	SearchTerms []string `json:"searchTerms"`
}

var (
	strippablePrefixes = []string{"the ", "dr ", "dr. ", "mr ", "mr. ", "ms ", "ms. ", "mrs ", "mrs. ", "professor ", "captain "}
	strippableSuffixes = regexp.MustCompile(`(?i)\s+(jr\.?|sr\.?|[ivx]+)$`)
	nonAlphanumeric    = regexp.MustCompile(`[^a-z0-9]`)
)

// Canonicalizer produces name variants and fuzzy-match scores. The alias
// table is the only mutable state; it is guarded for concurrent workers.
type Canonicalizer struct {
	mu      sync.RWMutex
	aliases map[string][]string
}

// NewCanonicalizer returns a canonicalizer seeded with the static alias
// table for well-known entities.
func NewCanonicalizer() *Canonicalizer {
	return &Canonicalizer{
		aliases: map[string][]string{
			"the joker":       {"Joker", "Clown Prince of Crime", "Mr. J"},
			"batman":          {"Bruce Wayne", "The Dark Knight", "Caped Crusader"},
			"superman":        {"Clark Kent", "Kal-El", "Man of Steel"},
			"spider-man":      {"Peter Parker", "Spidey", "Web-Slinger"},
			"wonder woman":    {"Diana Prince", "Princess Diana of Themyscira"},
			"captain america": {"Steve Rogers", "Cap"},
			"iron man":        {"Tony Stark"},
			"the hulk":        {"Bruce Banner", "Hulk"},
			"wolverine":       {"Logan", "James Howlett", "Weapon X"},
			"the flash":       {"Barry Allen", "Flash", "Scarlet Speedster"},
		},
	}
}

// AddKnownAlias registers an extra alias for a canonical name.
func (c *Canonicalizer) AddKnownAlias(canonical, alias string) {
	key := strings.ToLower(strings.TrimSpace(canonical))

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.aliases[key] {
		if strings.EqualFold(existing, alias) {
			return
		}
	}
	c.aliases[key] = append(c.aliases[key], alias)
}

// GenerateVariants expands a name into its variant set, known aliases, and
// lower-cased search terms.
func (c *Canonicalizer) GenerateVariants(name string) NameVariants {
	canonical := strings.TrimSpace(name)

	seen := make(map[string]bool)
	var variants []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		key := strings.ToLower(v)
		if seen[key] {
			return
		}
		seen[key] = true
		variants = append(variants, v)
	}

	add(canonical)

	// Strip title prefixes and generational suffixes.
	stripped := canonical
	lower := strings.ToLower(stripped)
	for _, prefix := range strippablePrefixes {
		if strings.HasPrefix(lower, prefix) {
			stripped = stripped[len(prefix):]
			break
		}
	}
	add(stripped)
	add(strippableSuffixes.ReplaceAllString(stripped, ""))

	// Hyphen/space/concatenated permutations.
	for _, base := range []string{canonical, stripped} {
		if strings.Contains(base, "-") {
			add(strings.ReplaceAll(base, "-", " "))
			add(strings.ReplaceAll(base, "-", ""))
		}
		if strings.Contains(base, " ") {
			add(strings.ReplaceAll(base, " ", "-"))
			add(strings.ReplaceAll(base, " ", ""))
		}
	}

	c.mu.RLock()
	aliases := append([]string(nil), c.aliases[strings.ToLower(canonical)]...)
	c.mu.RUnlock()

	searchSeen := make(map[string]bool)
	var searchTerms []string
	for _, v := range append(append([]string(nil), variants...), aliases...) {
		term := strings.ToLower(v)
		if !searchSeen[term] {
			searchSeen[term] = true
			searchTerms = append(searchTerms, term)
		}
	}

	return NameVariants{
		Canonical:   canonical,
		Variants:    variants,
		Aliases:     aliases,
		SearchTerms: searchTerms,
	}
}

// FindBestMatch picks the candidate that best matches the query: an exact
// search-term match wins, then substring containment. Returns false when no
// candidate qualifies.
func (c *Canonicalizer) FindBestMatch(query string, candidates []string) (string, bool) {
	queryTerms := c.GenerateVariants(query).SearchTerms

	for _, candidate := range candidates {
		lower := strings.ToLower(strings.TrimSpace(candidate))
		for _, term := range queryTerms {
			if lower == term {
				return candidate, true
			}
		}
	}

	for _, candidate := range candidates {
		lower := strings.ToLower(strings.TrimSpace(candidate))
		for _, term := range queryTerms {
			if strings.Contains(lower, term) || strings.Contains(term, lower) {
				return candidate, true
			}
		}
	}

	return "", false
}

// IsSimilar reports whether two names are the same entity under a normalized
// Levenshtein similarity threshold. Similarity is (maxLen - distance) /
// maxLen over lower-cased, alphanumeric-only forms.
func IsSimilar(a, b string, threshold float64) bool {
	na := normalize(a)
	nb := normalize(b)

	if na == nb {
		return true
	}
	if na == "" || nb == "" {
		return false
	}

	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}

	similarity := float64(maxLen-levenshtein(na, nb)) / float64(maxLen)
	return similarity >= threshold
}

func normalize(s string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "")
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
