// internal/symbol/symbol.go
package symbol

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
)

const (
	suffixLength      = 11
	baseAcronymMax    = 5
	variantAcronymMax = 3
	fallbackAcronym   = "ASSET"
)

// symbolSpace is 36^11 (~1.3e17), the size of the base-36 suffix space.
// It fits in a uint64, so the reduction stays exact without big integers.
// At 1M assets the birthday collision probability is ~3.8e-6; at 10M it is
// ~3.8e-4.
var symbolSpace = pow36(suffixLength)

func pow36(n int) uint64 {
	v := uint64(1)
	for i := 0; i < n; i++ {
		v *= 36
	}
	return v
}

// Generate derives a deterministic, collision-resistant symbol from an
// entity's base name, optional variant qualifier, and source id. Identical
// inputs always produce identical output, which makes symbol generation safe
// under at-least-once job delivery.
//
//	Generate("Captain America", "House of M", "characters_42")
//	  => "CA.HOM.<11-char base-36 suffix>"
func Generate(baseName, variant, sourceID string) string {
	base := acronym(baseName, baseAcronymMax)
	if base == "" {
		base = fallbackAcronym
	}

	if variant != "" {
		if v := acronym(variant, variantAcronymMax); v != "" {
			base = base + "." + v
		}
	}

	return base + "." + hashSuffix(baseName, variant, sourceID)
}

// acronym joins the upper-cased initials of each whitespace-separated word,
// truncated to max characters.
func acronym(s string, max int) string {
	var b strings.Builder
	for _, word := range strings.Fields(s) {
		if b.Len() >= max {
			break
		}
		for _, r := range word {
			b.WriteRune(unicode.ToUpper(r))
			break
		}
	}
	out := b.String()
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// hashSuffix reduces SHA-256(lower(base)|lower(variant)|sourceID) into the
// base-36 symbol space. The first 16 hex characters of the digest form a
// 64-bit integer which is reduced modulo 36^11 and encoded upper-case,
// left-padded to 11 characters.
func hashSuffix(baseName, variant, sourceID string) string {
	input := strings.ToLower(baseName) + "|" + strings.ToLower(variant) + "|" + sourceID
	digest := sha256.Sum256([]byte(input))

	hexDigest := hex.EncodeToString(digest[:])
	v, _ := strconv.ParseUint(hexDigest[:16], 16, 64)
	v %= symbolSpace

	encoded := strings.ToUpper(strconv.FormatUint(v, 36))
	if pad := suffixLength - len(encoded); pad > 0 {
		encoded = strings.Repeat("0", pad) + encoded
	}
	return encoded
}
