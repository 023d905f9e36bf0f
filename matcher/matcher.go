// Package matcher implements the tolerant author-name comparison used to
// filter commits by a free-text fragment.
package matcher

import "strings"

// Thresholds for the similarity checks.
const (
	VariationThreshold = 0.7
	FallbackThreshold  = 0.6
	affixLength        = 4
)

// Matches reports whether candidate plausibly names the author described by
// pattern. Comparison is case-insensitive and tries, in order: substring
// containment either way, containment or similarity of pattern variations,
// and overall similarity.
func Matches(candidate, pattern string) bool {
	c := strings.ToLower(candidate)
	p := strings.ToLower(pattern)

	if strings.Contains(c, p) || strings.Contains(p, c) {
		return true
	}

	for _, v := range Variations(p) {
		if strings.Contains(c, v) || Similarity(c, v) > VariationThreshold {
			return true
		}
	}

	return Similarity(c, p) > FallbackThreshold
}

// Variations returns the distinct variations of a lower-cased pattern: the
// pattern itself, its whitespace/hyphen/underscore separated parts, the
// whitespace parts joined together, and its first and last four characters.
func Variations(pattern string) []string {
	variations := []string{pattern}

	if strings.Contains(pattern, " ") {
		parts := strings.Fields(pattern)
		variations = append(variations, parts...)
		variations = append(variations, strings.Join(parts, ""))
	}
	if strings.Contains(pattern, "-") {
		variations = append(variations, strings.Split(pattern, "-")...)
	}
	if strings.Contains(pattern, "_") {
		variations = append(variations, strings.Split(pattern, "_")...)
	}

	if r := []rune(pattern); len(r) > affixLength {
		variations = append(variations, string(r[:affixLength]), string(r[len(r)-affixLength:]))
	}

	seen := make(map[string]struct{}, len(variations))
	out := variations[:0]
	for _, v := range variations {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
