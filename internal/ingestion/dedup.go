package ingestion

import (
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// wordSet lowercases s and returns its distinct word set, used for Jaccard
// similarity comparisons by both ingestion dedup and the janitor's
// clustering pass.
func wordSet(s string) map[string]struct{} {
	words := wordRe.FindAllString(strings.ToLower(s), -1)
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

// JaccardSimilarity returns |A∩B| / |A∪B| over the lowercased word sets of
// a and b. Two empty strings are considered maximally dissimilar (0), not
// identical, since there is no content to compare.
func JaccardSimilarity(a, b string) float64 {
	setA, setB := wordSet(a), wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
