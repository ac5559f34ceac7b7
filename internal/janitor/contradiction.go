package janitor

import "strings"

// ContradictionDetector decides whether b contradicts a, both already
// known to be the same user/memory type. Pluggable per spec §9 Open
// Question, so a future embedding-similarity detector can replace the v1
// keyword-negation heuristic without touching the janitor loop.
type ContradictionDetector interface {
	Contradicts(a, b string) bool
}

var negationMarkers = []string{"not", "no longer", "never", "instead of", "isn't", "doesn't", "stopped"}

var antonymPairs = [][2]string{
	{"enabled", "disabled"},
	{"allow", "deny"},
	{"allowed", "denied"},
	{"prefers dark mode", "prefers light mode"},
	{"remote", "onsite"},
	{"approved", "rejected"},
}

// KeywordNegationDetector is the v1 contradiction predicate: flags a pair
// as contradictory when one contains a negation marker the other lacks
// over otherwise-similar text, or when the pair straddles a configured
// antonym.
type KeywordNegationDetector struct{}

func (KeywordNegationDetector) Contradicts(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)

	for _, pair := range antonymPairs {
		if strings.Contains(la, pair[0]) && strings.Contains(lb, pair[1]) {
			return true
		}
		if strings.Contains(la, pair[1]) && strings.Contains(lb, pair[0]) {
			return true
		}
	}

	aNeg, bNeg := hasNegation(la), hasNegation(lb)
	if aNeg == bNeg {
		return false
	}
	return shareSubject(la, lb)
}

func hasNegation(s string) bool {
	for _, m := range negationMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// shareSubject is a coarse heuristic: the two statements share enough
// vocabulary to plausibly be about the same subject, so a negation
// difference is meaningful rather than two unrelated sentences.
func shareSubject(a, b string) bool {
	wordsA := strings.Fields(a)
	set := make(map[string]struct{}, len(wordsA))
	for _, w := range wordsA {
		if len(w) > 3 {
			set[w] = struct{}{}
		}
	}
	shared := 0
	for _, w := range strings.Fields(b) {
		if _, ok := set[w]; ok && len(w) > 3 {
			shared++
		}
	}
	return shared >= 2
}
