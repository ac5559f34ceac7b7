package ingestion

import "strings"

// HedgeClass is the outcome of hedge-phrase classification (spec §4.3 step 1).
type HedgeClass string

const (
	HedgeNone   HedgeClass = "none"
	HedgeReview HedgeClass = "review"
	HedgeBlock  HedgeClass = "block"
)

// blockPhrases are personal-speculation hedges that always block ingestion.
var blockPhrases = []string{
	"i think", "i guess", "i believe", "i assume",
	"i don't know", "not sure", "maybe we should",
}

// reviewPhrases are technical hedges that route to the review queue rather
// than outright blocking.
var reviewPhrases = []string{
	"may", "might", "typically", "often", "usually", "approximately",
}

// ClassifyHedge inspects content for the hedge phrase lists and returns the
// most severe class matched: block phrases outrank review phrases.
func ClassifyHedge(content string) HedgeClass {
	lower := strings.ToLower(content)
	for _, p := range blockPhrases {
		if strings.Contains(lower, p) {
			return HedgeBlock
		}
	}
	for _, p := range reviewPhrases {
		if containsWord(lower, p) {
			return HedgeReview
		}
	}
	return HedgeNone
}

// containsWord checks for phrase as a whole-word match to avoid false
// positives like "may" inside "mayonnaise".
func containsWord(haystack, phrase string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], phrase)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordByte(haystack[start-1])
		afterOK := end == len(haystack) || !isWordByte(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
