package extraction

import (
	"context"
	"regexp"
	"strings"

	"github.com/memengine/core/internal/core"
)

// HeuristicExtractor is a deterministic, rule-based reference Extractor:
// no model call, no randomness, same input always yields the same
// Candidates for a given Version. Production deployments plug in a real
// LLM-backed Extractor behind the same interface (spec §9 Non-goals keeps
// the extractor pluggable, not owned by the core).
type HeuristicExtractor struct {
	version int
}

// NewHeuristicExtractor constructs a reference extractor stamped with
// version.
func NewHeuristicExtractor(version int) *HeuristicExtractor {
	if version <= 0 {
		version = 1
	}
	return &HeuristicExtractor{version: version}
}

func (h *HeuristicExtractor) Version() int { return h.version }

var sentenceSplit = regexp.MustCompile(`[.!?]+\s*`)

var (
	decisionMarkers   = []string{"we decided", "decided to", "going with", "we will use", "chosen"}
	preferenceMarkers = []string{"prefer", "i like", "i want", "favorite", "rather have"}
)

// Extract splits RawText into sentences and classifies each into a
// Candidate by keyword matching, at a fixed confidence per classified
// type — the deterministic stand-in this pipeline ships with.
func (h *HeuristicExtractor) Extract(ctx context.Context, req Request) ([]Candidate, error) {
	var out []Candidate
	for _, raw := range sentenceSplit.Split(req.RawText, -1) {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		lower := strings.ToLower(s)

		switch {
		case containsAny(lower, decisionMarkers):
			out = append(out, Candidate{Content: s, Type: core.MemoryTypeDecision, Confidence: 0.8})
		case containsAny(lower, preferenceMarkers):
			out = append(out, Candidate{Content: s, Type: core.MemoryTypePreference, Confidence: 0.75})
		default:
			out = append(out, Candidate{Content: s, Type: core.MemoryTypeFact, Confidence: 0.6})
		}
	}
	return out, nil
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
