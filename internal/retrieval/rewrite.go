package retrieval

import "strings"

// synonyms is the bounded static dictionary backing deterministic query
// rewriting (spec §9 Open Question: no LLM call, so retrieval stays free
// of external-model latency and non-determinism).
var synonyms = map[string][]string{
	"bug":        {"defect", "issue"},
	"error":      {"failure", "exception"},
	"prefer":     {"like", "favor"},
	"decision":   {"decided", "chose"},
	"config":     {"configuration", "settings"},
	"deploy":     {"release", "ship"},
	"db":         {"database"},
	"auth":       {"authentication", "login"},
	"ui":         {"interface", "frontend"},
}

// RewriteQuery appends a bounded set of synonym expansions to query,
// deterministically and idempotently: the same input always produces
// the same output, and rewriting an already-rewritten query is a no-op
// beyond the first pass since the dictionary lookup is by exact word.
func RewriteQuery(query string) string {
	words := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}

	var extra []string
	for _, w := range words {
		for _, syn := range synonyms[w] {
			if _, ok := seen[syn]; ok {
				continue
			}
			seen[syn] = struct{}{}
			extra = append(extra, syn)
		}
	}
	if len(extra) == 0 {
		return query
	}
	return query + " " + strings.Join(extra, " ")
}
