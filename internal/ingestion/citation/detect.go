// Package citation detects and verifies evidence citations referenced by
// ingested content (spec §4.3 step 3): ADR references, commit hashes,
// URLs, and issue references. Detection alone is never sufficient —
// a Verifier must confirm the citation actually resolves.
package citation

import "regexp"

// Kind is the category of citation detected in content.
type Kind string

const (
	KindADR    Kind = "adr"
	KindCommit Kind = "commit"
	KindURL    Kind = "url"
	KindIssue  Kind = "issue"
)

// Citation is one detected reference within a piece of content.
type Citation struct {
	Kind Kind
	Ref  string // e.g. "ADR-003", a commit hex string, a URL, "#1234"
}

var (
	adrRe    = regexp.MustCompile(`(?i)\bADR[-_]?(\d{3,4})\b`)
	commitRe = regexp.MustCompile(`\b[0-9a-f]{7,40}\b`)
	urlRe    = regexp.MustCompile(`https?://[^\s)>\]]+`)
	issueRe  = regexp.MustCompile(`#(\d+)\b`)
)

// Detect scans content and returns every citation found. The commit-hash
// pattern requires 7-40 hex characters, which excludes 6-hex-digit color
// literals (e.g. "#1a2b3c") by construction.
func Detect(content string) []Citation {
	var out []Citation

	for _, m := range adrRe.FindAllStringSubmatch(content, -1) {
		out = append(out, Citation{Kind: KindADR, Ref: "ADR-" + m[1]})
	}

	for _, m := range commitRe.FindAllString(content, -1) {
		out = append(out, Citation{Kind: KindCommit, Ref: m})
	}

	for _, m := range urlRe.FindAllString(content, -1) {
		out = append(out, Citation{Kind: KindURL, Ref: m})
	}

	for _, m := range issueRe.FindAllStringSubmatch(content, -1) {
		out = append(out, Citation{Kind: KindIssue, Ref: "#" + m[1]})
	}

	return out
}
