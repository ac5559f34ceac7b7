package ingestion

import (
	"context"

	"github.com/memengine/core/internal/core"
	"github.com/memengine/core/internal/ingestion/citation"
)

// Tier is the ingestion pipeline's routing decision (spec §4.3).
type Tier int

const (
	TierAutoApprove Tier = iota + 1
	TierReview
	TierBlock
)

// Request is the input to the ingestion pipeline.
type Request struct {
	Content    string
	MemoryType core.MemoryType
	Source     string
	UserID     string
	ProjectID  string
}

// Decision is the pipeline's output: the tier plus the reasoning that led
// to it, useful for audit and debugging.
type Decision struct {
	Tier       Tier
	Reason     string
	Citations  []citation.Citation
	HedgeClass HedgeClass
}

// trustedSources per spec §4.3 step 4.
var trustedSources = map[string]struct{}{
	core.SourceUser:          {},
	core.SourceDocumentation: {},
	core.SourceADR:           {},
	core.SourceCommit:        {},
	core.SourceManual:        {},
}

// ExistingMemoryLister is consulted for deduplication: it returns the
// content of a user's existing memories of a given type so the pipeline
// can compute Jaccard similarity against each.
type ExistingMemoryLister interface {
	ListContent(ctx context.Context, userID string, memType core.MemoryType) ([]string, error)
}

// CitationVerifier verifies a single detected citation.
type CitationVerifier interface {
	Verify(ctx context.Context, c citation.Citation) (bool, error)
}

// Pipeline implements the tiering decision of spec §4.3.
type Pipeline struct {
	Lister           ExistingMemoryLister
	Verifier         CitationVerifier
	DedupThreshold   float64 // default 0.92
}

// NewPipeline constructs a Pipeline with the spec default dedup threshold.
func NewPipeline(lister ExistingMemoryLister, verifier CitationVerifier, dedupThreshold float64) *Pipeline {
	if dedupThreshold <= 0 {
		dedupThreshold = 0.92
	}
	return &Pipeline{Lister: lister, Verifier: verifier, DedupThreshold: dedupThreshold}
}

// Decide runs the full decision order of spec §4.3 and returns the final
// tier. On any detector error, the result fails closed to TierReview —
// never TierAutoApprove.
func (p *Pipeline) Decide(ctx context.Context, req Request) (*Decision, error) {
	hedge := ClassifyHedge(req.Content)
	if hedge == HedgeBlock {
		return &Decision{Tier: TierBlock, Reason: "hedge:block", HedgeClass: hedge}, nil
	}

	isDuplicate, dedupFailed := p.checkDuplicate(ctx, req)
	if isDuplicate {
		return &Decision{Tier: TierBlock, Reason: "duplicate", HedgeClass: hedge}, nil
	}
	if dedupFailed {
		return &Decision{Tier: TierReview, Reason: "dedup_check_failed", HedgeClass: hedge}, nil
	}
	if hedge == HedgeReview {
		return &Decision{Tier: TierReview, Reason: "hedge:review", HedgeClass: hedge}, nil
	}

	citations := citation.Detect(req.Content)
	verified := p.anyVerified(ctx, citations)
	if verified {
		return &Decision{Tier: TierAutoApprove, Reason: "citation_verified", Citations: citations, HedgeClass: hedge}, nil
	}

	if _, trusted := trustedSources[req.Source]; trusted {
		return &Decision{Tier: TierAutoApprove, Reason: "trusted_source", Citations: citations, HedgeClass: hedge}, nil
	}

	if req.MemoryType == core.MemoryTypeDecision && req.Source == core.SourceConversation {
		return &Decision{Tier: TierAutoApprove, Reason: "typed_context:decision", Citations: citations, HedgeClass: hedge}, nil
	}
	if req.MemoryType == core.MemoryTypePreference && (req.Source == core.SourceConversation || req.Source == core.SourceChat) {
		return &Decision{Tier: TierAutoApprove, Reason: "typed_context:preference", Citations: citations, HedgeClass: hedge}, nil
	}

	return &Decision{Tier: TierReview, Reason: "no_rule_matched", Citations: citations, HedgeClass: hedge}, nil
}

// checkDuplicate returns (isDuplicate, detectorFailed). A failed lookup
// never counts as a duplicate; it signals fail-closed handling instead.
func (p *Pipeline) checkDuplicate(ctx context.Context, req Request) (bool, bool) {
	if p.Lister == nil {
		return false, false
	}
	existing, err := p.Lister.ListContent(ctx, req.UserID, req.MemoryType)
	if err != nil {
		return false, true
	}
	for _, content := range existing {
		if JaccardSimilarity(req.Content, content) >= p.DedupThreshold {
			return true, false
		}
	}
	return false, false
}

// anyVerified returns true if at least one detected citation verifies.
// A verifier error is treated the same as "not verified" for that
// citation — it does not abort the whole decision, since other rules may
// still apply, but it never upgrades a tier on its own.
func (p *Pipeline) anyVerified(ctx context.Context, citations []citation.Citation) bool {
	if p.Verifier == nil {
		return false
	}
	for _, c := range citations {
		ok, err := p.Verifier.Verify(ctx, c)
		if err == nil && ok {
			return true
		}
	}
	return false
}
