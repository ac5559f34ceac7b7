package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/memengine/core/internal/core"
	"github.com/memengine/core/internal/ingestion/citation"
)

type fakeLister struct {
	content []string
	err     error
}

func (f *fakeLister) ListContent(ctx context.Context, userID string, memType core.MemoryType) ([]string, error) {
	return f.content, f.err
}

type fakeVerifier struct{ verifies bool }

func (f *fakeVerifier) Verify(ctx context.Context, c citation.Citation) (bool, error) {
	return f.verifies, nil
}

func TestPipelineBlocksOnPersonalHedge(t *testing.T) {
	p := NewPipeline(&fakeLister{}, &fakeVerifier{}, 0.92)
	d, err := p.Decide(context.Background(), Request{Content: "I think this is true", MemoryType: core.MemoryTypeFact, Source: "conversation", UserID: "u1"})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.Tier != TierBlock {
		t.Fatalf("expected TierBlock, got %v (%s)", d.Tier, d.Reason)
	}
}

func TestPipelineBlocksOnDuplicate(t *testing.T) {
	p := NewPipeline(&fakeLister{content: []string{"the user prefers dark mode everywhere"}}, &fakeVerifier{}, 0.5)
	d, err := p.Decide(context.Background(), Request{Content: "the user prefers dark mode everywhere", MemoryType: core.MemoryTypeFact, Source: "conversation", UserID: "u1"})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.Tier != TierBlock || d.Reason != "duplicate" {
		t.Fatalf("expected duplicate block, got %v (%s)", d.Tier, d.Reason)
	}
}

func TestPipelineFailsClosedOnDedupError(t *testing.T) {
	p := NewPipeline(&fakeLister{err: errors.New("db down")}, &fakeVerifier{}, 0.92)
	d, err := p.Decide(context.Background(), Request{Content: "something new", MemoryType: core.MemoryTypeFact, Source: "other", UserID: "u1"})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.Tier != TierReview {
		t.Fatalf("expected fail-closed TierReview on detector error, got %v", d.Tier)
	}
}

func TestPipelineAutoApprovesVerifiedCitation(t *testing.T) {
	p := NewPipeline(&fakeLister{}, &fakeVerifier{verifies: true}, 0.92)
	d, err := p.Decide(context.Background(), Request{Content: "documented in ADR-003", MemoryType: core.MemoryTypeFact, Source: "other", UserID: "u1"})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.Tier != TierAutoApprove || d.Reason != "citation_verified" {
		t.Fatalf("expected citation-verified auto-approve, got %v (%s)", d.Tier, d.Reason)
	}
}

func TestPipelineAutoApprovesTrustedSource(t *testing.T) {
	p := NewPipeline(&fakeLister{}, &fakeVerifier{}, 0.92)
	d, err := p.Decide(context.Background(), Request{Content: "plain note", MemoryType: core.MemoryTypeFact, Source: core.SourceDocumentation, UserID: "u1"})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.Tier != TierAutoApprove || d.Reason != "trusted_source" {
		t.Fatalf("expected trusted-source auto-approve, got %v (%s)", d.Tier, d.Reason)
	}
}

func TestPipelineTypedContextDecision(t *testing.T) {
	p := NewPipeline(&fakeLister{}, &fakeVerifier{}, 0.92)
	d, err := p.Decide(context.Background(), Request{Content: "we decided to use postgres", MemoryType: core.MemoryTypeDecision, Source: core.SourceConversation, UserID: "u1"})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.Tier != TierAutoApprove || d.Reason != "typed_context:decision" {
		t.Fatalf("expected typed-context decision auto-approve, got %v (%s)", d.Tier, d.Reason)
	}
}

func TestPipelineReviewHedgeOverridesCitation(t *testing.T) {
	p := NewPipeline(&fakeLister{}, &fakeVerifier{verifies: true}, 0.92)
	d, err := p.Decide(context.Background(), Request{Content: "this might be documented in ADR-003", MemoryType: core.MemoryTypeFact, Source: "other", UserID: "u1"})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.Tier != TierReview || d.Reason != "hedge:review" {
		t.Fatalf("expected hedge:review to override citation verification, got %v (%s)", d.Tier, d.Reason)
	}
}

func TestPipelineDefaultsToReview(t *testing.T) {
	p := NewPipeline(&fakeLister{}, &fakeVerifier{}, 0.92)
	d, err := p.Decide(context.Background(), Request{Content: "a plain unremarkable fact", MemoryType: core.MemoryTypeFact, Source: "other", UserID: "u1"})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.Tier != TierReview || d.Reason != "no_rule_matched" {
		t.Fatalf("expected default TierReview, got %v (%s)", d.Tier, d.Reason)
	}
}
