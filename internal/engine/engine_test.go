package engine

import (
	"context"
	"testing"

	"github.com/memengine/core/internal/config"
	"github.com/memengine/core/internal/core"
	"github.com/memengine/core/internal/ingestion"
	"github.com/memengine/core/internal/notify"
	"github.com/memengine/core/internal/retrieval"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New(config.Default(), Options{DataDir: t.TempDir(), Notify: notify.Config{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestIngestTier1AutoApproveStoresAndRetrieves(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Ingest(ctx, ingestion.Request{
		Content:    "Per ADR-003, we use Pixeltable for storage",
		MemoryType: core.MemoryTypeDecision,
		Source:     core.SourceConversation,
		UserID:     "u1",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Tier != ingestion.TierAutoApprove {
		t.Fatalf("tier = %v, want TierAutoApprove", res.Tier)
	}
	if res.MemoryID == "" {
		t.Fatal("expected a memory id on Tier 1 approval")
	}

	got, err := eng.Store.Get(ctx, "u1", res.MemoryID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != res.MemoryID {
		t.Fatalf("got memory %s, want %s", got.ID, res.MemoryID)
	}

	results, err := eng.Retrieval.Retrieve(ctx, retrieval.Request{
		Query:  "Pixeltable storage",
		UserID: "u1",
		Scope:  core.ScopeUser,
		TopK:   5,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	found := false
	for _, r := range results {
		if r.Memory.ID == res.MemoryID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the ingested memory among retrieve results")
	}
}

func TestIngestTier3BlocksPersonalSpeculation(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Ingest(ctx, ingestion.Request{
		Content:    "I think we should use Redis",
		MemoryType: core.MemoryTypeFact,
		Source:     core.SourceConversation,
		UserID:     "u1",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Tier != ingestion.TierBlock {
		t.Fatalf("tier = %v, want TierBlock", res.Tier)
	}
	if res.MemoryID != "" {
		t.Fatal("expected no memory stored on Tier 3 block")
	}
}

func TestIngestTier2ReviewApprovalRequiresOwner(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Ingest(ctx, ingestion.Request{
		Content:    "The server may timeout under load",
		MemoryType: core.MemoryTypeFact,
		Source:     core.SourceConversation,
		UserID:     "u1",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Tier != ingestion.TierReview {
		t.Fatalf("tier = %v, want TierReview", res.Tier)
	}
	if res.QueueID == "" {
		t.Fatal("expected a queue id on Tier 2")
	}

	if _, err := eng.ApproveReview(ctx, res.QueueID, "u2"); err == nil {
		t.Fatal("expected approval by a non-owner to fail")
	}

	id, err := eng.ApproveReview(ctx, res.QueueID, "u1")
	if err != nil {
		t.Fatalf("ApproveReview by owner: %v", err)
	}
	if _, err := eng.Store.Get(ctx, "u1", id); err != nil {
		t.Fatalf("Get after approval: %v", err)
	}
}

func TestIsolationAcrossUsers(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Ingest(ctx, ingestion.Request{
		Content:    "Per ADR-001, secret rollout plan",
		MemoryType: core.MemoryTypeDecision,
		Source:     core.SourceConversation,
		UserID:     "u1",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if _, err := eng.Store.Get(ctx, "u2", res.MemoryID); err == nil {
		t.Fatal("expected NotFound for a non-owner lookup")
	} else if core.CodeOf(err) != core.CodeNotFound {
		t.Fatalf("expected CodeNotFound, got %v", err)
	}

	results, err := eng.Retrieval.Retrieve(ctx, retrieval.Request{
		Query:  "secret rollout plan",
		UserID: "u2",
		Scope:  core.ScopeUser,
		TopK:   10,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no cross-user results, got %d", len(results))
	}
}

func TestAgentRegistryCapacityExceeded(t *testing.T) {
	eng := newTestEngine(t)
	cfg := config.Default()
	cfg.Capacity.Agents = 2
	eng2, err := New(cfg, Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng2.Close()
	_ = eng // keep the default-capacity engine's teardown on cleanup

	for i := 0; i < 2; i++ {
		a := &core.Agent{Type: core.AgentTypeClaudeCode, OwnerUserID: "u1", Active: true}
		if _, err := eng2.Agents.Register(a); err != nil {
			t.Fatalf("Register %d: %v", i, err)
		}
	}
	if _, err := eng2.Agents.Register(&core.Agent{Type: core.AgentTypeHuman, OwnerUserID: "u1", Active: true}); err == nil {
		t.Fatal("expected CapacityExceeded at the configured agent cap")
	} else if core.CodeOf(err) != core.CodeCapacityExceeded {
		t.Fatalf("expected CodeCapacityExceeded, got %v", err)
	}
}
