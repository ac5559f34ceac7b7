package agentregistry

import (
	"testing"

	"github.com/memengine/core/internal/core"
)

func TestCreateJoinShareQueryRoundTrip(t *testing.T) {
	reg := NewRegistry(0, 0)
	agent, _ := reg.Register(&core.Agent{OwnerUserID: "u1", Active: true})

	pools := NewPools(reg, 0, 0, 0)
	pool, err := pools.Create("team-pool", "u1", core.ScopeProject)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := pools.JoinPool(pool.ID, agent.ID, core.PermWrite); err != nil {
		t.Fatalf("JoinPool failed: %v", err)
	}

	memID := core.NewID()
	effScope, err := pools.ShareMemory(pool.ID, agent.ID, core.ScopeGlobal, memID)
	if err != nil {
		t.Fatalf("ShareMemory failed: %v", err)
	}
	if effScope != core.ScopeProject {
		t.Fatalf("expected share clamped to min(pool scope, agent scope) = project, got %s", effScope)
	}

	shared, err := pools.QuerySharedAtScope(pool.ID, core.ScopeGlobal)
	if err != nil {
		t.Fatalf("QuerySharedAtScope failed: %v", err)
	}
	if len(shared) != 1 || shared[0] != memID {
		t.Fatalf("expected shared memory visible at broader scope, got %+v", shared)
	}
}

func TestJoinPoolRejectsUnregisteredAgent(t *testing.T) {
	reg := NewRegistry(0, 0)
	pools := NewPools(reg, 0, 0, 0)
	pool, _ := pools.Create("p", "u1", core.ScopeUser)

	err := pools.JoinPool(pool.ID, core.NewID(), core.PermRead)
	if core.CodeOf(err) != core.CodeInvalidInput {
		t.Fatalf("expected CodeInvalidInput for unregistered agent, got %v", err)
	}
}

func TestShareMemoryDeniesReadOnlyMember(t *testing.T) {
	reg := NewRegistry(0, 0)
	agent, _ := reg.Register(&core.Agent{OwnerUserID: "u1", Active: true})
	pools := NewPools(reg, 0, 0, 0)
	pool, _ := pools.Create("p", "u1", core.ScopeUser)
	_ = pools.JoinPool(pool.ID, agent.ID, core.PermRead)

	_, err := pools.ShareMemory(pool.ID, agent.ID, core.ScopeUser, core.NewID())
	if core.CodeOf(err) != core.CodePermissionDenied {
		t.Fatalf("expected CodePermissionDenied for read-only member, got %v", err)
	}
}

func TestQuerySharedAtScopeDeniesNarrowerReader(t *testing.T) {
	reg := NewRegistry(0, 0)
	pools := NewPools(reg, 0, 0, 0)
	pool, _ := pools.Create("p", "u1", core.ScopeGlobal)

	_, err := pools.QuerySharedAtScope(pool.ID, core.ScopeUser)
	if core.CodeOf(err) != core.CodePermissionDenied {
		t.Fatalf("expected CodePermissionDenied for reader narrower than pool scope, got %v", err)
	}
}

func TestMembersPerPoolCapEnforced(t *testing.T) {
	reg := NewRegistry(0, 0)
	pools := NewPools(reg, 0, 1, 0)
	pool, _ := pools.Create("p", "u1", core.ScopeUser)

	a1, _ := reg.Register(&core.Agent{OwnerUserID: "u1", Active: true})
	a2, _ := reg.Register(&core.Agent{OwnerUserID: "u1", Active: true})

	if err := pools.JoinPool(pool.ID, a1.ID, core.PermRead); err != nil {
		t.Fatalf("first join should succeed: %v", err)
	}
	err := pools.JoinPool(pool.ID, a2.ID, core.PermRead)
	if core.CodeOf(err) != core.CodeCapacityExceeded {
		t.Fatalf("expected CodeCapacityExceeded, got %v", err)
	}
}
