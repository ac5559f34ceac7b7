package agentregistry

import (
	"testing"

	"github.com/memengine/core/internal/core"
)

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry(0, 0)
	a := &core.Agent{Type: core.AgentTypeClaudeCode, OwnerUserID: "u1", Active: true, Capabilities: core.NewCapabilitySet(core.CapMemoryRead)}

	got, err := r.Register(a)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if got.ID.Empty() {
		t.Fatal("expected assigned ID")
	}

	fetched, err := r.Get(got.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.OwnerUserID != "u1" {
		t.Fatalf("unexpected owner: %s", fetched.OwnerUserID)
	}
}

func TestRegisterEnforcesCap(t *testing.T) {
	r := NewRegistry(1, 0)
	if _, err := r.Register(&core.Agent{OwnerUserID: "u1"}); err != nil {
		t.Fatalf("first register should succeed: %v", err)
	}
	_, err := r.Register(&core.Agent{OwnerUserID: "u2"})
	if core.CodeOf(err) != core.CodeCapacityExceeded {
		t.Fatalf("expected CodeCapacityExceeded, got %v", err)
	}
}

func TestHasCapabilityFalseForInactiveAgent(t *testing.T) {
	r := NewRegistry(0, 0)
	got, _ := r.Register(&core.Agent{OwnerUserID: "u1", Active: true, Capabilities: core.NewCapabilitySet(core.CapMemoryWrite)})

	if !r.HasCapability(got.ID, core.CapMemoryWrite) {
		t.Fatal("expected capability present")
	}
	if err := r.Deactivate(got.ID); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}
	if r.HasCapability(got.ID, core.CapMemoryWrite) {
		t.Fatal("expected capability check to fail for deactivated agent")
	}
}

func TestSessionCapEnforced(t *testing.T) {
	r := NewRegistry(0, 1)
	if _, err := r.OpenSession(); err != nil {
		t.Fatalf("first session should succeed: %v", err)
	}
	_, err := r.OpenSession()
	if core.CodeOf(err) != core.CodeCapacityExceeded {
		t.Fatalf("expected CodeCapacityExceeded, got %v", err)
	}
}

func TestCloseSessionFreesCapacity(t *testing.T) {
	r := NewRegistry(0, 1)
	id, _ := r.OpenSession()
	r.CloseSession(id)
	if _, err := r.OpenSession(); err != nil {
		t.Fatalf("expected capacity freed after close, got %v", err)
	}
}
