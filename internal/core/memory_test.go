package core

import (
	"testing"
	"time"
)

func TestScopeOrdering(t *testing.T) {
	if !ScopeAgentPrivate.Less(ScopeUser) {
		t.Fatal("agent_private should be < user")
	}
	if !ScopeUser.Less(ScopeProject) {
		t.Fatal("user should be < project")
	}
	if !ScopeProject.Less(ScopeTeam) {
		t.Fatal("project should be < team")
	}
	if !ScopeTeam.Less(ScopeGlobal) {
		t.Fatal("team should be < global")
	}
	if ScopeGlobal.Less(ScopeGlobal) {
		t.Fatal("global should not be < itself")
	}
}

func TestScopeBroaden(t *testing.T) {
	if ScopeUser.Broaden() != ScopeProject {
		t.Fatalf("expected project, got %v", ScopeUser.Broaden())
	}
	if ScopeGlobal.Broaden() != ScopeGlobal {
		t.Fatal("global should not broaden past itself")
	}
}

func TestMemoryValidateConfidenceBounds(t *testing.T) {
	now := time.Now()
	base := &Memory{UserID: "u1", Type: MemoryTypeFact, CreatedAt: now, LastAccessAt: now}

	base.Confidence = 0.0
	if err := base.Validate(); err != nil {
		t.Fatalf("confidence 0.0 should be valid: %v", err)
	}
	base.Confidence = 1.0
	if err := base.Validate(); err != nil {
		t.Fatalf("confidence 1.0 should be valid: %v", err)
	}
	base.Confidence = 1.01
	if err := base.Validate(); err == nil {
		t.Fatal("confidence > 1 should be invalid")
	}
}

func TestMemoryValidateTimestampOrdering(t *testing.T) {
	now := time.Now()
	m := &Memory{UserID: "u1", Type: MemoryTypeFact, CreatedAt: now, LastAccessAt: now.Add(-time.Hour)}
	if err := m.Validate(); err == nil {
		t.Fatal("created_at after last_access_at should be invalid")
	}
}

func TestMemoryValidateExpiryMustBeAfterCreation(t *testing.T) {
	now := time.Now()
	exp := now
	m := &Memory{UserID: "u1", Type: MemoryTypeFact, CreatedAt: now, LastAccessAt: now, ExpiresAt: &exp}
	if err := m.Validate(); err == nil {
		t.Fatal("expires_at == created_at should be invalid")
	}
}

func TestMemoryCloneIsIndependent(t *testing.T) {
	now := time.Now()
	m := &Memory{UserID: "u1", Type: MemoryTypeFact, CreatedAt: now, LastAccessAt: now, Metadata: map[string]any{"k": "v"}}
	cp := m.Clone()
	cp.Metadata["k"] = "mutated"
	if m.Metadata["k"] != "v" {
		t.Fatal("clone mutation leaked into original")
	}
}

func TestMemoryValidateBoundsRejectsOversizeContent(t *testing.T) {
	now := time.Now()
	m := &Memory{UserID: "u1", Type: MemoryTypeFact, CreatedAt: now, LastAccessAt: now, Content: "0123456789"}
	if err := m.ValidateBounds(5, 64); err == nil {
		t.Fatal("expected content bound violation")
	}
}
