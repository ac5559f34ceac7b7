package audit

import "testing"

func TestRecordChainsHashesAndVerifies(t *testing.T) {
	l := NewLogger(0)

	if _, err := l.Record(KindMemoryWrite, "u1", "mem:1", "store", OutcomeSuccess, map[string]any{"type": "fact"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := l.Record(KindMemoryInvalidate, "u1", "mem:1", "invalidate", OutcomeSuccess, nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if !l.Verify() {
		t.Fatal("expected hash chain to verify")
	}
	if l.Len() != 2 {
		t.Fatalf("expected 2 events, got %d", l.Len())
	}
}

func TestRecordRejectsCyclicMetadata(t *testing.T) {
	l := NewLogger(0)
	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	if _, err := l.Record(KindPermissionDenied, "u1", "pool:1", "join", OutcomeDenied, cyclic); err == nil {
		t.Fatal("expected cyclic metadata to be rejected")
	}
}

func TestBoundedEvictsOldest(t *testing.T) {
	l := NewLogger(2)
	first, _ := l.Record(KindAgentAuth, "a1", "agent:1", "auth", OutcomeSuccess, nil)
	_, _ = l.Record(KindAgentAuth, "a2", "agent:2", "auth", OutcomeSuccess, nil)
	_, _ = l.Record(KindAgentAuth, "a3", "agent:3", "auth", OutcomeSuccess, nil)

	if l.Len() != 2 {
		t.Fatalf("expected bound of 2 events retained, got %d", l.Len())
	}
	recent := l.Recent(10)
	for _, ev := range recent {
		if ev.Seq == first.Seq {
			t.Fatal("expected oldest event evicted")
		}
	}
}

func TestVerifyDetectsTamperedChain(t *testing.T) {
	l := NewLogger(0)
	_, _ = l.Record(KindHandoff, "a1", "handoff:1", "accept", OutcomeSuccess, nil)
	_, _ = l.Record(KindHandoff, "a1", "handoff:1", "complete", OutcomeSuccess, nil)

	el := l.order.Back()
	ev := el.Value.(*Event)
	ev.Actor = "tampered"

	if l.Verify() {
		t.Fatal("expected tampered event to fail verification")
	}
}
