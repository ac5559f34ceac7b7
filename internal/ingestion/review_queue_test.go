package ingestion

import (
	"testing"

	"github.com/memengine/core/internal/core"
)

func TestReviewQueueEnqueueAndGetByOwner(t *testing.T) {
	q := NewReviewQueue(0, 0, 0)
	id, err := q.Enqueue("u1", Request{Content: "x"}, Decision{Tier: TierReview})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	entry, err := q.GetByID(id, "u1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if entry.OwnerID != "u1" {
		t.Fatalf("unexpected owner: %s", entry.OwnerID)
	}
}

func TestReviewQueueGetByNonOwnerIsNotFound(t *testing.T) {
	q := NewReviewQueue(0, 0, 0)
	id, _ := q.Enqueue("u1", Request{Content: "x"}, Decision{Tier: TierReview})

	_, err := q.GetByID(id, "u2")
	if core.CodeOf(err) != core.CodeNotFound {
		t.Fatalf("expected CodeNotFound for non-owner access, got %v", err)
	}
}

func TestReviewQueuePerUserCapEnforced(t *testing.T) {
	q := NewReviewQueue(1, 10, 10)
	if _, err := q.Enqueue("u1", Request{}, Decision{}); err != nil {
		t.Fatalf("first enqueue should succeed: %v", err)
	}
	_, err := q.Enqueue("u1", Request{}, Decision{})
	if core.CodeOf(err) != core.CodeCapacityExceeded {
		t.Fatalf("expected CodeCapacityExceeded, got %v", err)
	}
}

func TestReviewQueueApproveStoresThenRemoves(t *testing.T) {
	q := NewReviewQueue(0, 0, 0)
	id, _ := q.Enqueue("u1", Request{Content: "hello"}, Decision{Tier: TierReview})

	var stored string
	err := q.Approve(id, "u1", func(req Request) error {
		stored = req.Content
		return nil
	})
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if stored != "hello" {
		t.Fatalf("expected store callback invoked with request content, got %q", stored)
	}

	if _, err := q.GetByID(id, "u1"); core.CodeOf(err) != core.CodeNotFound {
		t.Fatalf("expected entry removed after approval, got %v", err)
	}

	hist := q.History()
	if len(hist) != 1 || !hist[0].Approved {
		t.Fatalf("expected approved history entry, got %+v", hist)
	}
}

func TestReviewQueueApproveByNonOwnerFails(t *testing.T) {
	q := NewReviewQueue(0, 0, 0)
	id, _ := q.Enqueue("u1", Request{}, Decision{})

	err := q.Approve(id, "u2", func(Request) error { return nil })
	if core.CodeOf(err) != core.CodeNotFound {
		t.Fatalf("expected CodeNotFound, got %v", err)
	}
}

func TestReviewQueueReject(t *testing.T) {
	q := NewReviewQueue(0, 0, 0)
	id, _ := q.Enqueue("u1", Request{}, Decision{})

	if err := q.Reject(id, "u1", "not relevant"); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	hist := q.History()
	if len(hist) != 1 || hist[0].Approved || hist[0].Reason != "not relevant" {
		t.Fatalf("unexpected history: %+v", hist)
	}
}
