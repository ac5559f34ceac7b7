package extraction

import (
	"context"
	"sync"
	"testing"

	"github.com/memengine/core/internal/core"
	"github.com/memengine/core/internal/jobs"
)

func TestHeuristicExtractorIsDeterministic(t *testing.T) {
	e := NewHeuristicExtractor(1)
	req := Request{UserID: "u1", RawText: "We decided to use postgres. I prefer dark mode. The server restarts nightly."}

	first, err := e.Extract(context.Background(), req)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	second, err := e.Extract(context.Background(), req)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected deterministic candidate count, got %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("expected identical candidate at %d, got %+v vs %+v", i, first[i], second[i])
		}
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(first))
	}
	if first[0].Type != core.MemoryTypeDecision {
		t.Fatalf("expected first sentence classified as decision, got %v", first[0].Type)
	}
	if first[1].Type != core.MemoryTypePreference {
		t.Fatalf("expected second sentence classified as preference, got %v", first[1].Type)
	}
	if first[2].Type != core.MemoryTypeFact {
		t.Fatalf("expected third sentence classified as fact, got %v", first[2].Type)
	}
}

type fakeSubmitter struct {
	mu   sync.Mutex
	jobs []jobs.Job
	full bool
}

func (f *fakeSubmitter) Submit(ctx context.Context, job jobs.Job) error {
	if f.full {
		return core.NewError("fakeSubmitter.Submit", core.CodeCapacityExceeded, nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func TestServiceSubmitTracksPendingThenHandlerCompletes(t *testing.T) {
	sub := &fakeSubmitter{}
	var sunk []Candidate
	svc := NewService(sub, NewHeuristicExtractor(1), func(ctx context.Context, req Request, candidates []Candidate) {
		sunk = candidates
	}, 0)

	id, err := svc.Submit(context.Background(), Request{UserID: "u1", RawText: "I prefer tabs over spaces."})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	rec, ok := svc.Get(id)
	if !ok || rec.Status != StatusPending {
		t.Fatalf("expected pending record, got %+v (ok=%v)", rec, ok)
	}
	if len(sub.jobs) != 1 {
		t.Fatalf("expected one submitted job, got %d", len(sub.jobs))
	}

	handler := svc.Handler()
	if err := handler(context.Background(), sub.jobs[0].Payload); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	rec, ok = svc.Get(id)
	if !ok || rec.Status != StatusCompleted {
		t.Fatalf("expected completed record, got %+v (ok=%v)", rec, ok)
	}
	if len(sunk) != 1 || sunk[0].Type != core.MemoryTypePreference {
		t.Fatalf("expected sink to receive one preference candidate, got %+v", sunk)
	}
}

func TestServiceSubmitPropagatesCapacityError(t *testing.T) {
	sub := &fakeSubmitter{full: true}
	svc := NewService(sub, NewHeuristicExtractor(1), nil, 0)

	_, err := svc.Submit(context.Background(), Request{UserID: "u1", RawText: "x"})
	if core.CodeOf(err) != core.CodeCapacityExceeded {
		t.Fatalf("expected CodeCapacityExceeded, got %v", err)
	}
}

func TestServiceEnforcesJobCap(t *testing.T) {
	sub := &fakeSubmitter{}
	svc := NewService(sub, NewHeuristicExtractor(1), nil, 1)

	if _, err := svc.Submit(context.Background(), Request{UserID: "u1", RawText: "a"}); err != nil {
		t.Fatalf("first submit should succeed: %v", err)
	}
	_, err := svc.Submit(context.Background(), Request{UserID: "u1", RawText: "b"})
	if core.CodeOf(err) != core.CodeCapacityExceeded {
		t.Fatalf("expected CodeCapacityExceeded at job cap, got %v", err)
	}
}
