package ingestion

import "testing"

func TestClassifyHedgeBlock(t *testing.T) {
	if got := ClassifyHedge("I think the service is down"); got != HedgeBlock {
		t.Fatalf("expected HedgeBlock, got %v", got)
	}
}

func TestClassifyHedgeReview(t *testing.T) {
	if got := ClassifyHedge("the service may be slow under load"); got != HedgeReview {
		t.Fatalf("expected HedgeReview, got %v", got)
	}
}

func TestClassifyHedgeNone(t *testing.T) {
	if got := ClassifyHedge("the service is down"); got != HedgeNone {
		t.Fatalf("expected HedgeNone, got %v", got)
	}
}

func TestClassifyHedgeWholeWordNotSubstring(t *testing.T) {
	if got := ClassifyHedge("mayonnaise is a condiment"); got != HedgeNone {
		t.Fatalf("expected substring 'may' inside 'mayonnaise' to not match, got %v", got)
	}
}

func TestClassifyHedgeBlockOutranksReview(t *testing.T) {
	if got := ClassifyHedge("I think it might be slow"); got != HedgeBlock {
		t.Fatalf("expected block phrase to outrank review phrase, got %v", got)
	}
}
