package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNoOpPreservesPositionalOrder(t *testing.T) {
	pairs := []Pair{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	scores, err := NoOp{}.Rerank(context.Background(), "q", pairs)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	if !(scores["a"] > scores["b"] && scores["b"] > scores["c"]) {
		t.Fatalf("expected descending positional scores, got %+v", scores)
	}
}

func TestHTTPRerankerParsesScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode([]scoredPair{
			{ID: "x", Score: 0.9},
			{ID: "y", Score: 0.1},
		})
	}))
	defer srv.Close()

	reranker := NewHTTPReranker(srv.Client(), srv.URL, time.Second)
	scores, err := reranker.Rerank(context.Background(), "query", []Pair{{ID: "x", Content: "a"}, {ID: "y", Content: "b"}})
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	if scores["x"] != 0.9 || scores["y"] != 0.1 {
		t.Fatalf("unexpected scores: %+v", scores)
	}
}

func TestHTTPRerankerNonOKStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reranker := NewHTTPReranker(srv.Client(), srv.URL, time.Second)
	if _, err := reranker.Rerank(context.Background(), "query", []Pair{{ID: "x"}}); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
