package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPReranker calls a configured cross-encoder endpoint with the
// timeouts.rerank_ms deadline (spec §5), POSTing the query and candidate
// pairs and expecting a JSON array of {id, score} back.
type HTTPReranker struct {
	Client   *http.Client
	Endpoint string
	Timeout  time.Duration
}

// NewHTTPReranker constructs a reranker client. A zero Timeout defaults
// to 30s, matching internal/config.Timeouts.RerankMS's default.
func NewHTTPReranker(client *http.Client, endpoint string, timeout time.Duration) *HTTPReranker {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPReranker{Client: client, Endpoint: endpoint, Timeout: timeout}
}

type rerankRequest struct {
	Query string `json:"query"`
	Pairs []Pair `json:"pairs"`
}

type scoredPair struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func (h *HTTPReranker) Rerank(ctx context.Context, query string, pairs []Pair) (map[string]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	body, err := json.Marshal(rerankRequest{Query: query, Pairs: pairs})
	if err != nil {
		return nil, fmt.Errorf("rerank: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rerank: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank: endpoint returned status %d", resp.StatusCode)
	}

	var scored []scoredPair
	if err := json.NewDecoder(resp.Body).Decode(&scored); err != nil {
		return nil, fmt.Errorf("rerank: decode response: %w", err)
	}

	out := make(map[string]float64, len(scored))
	for _, s := range scored {
		out[s.ID] = s.Score
	}
	return out, nil
}
