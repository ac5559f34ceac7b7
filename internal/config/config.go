// Package config loads the engine's Configuration (spec §6) from YAML,
// mirroring the teacher's gopkg.in/yaml.v3 loading of teams.yaml
// (internal/agents.LoadTeamsConfig).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TokenBudget is the per-block token allocation table of spec §4.8.
type TokenBudget struct {
	System   int `yaml:"system"`
	Project  int `yaml:"project"`
	Task     int `yaml:"task"`
	History  int `yaml:"history"`
	Knowledge int `yaml:"knowledge"`
	UserQuery int `yaml:"user_query"`
	Response int `yaml:"response"`
	Safety   int `yaml:"safety"`
}

// Total returns the model context window implied by the budget.
func (b TokenBudget) Total() int {
	return b.System + b.Project + b.Task + b.History + b.Knowledge + b.UserQuery + b.Response + b.Safety
}

// The accessor methods below satisfy internal/contextblock.TokenBudgetProvider
// without that package importing internal/config directly.
func (b TokenBudget) SystemBudget() int    { return b.System }
func (b TokenBudget) ProjectBudget() int   { return b.Project }
func (b TokenBudget) TaskBudget() int      { return b.Task }
func (b TokenBudget) HistoryBudget() int   { return b.History }
func (b TokenBudget) KnowledgeBudget() int { return b.Knowledge }

// RRFWeights are the per-source Reciprocal Rank Fusion weights.
type RRFWeights struct {
	BM25   float64 `yaml:"bm25"`
	Vector float64 `yaml:"vector"`
}

// RankWeights are the retrieval tie-break weights (similarity, recency,
// confidence), summing to 1.0 by convention but not enforced as such.
type RankWeights struct {
	Similarity float64 `yaml:"similarity"`
	Recency    float64 `yaml:"recency"`
	Confidence float64 `yaml:"confidence"`
}

// Capacity is the bundle of hard caps from spec §4.9/§4.10/§4.3/§4.6.
type Capacity struct {
	Agents             int `yaml:"agents"`
	Sessions           int `yaml:"sessions"`
	Pools              int `yaml:"pools"`
	MembersPerPool     int `yaml:"members_per_pool"`
	SharedPerPool      int `yaml:"shared_per_pool"`
	Handoffs           int `yaml:"handoffs"`
	PendingPerTarget   int `yaml:"pending_per_target"`
	ReviewQueuePerUser int `yaml:"review_queue_per_user"`
	ReviewQueueTotal   int `yaml:"review_queue_total"`
	ReviewHistoryTotal int `yaml:"review_history_total"`
}

// CitationVerifiers configures the ingestion citation-verification plug-ins.
type CitationVerifiers struct {
	ADRPathGlob    string `yaml:"adr_path_glob"`
	GitDir         string `yaml:"git_dir"`
	HTTPTimeoutMS  int    `yaml:"http_timeout_ms"`
	IssueEndpoint  string `yaml:"issue_endpoint"`
}

// Timeouts configures the deadlines of every suspending operation (spec §5).
type Timeouts struct {
	ExtractMS int `yaml:"extract_ms"`
	EmbedMS   int `yaml:"embed_ms"`
	RerankMS  int `yaml:"rerank_ms"`
	HTTPMS    int `yaml:"http_ms"`
}

// Config is the full enumerated Configuration of spec §6.
type Config struct {
	MaxMemoryContentBytes     int `yaml:"max_memory_content_bytes"`
	MaxRawSourceBytes         int `yaml:"max_raw_source_bytes"`
	MaxMemoriesPerUser        int `yaml:"max_memories_per_user"`
	MaxProvenanceHistoryPerMemory int `yaml:"max_provenance_history_per_memory"`
	MaxAuditEvents            int `yaml:"max_audit_events"`

	BM25K1 float64 `yaml:"bm25_k1"`
	BM25B  float64 `yaml:"bm25_b"`

	RRFK       int        `yaml:"rrf_k"`
	RRFWeights RRFWeights `yaml:"rrf_weights"`

	RankWeights RankWeights `yaml:"rank_weights"`
	DecayLambda float64     `yaml:"decay_lambda"`

	DedupThresholdIngest float64 `yaml:"dedup_threshold_ingest"`
	DedupThresholdJanitor float64 `yaml:"dedup_threshold_janitor"`

	TokenBudget TokenBudget `yaml:"token_budget"`

	RerankEnabled bool `yaml:"rerank_enabled"`
	RerankTopN    int  `yaml:"rerank_top_n"`

	Capacity          Capacity          `yaml:"capacity"`
	CitationVerifiers CitationVerifiers `yaml:"citation_verifiers"`
	Timeouts          Timeouts          `yaml:"timeouts"`
}

// Default returns the Configuration with every default named in spec §6.
func Default() *Config {
	return &Config{
		MaxMemoryContentBytes:         64 * 1024,
		MaxRawSourceBytes:             64 * 1024,
		MaxMemoriesPerUser:            100_000,
		MaxProvenanceHistoryPerMemory: 1_000,
		MaxAuditEvents:                1_000_000,

		BM25K1: 1.2,
		BM25B:  0.75,

		RRFK:       60,
		RRFWeights: RRFWeights{BM25: 1.0, Vector: 1.0},

		RankWeights: RankWeights{Similarity: 0.5, Recency: 0.3, Confidence: 0.2},
		DecayLambda: 0.05,

		DedupThresholdIngest:  0.92,
		DedupThresholdJanitor: 0.85,

		TokenBudget: TokenBudget{
			System: 500, Project: 1000, Task: 500, History: 1000, Knowledge: 2000,
			UserQuery: 1000, Response: 2000, Safety: 192,
		},

		RerankEnabled: false,
		RerankTopN:    50,

		Capacity: Capacity{
			Agents: 10_000, Sessions: 50_000, Pools: 10_000,
			MembersPerPool: 1_000, SharedPerPool: 100_000,
			Handoffs: 50_000, PendingPerTarget: 100,
			ReviewQueuePerUser: 100, ReviewQueueTotal: 10_000, ReviewHistoryTotal: 10_000,
		},

		CitationVerifiers: CitationVerifiers{
			HTTPTimeoutMS: 5_000,
		},

		Timeouts: Timeouts{
			ExtractMS: 30_000, EmbedMS: 5_000, RerankMS: 30_000, HTTPMS: 5_000,
		},
	}
}

// Load reads Configuration overrides from a YAML file on top of Default(),
// mirroring the teacher's LoadTeamsConfig: read file, yaml.Unmarshal,
// propagate the raw error. An absent path is not an error — Default() is
// returned unchanged, so a fresh deployment needs no config file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
