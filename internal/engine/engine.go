// Package engine wires the memory engine's components into the single
// collaborator graph spec §2 describes: memory store, provenance, the
// ingestion and extraction pipelines, janitor, hybrid retrieval, context
// assembly, agent registry/pools, handoffs, audit, and notification. It
// is the one place that instantiates every subsystem — callers (cmd/
// binaries, tests) construct an Engine instead of wiring packages by
// hand, mirroring the teacher's own cmd/cliaimonitor "initialize
// components, then build the server" assembly style.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/memengine/core/internal/agentregistry"
	"github.com/memengine/core/internal/audit"
	"github.com/memengine/core/internal/config"
	"github.com/memengine/core/internal/contextblock"
	"github.com/memengine/core/internal/core"
	"github.com/memengine/core/internal/extraction"
	"github.com/memengine/core/internal/handoff"
	"github.com/memengine/core/internal/ingestion"
	"github.com/memengine/core/internal/ingestion/citation"
	"github.com/memengine/core/internal/janitor"
	"github.com/memengine/core/internal/jobs"
	"github.com/memengine/core/internal/memstore"
	"github.com/memengine/core/internal/memstore/vectorindex"
	"github.com/memengine/core/internal/notify"
	"github.com/memengine/core/internal/provenance"
	"github.com/memengine/core/internal/retrieval"
	"github.com/memengine/core/internal/retrieval/rerank"
)

// Engine is the fully wired memory engine core. Every field is a
// collaborator reference, not an ambient global (spec §9 "avoid ambient
// globals"), so a test can build an isolated Engine with a temp dir.
type Engine struct {
	Config  *config.Config
	dataDir string

	Store   *memstore.SQLiteMemoryStore
	Vectors vectorindex.VectorIndex
	Embedder retrieval.Embedder

	Provenance *provenance.Service
	Audit      *audit.Logger
	Notify     *notify.Manager

	Ingestion   *ingestion.Pipeline
	ReviewQueue *ingestion.ReviewQueue

	Janitor        *janitor.Janitor
	JanitorService *janitor.Service

	Retrieval *retrieval.Pipeline
	Blocks    *contextblock.Assembler

	Agents *agentregistry.Registry
	Pools  *agentregistry.Pools
	Handoffs *handoff.Manager

	jobServer  *jobs.EmbeddedServer
	extraction *extraction.Service
}

// Options configures an Engine's runtime dependencies: where durable
// state lives and which optional external plug-ins are active.
type Options struct {
	DataDir      string // required; holds memory.db and the job broker's JetStream store
	JobsPort     int    // embedded NATS port, default 4222
	GitDir       string // local repo root for GitCommitVerifier, default "."
	ADRPathGlob  string // default "docs/adr/*.md"
	IssueEndpoint string // optional
	Notify       notify.Config
}

// New constructs every collaborator per cfg and opts, but starts nothing
// asynchronous (no ticking janitor, no job worker) — call Start for that.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.DataDir == "" {
		return nil, fmt.Errorf("engine: DataDir is required")
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create data dir: %w", err)
	}
	if opts.GitDir == "" {
		opts.GitDir = "."
	}
	if opts.ADRPathGlob == "" {
		opts.ADRPathGlob = "docs/adr/*.md"
	}

	prov := provenance.NewService(cfg.MaxMemoriesPerUser, cfg.MaxProvenanceHistoryPerMemory)

	store, err := memstore.Open(filepath.Join(opts.DataDir, "memory.db"), memstore.Options{
		MaxMemoriesPerUser: cfg.MaxMemoriesPerUser,
		MaxContentBytes:    cfg.MaxMemoryContentBytes,
		MaxRawSourceBytes:  cfg.MaxRawSourceBytes,
		BM25K1:             cfg.BM25K1,
		BM25B:              cfg.BM25B,
		Provenance:         prov,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: open memstore: %w", err)
	}

	vectors := vectorindex.NewInMemory(cfg.MaxMemoriesPerUser)
	embedder := HashEmbedder{Dim: 64}

	auditLog := audit.NewLogger(cfg.MaxAuditEvents)
	notifier := notify.NewManager(opts.Notify)

	verifiers := map[citation.Kind]citation.Verifier{
		citation.KindADR:    &citation.ADRVerifier{PathGlob: opts.ADRPathGlob},
		citation.KindCommit: &citation.GitCommitVerifier{RepoDir: opts.GitDir},
		citation.KindURL:    &citation.URLVerifier{Timeout: time.Duration(cfg.Timeouts.HTTPMS) * time.Millisecond},
	}
	if opts.IssueEndpoint != "" {
		verifiers[citation.KindIssue] = &citation.IssueVerifier{
			Endpoint: opts.IssueEndpoint,
			Timeout:  time.Duration(cfg.Timeouts.HTTPMS) * time.Millisecond,
		}
	}
	router := citation.NewRouter(verifiers, 5, 10)

	lister := contentLister{store: store}
	ingestPipeline := ingestion.NewPipeline(lister, router, cfg.DedupThresholdIngest)
	reviewQueue := ingestion.NewReviewQueue(
		cfg.Capacity.ReviewQueuePerUser, cfg.Capacity.ReviewQueueTotal, cfg.Capacity.ReviewHistoryTotal,
	)

	jan := janitor.New(store, prov, reviewQueue, janitor.KeywordNegationDetector{}, cfg.DedupThresholdJanitor)

	var reranker rerank.Reranker = rerank.NoOp{}
	if cfg.RerankEnabled {
		reranker = rerank.NewHTTPReranker(nil, "", time.Duration(cfg.Timeouts.RerankMS)*time.Millisecond)
	}
	retrievalPipeline := retrieval.New(store, vectors, embedder, store, reranker, prov, retrieval.Weights{
		RRFK:        cfg.RRFK,
		RRFBM25:     cfg.RRFWeights.BM25,
		RRFVector:   cfg.RRFWeights.Vector,
		Similarity:  cfg.RankWeights.Similarity,
		Recency:     cfg.RankWeights.Recency,
		Confidence:  cfg.RankWeights.Confidence,
		DecayLambda: cfg.DecayLambda,
	})

	blocks := contextblock.New(cfg.TokenBudget, contextblock.WhitespaceTokenizer{})

	registry := agentregistry.NewRegistry(cfg.Capacity.Agents, cfg.Capacity.Sessions)
	pools := agentregistry.NewPools(registry, cfg.Capacity.Pools, cfg.Capacity.MembersPerPool, cfg.Capacity.SharedPerPool)
	handoffs := handoff.NewManager(registry, cfg.Capacity.Handoffs, cfg.Capacity.PendingPerTarget)

	return &Engine{
		Config:         cfg,
		dataDir:        opts.DataDir,
		Store:          store,
		Vectors:        vectors,
		Embedder:       embedder,
		Provenance:     prov,
		Audit:          auditLog,
		Notify:         notifier,
		Ingestion:      ingestPipeline,
		ReviewQueue:    reviewQueue,
		Janitor:        jan,
		JanitorService: janitor.NewService(jan, store.ListUsers, 10*time.Minute, false),
		Retrieval:      retrievalPipeline,
		Blocks:         blocks,
		Agents:         registry,
		Pools:          pools,
		Handoffs:       handoffs,
	}, nil
}

// EnableAsyncExtraction wires an embedded NATS/JetStream broker and the
// extraction pipeline's submit/worker substrate onto the Engine (spec
// §4.4). It is optional: an Engine built without it can still ingest
// memories synchronously via Ingest; this only adds the asynchronous
// "submit raw text, results land later" path.
func (e *Engine) EnableAsyncExtraction(ctx context.Context, port int, version int, sink extraction.ResultSink) error {
	if port <= 0 {
		port = 4222
	}
	srv, err := jobs.NewEmbeddedServer(jobs.EmbeddedServerConfig{
		Port:      port,
		JetStream: true,
		DataDir:   filepath.Join(e.dataDir, "jetstream"),
	})
	if err != nil {
		return fmt.Errorf("engine: create embedded job server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("engine: start embedded job server: %w", err)
	}

	conn, err := srv.Connect()
	if err != nil {
		srv.Shutdown()
		return fmt.Errorf("engine: connect to embedded job server: %w", err)
	}
	streams, err := jobs.NewStreamManager(conn)
	if err != nil {
		srv.Shutdown()
		return fmt.Errorf("engine: stream manager: %w", err)
	}
	if err := streams.SetupStreams(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("engine: setup streams: %w", err)
	}
	submitter, err := jobs.NewSubmitter(conn)
	if err != nil {
		srv.Shutdown()
		return fmt.Errorf("engine: submitter: %w", err)
	}

	extractor := extraction.NewHeuristicExtractor(version)
	svc := extraction.NewService(submitter, extractor, sink, e.Config.Capacity.ReviewQueueTotal)

	js, err := conn.JetStream()
	if err != nil {
		srv.Shutdown()
		return fmt.Errorf("engine: jetstream context: %w", err)
	}
	pool, err := jobs.NewWorkerPool(js, jobs.KindExtraction, 4, svc.Handler())
	if err != nil {
		srv.Shutdown()
		return fmt.Errorf("engine: worker pool: %w", err)
	}
	go pool.Run(ctx)

	e.jobServer = srv
	e.extraction = svc
	return nil
}

// Extraction returns the extraction service, or nil if
// EnableAsyncExtraction was never called.
func (e *Engine) Extraction() *extraction.Service { return e.extraction }

// Start runs the janitor's ticking consolidation loop until ctx is
// cancelled. Call in a goroutine.
func (e *Engine) Start(ctx context.Context) {
	e.JanitorService.Start(ctx)
}

// Close releases every resource the Engine owns: the SQLite store, the
// vector index, and (if enabled) the embedded job broker.
func (e *Engine) Close() error {
	if e.jobServer != nil {
		e.jobServer.Shutdown()
	}
	_ = e.Vectors.Close()
	return e.Store.Close()
}

// contentLister adapts memstore's ListByUser to ingestion's narrower
// ExistingMemoryLister (content strings only), so the ingestion package
// does not need to import memstore's row type.
type contentLister struct {
	store *memstore.SQLiteMemoryStore
}

func (c contentLister) ListContent(ctx context.Context, userID string, memType core.MemoryType) ([]string, error) {
	mems, err := c.store.ListByUser(ctx, userID, memType)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(mems))
	for i, m := range mems {
		out[i] = m.Content
	}
	return out, nil
}
