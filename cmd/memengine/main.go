// Command memengine boots the memory engine core: it wires every
// collaborator (memory store, provenance, ingestion/extraction, janitor,
// hybrid retrieval, context assembly, agent registry, handoffs) via
// internal/engine, runs a brief self-check ingest/retrieve against its
// own seed memory, then starts the janitor's background consolidation
// loop until interrupted. Apart from the loopback NATS listener that
// -async-extraction starts for its job queue, it exposes no network
// surface itself — the tool-dispatch/MCP surface that would sit in front of this process is
// an external collaborator (spec §1), out of scope for the core.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memengine/core/internal/config"
	"github.com/memengine/core/internal/core"
	"github.com/memengine/core/internal/engine"
	"github.com/memengine/core/internal/extraction"
	"github.com/memengine/core/internal/ingestion"
	"github.com/memengine/core/internal/notify"
	"github.com/memengine/core/internal/retrieval"
)

const colorGreen = "\033[32m"
const colorReset = "\033[0m"

func main() {
	dataDir := flag.String("data", "data", "Directory for durable engine state (SQLite store, job broker)")
	configPath := flag.String("config", "", "Optional YAML configuration override file")
	jobsPort := flag.Int("jobs-port", 4222, "Embedded NATS/JetStream port for async extraction")
	enableAsync := flag.Bool("async-extraction", false, "Start the embedded job broker and extraction worker pool")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	eng, err := engine.New(cfg, engine.Options{
		DataDir: *dataDir,
		Notify:  notify.Config{EnableTerminal: true},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize engine: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	fmt.Print(colorGreen)
	fmt.Println("  Memory engine initialized (store, provenance, ingestion, retrieval, agents)")
	fmt.Print(colorReset)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *enableAsync {
		sink := func(_ context.Context, req extraction.Request, candidates []extraction.Candidate) {
			log.Printf("[EXTRACT] user=%s candidates=%d", req.UserID, len(candidates))
		}
		if err := eng.EnableAsyncExtraction(ctx, *jobsPort, 1, sink); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: async extraction disabled: %v\n", err)
		} else {
			fmt.Println("  Async extraction worker pool running")
		}
	}

	if err := registerDemoAgent(eng); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: demo agent registration failed: %v\n", err)
	}

	if err := selfCheck(ctx, eng); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: self-check failed: %v\n", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go eng.Start(ctx)
	fmt.Println("  Janitor consolidation loop running (interval: 10m)")
	fmt.Println("  Ready. Press Ctrl+C to stop.")

	<-shutdown
	fmt.Println("\n  Shutting down...")
	cancel()
	time.Sleep(200 * time.Millisecond)
}

// registerDemoAgent registers a single seed agent so the registry is not
// empty on first boot, mirroring the teacher's practice of registering
// its own captain instance at startup.
func registerDemoAgent(eng *engine.Engine) error {
	a := &core.Agent{
		Type:         core.AgentTypeClaudeCode,
		OwnerUserID:  "selfcheck-user",
		Active:       true,
		Capabilities: core.NewCapabilitySet(core.CapMemoryRead, core.CapMemoryWrite),
	}
	registered, err := eng.Agents.Register(a)
	if err != nil {
		return err
	}
	fmt.Printf("  Registered seed agent %s\n", registered.ID)
	return nil
}

// selfCheck exercises the ingest -> retrieve path once at startup
// against a synthetic user, the same role the teacher's own pre-flight
// health checks play before accepting real traffic.
func selfCheck(ctx context.Context, eng *engine.Engine) error {
	const userID = "selfcheck-user"
	res, err := eng.Ingest(ctx, ingestion.Request{
		Content:    "Per ADR-000, the engine self-check writes this memory at startup",
		MemoryType: core.MemoryTypeDecision,
		Source:     core.SourceConversation,
		UserID:     userID,
	})
	if err != nil {
		return fmt.Errorf("self-check ingest: %w", err)
	}
	fmt.Printf("  Self-check ingest tier=%d reason=%s\n", res.Tier, res.Decision.Reason)

	results, err := eng.Retrieval.Retrieve(ctx, retrieval.Request{
		Query:  "self-check",
		UserID: userID,
		Scope:  core.ScopeUser,
		TopK:   5,
	})
	if err != nil {
		return fmt.Errorf("self-check retrieve: %w", err)
	}
	fmt.Printf("  Self-check retrieve returned %d result(s)\n", len(results))
	return nil
}
