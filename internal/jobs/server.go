// Package jobs is the bounded asynchronous work substrate backing
// extraction, rerank, and janitor submissions (spec §4.4): an embedded
// NATS server running JetStream, with a work-queue stream per job kind.
package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// EmbeddedServerConfig configures the in-process NATS server, grounded on
// the teacher's internal/nats.EmbeddedServerConfig.
type EmbeddedServerConfig struct {
	Port      int
	JetStream bool
	DataDir   string
}

// EmbeddedServer wraps an in-process *server.Server so the engine needs no
// external broker for its bounded job queues.
type EmbeddedServer struct {
	server  *server.Server
	config  EmbeddedServerConfig
	mu      sync.RWMutex
	running bool
}

// NewEmbeddedServer constructs a server instance. DataDir is required when
// JetStream is enabled, since work-queue streams need file-backed storage
// to survive a restart.
func NewEmbeddedServer(cfg EmbeddedServerConfig) (*EmbeddedServer, error) {
	if cfg.Port <= 0 {
		cfg.Port = 4222
	}
	if cfg.JetStream && cfg.DataDir == "" {
		return nil, fmt.Errorf("jobs: DataDir is required when JetStream is enabled")
	}
	return &EmbeddedServer{config: cfg}, nil
}

// Start launches the embedded server and blocks until it is ready for
// connections.
func (e *EmbeddedServer) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("jobs: server already running")
	}

	opts := &server.Options{
		Host:       "127.0.0.1",
		Port:       e.config.Port,
		NoSigs:     true,
		MaxPayload: 4 * 1024 * 1024,
	}
	if e.config.JetStream {
		opts.JetStream = true
		opts.StoreDir = e.config.DataDir
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("jobs: create embedded nats server: %w", err)
	}

	e.server = ns
	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		return fmt.Errorf("jobs: embedded nats server not ready for connections")
	}
	e.running = true
	return nil
}

// Shutdown gracefully stops the server.
func (e *EmbeddedServer) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.server == nil {
		return
	}
	e.server.Shutdown()
	e.server.WaitForShutdown()
	e.running = false
	e.server = nil
}

// URL returns the in-process connection URL.
func (e *EmbeddedServer) URL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fmt.Sprintf("nats://127.0.0.1:%d", e.config.Port)
}

// Connect dials the embedded server.
func (e *EmbeddedServer) Connect() (*nats.Conn, error) {
	return nats.Connect(e.URL())
}
