// Package agentregistry implements the Agent Registry and Pools
// component of spec §4.9: agent identities with capability sets, scoped
// shared pools, and scope-hierarchy enforcement on every share.
package agentregistry

import (
	"sync"
	"time"

	"github.com/memengine/core/internal/core"
)

// Registry holds registered Agent identities, bounded by a global cap
// (spec default 10,000), guarded by a single RWMutex the way the
// teacher's MetricsCollector guards its agent map.
type Registry struct {
	mu       sync.RWMutex
	agents   map[core.ID]*core.Agent
	sessions map[core.ID]struct{} // active session identifiers, bounded separately
	maxAgents   int
	maxSessions int
}

// NewRegistry constructs a Registry bounded at maxAgents/maxSessions
// (<=0 uses the spec defaults 10,000/50,000).
func NewRegistry(maxAgents, maxSessions int) *Registry {
	if maxAgents <= 0 {
		maxAgents = 10_000
	}
	if maxSessions <= 0 {
		maxSessions = 50_000
	}
	return &Registry{
		agents:      make(map[core.ID]*core.Agent),
		sessions:    make(map[core.ID]struct{}),
		maxAgents:   maxAgents,
		maxSessions: maxSessions,
	}
}

// Register adds a new agent identity, deep-copying it in so later
// mutation of the caller's struct cannot affect registry state.
func (r *Registry) Register(a *core.Agent) (*core.Agent, error) {
	if a.OwnerUserID == "" {
		return nil, core.NewError("agentregistry.Register", core.CodeInvalidInput, errOwnerRequired)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.agents) >= r.maxAgents {
		return nil, core.NewError("agentregistry.Register", core.CodeCapacityExceeded, nil)
	}

	a = a.Clone()
	if a.ID.Empty() {
		a.ID = core.NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	r.agents[a.ID] = a
	return a.Clone(), nil
}

// Get returns a deep copy of the agent, or CodeNotFound.
func (r *Registry) Get(id core.ID) (*core.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, core.NewError("agentregistry.Get", core.CodeNotFound, nil)
	}
	return a.Clone(), nil
}

// Deactivate flips the agent's active flag to false.
func (r *Registry) Deactivate(id core.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return core.NewError("agentregistry.Deactivate", core.CodeNotFound, nil)
	}
	a.Active = false
	return nil
}

// HasCapability reports whether id holds cap, returning false (not an
// error) for an unknown agent so callers can fail closed with one check.
func (r *Registry) HasCapability(id core.ID, cap core.Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok || !a.Active {
		return false
	}
	return a.Capabilities.Has(cap)
}

// OpenSession registers a new active session, bounded by maxSessions.
func (r *Registry) OpenSession() (core.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.maxSessions {
		return "", core.NewError("agentregistry.OpenSession", core.CodeCapacityExceeded, nil)
	}
	id := core.NewID()
	r.sessions[id] = struct{}{}
	return id, nil
}

// CloseSession releases a session identifier.
func (r *Registry) CloseSession(id core.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// SessionCount reports the number of currently open sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

var errOwnerRequired = simpleErr("agent must have an owning user")
