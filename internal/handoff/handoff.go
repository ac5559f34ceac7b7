// Package handoff implements the typed task-handoff state machine of
// spec §4.10: pending -> accepted -> completed, with reject/expire
// transitions out of pending or accepted, bounded globally and per
// target agent.
package handoff

import (
	"sync"
	"time"

	"github.com/memengine/core/internal/core"
)

// CapabilityChecker is the narrow seam onto internal/agentregistry a
// Manager needs: whether an agent currently holds a capability.
type CapabilityChecker interface {
	HasCapability(id core.ID, cap core.Capability) bool
}

// Manager governs the handoff lifecycle, bounded by a global cap and a
// per-target-agent pending cap (spec defaults 50,000 / 100).
type Manager struct {
	mu    sync.Mutex
	caps  CapabilityChecker
	byID  map[core.ID]*core.Handoff

	maxTotal          int
	maxPendingPerTarget int
}

// NewManager wires a Manager to a capability checker (typically an
// *agentregistry.Registry). maxTotal/maxPendingPerTarget <= 0 use the
// spec defaults.
func NewManager(caps CapabilityChecker, maxTotal, maxPendingPerTarget int) *Manager {
	if maxTotal <= 0 {
		maxTotal = 50_000
	}
	if maxPendingPerTarget <= 0 {
		maxPendingPerTarget = 100
	}
	return &Manager{
		caps:                caps,
		byID:                make(map[core.ID]*core.Handoff),
		maxTotal:            maxTotal,
		maxPendingPerTarget: maxPendingPerTarget,
	}
}

// Initiate creates a new pending handoff from source to target. The
// source must hold CapHandoffInitiate and the target CapHandoffReceive
// (spec §4.10: "a handoff cannot be initiated to or from an agent
// lacking the matching capability").
func (m *Manager) Initiate(source, target core.ID, ctx core.HandoffContext, ttl time.Duration) (*core.Handoff, error) {
	if m.caps != nil {
		if !m.caps.HasCapability(source, core.CapHandoffInitiate) {
			return nil, core.NewError("handoff.Initiate", core.CodePermissionDenied, nil)
		}
		if !m.caps.HasCapability(target, core.CapHandoffReceive) {
			return nil, core.NewError("handoff.Initiate", core.CodePermissionDenied, nil)
		}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.byID) >= m.maxTotal {
		return nil, core.NewError("handoff.Initiate", core.CodeCapacityExceeded, nil)
	}
	if m.countPendingForTargetLocked(target) >= m.maxPendingPerTarget {
		return nil, core.NewError("handoff.Initiate", core.CodeCapacityExceeded, nil)
	}

	now := time.Now().UTC()
	h := &core.Handoff{
		ID:          core.NewID(),
		SourceAgent: source,
		TargetAgent: target,
		Context:     ctx,
		State:       core.HandoffPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		TTL:         ttl,
	}
	m.byID[h.ID] = h
	return h.Clone(), nil
}

// Accept transitions a pending handoff to accepted. Only the target
// agent may accept.
func (m *Manager) Accept(id core.ID, actingAgent core.ID) (*core.Handoff, error) {
	return m.transition(id, actingAgent, core.HandoffPending, core.HandoffAccepted, "")
}

// Complete transitions an accepted handoff to completed, recording
// result text.
func (m *Manager) Complete(id core.ID, actingAgent core.ID, result string) (*core.Handoff, error) {
	return m.transition(id, actingAgent, core.HandoffAccepted, core.HandoffCompleted, result)
}

// Reject transitions a pending or accepted handoff to rejected.
func (m *Manager) Reject(id core.ID, actingAgent core.ID, reason string) (*core.Handoff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.byID[id]
	if !ok {
		return nil, core.NewError("handoff.Reject", core.CodeNotFound, nil)
	}
	if h.State.Terminal() {
		return nil, core.NewError("handoff.Reject", core.CodeIllegalHandoffTransition, nil)
	}
	if actingAgent != h.SourceAgent && actingAgent != h.TargetAgent {
		return nil, core.NewError("handoff.Reject", core.CodePermissionDenied, nil)
	}
	h.State = core.HandoffRejected
	h.Result = reason
	h.UpdatedAt = time.Now().UTC()
	return h.Clone(), nil
}

// transition moves a handoff from `from` to `to`, enforced to only the
// target agent (accept/complete are receiver-driven actions).
func (m *Manager) transition(id core.ID, actingAgent core.ID, from, to core.HandoffState, result string) (*core.Handoff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.byID[id]
	if !ok {
		return nil, core.NewError("handoff.transition", core.CodeNotFound, nil)
	}
	if h.State != from {
		return nil, core.NewError("handoff.transition", core.CodeIllegalHandoffTransition, nil)
	}
	if actingAgent != h.TargetAgent {
		return nil, core.NewError("handoff.transition", core.CodePermissionDenied, nil)
	}
	h.State = to
	if result != "" {
		h.Result = result
	}
	h.UpdatedAt = time.Now().UTC()
	return h.Clone(), nil
}

// Get returns a deep copy of the handoff.
func (m *Manager) Get(id core.ID) (*core.Handoff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byID[id]
	if !ok {
		return nil, core.NewError("handoff.Get", core.CodeNotFound, nil)
	}
	return h.Clone(), nil
}

// ExpireOverdue walks every non-terminal handoff and transitions those
// past their Deadline() to expired, returning the expired IDs. Intended
// to be called periodically (e.g. from the janitor's tick loop).
func (m *Manager) ExpireOverdue(now time.Time) []core.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []core.ID
	for id, h := range m.byID {
		if h.State.Terminal() {
			continue
		}
		if now.After(h.Deadline()) {
			h.State = core.HandoffExpired
			h.UpdatedAt = now
			expired = append(expired, id)
		}
	}
	return expired
}

// PendingForTarget returns deep copies of every non-terminal handoff
// addressed to target.
func (m *Manager) PendingForTarget(target core.ID) []*core.Handoff {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*core.Handoff
	for _, h := range m.byID {
		if h.TargetAgent == target && !h.State.Terminal() {
			out = append(out, h.Clone())
		}
	}
	return out
}

func (m *Manager) countPendingForTargetLocked(target core.ID) int {
	n := 0
	for _, h := range m.byID {
		if h.TargetAgent == target && !h.State.Terminal() {
			n++
		}
	}
	return n
}
