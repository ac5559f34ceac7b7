package agentregistry

import (
	"sync"
	"time"

	"github.com/memengine/core/internal/core"
)

// Pools manages scoped shared memory pools, bounded by global pool count,
// members-per-pool, and shared-memories-per-pool caps (spec §4.9
// defaults 10,000/1,000/100,000).
type Pools struct {
	mu       sync.RWMutex
	registry *Registry
	pools    map[core.ID]*core.Pool

	maxPools      int
	maxMembers    int
	maxShared     int
}

// NewPools wires Pools to the Registry so join_pool can verify a member
// exists at join time (spec §3 Pool invariant).
func NewPools(registry *Registry, maxPools, maxMembers, maxShared int) *Pools {
	if maxPools <= 0 {
		maxPools = 10_000
	}
	if maxMembers <= 0 {
		maxMembers = 1_000
	}
	if maxShared <= 0 {
		maxShared = 100_000
	}
	return &Pools{
		registry:   registry,
		pools:      make(map[core.ID]*core.Pool),
		maxPools:   maxPools,
		maxMembers: maxMembers,
		maxShared:  maxShared,
	}
}

// Create registers a new pool owned by ownerID at scope.
func (p *Pools) Create(name, ownerID string, scope core.Scope) (*core.Pool, error) {
	if !core.ValidScope(scope) {
		return nil, core.NewError("agentregistry.Pools.Create", core.CodeInvalidInput, nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pools) >= p.maxPools {
		return nil, core.NewError("agentregistry.Pools.Create", core.CodeCapacityExceeded, nil)
	}

	pool := &core.Pool{
		ID:        core.NewID(),
		Name:      name,
		OwnerID:   ownerID,
		Scope:     scope,
		Members:   make(map[core.ID]core.PoolPermission),
		Shared:    make(map[core.ID]struct{}),
		CreatedAt: time.Now().UTC(),
	}
	p.pools[pool.ID] = pool
	return pool.Clone(), nil
}

// Get returns a deep copy of the pool.
func (p *Pools) Get(id core.ID) (*core.Pool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pool, ok := p.pools[id]
	if !ok {
		return nil, core.NewError("agentregistry.Pools.Get", core.CodeNotFound, nil)
	}
	return pool.Clone(), nil
}

// JoinPool adds agentID to poolID with perm. The agent must already be
// registered (spec §3: "Members must exist in the registry at join
// time"). Bounded by maxMembers.
func (p *Pools) JoinPool(poolID, agentID core.ID, perm core.PoolPermission) error {
	if p.registry != nil {
		if _, err := p.registry.Get(agentID); err != nil {
			return core.NewError("agentregistry.Pools.JoinPool", core.CodeInvalidInput, err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	pool, ok := p.pools[poolID]
	if !ok {
		return core.NewError("agentregistry.Pools.JoinPool", core.CodeNotFound, nil)
	}
	if _, already := pool.Members[agentID]; !already && len(pool.Members) >= p.maxMembers {
		return core.NewError("agentregistry.Pools.JoinPool", core.CodeCapacityExceeded, nil)
	}
	pool.Members[agentID] = perm
	return nil
}

// ShareMemory adds memoryID to poolID's shared set, clamping the
// effective share scope to min(pool.Scope, agentScope) per spec §4.9 —
// an agent cannot share at a broader scope than either the pool or its
// own clearance allows. Bounded by maxShared.
func (p *Pools) ShareMemory(poolID core.ID, agentID core.ID, agentScope core.Scope, memoryID core.ID) (core.Scope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pool, ok := p.pools[poolID]
	if !ok {
		return "", core.NewError("agentregistry.Pools.ShareMemory", core.CodeNotFound, nil)
	}
	perm, member := pool.Members[agentID]
	if !member || perm == core.PermRead {
		return "", core.NewError("agentregistry.Pools.ShareMemory", core.CodePermissionDenied, nil)
	}
	if len(pool.Shared) >= p.maxShared {
		if _, already := pool.Shared[memoryID]; !already {
			return "", core.NewError("agentregistry.Pools.ShareMemory", core.CodeCapacityExceeded, nil)
		}
	}

	pool.Shared[memoryID] = struct{}{}
	return core.Min(pool.Scope, agentScope), nil
}

// QuerySharedAtScope returns the shared memory identifiers visible to an
// actor reading at readerScope: readerScope must be >= pool.Scope (an
// actor at a narrower/lower scope cannot see a pool shared more broadly
// than their own clearance).
func (p *Pools) QuerySharedAtScope(poolID core.ID, readerScope core.Scope) ([]core.ID, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pool, ok := p.pools[poolID]
	if !ok {
		return nil, core.NewError("agentregistry.Pools.QuerySharedAtScope", core.CodeNotFound, nil)
	}
	if !pool.Scope.LessEqual(readerScope) {
		return nil, core.NewError("agentregistry.Pools.QuerySharedAtScope", core.CodePermissionDenied, nil)
	}
	out := make([]core.ID, 0, len(pool.Shared))
	for id := range pool.Shared {
		out = append(out, id)
	}
	return out, nil
}
