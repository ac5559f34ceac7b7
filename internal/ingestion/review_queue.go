package ingestion

import (
	"sync"
	"time"

	"github.com/memengine/core/internal/core"
)

// ReviewEntry is one pending Tier 2 item awaiting a human decision.
type ReviewEntry struct {
	ID        core.ID
	OwnerID   string
	Request   Request
	Decision  Decision
	CreatedAt time.Time
}

// ReviewHistoryEntry records a terminal approve/reject decision for audit.
type ReviewHistoryEntry struct {
	QueueID    core.ID
	OwnerID    string
	Reviewer   string
	Approved   bool
	Reason     string
	DecidedAt  time.Time
}

// StoreCallback persists an approved request; it runs only after the queue
// entry has been atomically removed, so a crash between removal and store
// cannot double-store (spec §4.3: "race-free").
type StoreCallback func(req Request) error

// ReviewQueue is the bounded Tier 2 holding area of spec §4.3: per-user
// cap 100 pending, global cap 10 000, with a capped decision history.
type ReviewQueue struct {
	mu sync.Mutex

	perUserCap  int
	globalCap   int
	historyCap  int

	entries map[core.ID]*ReviewEntry
	byUser  map[string]int
	history []ReviewHistoryEntry
}

// NewReviewQueue constructs an empty queue with the spec default caps
// (100 per user, 10 000 global, 10 000 history) when a cap is <= 0.
func NewReviewQueue(perUserCap, globalCap, historyCap int) *ReviewQueue {
	if perUserCap <= 0 {
		perUserCap = 100
	}
	if globalCap <= 0 {
		globalCap = 10_000
	}
	if historyCap <= 0 {
		historyCap = 10_000
	}
	return &ReviewQueue{
		perUserCap: perUserCap,
		globalCap:  globalCap,
		historyCap: historyCap,
		entries:    make(map[core.ID]*ReviewEntry),
		byUser:     make(map[string]int),
	}
}

// Enqueue adds a new Tier 2 entry, rejecting with CodeCapacityExceeded if
// either the per-user or global cap would be exceeded.
func (q *ReviewQueue) Enqueue(ownerID string, req Request, decision Decision) (core.ID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.globalCap {
		return "", core.NewError("ingestion.ReviewQueue.Enqueue", core.CodeCapacityExceeded, errGlobalCapExceeded)
	}
	if q.byUser[ownerID] >= q.perUserCap {
		return "", core.NewError("ingestion.ReviewQueue.Enqueue", core.CodeCapacityExceeded, errUserCapExceeded)
	}

	id := core.NewID()
	q.entries[id] = &ReviewEntry{ID: id, OwnerID: ownerID, Request: req, Decision: decision, CreatedAt: time.Now().UTC()}
	q.byUser[ownerID]++
	return id, nil
}

// GetByID returns an entry, enforcing that reviewer == owner to prevent
// IDOR (spec §4.3).
func (q *ReviewQueue) GetByID(queueID core.ID, reviewer string) (*ReviewEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[queueID]
	if !ok || e.OwnerID != reviewer {
		return nil, core.NewError("ingestion.ReviewQueue.GetByID", core.CodeNotFound, errEntryNotFound)
	}
	cp := *e
	return &cp, nil
}

// Approve atomically removes the entry, then (only on successful removal)
// invokes store to persist the approved request. If store fails, the
// entry is already gone — the caller is responsible for any compensating
// action; the queue itself never resurrects a removed entry.
func (q *ReviewQueue) Approve(queueID core.ID, reviewer string, store StoreCallback) error {
	e, err := q.removeOwned(queueID, reviewer)
	if err != nil {
		return err
	}

	if store != nil {
		if err := store(e.Request); err != nil {
			q.recordHistory(queueID, e.OwnerID, reviewer, false, "store_failed: "+err.Error())
			return err
		}
	}
	q.recordHistory(queueID, e.OwnerID, reviewer, true, "")
	return nil
}

// Reject atomically removes the entry and records the decision.
func (q *ReviewQueue) Reject(queueID core.ID, reviewer, reason string) error {
	e, err := q.removeOwned(queueID, reviewer)
	if err != nil {
		return err
	}
	q.recordHistory(queueID, e.OwnerID, reviewer, false, reason)
	return nil
}

func (q *ReviewQueue) removeOwned(queueID core.ID, reviewer string) (*ReviewEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[queueID]
	if !ok || e.OwnerID != reviewer {
		return nil, core.NewError("ingestion.ReviewQueue.remove", core.CodeNotFound, errEntryNotFound)
	}
	delete(q.entries, queueID)
	q.byUser[e.OwnerID]--
	if q.byUser[e.OwnerID] <= 0 {
		delete(q.byUser, e.OwnerID)
	}
	return e, nil
}

func (q *ReviewQueue) recordHistory(queueID core.ID, ownerID, reviewer string, approved bool, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.history = append(q.history, ReviewHistoryEntry{
		QueueID: queueID, OwnerID: ownerID, Reviewer: reviewer,
		Approved: approved, Reason: reason, DecidedAt: time.Now().UTC(),
	})
	if len(q.history) > q.historyCap {
		q.history = q.history[len(q.history)-q.historyCap:]
	}
}

// History returns a copy of the decision history, most recent last.
func (q *ReviewQueue) History() []ReviewHistoryEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]ReviewHistoryEntry, len(q.history))
	copy(out, q.history)
	return out
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

var (
	errGlobalCapExceeded = simpleErr("review queue global capacity exceeded")
	errUserCapExceeded   = simpleErr("review queue per-user capacity exceeded")
	errEntryNotFound     = simpleErr("review queue entry not found")
)
