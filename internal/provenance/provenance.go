// Package provenance implements the append-only, bounded evidence trail
// attached to every memory (spec §4.2): where a claim came from, the
// confidence assigned, and every retrieval that has touched it.
package provenance

import (
	"container/list"
	"sync"
	"time"

	"github.com/memengine/core/internal/core"
)

// history is one memory's ordered provenance trail plus the bookkeeping
// needed for LRU eviction by the enclosing Service.
type history struct {
	memoryID core.ID
	events   []core.ProvenanceEvent
	element  *list.Element // this memory's node in the Service's lru list
}

// Service is the Provenance Service: an append-only per-memory event log,
// bounded globally by an LRU over memories (evicting the least recently
// updated memory's whole history on overflow), per spec §4.2.
type Service struct {
	mu sync.Mutex

	maxMemories    int
	maxPerMemory   int
	histories      map[core.ID]*history
	lru            *list.List // front = most recently updated
}

// NewService constructs a Provenance Service bounded by maxMemories
// distinct memory histories and maxEventsPerMemory events retained per
// memory (oldest events within a memory are dropped first, since the
// memory's own record should keep the most recent evidence).
func NewService(maxMemories, maxEventsPerMemory int) *Service {
	return &Service{
		maxMemories:  maxMemories,
		maxPerMemory: maxEventsPerMemory,
		histories:    make(map[core.ID]*history),
		lru:          list.New(),
	}
}

// CreateProvenance validates evidence metadata and returns a ProvenanceEvent
// ready to be attached to a memory via AttachToMemory. Validation failures
// never leave partial state: on error nothing is recorded.
func (s *Service) CreateProvenance(sourceID, sourceType string, confidence float64, metadata map[string]any) (*core.ProvenanceEvent, error) {
	if err := core.ValidateIdentifier(sourceID); err != nil {
		return nil, err
	}
	if err := core.ValidateIdentifier(sourceType); err != nil {
		return nil, err
	}
	meta, err := core.ValidateMetadata(metadata)
	if err != nil {
		return nil, err
	}
	ev := &core.ProvenanceEvent{
		Kind:      core.ProvenanceCreate,
		Actor:     sourceID,
		Timestamp: time.Now().UTC(),
		Score:     confidence,
		Metadata:  meta,
	}
	if meta != nil {
		ev.Metadata["source_type"] = sourceType
	} else {
		ev.Metadata = map[string]any{"source_type": sourceType}
	}
	return ev, nil
}

// AttachToMemory appends a provenance event to memoryID's history,
// touching the memory's LRU position and evicting the globally
// least-recently-updated memory's history if the memory cap is exceeded.
func (s *Service) AttachToMemory(memoryID core.ID, ev *core.ProvenanceEvent) error {
	if ev == nil {
		return core.NewError("provenance.AttachToMemory", core.CodeInvalidInput, errNilEvent)
	}
	if err := core.ValidateIdentifier(string(memoryID)); err != nil {
		return err
	}
	meta, err := core.ValidateMetadata(ev.Metadata)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.histories[memoryID]
	if !ok {
		if len(s.histories) >= s.maxMemories {
			s.evictOldestLocked()
		}
		h = &history{memoryID: memoryID}
		h.element = s.lru.PushFront(h)
		s.histories[memoryID] = h
	} else {
		s.lru.MoveToFront(h.element)
	}

	clone := *ev
	clone.Metadata = meta
	h.events = append(h.events, clone)
	if s.maxPerMemory > 0 && len(h.events) > s.maxPerMemory {
		h.events = h.events[len(h.events)-s.maxPerMemory:]
	}
	return nil
}

// TrackRetrieval records that memoryID was surfaced by a retrieval, with
// the score it was ranked at and the identity of the retrieving actor.
func (s *Service) TrackRetrieval(memoryID core.ID, score float64, retrievedBy string) error {
	if err := core.ValidateIdentifier(retrievedBy); err != nil {
		return err
	}
	return s.AttachToMemory(memoryID, &core.ProvenanceEvent{
		Kind:      core.ProvenanceRetrieval,
		Actor:     retrievedBy,
		Timestamp: time.Now().UTC(),
		Score:     score,
	})
}

// GetProvenance returns memoryID's ordered event history (oldest first).
// A memory with no recorded history returns CodeNotFound.
func (s *Service) GetProvenance(memoryID core.ID) ([]core.ProvenanceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.histories[memoryID]
	if !ok {
		return nil, core.NewError("provenance.GetProvenance", core.CodeNotFound, errNoHistory)
	}

	out := make([]core.ProvenanceEvent, len(h.events))
	for i, e := range h.events {
		out[i] = *e.Clone()
	}
	return out, nil
}

// evictOldestLocked drops the least-recently-updated memory's entire
// history. Caller must hold s.mu.
func (s *Service) evictOldestLocked() {
	back := s.lru.Back()
	if back == nil {
		return
	}
	h := back.Value.(*history)
	s.lru.Remove(back)
	delete(s.histories, h.memoryID)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

var (
	errNilEvent  = simpleErr("provenance event must not be nil")
	errNoHistory = simpleErr("no provenance history recorded for memory")
)
