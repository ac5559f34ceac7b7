// Package janitor runs the scheduled consolidation pass: deduplication,
// contradiction handling, and expiration (spec §4.5). Temporal decay is
// applied at retrieval time by internal/retrieval, not here.
package janitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/memengine/core/internal/core"
	"github.com/memengine/core/internal/ingestion"
)

// Store is the subset of internal/memstore.MemoryProvider the janitor
// needs: list a user's live memories and invalidate one by id.
type Store interface {
	ListByUser(ctx context.Context, userID string, memType core.MemoryType) ([]*core.Memory, error)
	Invalidate(ctx context.Context, userID string, id core.ID) error
}

// ProvenanceRecorder attaches an invalidation event atomically with the
// store mutation it documents.
type ProvenanceRecorder interface {
	AttachToMemory(memoryID core.ID, ev *core.ProvenanceEvent) error
}

// ReviewFlagger receives contradiction losers for human review, mirroring
// the Ingestion Pipeline's Review Queue shape.
type ReviewFlagger interface {
	Enqueue(ownerID string, req ingestion.Request, decision ingestion.Decision) (core.ID, error)
}

// Action is one consolidation decision, applied unless the pass runs in
// dry-run mode.
type Action struct {
	MemoryID core.ID
	UserID   string
	Reason   string
}

// Report summarizes one pass over one user's memories.
type Report struct {
	UserID     string
	DryRun     bool
	Duplicates []Action
	Contradictions []Action
	Expired    []Action
}

// Janitor runs the consolidation pass.
type Janitor struct {
	store       Store
	provenance  ProvenanceRecorder
	flagger     ReviewFlagger
	detector    ContradictionDetector
	dedupThreshold float64
}

// New constructs a Janitor. A nil detector defaults to the v1
// keyword-negation heuristic (spec §9 Open Question).
func New(store Store, provenance ProvenanceRecorder, flagger ReviewFlagger, detector ContradictionDetector, dedupThreshold float64) *Janitor {
	if detector == nil {
		detector = KeywordNegationDetector{}
	}
	if dedupThreshold <= 0 {
		dedupThreshold = 0.85
	}
	return &Janitor{store: store, provenance: provenance, flagger: flagger, detector: detector, dedupThreshold: dedupThreshold}
}

// RunForUser performs one consolidation pass over userID's memories. When
// dryRun is true, no store mutation happens; the Report still lists what
// would have been done.
func (j *Janitor) RunForUser(ctx context.Context, userID string, dryRun bool) (*Report, error) {
	mems, err := j.store.ListByUser(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("janitor: list memories for %s: %w", userID, err)
	}

	report := &Report{UserID: userID, DryRun: dryRun}
	invalidated := make(map[core.ID]bool)

	j.dedupPass(mems, invalidated, report)
	j.expirationPass(mems, invalidated, report)
	j.contradictionPass(mems, invalidated, report)

	if !dryRun {
		for _, a := range append(append(append([]Action{}, report.Duplicates...), report.Expired...), report.Contradictions...) {
			if err := j.apply(ctx, a); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}

func (j *Janitor) apply(ctx context.Context, a Action) error {
	if err := j.store.Invalidate(ctx, a.UserID, a.MemoryID); err != nil {
		return fmt.Errorf("janitor: invalidate %s: %w", a.MemoryID, err)
	}
	if j.provenance != nil {
		ev := &core.ProvenanceEvent{
			MemoryID:  a.MemoryID,
			Kind:      core.ProvenanceInvalidate,
			Actor:     "janitor",
			Timestamp: time.Now().UTC(),
			Metadata:  map[string]any{"reason": a.Reason},
		}
		if err := j.provenance.AttachToMemory(a.MemoryID, ev); err != nil {
			return fmt.Errorf("janitor: attach provenance for %s: %w", a.MemoryID, err)
		}
	}
	return nil
}

// dedupPass clusters memories by Jaccard similarity >= threshold within
// the same type, keeping the highest-confidence, most-recent
// representative of each cluster.
func (j *Janitor) dedupPass(mems []*core.Memory, invalidated map[core.ID]bool, report *Report) {
	byType := map[core.MemoryType][]*core.Memory{}
	for _, m := range mems {
		byType[m.Type] = append(byType[m.Type], m)
	}

	for _, group := range byType {
		used := make(map[core.ID]bool)
		for i, a := range group {
			if used[a.ID] || invalidated[a.ID] {
				continue
			}
			cluster := []*core.Memory{a}
			for k := i + 1; k < len(group); k++ {
				b := group[k]
				if used[b.ID] || invalidated[b.ID] {
					continue
				}
				if ingestion.JaccardSimilarity(a.Content, b.Content) >= j.dedupThreshold {
					cluster = append(cluster, b)
					used[b.ID] = true
				}
			}
			if len(cluster) < 2 {
				continue
			}
			used[a.ID] = true
			rep := representative(cluster)
			for _, m := range cluster {
				if m.ID == rep.ID {
					continue
				}
				invalidated[m.ID] = true
				report.Duplicates = append(report.Duplicates, Action{
					MemoryID: m.ID,
					UserID:   m.UserID,
					Reason:   fmt.Sprintf("duplicate_of:%s", rep.ID),
				})
			}
		}
	}
}

// representative picks the highest-confidence, most-recent memory in a
// dedup cluster as the kept copy.
func representative(cluster []*core.Memory) *core.Memory {
	sorted := append([]*core.Memory(nil), cluster...)
	sort.Slice(sorted, func(i, k int) bool {
		if sorted[i].Confidence != sorted[k].Confidence {
			return sorted[i].Confidence > sorted[k].Confidence
		}
		return sorted[i].LastAccessAt.After(sorted[k].LastAccessAt)
	})
	return sorted[0]
}

func (j *Janitor) expirationPass(mems []*core.Memory, invalidated map[core.ID]bool, report *Report) {
	now := time.Now().UTC()
	for _, m := range mems {
		if invalidated[m.ID] || m.ExpiresAt == nil {
			continue
		}
		if m.ExpiresAt.Before(now) {
			invalidated[m.ID] = true
			report.Expired = append(report.Expired, Action{MemoryID: m.ID, UserID: m.UserID, Reason: "expired"})
		}
	}
}

// contradictionPass compares same-type memory pairs via the configured
// detector. The newer memory wins; the loser is invalidated and, when a
// ReviewFlagger is wired, raised for human review.
func (j *Janitor) contradictionPass(mems []*core.Memory, invalidated map[core.ID]bool, report *Report) {
	byType := map[core.MemoryType][]*core.Memory{}
	for _, m := range mems {
		byType[m.Type] = append(byType[m.Type], m)
	}

	for _, group := range byType {
		for i := 0; i < len(group); i++ {
			a := group[i]
			if invalidated[a.ID] {
				continue
			}
			for k := i + 1; k < len(group); k++ {
				b := group[k]
				if invalidated[b.ID] {
					continue
				}
				if !j.detector.Contradicts(a.Content, b.Content) {
					continue
				}
				winner, loser := a, b
				if b.CreatedAt.After(a.CreatedAt) {
					winner, loser = b, a
				}
				invalidated[loser.ID] = true
				reason := fmt.Sprintf("contradicted_by:%s", winner.ID)
				report.Contradictions = append(report.Contradictions, Action{MemoryID: loser.ID, UserID: loser.UserID, Reason: reason})
				if j.flagger != nil {
					_, _ = j.flagger.Enqueue(loser.UserID, ingestion.Request{Content: loser.Content, MemoryType: loser.Type, UserID: loser.UserID},
						ingestion.Decision{Tier: ingestion.TierReview, Reason: reason})
				}
			}
		}
	}
}
