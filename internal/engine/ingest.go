package engine

import (
	"context"
	"time"

	"github.com/memengine/core/internal/audit"
	"github.com/memengine/core/internal/core"
	"github.com/memengine/core/internal/ingestion"
)

// IngestResult reports what happened to a single ingest request.
type IngestResult struct {
	Tier     ingestion.Tier
	MemoryID core.ID  // set only when Tier == TierAutoApprove
	QueueID  core.ID  // set only when Tier == TierReview
	Decision *ingestion.Decision
}

// Ingest runs the full tiering decision of spec §4.3 and, depending on
// the tier, stores the memory immediately, enqueues it for human review,
// or blocks it outright. Every outcome is audited; Tier 1 and successful
// Tier-2 approvals also get a provenance "create" event and a best-effort
// vector-index upsert.
func (e *Engine) Ingest(ctx context.Context, req ingestion.Request) (*IngestResult, error) {
	decision, err := e.Ingestion.Decide(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Tier: decision.Tier, Decision: decision}

	switch decision.Tier {
	case ingestion.TierBlock:
		e.auditMemoryWrite(req.UserID, audit.OutcomeDenied, decision.Reason)
		return result, nil

	case ingestion.TierReview:
		queueID, err := e.ReviewQueue.Enqueue(req.UserID, req, *decision)
		if err != nil {
			e.onCapacityExceeded("ingestion.review_queue")
			return nil, err
		}
		result.QueueID = queueID
		e.auditMemoryWrite(req.UserID, audit.OutcomeSuccess, "queued:"+decision.Reason)
		return result, nil

	default: // TierAutoApprove
		id, err := e.storeApproved(ctx, req, *decision)
		if err != nil {
			if core.CodeOf(err) == core.CodeCapacityExceeded {
				e.onCapacityExceeded("memstore")
			}
			e.auditMemoryWrite(req.UserID, audit.OutcomeError, err.Error())
			return nil, err
		}
		result.MemoryID = id
		e.auditMemoryWrite(req.UserID, audit.OutcomeSuccess, decision.Reason)
		return result, nil
	}
}

// ApproveReview approves a pending Tier-2 entry, storing it exactly as a
// Tier-1 memory would be stored (spec §4.3: "store-callback runs after
// the queue entry is atomically removed").
func (e *Engine) ApproveReview(ctx context.Context, queueID core.ID, reviewer string) (core.ID, error) {
	var stored core.ID
	err := e.ReviewQueue.Approve(queueID, reviewer, func(req ingestion.Request) error {
		id, err := e.storeApproved(ctx, req, ingestion.Decision{Tier: ingestion.TierAutoApprove, Reason: "review_approved"})
		if err != nil {
			return err
		}
		stored = id
		return nil
	})
	if err != nil {
		return "", err
	}
	e.auditReviewDecision(reviewer, queueID, true, "")
	return stored, nil
}

// RejectReview discards a pending Tier-2 entry.
func (e *Engine) RejectReview(queueID core.ID, reviewer, reason string) error {
	if err := e.ReviewQueue.Reject(queueID, reviewer, reason); err != nil {
		return err
	}
	e.auditReviewDecision(reviewer, queueID, false, reason)
	return nil
}

// storeApproved persists a Tier-1 (or approved Tier-2) request: builds
// the Memory, stores it, attaches a provenance "create" event, and
// best-effort upserts an embedding into the vector index.
func (e *Engine) storeApproved(ctx context.Context, req ingestion.Request, decision ingestion.Decision) (core.ID, error) {
	now := time.Now().UTC()
	m := &core.Memory{
		UserID:     req.UserID,
		ProjectID:  req.ProjectID,
		Content:    req.Content,
		Type:       req.MemoryType,
		Confidence: 1.0,
		Source:     req.Source,
		RawSource:  req.Content,
		Scope:      core.ScopeUser,
		CreatedAt:  now,
		LastAccessAt: now,
	}
	if err := e.Store.Store(ctx, m); err != nil {
		return "", err
	}

	sourceID := "ingestion"
	if len(decision.Citations) > 0 {
		sourceID = decision.Citations[0].Ref
	}
	ev, err := e.Provenance.CreateProvenance(sourceID, req.Source, m.Confidence, map[string]any{"reason": decision.Reason})
	if err == nil {
		_ = e.Provenance.AttachToMemory(m.ID, ev)
	}

	if vec, err := e.Embedder.Embed(ctx, m.Content); err == nil {
		_ = e.Vectors.Upsert(ctx, m.UserID, m.ID, vec)
	}

	return m.ID, nil
}

func (e *Engine) auditMemoryWrite(userID string, outcome audit.Outcome, reason string) {
	_, _ = e.Audit.Record(audit.KindMemoryWrite, userID, userID, "ingest", outcome, map[string]any{"reason": reason})
}

func (e *Engine) auditReviewDecision(reviewer string, queueID core.ID, approved bool, reason string) {
	outcome := audit.OutcomeSuccess
	if !approved {
		outcome = audit.OutcomeDenied
	}
	_, _ = e.Audit.Record(audit.KindReviewDecision, reviewer, string(queueID), "review_decision", outcome, map[string]any{"approved": approved, "reason": reason})
}

func (e *Engine) onCapacityExceeded(resource string) {
	_, _ = e.Audit.Record(audit.KindMemoryWrite, "system", resource, "capacity_check", audit.OutcomeDenied, map[string]any{"resource": resource})
	if e.Notify != nil {
		_ = e.Notify.NotifyCapacityExceeded(resource)
	}
}
