// Package extraction turns raw conversational text into candidate memory
// claims, asynchronously relative to user-facing latency (spec §4.4).
package extraction

import (
	"context"
	"time"

	"github.com/memengine/core/internal/core"
)

// Candidate is one extracted claim awaiting the Ingestion Pipeline's
// tiering decision.
type Candidate struct {
	Content    string
	Type       core.MemoryType
	Confidence float64
}

// Request asks the pipeline to extract candidates from RawText on behalf
// of UserID. ProjectID is optional.
type Request struct {
	UserID    string
	ProjectID string
	RawText   string
	Source    string
}

// Extractor produces candidates from a Request. Determinism is required by
// spec: same Request + same ExtractionVersion must yield the same
// Candidates, so implementations must run at temperature zero with a
// stable prompt (an LLM-backed Extractor is a pluggable concern the core
// does not own, per spec §4.4/§9 Non-goals).
type Extractor interface {
	Extract(ctx context.Context, req Request) ([]Candidate, error)
	// Version identifies the prompt/model generation producing Candidates,
	// stamped onto every resulting Memory as ExtractionVersion.
	Version() int
}

// Status is the lifecycle of a submitted extraction job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// JobRecord is the queryable state of one submitted extraction job.
type JobRecord struct {
	ID         core.ID
	Request    Request
	Status     Status
	Candidates []Candidate
	Error      string
	SubmittedAt time.Time
	CompletedAt time.Time
}
