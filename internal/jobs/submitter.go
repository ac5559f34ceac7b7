package jobs

import (
	"context"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/memengine/core/internal/core"
)

// Job is the envelope submitted onto a work-queue stream.
type Job struct {
	ID      string
	Kind    Kind
	Payload []byte
}

// Submitter publishes jobs onto their kind's bounded work-queue stream.
type Submitter struct {
	js nats.JetStreamContext
}

// NewSubmitter wraps an established JetStream context.
func NewSubmitter(nc *nats.Conn) (*Submitter, error) {
	sm, err := NewStreamManager(nc)
	if err != nil {
		return nil, err
	}
	return &Submitter{js: sm.js}, nil
}

func streamSubject(k Kind) string {
	for _, cfg := range defaultStreamConfigs() {
		if cfg.Kind == k {
			return cfg.Subject
		}
	}
	return "jobs." + string(k)
}

// Submit publishes a job, deduplicating on id via JetStream's msg-id
// header so a retried submission is not double-enqueued. A full stream
// (MaxMsgs/MaxBytes reached, DiscardNew configured) surfaces as
// core.CodeCapacityExceeded rather than a bare transport error.
func (s *Submitter) Submit(ctx context.Context, job Job) error {
	subject := streamSubject(job.Kind)
	_, err := s.js.Publish(subject, job.Payload, nats.MsgId(job.ID), nats.Context(ctx))
	if err != nil {
		if isCapacityError(err) {
			return core.NewError("jobs.Submit", core.CodeCapacityExceeded, err)
		}
		return core.NewError("jobs.Submit", core.CodeInternal, err)
	}
	return nil
}

func isCapacityError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "maximum messages exceeded") ||
		strings.Contains(msg, "maximum bytes exceeded") ||
		strings.Contains(msg, "insufficient resources")
}
