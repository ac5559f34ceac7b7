package jobs

import (
	"errors"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// Kind names a job category routed onto its own work-queue subject.
type Kind string

const (
	KindExtraction Kind = "extraction"
	KindRerank     Kind = "rerank"
	KindJanitor    Kind = "janitor"
)

// StreamConfig describes a single bounded work-queue stream.
type StreamConfig struct {
	Kind     Kind
	Subject  string
	MaxMsgs  int64
	MaxBytes int64
}

func defaultStreamConfigs() []StreamConfig {
	return []StreamConfig{
		{Kind: KindExtraction, Subject: "jobs.extraction", MaxMsgs: 10_000, MaxBytes: 64 << 20},
		{Kind: KindRerank, Subject: "jobs.rerank", MaxMsgs: 10_000, MaxBytes: 64 << 20},
		{Kind: KindJanitor, Subject: "jobs.janitor", MaxMsgs: 1_000, MaxBytes: 16 << 20},
	}
}

// StreamManager creates and maintains the JetStream work-queue streams
// backing job submission, grounded on the teacher's internal/nats.StreamManager.
type StreamManager struct {
	js nats.JetStreamContext
}

// NewStreamManager wraps an established NATS connection's JetStream context.
func NewStreamManager(nc *nats.Conn) (*StreamManager, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jobs: acquire jetstream context: %w", err)
	}
	return &StreamManager{js: js}, nil
}

// SetupStreams ensures every job-kind stream exists with WorkQueuePolicy
// retention, so a message is delivered to exactly one worker and removed
// from the stream once acknowledged.
func (sm *StreamManager) SetupStreams() error {
	for _, cfg := range defaultStreamConfigs() {
		streamCfg := &nats.StreamConfig{
			Name:      streamName(cfg.Kind),
			Subjects:  []string{cfg.Subject},
			Storage:   nats.FileStorage,
			Retention: nats.WorkQueuePolicy,
			MaxMsgs:   cfg.MaxMsgs,
			MaxBytes:  cfg.MaxBytes,
			Discard:   nats.DiscardNew,
		}
		if err := sm.createOrUpdateStream(streamCfg); err != nil {
			return err
		}
	}
	return nil
}

func (sm *StreamManager) createOrUpdateStream(cfg *nats.StreamConfig) error {
	_, err := sm.js.StreamInfo(cfg.Name)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, err := sm.js.AddStream(cfg); err != nil {
			return fmt.Errorf("jobs: add stream %s: %w", cfg.Name, err)
		}
		log.Printf("[JOBS-STREAMS] created stream %s", cfg.Name)
	case err != nil:
		return fmt.Errorf("jobs: stream info %s: %w", cfg.Name, err)
	default:
		if _, err := sm.js.UpdateStream(cfg); err != nil {
			return fmt.Errorf("jobs: update stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

func streamName(k Kind) string {
	return "JOBS_" + string(k)
}
