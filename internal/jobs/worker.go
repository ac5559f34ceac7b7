package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

const fetchWait = 2 * time.Second

// Handler processes one job's payload. A returned error leaves the
// message unacknowledged so JetStream redelivers it.
type Handler func(ctx context.Context, payload []byte) error

// WorkerPool pulls jobs for a single Kind off its durable consumer and
// dispatches them across a bounded number of concurrent goroutines,
// mirroring the teacher's subscribe-then-dispatch style in
// internal/nats but adapted to JetStream pull consumers for
// at-least-once, exactly-one-worker delivery.
type WorkerPool struct {
	sub         *nats.Subscription
	concurrency int
	handler     Handler
}

// NewWorkerPool creates a durable pull consumer bound to kind's stream
// and subject.
func NewWorkerPool(js nats.JetStreamContext, kind Kind, concurrency int, handler Handler) (*WorkerPool, error) {
	if concurrency <= 0 {
		concurrency = 4
	}
	durable := "worker-" + string(kind)
	sub, err := js.PullSubscribe(streamSubject(kind), durable, nats.BindStream(streamName(kind)))
	if err != nil {
		return nil, fmt.Errorf("jobs: pull subscribe %s: %w", kind, err)
	}
	return &WorkerPool{sub: sub, concurrency: concurrency, handler: handler}, nil
}

// Run fetches batches of messages until ctx is cancelled, fanning each
// batch out across the configured concurrency.
func (w *WorkerPool) Run(ctx context.Context) {
	sem := make(chan struct{}, w.concurrency)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := w.sub.Fetch(w.concurrency, nats.MaxWait(fetchWait))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		for _, msg := range msgs {
			sem <- struct{}{}
			go func(m *nats.Msg) {
				defer func() { <-sem }()
				if err := w.handler(ctx, m.Data); err != nil {
					log.Printf("[JOBS-WORKER] handler error: %v", err)
					_ = m.Nak()
					return
				}
				_ = m.Ack()
			}(msg)
		}
	}
}
