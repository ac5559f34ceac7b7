package extraction

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/memengine/core/internal/core"
	"github.com/memengine/core/internal/jobs"
)

// Submitter is the subset of internal/jobs.Submitter this package needs,
// kept as an interface so Service can be tested without an embedded NATS
// connection.
type Submitter interface {
	Submit(ctx context.Context, job jobs.Job) error
}

// ResultSink receives completed candidates for downstream ingestion. The
// ingestion pipeline's Decide call is invoked per candidate by whatever
// the caller wires here — Service itself does not import internal/ingestion,
// keeping the dependency direction one-way.
type ResultSink func(ctx context.Context, req Request, candidates []Candidate)

// Service tracks submitted extraction jobs and exposes their lifecycle,
// bounded the same way the Review Queue bounds pending entries (spec
// §4.9's "no unbounded fire-and-forget queue").
type Service struct {
	submitter Submitter
	extractor Extractor
	sink      ResultSink

	mu       sync.Mutex
	jobs     map[core.ID]*JobRecord
	maxJobs  int
}

// NewService wires a job submitter (internal/jobs), the Extractor that
// workers run, and a ResultSink invoked when a job completes.
func NewService(submitter Submitter, extractor Extractor, sink ResultSink, maxJobs int) *Service {
	if maxJobs <= 0 {
		maxJobs = 10_000
	}
	return &Service{
		submitter: submitter,
		extractor: extractor,
		sink:      sink,
		jobs:      make(map[core.ID]*JobRecord),
		maxJobs:   maxJobs,
	}
}

// Submit enqueues req for asynchronous extraction and returns its job id
// immediately; results land via the configured ResultSink once a worker
// processes the job.
func (s *Service) Submit(ctx context.Context, req Request) (core.ID, error) {
	s.mu.Lock()
	if len(s.jobs) >= s.maxJobs {
		s.mu.Unlock()
		return "", core.NewError("extraction.Submit", core.CodeCapacityExceeded, nil)
	}
	id := core.NewID()
	s.jobs[id] = &JobRecord{ID: id, Request: req, Status: StatusPending, SubmittedAt: now()}
	s.mu.Unlock()

	payload, err := json.Marshal(jobPayload{JobID: id, Request: req})
	if err != nil {
		return "", core.NewError("extraction.Submit", core.CodeInvalidInput, err)
	}

	if err := s.submitter.Submit(ctx, jobs.Job{ID: string(id), Kind: jobs.KindExtraction, Payload: payload}); err != nil {
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()
		return "", err
	}
	return id, nil
}

// Get returns a copy of the job's current lifecycle state.
func (s *Service) Get(id core.ID) (JobRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return JobRecord{}, false
	}
	return *rec, true
}

// Handler returns the jobs.Handler a WorkerPool runs for KindExtraction
// messages: unmarshal the payload, run the Extractor deterministically,
// record the result, and forward candidates to the ResultSink.
func (s *Service) Handler() jobs.Handler {
	return func(ctx context.Context, payload []byte) error {
		var p jobPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}

		s.mu.Lock()
		rec, ok := s.jobs[p.JobID]
		if ok {
			rec.Status = StatusRunning
		}
		s.mu.Unlock()

		candidates, err := s.extractor.Extract(ctx, p.Request)

		s.mu.Lock()
		if ok {
			if err != nil {
				rec.Status = StatusFailed
				rec.Error = err.Error()
			} else {
				rec.Status = StatusCompleted
				rec.Candidates = candidates
			}
			rec.CompletedAt = now()
		}
		s.mu.Unlock()

		if err != nil {
			return err
		}
		if s.sink != nil {
			s.sink(ctx, p.Request, candidates)
		}
		return nil
	}
}

type jobPayload struct {
	JobID   core.ID
	Request Request
}

// now is a seam so extraction stays free of direct time.Now() calls at
// the single place timestamps are stamped.
func now() time.Time { return time.Now().UTC() }
