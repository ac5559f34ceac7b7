package janitor

import (
	"context"
	"log"
	"time"
)

// UserLister enumerates the users a scheduled pass should cover.
type UserLister func(ctx context.Context) ([]string, error)

// Service drives Janitor on a ticker, grounded directly on the teacher's
// internal/server.CleanupService.Start loop shape.
type Service struct {
	janitor       *Janitor
	users         UserLister
	checkInterval time.Duration
	dryRun        bool
}

// NewService wires a Janitor to a periodic schedule. checkInterval
// defaults to 10 minutes (spec §4.5's "per user, completes within 10
// minutes for 10,000 memories" budget for one cycle).
func NewService(j *Janitor, users UserLister, checkInterval time.Duration, dryRun bool) *Service {
	if checkInterval <= 0 {
		checkInterval = 10 * time.Minute
	}
	return &Service{janitor: j, users: users, checkInterval: checkInterval, dryRun: dryRun}
}

// Start runs the consolidation pass on a ticker until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	log.Println("[JANITOR] consolidation service started")

	for {
		select {
		case <-ctx.Done():
			log.Println("[JANITOR] consolidation service stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	userIDs, err := s.users(ctx)
	if err != nil {
		log.Printf("[JANITOR] error listing users: %v", err)
		return
	}
	for _, userID := range userIDs {
		report, err := s.janitor.RunForUser(ctx, userID, s.dryRun)
		if err != nil {
			log.Printf("[JANITOR] pass failed for user %s: %v", userID, err)
			continue
		}
		if n := len(report.Duplicates) + len(report.Expired) + len(report.Contradictions); n > 0 {
			log.Printf("[JANITOR] user %s: %d duplicates, %d expired, %d contradictions (dry_run=%v)",
				userID, len(report.Duplicates), len(report.Expired), len(report.Contradictions), s.dryRun)
		}
	}
}

// RunOnce performs a single immediate pass across all listed users, for
// manual/administrative triggers.
func (s *Service) RunOnce(ctx context.Context) {
	s.runOnce(ctx)
}
