package memstore

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// RecallHealthMonitor periodically compares the BM25 index's document
// count with the durable store's count of valid rows and rebuilds the
// index from the store if they differ, atomically swapping the index so
// concurrent searches never observe a half-rebuilt structure. Ticker +
// context.Context loop in the same shape as the teacher's CleanupService.
type RecallHealthMonitor struct {
	store         *SQLiteMemoryStore
	checkInterval time.Duration

	rebuildCount atomic.Int64
	lastDocCount atomic.Int64
}

// NewRecallHealthMonitor constructs a monitor for store, sampling every
// interval (defaults to 5 minutes if interval <= 0).
func NewRecallHealthMonitor(store *SQLiteMemoryStore, interval time.Duration) *RecallHealthMonitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RecallHealthMonitor{store: store, checkInterval: interval}
}

// Start runs the sampling loop until ctx is cancelled.
func (r *RecallHealthMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	log.Println("[RECALL] health monitor started")
	for {
		select {
		case <-ctx.Done():
			log.Println("[RECALL] health monitor stopped")
			return
		case <-ticker.C:
			r.sample()
		}
	}
}

func (r *RecallHealthMonitor) sample() {
	indexedDocs := int64(r.store.bm25.Len())

	var rowCount int64
	row := r.store.db.QueryRow(`SELECT COUNT(*) FROM memories WHERE valid = 1`)
	if err := row.Scan(&rowCount); err != nil {
		log.Printf("[RECALL] failed to sample memory count: %v", err)
		return
	}

	r.lastDocCount.Store(indexedDocs)
	if indexedDocs != rowCount {
		log.Printf("[RECALL] index drift detected (indexed=%d stored=%d), rebuilding", indexedDocs, rowCount)
		if err := r.store.rebuildBM25(); err != nil {
			log.Printf("[RECALL] rebuild failed: %v", err)
			return
		}
		r.rebuildCount.Add(1)
	}
}

// RebuildCount reports how many times drift has triggered a rebuild.
func (r *RecallHealthMonitor) RebuildCount() int64 { return r.rebuildCount.Load() }
