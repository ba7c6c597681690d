package worker

import (
	"context"
	"log"
	"time"

	"github.com/jonathan/lecture-pipeline/internal/queue"
)

// Reaper periodically returns claimed-but-unacked job IDs to the queue so a
// crashed worker's jobs are retried by another.
type Reaper struct {
	queue    queue.Queue
	interval time.Duration
	maxBatch int64
}

// NewReaper creates a reaper that sweeps at the given interval.
func NewReaper(q queue.Queue, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{queue: q, interval: interval, maxBatch: 100}
}

// Run sweeps until the context is canceled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			moved, err := r.queue.RequeueStale(ctx, r.maxBatch)
			if err != nil {
				log.Printf("reaper: requeue stale: %v", err)
				continue
			}
			if moved > 0 {
				log.Printf("reaper: requeued %d stale jobs", moved)
			}
		}
	}
}
