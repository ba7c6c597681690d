// Package worker runs queued lecture jobs through the pipeline orchestrator.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/jonathan/lecture-pipeline/internal/queue"
)

// Processor executes one claimed job end to end. The pipeline orchestrator
// satisfies this.
type Processor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

// Pool claims job IDs from the queue and fans them out to a fixed number of
// worker goroutines.
type Pool struct {
	queue      queue.Queue
	processor  Processor
	workers    int
	claimDelay time.Duration
}

// NewPool creates a pool of the given size. Sizes below one fall back to a
// small default.
func NewPool(q queue.Queue, processor Processor, workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      q,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
	}
}

// Run blocks until the context is canceled. Jobs are acked after processing
// regardless of outcome: a failed job is already recorded as failed in the
// store, and a worker crash before that point leaves the ID on the processing
// list for the reaper to requeue.
func (p *Pool) Run(ctx context.Context) {
	log.Printf("worker pool started: workers=%d", p.workers)

	jobCh := make(chan string)

	for i := 0; i < p.workers; i++ {
		go func(n int) {
			for jobID := range jobCh {
				if err := p.processor.ProcessJob(ctx, jobID); err != nil {
					log.Printf("[worker-%d] job %s: %v", n, jobID, err)
				}
				if err := p.queue.Ack(ctx, jobID); err != nil {
					log.Printf("[worker-%d] ack job %s: %v", n, jobID, err)
				}
			}
		}(i + 1)
	}

	for {
		select {
		case <-ctx.Done():
			close(jobCh)
			log.Println("worker pool stopped")
			return
		default:
			jobID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
			if err != nil {
				// ErrEmpty and context cancellation both land here;
				// the next loop iteration checks ctx.Done.
				continue
			}
			select {
			case jobCh <- jobID:
			case <-ctx.Done():
				close(jobCh)
				return
			}
		}
	}
}
