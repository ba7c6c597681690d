package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/lecture-pipeline/internal/queue"
)

// fakeQueue is a channel-backed Queue for pool tests.
type fakeQueue struct {
	jobs chan string

	mu           sync.Mutex
	acked        []string
	requeueCalls int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: make(chan string, 16)}
}

func (f *fakeQueue) Enqueue(_ context.Context, jobID string) error {
	f.jobs <- jobID
	return nil
}

func (f *fakeQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	select {
	case id := <-f.jobs:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(timeout):
		return "", queue.ErrEmpty
	}
}

func (f *fakeQueue) Ack(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, jobID)
	return nil
}

func (f *fakeQueue) RequeueStale(_ context.Context, _ int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeueCalls++
	return 1, nil
}

func (f *fakeQueue) ackedJobs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

func (f *fakeQueue) requeueCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requeueCalls
}

// fakeProcessor records processed job IDs and fails the ones it is told to.
type fakeProcessor struct {
	mu        sync.Mutex
	processed []string
	failIDs   map[string]bool
}

func (f *fakeProcessor) ProcessJob(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, jobID)
	if f.failIDs[jobID] {
		return errors.New("stage failed")
	}
	return nil
}

func (f *fakeProcessor) processedJobs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.processed...)
}

func TestPool_ProcessesAndAcksClaimedJobs(t *testing.T) {
	q := newFakeQueue()
	proc := &fakeProcessor{}
	pool := NewPool(q, proc, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Run(ctx)
	}()

	for _, id := range []string{"job-1", "job-2", "job-3"} {
		require.NoError(t, q.Enqueue(ctx, id))
	}

	require.Eventually(t, func() bool {
		return len(q.ackedJobs()) == 3
	}, 5*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"job-1", "job-2", "job-3"}, proc.processedJobs())
	assert.ElementsMatch(t, []string{"job-1", "job-2", "job-3"}, q.ackedJobs())

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}

func TestPool_AcksFailedJobs(t *testing.T) {
	// A job that fails processing is already recorded as failed in the
	// store; leaving it on the processing list would make the reaper run
	// it again.
	q := newFakeQueue()
	proc := &fakeProcessor{failIDs: map[string]bool{"job-bad": true}}
	pool := NewPool(q, proc, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	require.NoError(t, q.Enqueue(ctx, "job-bad"))

	require.Eventually(t, func() bool {
		return len(q.ackedJobs()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"job-bad"}, q.ackedJobs())
}

func TestNewPool_DefaultsWorkerCount(t *testing.T) {
	pool := NewPool(newFakeQueue(), &fakeProcessor{}, 0)
	assert.Equal(t, 4, pool.workers)
}

func TestReaper_SweepsOnInterval(t *testing.T) {
	q := newFakeQueue()
	r := NewReaper(q, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return q.requeueCount() >= 2
	}, 5*time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
