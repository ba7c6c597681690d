// Package queue provides the Redis-backed job queue that feeds the worker
// pool. Delivery is at-least-once: claimed job IDs sit on a processing list
// until acked, and a reaper returns stale entries to the queue.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty reports that no job was available within the claim timeout.
var ErrEmpty = errors.New("queue: no job available")

// Queue is the contract between the HTTP surface (producer) and the worker
// pool (consumer).
type Queue interface {
	// Enqueue makes a job ID available for claiming
	Enqueue(ctx context.Context, jobID string) error
	// ClaimBlocking atomically moves one job ID to the processing list,
	// waiting up to timeout. Returns ErrEmpty when nothing arrived.
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	// Ack removes a claimed job ID from the processing list
	Ack(ctx context.Context, jobID string) error
	// RequeueStale moves up to max claimed-but-unacked job IDs back onto
	// the queue and reports how many it moved
	RequeueStale(ctx context.Context, max int64) (int64, error)
}

// redisQueue implements Queue on two Redis lists.
// Claim: BRPOPLPUSH queue -> processing. Ack: LREM from processing.
type redisQueue struct {
	rdb           *redis.Client
	queueKey      string
	processingKey string
}

// NewRedisQueue creates a queue over the given Redis client. keyPrefix
// namespaces the underlying lists (e.g. "lecture:jobs").
func NewRedisQueue(rdb *redis.Client, keyPrefix string) Queue {
	return &redisQueue{
		rdb:           rdb,
		queueKey:      keyPrefix + ":queue",
		processingKey: keyPrefix + ":processing",
	}
}

func (q *redisQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.rdb.LPush(ctx, q.queueKey, jobID).Err()
}

func (q *redisQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	id, err := q.rdb.BRPopLPush(ctx, q.queueKey, q.processingKey, timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrEmpty
		}
		return "", err
	}
	return id, nil
}

func (q *redisQueue) Ack(ctx context.Context, jobID string) error {
	return q.rdb.LRem(ctx, q.processingKey, 1, jobID).Err()
}

func (q *redisQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	var moved int64
	for i := int64(0); i < max; i++ {
		id, err := q.rdb.RPopLPush(ctx, q.processingKey, q.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return moved, err
		}
		if id != "" {
			moved++
		}
	}
	return moved, nil
}
