package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// dedupTTL bounds how long an orphaned dedup key can block re-enqueueing if
// a worker dies between claiming a job and acking it. Reclaim normally
// resolves this much sooner.
const dedupTTL = 24 * time.Hour

// Redis is the production queue, modeled on Bull's Redis layout: one list
// per waiting/active/failed state, a counter for completed jobs, and a hash
// of claim timestamps for stale-job recovery.
type Redis struct {
	client *redis.Client
	name   string

	waitingKey   string
	activeKey    string
	failedKey    string
	completedKey string
	claimsKey    string
}

// NewRedis wraps an already-connected client. The caller owns the client's
// lifecycle; Close closes it.
func NewRedis(client *redis.Client, name string) *Redis {
	prefix := "feepay:" + name
	return &Redis{
		client:       client,
		name:         name,
		waitingKey:   prefix + ":waiting",
		activeKey:    prefix + ":active",
		failedKey:    prefix + ":failed",
		completedKey: prefix + ":completed",
		claimsKey:    prefix + ":claims",
	}
}

func (q *Redis) dedupKey(paymentID int64) string {
	return "feepay:" + q.name + ":dedup:" + strconv.FormatInt(paymentID, 10)
}

func (q *Redis) Enqueue(ctx context.Context, paymentID int64) (Job, error) {
	job := Job{
		ID:         uuid.NewString(),
		PaymentID:  paymentID,
		EnqueuedAt: time.Now().UTC(),
	}

	ok, err := q.client.SetNX(ctx, q.dedupKey(paymentID), job.ID, dedupTTL).Result()
	if err != nil {
		return Job{}, fmt.Errorf("queue: dedup check failed: %w", err)
	}
	if !ok {
		return Job{}, ErrJobOutstanding
	}

	data, err := json.Marshal(job)
	if err != nil {
		return Job{}, fmt.Errorf("queue: marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.waitingKey, data).Err(); err != nil {
		// Release the dedup key so the enqueue can be retried.
		q.client.Del(ctx, q.dedupKey(paymentID))
		return Job{}, fmt.Errorf("queue: push job: %w", err)
	}
	return job, nil
}

func (q *Redis) Dequeue(ctx context.Context, wait time.Duration) (Job, error) {
	raw, err := q.client.BLMove(ctx, q.waitingKey, q.activeKey, "RIGHT", "LEFT", wait).Result()
	if err == redis.Nil {
		return Job{}, ErrEmpty
	}
	if err != nil {
		return Job{}, fmt.Errorf("queue: blocking move failed: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// A payload we cannot parse can never be processed; park it in the
		// dead-letter list instead of poisoning the active list.
		q.client.LRem(ctx, q.activeKey, 1, raw)
		q.client.LPush(ctx, q.failedKey, raw)
		return Job{}, fmt.Errorf("queue: malformed job payload dead-lettered: %w", err)
	}
	job.raw = raw

	if err := q.client.HSet(ctx, q.claimsKey, job.ID, time.Now().Unix()).Err(); err != nil {
		return Job{}, fmt.Errorf("queue: record claim: %w", err)
	}
	return job, nil
}

func (q *Redis) Ack(ctx context.Context, job Job) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.activeKey, 1, q.payload(job))
	pipe.HDel(ctx, q.claimsKey, job.ID)
	pipe.Incr(ctx, q.completedKey)
	pipe.Del(ctx, q.dedupKey(job.PaymentID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: ack failed: %w", err)
	}
	return nil
}

func (q *Redis) DeadLetter(ctx context.Context, job Job) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.activeKey, 1, q.payload(job))
	pipe.HDel(ctx, q.claimsKey, job.ID)
	pipe.LPush(ctx, q.failedKey, q.payload(job))
	pipe.Del(ctx, q.dedupKey(job.PaymentID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: dead-letter failed: %w", err)
	}
	return nil
}

func (q *Redis) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	raws, err := q.client.LRange(ctx, q.activeKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: list active jobs: %w", err)
	}

	cutoff := time.Now().Add(-olderThan).Unix()
	reclaimed := 0
	for _, raw := range raws {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		claimedAt, err := q.client.HGet(ctx, q.claimsKey, job.ID).Int64()
		if err == redis.Nil {
			// Claimed before the claims hash entry was written, or the
			// entry was lost; treat as stale.
			claimedAt = 0
		} else if err != nil {
			return reclaimed, fmt.Errorf("queue: read claim: %w", err)
		}
		if claimedAt > cutoff {
			continue
		}

		job.Attempts++
		data, err := json.Marshal(job)
		if err != nil {
			continue
		}
		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, q.activeKey, 1, raw)
		pipe.HDel(ctx, q.claimsKey, job.ID)
		pipe.LPush(ctx, q.waitingKey, data)
		if _, err := pipe.Exec(ctx); err != nil {
			return reclaimed, fmt.Errorf("queue: requeue stale job: %w", err)
		}
		reclaimed++
	}
	return reclaimed, nil
}

func (q *Redis) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Queue: q.name}

	var err error
	if stats.Waiting, err = q.client.LLen(ctx, q.waitingKey).Result(); err != nil {
		return Stats{}, fmt.Errorf("queue: stats failed: %w", err)
	}
	if stats.Active, err = q.client.LLen(ctx, q.activeKey).Result(); err != nil {
		return Stats{}, fmt.Errorf("queue: stats failed: %w", err)
	}
	if stats.Failed, err = q.client.LLen(ctx, q.failedKey).Result(); err != nil {
		return Stats{}, fmt.Errorf("queue: stats failed: %w", err)
	}
	stats.Completed, err = q.client.Get(ctx, q.completedKey).Int64()
	if err != nil && err != redis.Nil {
		return Stats{}, fmt.Errorf("queue: stats failed: %w", err)
	}
	return stats, nil
}

func (q *Redis) Close() error {
	return q.client.Close()
}

func (q *Redis) payload(job Job) string {
	if job.raw != "" {
		return job.raw
	}
	data, _ := json.Marshal(job)
	return string(data)
}
