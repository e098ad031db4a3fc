package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory implements Queue with the same state machine as the Redis
// implementation, for tests and single-process local runs.
type Memory struct {
	name string

	mu          sync.Mutex
	waiting     []Job
	active      map[string]Job
	claims      map[string]time.Time
	failed      []Job
	completed   int64
	outstanding map[int64]string
	closed      bool
}

func NewMemory(name string) *Memory {
	return &Memory{
		name:        name,
		active:      make(map[string]Job),
		claims:      make(map[string]time.Time),
		outstanding: make(map[int64]string),
	}
}

func (q *Memory) Enqueue(ctx context.Context, paymentID int64) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.outstanding[paymentID]; exists {
		return Job{}, ErrJobOutstanding
	}
	job := Job{
		ID:         uuid.NewString(),
		PaymentID:  paymentID,
		EnqueuedAt: time.Now().UTC(),
	}
	q.outstanding[paymentID] = job.ID
	q.waiting = append(q.waiting, job)
	return job, nil
}

func (q *Memory) Dequeue(ctx context.Context, wait time.Duration) (Job, error) {
	deadline := time.Now().Add(wait)
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}

		q.mu.Lock()
		if len(q.waiting) > 0 {
			job := q.waiting[0]
			q.waiting = q.waiting[1:]
			q.active[job.ID] = job
			q.claims[job.ID] = time.Now()
			q.mu.Unlock()
			return job, nil
		}
		q.mu.Unlock()

		if !time.Now().Before(deadline) {
			return Job{}, ErrEmpty
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (q *Memory) Ack(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.active, job.ID)
	delete(q.claims, job.ID)
	delete(q.outstanding, job.PaymentID)
	q.completed++
	return nil
}

func (q *Memory) DeadLetter(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.active, job.ID)
	delete(q.claims, job.ID)
	delete(q.outstanding, job.PaymentID)
	q.failed = append(q.failed, job)
	return nil
}

func (q *Memory) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	reclaimed := 0
	for id, job := range q.active {
		if q.claims[id].After(cutoff) {
			continue
		}
		delete(q.active, id)
		delete(q.claims, id)
		job.Attempts++
		q.waiting = append(q.waiting, job)
		reclaimed++
	}
	return reclaimed, nil
}

func (q *Memory) Stats(ctx context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Queue:     q.name,
		Waiting:   int64(len(q.waiting)),
		Active:    int64(len(q.active)),
		Completed: q.completed,
		Failed:    int64(len(q.failed)),
	}, nil
}

func (q *Memory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// Failed returns a copy of the dead-letter list, for tests and inspection.
func (q *Memory) Failed() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, len(q.failed))
	copy(out, q.failed)
	return out
}
