// Package queue holds the durable finalization job queue. Jobs move through
// Bull-style states: waiting, active (claimed by a worker), completed, and
// failed (dead-letter). Delivery is at-least-once; consumers must be
// idempotent.
package queue

import (
	"context"
	"errors"
	"time"
)

// FinalizePayment is the only job type the core uses.
const FinalizePayment = "finalize-payment"

var (
	// ErrEmpty is returned by Dequeue when no job arrives within the wait
	// window.
	ErrEmpty = errors.New("queue: no job available")

	// ErrJobOutstanding is returned by Enqueue when the payment already has
	// an unacknowledged finalization job.
	ErrJobOutstanding = errors.New("queue: job already outstanding for payment")
)

// Job is one unit of finalization work referencing a payment.
type Job struct {
	ID         string    `json:"id"`
	PaymentID  int64     `json:"paymentId"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueuedAt"`

	// raw carries the exact payload the job was delivered with, so the
	// Redis implementation can remove it from the active list byte-for-byte.
	raw string
}

// Stats is a read-only snapshot of queue depth by state.
type Stats struct {
	Queue     string `json:"queue"`
	Waiting   int64  `json:"waiting"`
	Active    int64  `json:"active"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
}

// Queue is the injectable job transport. The Redis implementation backs
// production; the Memory implementation backs tests and local runs.
type Queue interface {
	// Enqueue adds a finalization job for the payment to the waiting state.
	Enqueue(ctx context.Context, paymentID int64) (Job, error)

	// Dequeue blocks up to wait for a job, moving it waiting -> active.
	Dequeue(ctx context.Context, wait time.Duration) (Job, error)

	// Ack removes an active job after successful processing.
	Ack(ctx context.Context, job Job) error

	// DeadLetter moves an active job to the failed state for manual
	// inspection. The payment may be enqueued again afterwards.
	DeadLetter(ctx context.Context, job Job) error

	// ReclaimStale returns jobs claimed longer than olderThan ago to the
	// waiting state, so a crashed worker never leaves a job perpetually
	// claimed. Reports how many jobs were requeued.
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)

	// Stats reports job counts by state.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}
