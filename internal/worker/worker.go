// Package worker drains the finalization queue and advances each referenced
// payment to its terminal status. Delivery is at-least-once, so every step
// here is idempotent; transient storage failures are retried with backoff
// and exhausted or permanently-failing jobs are dead-lettered.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edupay/feepay/internal/events"
	"github.com/edupay/feepay/internal/model"
	"github.com/edupay/feepay/internal/queue"
	"github.com/edupay/feepay/internal/repository"
)

// PaymentStore is the slice of the repository the worker needs.
type PaymentStore interface {
	GetByID(ctx context.Context, id int64) (model.Payment, error)
	MarkCompleted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
	PendingIDs(ctx context.Context, olderThan time.Duration) ([]int64, error)
}

type Config struct {
	// MaxAttempts bounds in-process retries per job and queue redeliveries.
	MaxAttempts int
	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration
	// JobTimeout bounds the processing of a single job.
	JobTimeout time.Duration
	// DequeueWait is the blocking window of one dequeue call.
	DequeueWait time.Duration
	// ReclaimAfter is the visibility timeout for claimed jobs.
	ReclaimAfter time.Duration
	// ReclaimEvery is how often stale claims are swept.
	ReclaimEvery time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 200 * time.Millisecond
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	if c.DequeueWait <= 0 {
		c.DequeueWait = 2 * time.Second
	}
	if c.ReclaimAfter <= 0 {
		c.ReclaimAfter = time.Minute
	}
	if c.ReclaimEvery <= 0 {
		c.ReclaimEvery = 30 * time.Second
	}
}

type Worker struct {
	store  PaymentStore
	queue  queue.Queue
	events events.Publisher
	logger *slog.Logger
	cfg    Config
}

func New(store PaymentStore, q queue.Queue, pub events.Publisher, logger *slog.Logger, cfg Config) *Worker {
	cfg.applyDefaults()
	return &Worker{store: store, queue: q, events: pub, logger: logger, cfg: cfg}
}

// Run consumes jobs until ctx is cancelled. Multiple Run loops (in one
// process or many) may share a queue.
func (w *Worker) Run(ctx context.Context) error {
	go w.reclaimLoop(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		job, err := w.queue.Dequeue(ctx, w.cfg.DequeueWait)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.cfg.BaseBackoff):
			}
			continue
		}

		w.Handle(ctx, job)
	}
}

// Handle processes one delivered job to a terminal outcome: ack on success,
// dead-letter on permanent failure or retry exhaustion.
func (w *Worker) Handle(ctx context.Context, job queue.Job) {
	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	err := w.processJob(jobCtx, job)
	if err == nil {
		if ackErr := w.queue.Ack(ctx, job); ackErr != nil {
			// The job stays claimed and will be reclaimed; reprocessing it
			// is safe because finalization is idempotent.
			w.logger.Error("ack failed", "jobID", job.ID, "paymentID", job.PaymentID, "error", ackErr)
		}
		return
	}

	if errors.Is(err, repository.ErrPaymentNotFound) {
		w.logger.Warn("payment missing, dead-lettering job",
			"jobID", job.ID, "paymentID", job.PaymentID)
		w.deadLetter(ctx, job)
		return
	}

	w.logger.Error("finalization exhausted retries, dead-lettering job",
		"jobID", job.ID, "paymentID", job.PaymentID, "attempts", w.cfg.MaxAttempts, "error", err)
	w.deadLetter(ctx, job)

	markCtx, markCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer markCancel()
	if markErr := w.store.MarkFailed(markCtx, job.PaymentID); markErr != nil {
		w.logger.Error("failed to mark payment failed", "paymentID", job.PaymentID, "error", markErr)
	}
}

func (w *Worker) processJob(ctx context.Context, job queue.Job) error {
	if job.Attempts >= w.cfg.MaxAttempts {
		return fmt.Errorf("job redelivered %d times", job.Attempts)
	}

	backoff := w.cfg.BaseBackoff
	var err error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		err = w.finalize(ctx, job.PaymentID)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return err
		}
		if attempt == w.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("job timed out: %w", err)
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return err
}

// finalize is the idempotent unit of work: reprocessing a payment that is
// already completed is a no-op.
func (w *Worker) finalize(ctx context.Context, paymentID int64) error {
	p, err := w.store.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Status == model.StatusCompleted {
		return nil
	}
	if err := w.store.MarkCompleted(ctx, p.ID); err != nil {
		return err
	}
	w.events.PaymentCompleted(p.ID)
	return nil
}

func (w *Worker) deadLetter(ctx context.Context, job queue.Job) {
	if err := w.queue.DeadLetter(ctx, job); err != nil {
		w.logger.Error("dead-letter failed", "jobID", job.ID, "error", err)
	}
}

// RequeuePending enqueues finalization jobs for payments that stayed
// pending past the grace period, covering enqueues lost after commit.
// Payments with an outstanding job are skipped by the queue's dedup.
func (w *Worker) RequeuePending(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := w.store.PendingIDs(ctx, olderThan)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, id := range ids {
		_, err := w.queue.Enqueue(ctx, id)
		if errors.Is(err, queue.ErrJobOutstanding) {
			continue
		}
		if err != nil {
			return requeued, err
		}
		requeued++
	}
	if requeued > 0 {
		w.logger.Info("requeued pending payments", "count", requeued)
	}
	return requeued, nil
}

func (w *Worker) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ReclaimEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.queue.ReclaimStale(ctx, w.cfg.ReclaimAfter)
			if err != nil {
				if ctx.Err() == nil {
					w.logger.Error("reclaim failed", "error", err)
				}
				continue
			}
			if n > 0 {
				w.logger.Info("reclaimed stale jobs", "count", n)
			}
		}
	}
}
