package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edupay/feepay/internal/events"
	"github.com/edupay/feepay/internal/method"
	"github.com/edupay/feepay/internal/model"
	"github.com/edupay/feepay/internal/queue"

	"github.com/shopspring/decimal"
)

// ErrValidation covers caller-fixable input problems: missing payer,
// non-positive amount, unrecognized method.
var ErrValidation = errors.New("invalid payment request")

// PaymentStore is the slice of the repository the recorder needs.
type PaymentStore interface {
	Create(ctx context.Context, payerID int64, amount decimal.Decimal, methodName string) (model.Payment, error)
	ListWithPayers(ctx context.Context) ([]model.PaymentWithPayer, error)
}

// PaymentService is the transactional payment recorder: it validates a
// request, applies the atomic insert+debit, and enqueues the finalization
// job once the commit is durable.
type PaymentService struct {
	store  PaymentStore
	queue  queue.Queue
	events events.Publisher
	logger *slog.Logger
}

func NewPaymentService(store PaymentStore, q queue.Queue, pub events.Publisher, logger *slog.Logger) *PaymentService {
	return &PaymentService{store: store, queue: q, events: pub, logger: logger}
}

// RecordPayment validates and durably applies one payment. On success the
// returned payment is already committed together with the payer's debit,
// and a finalization job has been enqueued (or scheduled for the worker's
// reconciliation sweep if the queue was unreachable).
func (s *PaymentService) RecordPayment(ctx context.Context, req model.PaymentRequest) (model.Payment, error) {
	if req.PayerID <= 0 {
		return model.Payment{}, fmt.Errorf("%w: payerId is required", ErrValidation)
	}
	if !req.Amount.IsPositive() {
		return model.Payment{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	m, ok := method.Lookup(req.Method)
	if !ok {
		return model.Payment{}, fmt.Errorf("%w: unknown method %q", ErrValidation, req.Method)
	}

	// Dispatch the method variant before touching storage; a declined
	// charge must leave no trace.
	if err := m.Process(req.Amount); err != nil {
		return model.Payment{}, err
	}

	p, err := s.store.Create(ctx, req.PayerID, req.Amount, m.Name())
	if err != nil {
		return model.Payment{}, err
	}

	// The commit is durable at this point. Enqueue failures must not undo
	// the payment; the worker's pending sweep re-derives lost jobs.
	s.enqueueFinalization(ctx, p.ID)
	s.events.PaymentRecorded(p)

	return p, nil
}

// ListPayments returns all payments with payer identity joined in.
func (s *PaymentService) ListPayments(ctx context.Context) ([]model.PaymentWithPayer, error) {
	return s.store.ListWithPayers(ctx)
}

// QueueStats exposes the finalization queue's depth by state.
func (s *PaymentService) QueueStats(ctx context.Context) (queue.Stats, error) {
	return s.queue.Stats(ctx)
}

const enqueueAttempts = 3

func (s *PaymentService) enqueueFinalization(ctx context.Context, paymentID int64) {
	var err error
	for attempt := 1; attempt <= enqueueAttempts; attempt++ {
		_, err = s.queue.Enqueue(ctx, paymentID)
		if err == nil || errors.Is(err, queue.ErrJobOutstanding) {
			return
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			continue
		}
		break
	}
	s.logger.Error("failed to enqueue finalization job, deferring to pending sweep",
		"paymentID", paymentID, "error", err)
}
