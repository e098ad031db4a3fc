package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/edupay/feepay/internal/model"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// uniqueViolation is the Postgres error code raised when the
// (payer_id, paid_on) unique index rejects a second same-day payment.
const uniqueViolation = "23505"

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create opens a DB transaction, locks the payer row, debits the balance,
// and inserts the payment record. Either both effects commit or neither
// does; concurrent debits against the same payer serialize on the row lock.
func (r *PaymentRepository) Create(ctx context.Context, payerID int64, amount decimal.Decimal, method string) (model.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Payment{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var balanceStr string
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE id = $1 FOR UPDATE`,
		payerID,
	).Scan(&balanceStr)
	if err == sql.ErrNoRows {
		return model.Payment{}, ErrPayerNotFound
	}
	if err != nil {
		return model.Payment{}, fmt.Errorf("failed to lock payer: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return model.Payment{}, fmt.Errorf("invalid balance in database: %w", err)
	}
	if balance.LessThan(amount) {
		return model.Payment{}, ErrInsufficientBalance
	}

	newBalance := balance.Sub(amount)
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET balance = $1, updated_at = NOW() WHERE id = $2`,
		newBalance.StringFixed(2), payerID,
	)
	if err != nil {
		return model.Payment{}, fmt.Errorf("failed to update balance: %w", err)
	}

	p := model.Payment{
		PayerID: payerID,
		Amount:  amount,
		Method:  method,
		Status:  model.StatusPending,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO payments (payer_id, amount, method, status, paid_on)
		 VALUES ($1, $2, $3, $4, CURRENT_DATE)
		 RETURNING id, paid_on, created_at`,
		payerID, amount.StringFixed(2), method, p.Status,
	).Scan(&p.ID, &p.PaidOn, &p.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return model.Payment{}, ErrDuplicatePayment
		}
		return model.Payment{}, fmt.Errorf("failed to insert payment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return model.Payment{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}

// ListWithPayers returns every payment joined with the payer's name and
// email, newest first.
func (r *PaymentRepository) ListWithPayers(ctx context.Context) ([]model.PaymentWithPayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.payer_id, p.amount, p.method, p.status, p.paid_on, p.created_at,
		        u.name, u.email
		 FROM payments p
		 JOIN users u ON u.id = p.payer_id
		 ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []model.PaymentWithPayer{}
	for rows.Next() {
		var p model.PaymentWithPayer
		var amountStr string
		if err := rows.Scan(&p.ID, &p.PayerID, &amountStr, &p.Method, &p.Status,
			&p.PaidOn, &p.CreatedAt, &p.PayerName, &p.PayerEmail); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("invalid amount in database: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// GetByID fetches a single payment.
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (model.Payment, error) {
	var p model.Payment
	var amountStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, payer_id, amount, method, status, paid_on, created_at
		 FROM payments WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.PayerID, &amountStr, &p.Method, &p.Status, &p.PaidOn, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Payment{}, ErrPaymentNotFound
	}
	if err != nil {
		return model.Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}
	if p.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return model.Payment{}, fmt.Errorf("invalid amount in database: %w", err)
	}
	return p, nil
}

// MarkCompleted transitions the payment to completed. Safe under
// redelivery: a payment that is already completed is left untouched.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, model.StatusCompleted)
}

// MarkFailed records that finalization was dead-lettered.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, model.StatusFailed)
}

func (r *PaymentRepository) setStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $1 WHERE id = $2 AND status <> $1`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		// Either the row is gone or the status already matches. Only the
		// former is an error.
		var exists bool
		err = r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, id,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check payment existence: %w", err)
		}
		if !exists {
			return ErrPaymentNotFound
		}
	}
	return nil
}

// PendingIDs returns payments still pending after the grace period, used by
// the worker's startup sweep to re-derive finalization jobs lost between
// commit and enqueue.
func (r *PaymentRepository) PendingIDs(ctx context.Context, olderThan time.Duration) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM payments
		 WHERE status = $1 AND created_at < NOW() - $2::interval
		 ORDER BY created_at`,
		model.StatusPending, fmt.Sprintf("%d seconds", int(olderThan.Seconds())),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending payments: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan payment id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
