package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment statuses. A payment is created as pending, the completion worker
// moves it to completed, and a dead-lettered finalization marks it failed.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Payment struct {
	ID        int64           `json:"id"`
	PayerID   int64           `json:"payerId"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Status    string          `json:"status"`
	PaidOn    time.Time       `json:"paidOn"`
	CreatedAt time.Time       `json:"createdAt"`
}

// IsFinal reports whether the payment has reached a terminal status.
func (p Payment) IsFinal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

func (p Payment) IsPending() bool {
	return p.Status == StatusPending
}

// PaymentWithPayer is a payment row joined with the payer's identity,
// returned by the list endpoint.
type PaymentWithPayer struct {
	Payment
	PayerName  string `json:"payerName"`
	PayerEmail string `json:"payerEmail"`
}

type PaymentRequest struct {
	PayerID int64           `json:"payerId"`
	Amount  decimal.Decimal `json:"amount"`
	Method  string          `json:"method"`
}

type BalanceResponse struct {
	PayerID int64  `json:"payerId"`
	Balance string `json:"balance"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
