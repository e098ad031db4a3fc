package repository

import "errors"

var (
	ErrPayerNotFound       = errors.New("payer not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicatePayment    = errors.New("duplicate payment for payer on this date")
)
