package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetBalance returns the payer's current balance.
func (r *UserRepository) GetBalance(ctx context.Context, payerID int64) (decimal.Decimal, error) {
	var balanceStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE id = $1`,
		payerID,
	).Scan(&balanceStr)
	if err == sql.ErrNoRows {
		return decimal.Decimal{}, ErrPayerNotFound
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to get balance: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid balance in database: %w", err)
	}
	return balance, nil
}
