package service

import (
	"context"

	"github.com/edupay/feepay/internal/model"

	"github.com/shopspring/decimal"
)

// BalanceStore is the slice of the user repository the service needs.
type BalanceStore interface {
	GetBalance(ctx context.Context, payerID int64) (decimal.Decimal, error)
}

// UserService handles queries about payer state.
type UserService struct {
	store BalanceStore
}

func NewUserService(store BalanceStore) *UserService {
	return &UserService{store: store}
}

// GetBalance returns the formatted balance for the given payer.
func (s *UserService) GetBalance(ctx context.Context, payerID int64) (*model.BalanceResponse, error) {
	balance, err := s.store.GetBalance(ctx, payerID)
	if err != nil {
		return nil, err
	}
	return &model.BalanceResponse{
		PayerID: payerID,
		Balance: balance.StringFixed(2),
	}, nil
}
