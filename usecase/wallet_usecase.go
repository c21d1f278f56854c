package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"negotiation-backend/dao"
	"negotiation-backend/model"
)

var ErrWalletNotFound = errors.New("wallet not found")

type WalletUsecase struct {
	repo *dao.BalanceRepository
}

func NewWalletUsecase(repo *dao.BalanceRepository) *WalletUsecase {
	return &WalletUsecase{repo: repo}
}

func (u *WalletUsecase) GetBalance(ctx context.Context, walletID string) (*model.WalletBalance, error) {
	b, err := u.repo.Get(ctx, walletID)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, ErrWalletNotFound
	}
	return b, err
}

// Deposit books funds arriving in a wallet, e.g. the originator funding escrow
// before a negotiation.
func (u *WalletUsecase) Deposit(ctx context.Context, walletID string, amount decimal.Decimal) (*model.WalletBalance, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("deposit amount must be positive, got %s", amount)
	}
	current, err := u.repo.GetBalance(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if err := u.repo.UpsertBalance(ctx, walletID, current.Add(amount)); err != nil {
		return nil, err
	}
	return u.repo.Get(ctx, walletID)
}
