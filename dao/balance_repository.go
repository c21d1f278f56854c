package dao

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"negotiation-backend/model"
)

// BalanceRepository keeps the off-chain view of wallet balances.
type BalanceRepository struct {
	db     *sql.DB
	driver string
}

func NewBalanceRepository(db *sql.DB, driver string) *BalanceRepository {
	return &BalanceRepository{db: db, driver: driver}
}

// GetBalance returns zero for a wallet that has never been written.
func (r *BalanceRepository) GetBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT amount FROM wallet_balances WHERE wallet_id = ?`, walletID).Scan(&amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return amount, nil
}

func (r *BalanceRepository) Get(ctx context.Context, walletID string) (*model.WalletBalance, error) {
	b := model.WalletBalance{WalletID: walletID}
	err := r.db.QueryRowContext(ctx, `SELECT amount, updated_at FROM wallet_balances WHERE wallet_id = ?`, walletID).Scan(&b.Amount, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *BalanceRepository) UpsertBalance(ctx context.Context, walletID string, amount decimal.Decimal) error {
	query := `INSERT INTO wallet_balances (wallet_id, amount, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(wallet_id) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`
	if r.driver == "mysql" {
		query = `INSERT INTO wallet_balances (wallet_id, amount, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE amount = VALUES(amount), updated_at = VALUES(updated_at)`
	}
	_, err := r.db.ExecContext(ctx, query, walletID, amount, time.Now())
	return err
}
