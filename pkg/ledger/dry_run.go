// Package ledger provides a transferer that records payments without moving funds.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Transfer struct {
	ID     string
	From   string
	To     string
	Amount decimal.Decimal
	Memo   string
	At     time.Time
}

// DryRun accepts every transfer and keeps it in memory.
type DryRun struct {
	mu        sync.Mutex
	transfers []Transfer
	logger    *zap.Logger
}

func NewDryRun(logger *zap.Logger) *DryRun {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRun{logger: logger}
}

func (d *DryRun) Transfer(ctx context.Context, from, to string, amount decimal.Decimal, memo string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t := Transfer{
		ID:     "dry_" + ulid.Make().String(),
		From:   from,
		To:     to,
		Amount: amount,
		Memo:   memo,
		At:     time.Now(),
	}
	d.mu.Lock()
	d.transfers = append(d.transfers, t)
	d.mu.Unlock()

	d.logger.Info("Dry-run transfer",
		zap.String("tx_id", t.ID),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("amount", amount.String()),
		zap.String("memo", memo),
	)
	return t.ID, nil
}

// Transfers returns a copy of everything recorded so far.
func (d *DryRun) Transfers() []Transfer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Transfer, len(d.transfers))
	copy(out, d.transfers)
	return out
}
