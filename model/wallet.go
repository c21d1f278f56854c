package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type WalletBalance struct {
	WalletID  string          `json:"wallet_id"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}
