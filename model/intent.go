package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type IntentStatus string

const (
	IntentLive      IntentStatus = "live"
	IntentCompleted IntentStatus = "completed"
	IntentCancelled IntentStatus = "cancelled"
)

// Intent is the record being negotiated over. MaxAmount is the buyer-side ceiling
// and the amount reserved in escrow before the negotiation starts.
type Intent struct {
	ID             string              `json:"id"`
	UserID         string              `json:"user_id"`
	TakerID        *string             `json:"taker_id,omitempty"` // Nullable
	MaxAmount      decimal.Decimal     `json:"max_amount_usd"`
	Description    string              `json:"description"`
	Status         IntentStatus        `json:"status"`
	AmountPaid     decimal.NullDecimal `json:"amount_paid"`
	AmountRefunded decimal.NullDecimal `json:"amount_refunded"`
	CreatedAt      time.Time           `json:"created_at"`
}
