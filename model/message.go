package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleSeller Role = "seller" // initiator
	RoleBuyer  Role = "buyer"  // responder
)

func (r Role) Valid() bool {
	return r == RoleSeller || r == RoleBuyer
}

// Other returns the counterpart role.
func (r Role) Other() Role {
	if r == RoleSeller {
		return RoleBuyer
	}
	return RoleSeller
}

// ConversationEntry is one append-only line of the shared negotiation context.
type ConversationEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionAccept   Decision = "accept"
	DecisionReject   Decision = "reject"
)

func (d Decision) Terminal() bool {
	return d == DecisionAccept || d == DecisionReject
}

// DeclaredAmounts are the monetary terms an oracle turn put on the table.
// They are carried as declared and never checked against the budget.
type DeclaredAmounts struct {
	Price *decimal.Decimal `json:"price,omitempty"`
}

func (a *DeclaredAmounts) HasPrice() bool {
	return a != nil && a.Price != nil
}

// Turn is the outcome of one role's contribution in a round.
type Turn struct {
	Role      Role             `json:"role"`
	Round     int              `json:"round"`
	Narrative string           `json:"narrative"`
	Decision  Decision         `json:"decision"`
	Amounts   *DeclaredAmounts `json:"declared_amounts,omitempty"`
}

// NegotiationLog is the audit row written for every recorded turn.
type NegotiationLog struct {
	ID            string           `json:"id"`
	IntentID      string           `json:"intent_id"`
	SessionID     string           `json:"session_id"`
	Role          Role             `json:"role"`
	Round         int              `json:"round"`
	Content       string           `json:"content"`
	Decision      Decision         `json:"decision"`
	DeclaredPrice *decimal.Decimal `json:"declared_price,omitempty"`
	LogTime       time.Time        `json:"log_time"`
}
