package model

import "github.com/shopspring/decimal"

type Outcome string

const (
	OutcomeInProgress       Outcome = "in_progress"
	OutcomeAccepted         Outcome = "accepted"
	OutcomeRejected         Outcome = "rejected"
	OutcomeMaxRoundsReached Outcome = "max_rounds_reached"
	OutcomeErrored          Outcome = "errored"
)

func (o Outcome) Terminal() bool {
	return o != OutcomeInProgress && o != ""
}

// OutcomeFor maps a terminal decision onto the session outcome.
func OutcomeFor(d Decision) Outcome {
	switch d {
	case DecisionAccept:
		return OutcomeAccepted
	case DecisionReject:
		return OutcomeRejected
	default:
		return OutcomeInProgress
	}
}

// SettlementResult is produced at most once per session.
type SettlementResult struct {
	AmountPaid     *decimal.Decimal `json:"amount_paid,omitempty"`
	AmountRefunded *decimal.Decimal `json:"amount_refunded,omitempty"`
	TransactionIDs []string         `json:"transaction_ids"`
	Error          string           `json:"error,omitempty"`

	Err error `json:"-"`
}

func (r *SettlementResult) Failed() bool {
	return r != nil && r.Err != nil
}

// NegotiationResult is the summary of a finished session.
type NegotiationResult struct {
	SessionID    string              `json:"session_id"`
	IntentID     string              `json:"intent_id"`
	Outcome      Outcome             `json:"outcome"`
	RoundsUsed   int                 `json:"rounds"`
	DecidingRole Role                `json:"final_decision_by,omitempty"`
	History      []ConversationEntry `json:"conversation"`
	Turns        []Turn              `json:"-"`
	Settlement   *SettlementResult   `json:"settlement,omitempty"`
	Err          error               `json:"-"`
}

// InitiateResult is the synchronous answer of the two-turn opening exchange.
type InitiateResult struct {
	IntentID       string            `json:"intent_id"`
	SellerPitch    string            `json:"seller_pitch"`
	BuyerResponse  string            `json:"buyer_response"`
	BuyerDecision  Decision          `json:"buyer_decision,omitempty"`
	SellerDecision Decision          `json:"seller_decision"`
	Outcome        Outcome           `json:"outcome"`
	Settlement     *SettlementResult `json:"settlement,omitempty"`
}
