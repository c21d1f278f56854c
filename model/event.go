package model

import "time"

type EventType string

const (
	EventStart    EventType = "start"
	EventThinking EventType = "thinking"
	EventPartial  EventType = "partial"
	EventDecision EventType = "decision"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventError
}

// Event is one progress notification pushed to a session observer.
// Only the fields relevant to Type are set.
type Event struct {
	Type      EventType `json:"type"`
	IntentID  string    `json:"intent_id"`
	Role      Role      `json:"role,omitempty"`
	Round     int       `json:"round,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	MaxRounds int              `json:"max_rounds,omitempty"`
	Content   string           `json:"content,omitempty"`
	Decision  Decision         `json:"decision,omitempty"`
	Amounts   *DeclaredAmounts `json:"declared_amounts,omitempty"`

	Outcome      Outcome           `json:"outcome,omitempty"`
	RoundsUsed   int               `json:"rounds_used,omitempty"`
	DecidingRole Role              `json:"deciding_role,omitempty"`
	Settlement   *SettlementResult `json:"settlement,omitempty"`

	ErrorKind string `json:"kind,omitempty"`
	Message   string `json:"message,omitempty"`
}
