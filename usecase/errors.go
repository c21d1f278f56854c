package usecase

import (
	"context"
	"errors"
	"fmt"

	"negotiation-backend/model"
)

var (
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrEmptyTurn         = errors.New("empty turn")
	ErrMalformedDecision = errors.New("malformed decision")
	ErrSettlementFailure = errors.New("settlement failure")
	ErrDataStoreFailure  = errors.New("data store failure")
	ErrIntentNotFound    = errors.New("intent not found")
	ErrNoAgreedPrice     = errors.New("no agreed price declared")
)

// ErrorKind is the label an observer sees on an error event.
type ErrorKind string

const (
	KindOracleUnavailable ErrorKind = "OracleUnavailable"
	KindEmptyTurn         ErrorKind = "EmptyTurn"
	KindMalformedDecision ErrorKind = "MalformedDecision"
	KindSettlementFailure ErrorKind = "SettlementFailure"
	KindDataStoreFailure  ErrorKind = "DataStoreFailure"
	KindIntentNotFound    ErrorKind = "IntentNotFound"
	KindCancelled         ErrorKind = "Cancelled"
	KindInternal          ErrorKind = "Internal"
)

var kindSentinels = map[ErrorKind]error{
	KindOracleUnavailable: ErrOracleUnavailable,
	KindEmptyTurn:         ErrEmptyTurn,
	KindMalformedDecision: ErrMalformedDecision,
	KindSettlementFailure: ErrSettlementFailure,
	KindDataStoreFailure:  ErrDataStoreFailure,
	KindIntentNotFound:    ErrIntentNotFound,
}

// NegotiationError ties a failure to the turn it happened in.
// Role and Round are zero for failures outside a turn.
type NegotiationError struct {
	Kind  ErrorKind
	Role  model.Role
	Round int
	Err   error
}

func (e *NegotiationError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("%s: %s turn %d: %v", e.Kind, e.Role, e.Round, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so errors.Is(err, ErrEmptyTurn)
// holds even when Err is a transport error.
func (e *NegotiationError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf reports the observer-facing kind of err.
func KindOf(err error) ErrorKind {
	var ne *NegotiationError
	if errors.As(err, &ne) {
		return ne.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	for kind, s := range kindSentinels {
		if errors.Is(err, s) {
			return kind
		}
	}
	return KindInternal
}
