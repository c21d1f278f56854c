package usecase

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"negotiation-backend/model"
)

const tracerName = "negotiation-backend/usecase"

// OpeningPrompt is the content-free message handed to the initiator for the
// opening turn.
const OpeningPrompt = "You are opening this negotiation. Introduce the item and make your first offer."

// IntentStore is the part of the data store a session touches.
type IntentStore interface {
	GetByID(ctx context.Context, id string) (*model.Intent, error)
	UpdateStatus(ctx context.Context, id string, status model.IntentStatus) error
}

// Session is the state machine for one negotiation attempt over one intent.
//
// Round r is the seller's turn followed by the buyer's; the opening turn is the
// seller's turn of round 1. An accept or reject from either role ends the
// session at once. The session is driven by a single goroutine and is
// immutable once its outcome is terminal.
type Session struct {
	id        string
	intent    *model.Intent
	maxRounds int

	executor TurnExecutor
	settler  Settler
	store    IntentStore
	emitter  Emitter
	logger   *zap.Logger

	history      []model.ConversationEntry
	turns        []model.Turn
	round        int
	next         model.Role
	outcome      model.Outcome
	decidingRole model.Role
	settlement   *model.SettlementResult
	settled      bool
	err          error
}

func newSession(id string, intent *model.Intent, maxRounds int, executor TurnExecutor, settler Settler, store IntentStore, emitter Emitter, logger *zap.Logger) *Session {
	return &Session{
		id:        id,
		intent:    intent,
		maxRounds: maxRounds,
		executor:  executor,
		settler:   settler,
		store:     store,
		emitter:   emitter,
		logger:    logger.With(zap.String("session_id", id), zap.String("intent_id", intent.ID)),
		round:     1,
		next:      model.RoleSeller,
		outcome:   model.OutcomeInProgress,
	}
}

func (s *Session) Done() bool {
	return s.outcome.Terminal()
}

// Run emits start, drives turns until a terminal outcome and emits exactly
// one terminal event.
func (s *Session) Run(ctx context.Context) model.NegotiationResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "negotiation.session")
	defer span.End()
	span.SetAttributes(attribute.String("intent.id", s.intent.ID), attribute.Int("max_rounds", s.maxRounds))

	if err := s.emit(ctx, model.Event{Type: model.EventStart, MaxRounds: s.maxRounds}); err != nil {
		s.fail(&NegotiationError{Kind: KindCancelled, Err: err})
	}
	for !s.Done() {
		s.Advance(ctx)
	}
	s.finish(ctx)

	span.SetAttributes(attribute.String("outcome", string(s.outcome)), attribute.Int("rounds_used", s.round))
	if s.err != nil {
		span.RecordError(s.err)
		span.SetStatus(codes.Error, string(KindOf(s.err)))
	}
	return s.Result()
}

// Advance executes the next turn. It is a no-op once the session is terminal.
func (s *Session) Advance(ctx context.Context) {
	if s.Done() {
		return
	}
	if err := ctx.Err(); err != nil {
		s.fail(&NegotiationError{Kind: KindCancelled, Err: err})
		return
	}

	role, round := s.next, s.round
	ctx, span := otel.Tracer(tracerName).Start(ctx, "negotiation.turn")
	defer span.End()
	span.SetAttributes(attribute.String("role", string(role)), attribute.Int("round", round))

	if err := s.emit(ctx, model.Event{Type: model.EventThinking, Role: role, Round: round}); err != nil {
		s.fail(&NegotiationError{Kind: KindCancelled, Role: role, Round: round, Err: err})
		return
	}

	inbound := OpeningPrompt
	if n := len(s.history); n > 0 {
		inbound = s.history[n-1].Content
	}
	req := TurnRequest{
		IntentID: s.intent.ID,
		Role:     role,
		Round:    round,
		Inbound:  inbound,
		History:  append([]model.ConversationEntry(nil), s.history...),
	}
	relay := func(fragment string) {
		s.emitter.Relay(s.event(model.Event{Type: model.EventPartial, Role: role, Round: round, Content: fragment}))
	}

	turn, err := s.executor.Execute(ctx, req, relay)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		s.logger.Warn("Turn failed", zap.String("role", string(role)), zap.Int("round", round), zap.Error(err))
		s.fail(err)
		return
	}
	turn.Role, turn.Round = role, round
	span.SetAttributes(attribute.String("decision", string(turn.Decision)))

	s.history = append(s.history, model.ConversationEntry{Role: role, Content: turn.Narrative})
	s.turns = append(s.turns, turn)
	s.logger.Debug("Turn decided", zap.String("role", string(role)), zap.Int("round", round), zap.String("decision", string(turn.Decision)))

	decision := model.Event{Type: model.EventDecision, Role: role, Round: round, Decision: turn.Decision, Amounts: turn.Amounts}
	if turn.Decision.Terminal() {
		s.outcome = model.OutcomeFor(turn.Decision)
		s.decidingRole = role
		s.applyTerminal(ctx, turn)
		decision.Settlement = s.settlement
		// the outcome is already fixed; a gone observer changes nothing here
		_ = s.emit(ctx, decision)
		return
	}

	if err := s.emit(ctx, decision); err != nil {
		s.fail(&NegotiationError{Kind: KindCancelled, Role: role, Round: round, Err: err})
		return
	}

	if role == model.RoleBuyer {
		if s.round >= s.maxRounds {
			s.outcome = model.OutcomeMaxRoundsReached
			return
		}
		s.round++
	}
	s.next = role.Other()
}

// applyTerminal runs the side effects of accept/reject. They run on a context
// detached from the observer so a disconnect cannot interrupt them halfway.
func (s *Session) applyTerminal(ctx context.Context, turn model.Turn) {
	ctx = context.WithoutCancel(ctx)

	if s.outcome == model.OutcomeAccepted {
		if err := s.store.UpdateStatus(ctx, s.intent.ID, model.IntentCompleted); err != nil {
			s.logger.Error("Failed to complete intent", zap.Error(err))
			s.fail(&NegotiationError{Kind: KindDataStoreFailure, Role: turn.Role, Round: turn.Round, Err: err})
			return
		}
		s.intent.Status = model.IntentCompleted
	}

	if s.settled {
		return
	}
	s.settled = true
	res := s.settler.Settle(ctx, s.intent, s.outcome, s.agreedAmounts(turn))
	s.settlement = &res
}

// agreedAmounts picks the amounts settlement uses: the deciding turn's own
// declaration wins, otherwise the latest earlier declaration in the session.
func (s *Session) agreedAmounts(turn model.Turn) *model.DeclaredAmounts {
	if turn.Amounts.HasPrice() || s.outcome != model.OutcomeAccepted {
		return turn.Amounts
	}
	for i := len(s.turns) - 2; i >= 0; i-- {
		if s.turns[i].Amounts.HasPrice() {
			return s.turns[i].Amounts
		}
	}
	return turn.Amounts
}

func (s *Session) fail(err error) {
	s.outcome = model.OutcomeErrored
	s.err = err
}

// finish emits the single terminal event.
func (s *Session) finish(ctx context.Context) {
	var ev model.Event
	if s.outcome == model.OutcomeErrored {
		ev = model.Event{Type: model.EventError, ErrorKind: string(KindOf(s.err)), Message: s.err.Error()}
	} else {
		ev = model.Event{
			Type:         model.EventComplete,
			Outcome:      s.outcome,
			RoundsUsed:   s.round,
			DecidingRole: s.decidingRole,
			Settlement:   s.settlement,
		}
	}
	if err := s.emit(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("Terminal event not delivered", zap.Error(err))
	}
	s.logger.Info("Negotiation finished",
		zap.String("outcome", string(s.outcome)),
		zap.Int("rounds", s.round),
		zap.String("deciding_role", string(s.decidingRole)))
}

func (s *Session) emit(ctx context.Context, ev model.Event) error {
	return s.emitter.Emit(ctx, s.event(ev))
}

func (s *Session) event(ev model.Event) model.Event {
	ev.IntentID = s.intent.ID
	ev.Timestamp = time.Now()
	return ev
}

// Result snapshots the session.
func (s *Session) Result() model.NegotiationResult {
	return model.NegotiationResult{
		SessionID:    s.id,
		IntentID:     s.intent.ID,
		Outcome:      s.outcome,
		RoundsUsed:   s.round,
		DecidingRole: s.decidingRole,
		History:      append([]model.ConversationEntry(nil), s.history...),
		Turns:        append([]model.Turn(nil), s.turns...),
		Settlement:   s.settlement,
		Err:          s.err,
	}
}
