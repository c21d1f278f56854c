package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"negotiation-backend/dao"
	"negotiation-backend/model"
)

// NegotiationLogWriter persists the turns of a finished session.
type NegotiationLogWriter interface {
	AppendLogs(ctx context.Context, logs []model.NegotiationLog) error
}

// NegotiationUsecase is the orchestrator: it creates sessions for intents and
// drives them, relaying session events to the caller's stream. It holds no
// per-session state, so concurrent negotiations of different intents are
// independent. Negotiating the same intent twice at once is the caller's bug.
type NegotiationUsecase struct {
	intents   IntentStore
	executor  TurnExecutor
	settler   Settler
	logs      NegotiationLogWriter
	maxRounds int
	logger    *zap.Logger
}

// NewNegotiationUsecase wires the orchestrator. logs may be nil.
func NewNegotiationUsecase(intents IntentStore, executor TurnExecutor, settler Settler, logs NegotiationLogWriter, maxRounds int, logger *zap.Logger) *NegotiationUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NegotiationUsecase{
		intents:   intents,
		executor:  executor,
		settler:   settler,
		logs:      logs,
		maxRounds: maxRounds,
		logger:    logger,
	}
}

// Start runs a negotiation in the background and returns its event stream.
// The stream is closed after the terminal event; cancelling ctx stops the
// negotiation before its next turn.
func (u *NegotiationUsecase) Start(ctx context.Context, intentID string) *EventStream {
	stream := NewEventStream(defaultStreamBuffer)
	go u.Negotiate(ctx, intentID, stream)
	return stream
}

// Negotiate drives one negotiation to completion, emitting every event to
// stream, and closes the stream when done.
func (u *NegotiationUsecase) Negotiate(ctx context.Context, intentID string, stream *EventStream) model.NegotiationResult {
	defer stream.Close()

	session, err := u.newSession(ctx, intentID, stream)
	if err != nil {
		if emitErr := stream.Emit(ctx, model.Event{
			Type:      model.EventError,
			IntentID:  intentID,
			Timestamp: time.Now(),
			ErrorKind: string(KindOf(err)),
			Message:   err.Error(),
		}); emitErr != nil {
			u.logger.Warn("Terminal event not delivered", zap.String("intent_id", intentID), zap.Error(emitErr))
		}
		return model.NegotiationResult{IntentID: intentID, Outcome: model.OutcomeErrored, Err: err}
	}

	result := session.Run(ctx)
	u.recordLogs(ctx, result)
	if dropped := stream.Dropped(); dropped > 0 {
		u.logger.Debug("Partial events dropped for slow observer", zap.String("intent_id", intentID), zap.Int64("dropped", dropped))
	}
	return result
}

// Initiate runs the opening turn and the first responder turn and returns
// both narratives. A terminal decision in either turn has its usual side
// effects; otherwise the session is left unfinished.
func (u *NegotiationUsecase) Initiate(ctx context.Context, intentID string) (*model.InitiateResult, error) {
	session, err := u.newSession(ctx, intentID, discardEmitter{})
	if err != nil {
		return nil, err
	}

	for !session.Done() && len(session.turns) < 2 {
		session.Advance(ctx)
	}

	result := session.Result()
	u.recordLogs(ctx, result)
	if result.Outcome == model.OutcomeErrored {
		return nil, result.Err
	}

	out := &model.InitiateResult{
		IntentID:   intentID,
		Outcome:    result.Outcome,
		Settlement: result.Settlement,
	}
	for _, t := range result.Turns {
		switch t.Role {
		case model.RoleSeller:
			out.SellerPitch = t.Narrative
			out.SellerDecision = t.Decision
		case model.RoleBuyer:
			out.BuyerResponse = t.Narrative
			out.BuyerDecision = t.Decision
		}
	}
	return out, nil
}

func (u *NegotiationUsecase) newSession(ctx context.Context, intentID string, emitter Emitter) (*Session, error) {
	intent, err := u.intents.GetByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, &NegotiationError{Kind: KindIntentNotFound, Err: ErrIntentNotFound}
		}
		return nil, &NegotiationError{Kind: KindDataStoreFailure, Err: err}
	}
	return newSession(newULID(), intent, u.maxRounds, u.executor, u.settler, u.intents, emitter, u.logger), nil
}

func (u *NegotiationUsecase) recordLogs(ctx context.Context, result model.NegotiationResult) {
	if u.logs == nil || len(result.Turns) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	now := time.Now()
	logs := make([]model.NegotiationLog, 0, len(result.Turns))
	for _, t := range result.Turns {
		l := model.NegotiationLog{
			ID:        newULID(),
			IntentID:  result.IntentID,
			SessionID: result.SessionID,
			Role:      t.Role,
			Round:     t.Round,
			Content:   t.Narrative,
			Decision:  t.Decision,
			LogTime:   now,
		}
		if t.Amounts.HasPrice() {
			l.DeclaredPrice = t.Amounts.Price
		}
		logs = append(logs, l)
	}
	if err := u.logs.AppendLogs(ctx, logs); err != nil {
		u.logger.Warn("Failed to record negotiation logs", zap.String("intent_id", result.IntentID), zap.Error(err))
	}
}

// newULID is safe for concurrent sessions.
func newULID() string {
	return ulid.Make().String()
}
