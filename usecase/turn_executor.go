package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"negotiation-backend/model"
	"negotiation-backend/pkg/oracle"
)

// TurnRequest is everything one role needs to take its turn.
type TurnRequest struct {
	IntentID string
	Role     model.Role
	Round    int
	// Inbound is the message the other role produced last, or the opening
	// prompt for the first turn.
	Inbound string
	History []model.ConversationEntry
}

// TurnExecutor drives exactly one role's turn. relay receives narrative
// fragments as they are produced.
type TurnExecutor interface {
	Execute(ctx context.Context, req TurnRequest, relay func(fragment string)) (model.Turn, error)
}

// OracleStreamer is the transport to a role endpoint.
type OracleStreamer interface {
	Stream(ctx context.Context, endpoint string, req oracle.Request, handler oracle.FrameHandler) error
}

// OracleTurnExecutor executes turns against the HTTP oracle endpoints, one per role.
type OracleTurnExecutor struct {
	client    OracleStreamer
	endpoints map[model.Role]string
	timeout   time.Duration
	logger    *zap.Logger
}

func NewOracleTurnExecutor(client OracleStreamer, sellerURL, buyerURL string, timeout time.Duration, logger *zap.Logger) *OracleTurnExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OracleTurnExecutor{
		client: client,
		endpoints: map[model.Role]string{
			model.RoleSeller: sellerURL,
			model.RoleBuyer:  buyerURL,
		},
		timeout: timeout,
		logger:  logger,
	}
}

// Execute never retries. Transport failures, non-success statuses, error
// frames and timeouts all fail with ErrOracleUnavailable; a turn without any
// usable narrative fails with ErrEmptyTurn.
func (e *OracleTurnExecutor) Execute(ctx context.Context, req TurnRequest, relay func(fragment string)) (model.Turn, error) {
	fail := func(kind ErrorKind, err error) (model.Turn, error) {
		return model.Turn{}, &NegotiationError{Kind: kind, Role: req.Role, Round: req.Round, Err: err}
	}

	endpoint := e.endpoints[req.Role]
	if endpoint == "" {
		return fail(KindOracleUnavailable, fmt.Errorf("no endpoint configured for %s", req.Role))
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	acc := &turnAccumulator{relay: relay, logger: e.logger.With(zap.String("role", string(req.Role)), zap.Int("round", req.Round))}
	err := e.client.Stream(callCtx, endpoint, oracle.Request{
		IntentID:     req.IntentID,
		Role:         req.Role,
		PriorMessage: req.Inbound,
		History:      req.History,
	}, acc)
	if err != nil {
		if ctx.Err() != nil {
			return fail(KindCancelled, ctx.Err())
		}
		return fail(KindOracleUnavailable, err)
	}
	if acc.oracleErr != "" {
		return fail(KindOracleUnavailable, fmt.Errorf("oracle reported: %s", acc.oracleErr))
	}

	narrative := acc.text.String()
	var payload *FinalPayload
	if acc.final != nil {
		if narrative == "" {
			narrative = acc.final.Content
		}
		payload = &FinalPayload{Decision: acc.final.Decision, DeclaredAmounts: acc.final.DeclaredAmounts}
	}
	if strings.TrimSpace(narrative) == "" {
		return fail(KindEmptyTurn, fmt.Errorf("no usable narrative from %s (%d malformed frames)", endpoint, acc.malformed))
	}

	turn, anomaly := ParseTurn(req.Role, req.Round, narrative, payload)
	if anomaly != nil {
		acc.logger.Warn("Malformed decision downgraded to continue", zap.Error(anomaly))
	}
	return turn, nil
}

// turnAccumulator collects one turn's stream.
type turnAccumulator struct {
	relay     func(string)
	logger    *zap.Logger
	text      strings.Builder
	final     *oracle.Frame
	oracleErr string
	malformed int
}

func (a *turnAccumulator) OnFrame(f oracle.Frame) {
	switch f.Type {
	case oracle.FrameText:
		if f.Content == "" {
			return
		}
		a.text.WriteString(f.Content)
		if a.relay != nil {
			a.relay(f.Content)
		}
	case oracle.FrameFinal:
		if a.final == nil {
			a.final = &f
		}
	case oracle.FrameError:
		a.oracleErr = f.Content
		if a.oracleErr == "" {
			a.oracleErr = "unspecified error"
		}
	default:
		a.malformed++
		a.logger.Warn("Skipping frame of unknown type", zap.String("type", string(f.Type)))
	}
}

func (a *turnAccumulator) OnMalformed(raw string, err error) {
	a.malformed++
	if len(raw) > 200 {
		raw = raw[:200]
	}
	a.logger.Warn("Skipping malformed frame", zap.String("raw", raw), zap.Error(err))
}
