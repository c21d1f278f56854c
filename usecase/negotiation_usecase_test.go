package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"negotiation-backend/model"
	"negotiation-backend/pkg/oracle"
)

type executorFunc func(ctx context.Context, req TurnRequest, relay func(string)) (model.Turn, error)

func (f executorFunc) Execute(ctx context.Context, req TurnRequest, relay func(string)) (model.Turn, error) {
	return f(ctx, req, relay)
}

type harness struct {
	store     *fakeIntentStore
	transfers *fakeTransferer
	settler   *recordingSettler
	logs      *memLogs
	usecase   *NegotiationUsecase
}

func newHarness(executor TurnExecutor, maxRounds int) *harness {
	h := &harness{
		store:     newFakeIntentStore(testIntent("15000")),
		transfers: &fakeTransferer{},
		logs:      &memLogs{},
	}
	h.settler = &recordingSettler{next: NewSettlementTrigger(h.transfers, nil, h.store, testWallets, zap.NewNop())}
	h.usecase = NewNegotiationUsecase(h.store, executor, h.settler, h.logs, maxRounds, zap.NewNop())
	return h
}

func (h *harness) run(ctx context.Context, intentID string) (model.NegotiationResult, []model.Event) {
	stream := NewEventStream(defaultStreamBuffer)
	done := make(chan model.NegotiationResult, 1)
	go func() { done <- h.usecase.Negotiate(ctx, intentID, stream) }()
	events := drain(stream)
	return <-done, events
}

func only(evs []model.Event, typ model.EventType) []model.Event {
	var out []model.Event
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestNegotiate_BuyerAcceptsAgreedPrice(t *testing.T) {
	exec := &scriptedExecutor{script: []scriptedTurn{
		{narrative: "It's yours for $15,000.", decision: model.DecisionContinue, price: "15000", fragments: []string{"It's yours ", "for $15,000."}},
		{narrative: "I can do $13,000.", decision: model.DecisionContinue, price: "13000"},
		{narrative: "Meet me at $14,200.", decision: model.DecisionContinue, price: "14200"},
		{narrative: "Deal.", decision: model.DecisionAccept},
	}}
	h := newHarness(exec, 10)

	result, events := h.run(context.Background(), "intent-1")

	assert.Equal(t, model.OutcomeAccepted, result.Outcome)
	assert.Equal(t, 2, result.RoundsUsed)
	assert.Equal(t, model.RoleBuyer, result.DecidingRole)
	require.NoError(t, result.Err)
	assert.Len(t, result.History, 4)

	assert.Equal(t, []model.EventType{
		model.EventStart,
		model.EventThinking, model.EventPartial, model.EventPartial, model.EventDecision,
		model.EventThinking, model.EventDecision,
		model.EventThinking, model.EventDecision,
		model.EventThinking, model.EventDecision,
		model.EventComplete,
	}, eventTypes(events))

	complete := events[len(events)-1]
	assert.Equal(t, model.OutcomeAccepted, complete.Outcome)
	assert.Equal(t, 2, complete.RoundsUsed)
	assert.Equal(t, model.RoleBuyer, complete.DecidingRole)
	require.NotNil(t, complete.Settlement)
	assert.True(t, complete.Settlement.AmountPaid.Equal(decimal.NewFromInt(14200)))
	assert.True(t, complete.Settlement.AmountRefunded.Equal(decimal.NewFromInt(800)))
	assert.Empty(t, complete.Settlement.Error)

	decisions := only(events, model.EventDecision)
	assert.NotNil(t, decisions[len(decisions)-1].Settlement)

	assert.Equal(t, []model.IntentStatus{model.IntentCompleted}, h.store.StatusUpdates())
	assert.Equal(t, []model.Outcome{model.OutcomeAccepted}, h.settler.Calls())
	assert.Len(t, h.logs.logs, 4)
}

func TestNegotiate_TurnsAlternateWithGrowingHistory(t *testing.T) {
	exec := &scriptedExecutor{script: []scriptedTurn{
		{narrative: "s1", decision: model.DecisionContinue},
		{narrative: "b1", decision: model.DecisionContinue},
		{narrative: "s2", decision: model.DecisionContinue},
		{narrative: "b2", decision: model.DecisionReject},
	}}
	h := newHarness(exec, 10)
	h.run(context.Background(), "intent-1")

	reqs := exec.Requests()
	require.Len(t, reqs, 4)
	wantRoles := []model.Role{model.RoleSeller, model.RoleBuyer, model.RoleSeller, model.RoleBuyer}
	wantRounds := []int{1, 1, 2, 2}
	for i, req := range reqs {
		assert.Equal(t, wantRoles[i], req.Role, "turn %d", i)
		assert.Equal(t, wantRounds[i], req.Round, "turn %d", i)
		assert.Len(t, req.History, i, "turn %d", i)
	}
	assert.Equal(t, OpeningPrompt, reqs[0].Inbound)
	assert.Equal(t, "s1", reqs[1].Inbound)
	assert.Equal(t, "b1", reqs[2].Inbound)
	assert.Equal(t, model.ConversationEntry{Role: model.RoleSeller, Content: "s2"}, reqs[3].History[2])
}

func TestNegotiate_ResponderRejectsImmediately(t *testing.T) {
	exec := &scriptedExecutor{script: []scriptedTurn{
		{narrative: "Twenty thousand, firm.", decision: model.DecisionContinue, price: "20000"},
		{narrative: "Not interested.", decision: model.DecisionReject},
	}}
	h := newHarness(exec, 10)

	result, events := h.run(context.Background(), "intent-1")

	assert.Equal(t, model.OutcomeRejected, result.Outcome)
	assert.Equal(t, 1, result.RoundsUsed)
	assert.Equal(t, model.RoleBuyer, result.DecidingRole)

	complete := events[len(events)-1]
	require.Equal(t, model.EventComplete, complete.Type)
	assert.Equal(t, model.OutcomeRejected, complete.Outcome)
	require.NotNil(t, complete.Settlement)
	assert.Nil(t, complete.Settlement.AmountPaid)
	assert.True(t, complete.Settlement.AmountRefunded.Equal(decimal.NewFromInt(15000)))

	calls := h.transfers.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "user", calls[0].To)
	assert.Empty(t, h.store.StatusUpdates())
}

func TestNegotiate_MaxRoundsReached(t *testing.T) {
	exec := &scriptedExecutor{}
	h := newHarness(exec, 10)

	result, events := h.run(context.Background(), "intent-1")

	assert.Equal(t, model.OutcomeMaxRoundsReached, result.Outcome)
	assert.Equal(t, 10, result.RoundsUsed)
	assert.Len(t, exec.Requests(), 20)
	assert.Len(t, result.History, 20)
	assert.Empty(t, h.settler.Calls())
	assert.Empty(t, h.store.StatusUpdates())

	complete := events[len(events)-1]
	assert.Equal(t, model.EventComplete, complete.Type)
	assert.Equal(t, 10, complete.RoundsUsed)
	assert.Nil(t, complete.Settlement)
	assert.Len(t, only(events, model.EventComplete), 1)
}

func TestNegotiate_SettlementPartialFailure(t *testing.T) {
	exec := &scriptedExecutor{script: []scriptedTurn{
		{narrative: "14200 and it's yours.", decision: model.DecisionContinue, price: "14200"},
		{narrative: "Accepted.", decision: model.DecisionAccept, price: "14200"},
	}}
	h := newHarness(exec, 10)
	h.transfers.failTo = map[string]bool{"seller": true}

	result, events := h.run(context.Background(), "intent-1")

	assert.Equal(t, model.OutcomeAccepted, result.Outcome)
	complete := events[len(events)-1]
	require.Equal(t, model.EventComplete, complete.Type)
	assert.Equal(t, model.OutcomeAccepted, complete.Outcome)
	require.NotNil(t, complete.Settlement)
	assert.NotEmpty(t, complete.Settlement.Error)
	require.NotNil(t, complete.Settlement.AmountRefunded)
	assert.True(t, complete.Settlement.AmountRefunded.Equal(decimal.NewFromInt(800)))
	assert.Nil(t, complete.Settlement.AmountPaid)
}

func TestNegotiate_InitiatorAccepts(t *testing.T) {
	exec := &scriptedExecutor{script: []scriptedTurn{
		{narrative: "I'll take your budget. PRICE: $15,000", decision: model.DecisionAccept, price: "15000"},
	}}
	h := newHarness(exec, 10)

	result, _ := h.run(context.Background(), "intent-1")

	assert.Equal(t, model.OutcomeAccepted, result.Outcome)
	assert.Equal(t, model.RoleSeller, result.DecidingRole)
	assert.Equal(t, 1, result.RoundsUsed)
	assert.Len(t, exec.Requests(), 1)
	require.NotNil(t, result.Settlement)
	assert.Nil(t, result.Settlement.AmountRefunded)
}

func TestNegotiate_AcceptWithoutAnyPrice(t *testing.T) {
	exec := &scriptedExecutor{script: []scriptedTurn{
		{narrative: "Make me an offer.", decision: model.DecisionContinue},
		{narrative: "Sure, deal.", decision: model.DecisionAccept},
	}}
	h := newHarness(exec, 10)

	result, _ := h.run(context.Background(), "intent-1")

	assert.Equal(t, model.OutcomeAccepted, result.Outcome)
	require.NotNil(t, result.Settlement)
	assert.ErrorIs(t, result.Settlement.Err, ErrNoAgreedPrice)
	assert.Empty(t, h.transfers.Calls())
}

func TestNegotiate_StatusWriteFailureSkipsSettlement(t *testing.T) {
	exec := &scriptedExecutor{script: []scriptedTurn{
		{narrative: "14200", decision: model.DecisionContinue, price: "14200"},
		{narrative: "ok", decision: model.DecisionAccept},
	}}
	h := newHarness(exec, 10)
	h.store.updateErr = errors.New("connection reset")

	result, events := h.run(context.Background(), "intent-1")

	assert.Equal(t, model.OutcomeErrored, result.Outcome)
	assert.ErrorIs(t, result.Err, ErrDataStoreFailure)
	assert.Empty(t, h.settler.Calls())

	last := events[len(events)-1]
	assert.Equal(t, model.EventError, last.Type)
	assert.Equal(t, string(KindDataStoreFailure), last.ErrorKind)
	assert.Len(t, only(events, model.EventError), 1)
	assert.Empty(t, only(events, model.EventComplete))
}

func TestNegotiate_TurnFailureStopsSession(t *testing.T) {
	exec := &scriptedExecutor{script: []scriptedTurn{
		{narrative: "opening", decision: model.DecisionContinue},
		{err: &NegotiationError{Kind: KindEmptyTurn, Role: model.RoleBuyer, Round: 1, Err: errors.New("nothing")}},
	}}
	h := newHarness(exec, 10)

	result, events := h.run(context.Background(), "intent-1")

	assert.Equal(t, model.OutcomeErrored, result.Outcome)
	assert.Len(t, result.History, 1)
	assert.Len(t, exec.Requests(), 2)
	assert.Empty(t, h.settler.Calls())
	last := events[len(events)-1]
	assert.Equal(t, model.EventError, last.Type)
	assert.Equal(t, string(KindEmptyTurn), last.ErrorKind)
}

func TestNegotiate_IntentNotFound(t *testing.T) {
	h := newHarness(&scriptedExecutor{}, 10)

	result, events := h.run(context.Background(), "missing")

	assert.Equal(t, model.OutcomeErrored, result.Outcome)
	assert.ErrorIs(t, result.Err, ErrIntentNotFound)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventError, events[0].Type)
	assert.Equal(t, string(KindIntentNotFound), events[0].ErrorKind)
}

func TestNegotiate_DataStoreUnavailable(t *testing.T) {
	h := newHarness(&scriptedExecutor{}, 10)
	h.store.getErr = errors.New("dial tcp: refused")

	_, events := h.run(context.Background(), "intent-1")

	require.Len(t, events, 1)
	assert.Equal(t, string(KindDataStoreFailure), events[0].ErrorKind)
}

func TestNegotiate_CancelledBetweenTurns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	exec := executorFunc(func(ctx context.Context, req TurnRequest, relay func(string)) (model.Turn, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return model.Turn{Narrative: "still thinking", Decision: model.DecisionContinue}, nil
	})
	h := newHarness(exec, 10)

	result, _ := h.run(ctx, "intent-1")

	assert.Equal(t, model.OutcomeErrored, result.Outcome)
	assert.Equal(t, KindCancelled, KindOf(result.Err))
	assert.Equal(t, 2, calls)
	assert.Empty(t, h.settler.Calls())
}

func TestNegotiate_CancelAfterTerminalDecisionStillSettles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := executorFunc(func(ctx context.Context, req TurnRequest, relay func(string)) (model.Turn, error) {
		cancel()
		p := decimal.NewFromInt(15000)
		return model.Turn{Narrative: "Sold.", Decision: model.DecisionAccept, Amounts: &model.DeclaredAmounts{Price: &p}}, nil
	})
	h := newHarness(exec, 10)

	result, _ := h.run(ctx, "intent-1")

	assert.Equal(t, model.OutcomeAccepted, result.Outcome)
	assert.Equal(t, []model.Outcome{model.OutcomeAccepted}, h.settler.Calls())
	assert.Len(t, h.transfers.Calls(), 1)
}

func TestSession_AdvanceAfterTerminalIsNoop(t *testing.T) {
	exec := &scriptedExecutor{script: []scriptedTurn{
		{narrative: "no", decision: model.DecisionReject},
	}}
	h := newHarness(exec, 10)
	intent, err := h.store.GetByID(context.Background(), "intent-1")
	require.NoError(t, err)

	s := newSession("session-1", intent, 10, exec, h.settler, h.store, discardEmitter{}, zap.NewNop())
	result := s.Run(context.Background())
	require.Equal(t, model.OutcomeRejected, result.Outcome)

	s.Advance(context.Background())
	s.Advance(context.Background())

	assert.Len(t, exec.Requests(), 1)
	assert.Len(t, h.settler.Calls(), 1)
	assert.Equal(t, result, s.Result())
}

func TestStart_StreamsUntilClosed(t *testing.T) {
	exec := &scriptedExecutor{script: []scriptedTurn{
		{narrative: "offer", decision: model.DecisionContinue, price: "14000"},
		{narrative: "deal", decision: model.DecisionAccept},
	}}
	h := newHarness(exec, 10)

	events := drain(h.usecase.Start(context.Background(), "intent-1"))

	require.NotEmpty(t, events)
	assert.Equal(t, model.EventStart, events[0].Type)
	assert.Equal(t, 10, events[0].MaxRounds)
	assert.Equal(t, model.EventComplete, events[len(events)-1].Type)
	for _, ev := range events {
		assert.Equal(t, "intent-1", ev.IntentID)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestInitiate(t *testing.T) {
	exec := &scriptedExecutor{script: []scriptedTurn{
		{narrative: "Lovely bike, $15,000.", decision: model.DecisionContinue, price: "15000"},
		{narrative: "Too steep, $12,000?", decision: model.DecisionContinue, price: "12000"},
	}}
	h := newHarness(exec, 10)

	res, err := h.usecase.Initiate(context.Background(), "intent-1")
	require.NoError(t, err)

	assert.Equal(t, "Lovely bike, $15,000.", res.SellerPitch)
	assert.Equal(t, "Too steep, $12,000?", res.BuyerResponse)
	assert.Equal(t, model.DecisionContinue, res.BuyerDecision)
	assert.Equal(t, model.OutcomeInProgress, res.Outcome)
	assert.Nil(t, res.Settlement)
	assert.Len(t, exec.Requests(), 2)
	assert.Empty(t, h.settler.Calls())
	assert.Len(t, h.logs.logs, 2)
}

func TestInitiate_ResponderRejects(t *testing.T) {
	exec := &scriptedExecutor{script: []scriptedTurn{
		{narrative: "pitch", decision: model.DecisionContinue},
		{narrative: "no", decision: model.DecisionReject},
	}}
	h := newHarness(exec, 10)

	res, err := h.usecase.Initiate(context.Background(), "intent-1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionReject, res.BuyerDecision)
	assert.Equal(t, model.OutcomeRejected, res.Outcome)
	require.NotNil(t, res.Settlement)
	assert.True(t, res.Settlement.AmountRefunded.Equal(decimal.NewFromInt(15000)))
}

func TestInitiate_Errors(t *testing.T) {
	h := newHarness(&scriptedExecutor{}, 10)
	_, err := h.usecase.Initiate(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrIntentNotFound)

	exec := &scriptedExecutor{script: []scriptedTurn{
		{err: &NegotiationError{Kind: KindOracleUnavailable, Role: model.RoleSeller, Round: 1, Err: errors.New("502")}},
	}}
	h = newHarness(exec, 10)
	_, err = h.usecase.Initiate(context.Background(), "intent-1")
	assert.Equal(t, KindOracleUnavailable, KindOf(err))
}

func TestInitiate_ResponderFailureStillLogsOpeningTurn(t *testing.T) {
	exec := &scriptedExecutor{script: []scriptedTurn{
		{narrative: "Lovely bike, $15,000.", decision: model.DecisionContinue, price: "15000"},
		{err: &NegotiationError{Kind: KindOracleUnavailable, Role: model.RoleBuyer, Round: 1, Err: errors.New("timeout")}},
	}}
	h := newHarness(exec, 10)

	_, err := h.usecase.Initiate(context.Background(), "intent-1")
	assert.Equal(t, KindOracleUnavailable, KindOf(err))

	require.Len(t, h.logs.logs, 1)
	assert.Equal(t, model.RoleSeller, h.logs.logs[0].Role)
	assert.Equal(t, "Lovely bike, $15,000.", h.logs.logs[0].Content)
	assert.Empty(t, h.settler.Calls())
}

// Full stack over HTTP oracles.

func TestNegotiate_OverHTTPOracles(t *testing.T) {
	seller := newFakeOracle(t, func(n int, req oracle.Request, w http.ResponseWriter) {
		writeTurn(w, "continue", "14200", "This bike is mint. ", "PRICE: $14,200")
	})
	buyer := newFakeOracle(t, func(n int, req oracle.Request, w http.ResponseWriter) {
		writeTurn(w, "accept", nil, "That works. DECISION: ACCEPT")
	})
	h := newHarness(newExecutor(seller.URL(), buyer.URL(), time.Second), 10)

	result, events := h.run(context.Background(), "intent-1")

	require.Equal(t, model.OutcomeAccepted, result.Outcome)
	assert.Equal(t, 1, result.RoundsUsed)
	assert.Equal(t, model.RoleBuyer, result.DecidingRole)
	assert.Len(t, only(events, model.EventPartial), 3)

	require.NotNil(t, result.Settlement)
	assert.True(t, result.Settlement.AmountPaid.Equal(decimal.NewFromInt(14200)))
	assert.True(t, result.Settlement.AmountRefunded.Equal(decimal.NewFromInt(800)))

	buyerReqs := buyer.Requests()
	require.Len(t, buyerReqs, 1)
	assert.Equal(t, "This bike is mint. PRICE: $14,200", buyerReqs[0].PriorMessage)
}

func TestNegotiate_InitiatorEndpointDown(t *testing.T) {
	seller := newFakeOracle(t, func(n int, req oracle.Request, w http.ResponseWriter) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	buyer := newFakeOracle(t, func(n int, req oracle.Request, w http.ResponseWriter) {
		writeTurn(w, "accept", nil, "unreachable")
	})
	h := newHarness(newExecutor(seller.URL(), buyer.URL(), time.Second), 10)

	result, events := h.run(context.Background(), "intent-1")

	assert.Equal(t, model.OutcomeErrored, result.Outcome)
	assert.Empty(t, result.History)
	assert.Empty(t, buyer.Requests())

	errs := only(events, model.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, string(KindOracleUnavailable), errs[0].ErrorKind)
	assert.Equal(t, model.EventError, events[len(events)-1].Type)
	assert.Empty(t, only(events, model.EventDecision))
	assert.Empty(t, h.logs.logs)
}
