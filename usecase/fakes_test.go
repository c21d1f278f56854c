package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"negotiation-backend/dao"
	"negotiation-backend/model"
)

type transferCall struct {
	From, To string
	Amount   decimal.Decimal
}

// fakeTransferer fails transfers whose destination is in failTo.
type fakeTransferer struct {
	mu     sync.Mutex
	calls  []transferCall
	failTo map[string]bool
}

func (f *fakeTransferer) Transfer(ctx context.Context, from, to string, amount decimal.Decimal, memo string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[to] {
		return "", errors.New("transfer rejected")
	}
	f.calls = append(f.calls, transferCall{From: from, To: to, Amount: amount})
	return fmt.Sprintf("tx-%d", len(f.calls)), nil
}

func (f *fakeTransferer) Calls() []transferCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transferCall(nil), f.calls...)
}

type memBalances struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

func newMemBalances() *memBalances {
	return &memBalances{balances: map[string]decimal.Decimal{}}
}

func (m *memBalances) GetBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[walletID], nil
}

func (m *memBalances) UpsertBalance(ctx context.Context, walletID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[walletID] = amount
	return nil
}

type fakeIntentStore struct {
	mu            sync.Mutex
	intents       map[string]*model.Intent
	statusUpdates []model.IntentStatus
	updateErr     error
	getErr        error
	paid          *decimal.Decimal
	refunded      *decimal.Decimal
}

func newFakeIntentStore(intents ...*model.Intent) *fakeIntentStore {
	s := &fakeIntentStore{intents: map[string]*model.Intent{}}
	for _, i := range intents {
		s.intents[i.ID] = i
	}
	return s
}

func (s *fakeIntentStore) GetByID(ctx context.Context, id string) (*model.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	i, ok := s.intents[id]
	if !ok {
		return nil, dao.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (s *fakeIntentStore) UpdateStatus(ctx context.Context, id string, status model.IntentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.statusUpdates = append(s.statusUpdates, status)
	s.intents[id].Status = status
	return nil
}

func (s *fakeIntentStore) UpdateSettlement(ctx context.Context, id string, paid, refunded *decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paid, s.refunded = paid, refunded
	return nil
}

func (s *fakeIntentStore) StatusUpdates() []model.IntentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.IntentStatus(nil), s.statusUpdates...)
}

// recordingSettler counts Settle calls and delegates to next when set.
type recordingSettler struct {
	mu      sync.Mutex
	calls   []model.Outcome
	amounts []*model.DeclaredAmounts
	next    Settler
}

func (r *recordingSettler) Settle(ctx context.Context, intent *model.Intent, outcome model.Outcome, amounts *model.DeclaredAmounts) model.SettlementResult {
	r.mu.Lock()
	r.calls = append(r.calls, outcome)
	r.amounts = append(r.amounts, amounts)
	r.mu.Unlock()
	if r.next != nil {
		return r.next.Settle(ctx, intent, outcome, amounts)
	}
	return model.SettlementResult{TransactionIDs: []string{}}
}

func (r *recordingSettler) Calls() []model.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Outcome(nil), r.calls...)
}

type scriptedTurn struct {
	narrative string
	decision  model.Decision
	price     string
	fragments []string
	err       error
}

// scriptedExecutor plays turns in order; once the script runs out every turn
// is a plain continue.
type scriptedExecutor struct {
	mu     sync.Mutex
	script []scriptedTurn
	reqs   []TurnRequest
}

func (e *scriptedExecutor) Execute(ctx context.Context, req TurnRequest, relay func(string)) (model.Turn, error) {
	e.mu.Lock()
	n := len(e.reqs)
	e.reqs = append(e.reqs, req)
	e.mu.Unlock()

	st := scriptedTurn{narrative: fmt.Sprintf("%s round %d", req.Role, req.Round), decision: model.DecisionContinue}
	if n < len(e.script) {
		st = e.script[n]
	}
	if st.err != nil {
		return model.Turn{}, st.err
	}
	for _, f := range st.fragments {
		relay(f)
	}
	turn := model.Turn{Role: req.Role, Round: req.Round, Narrative: st.narrative, Decision: st.decision}
	if st.price != "" {
		p := decimal.RequireFromString(st.price)
		turn.Amounts = &model.DeclaredAmounts{Price: &p}
	}
	return turn, nil
}

func (e *scriptedExecutor) Requests() []TurnRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]TurnRequest(nil), e.reqs...)
}

type memLogs struct {
	mu   sync.Mutex
	logs []model.NegotiationLog
}

func (m *memLogs) AppendLogs(ctx context.Context, logs []model.NegotiationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, logs...)
	return nil
}
