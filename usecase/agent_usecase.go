package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"negotiation-backend/dao"
	"negotiation-backend/model"
	"negotiation-backend/pkg/prompt"
	"negotiation-backend/pkg/oracle"
)

var ErrInvalidRole = errors.New("invalid role")

// TextStreamer generates text for a prompt, chunk by chunk.
type TextStreamer interface {
	StreamText(ctx context.Context, system, prompt string, onChunk func(string) error) error
}

type IntentReader interface {
	GetByID(ctx context.Context, id string) (*model.Intent, error)
}

// AgentUsecase answers oracle requests for one role by prompting an LLM.
type AgentUsecase struct {
	role      model.Role
	intents   IntentReader
	llm       TextStreamer
	floorRate decimal.Decimal
	logger    *zap.Logger
}

func NewAgentUsecase(role model.Role, intents IntentReader, llm TextStreamer, floorRate float64, logger *zap.Logger) (*AgentUsecase, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentUsecase{
		role:      role,
		intents:   intents,
		llm:       llm,
		floorRate: decimal.NewFromFloat(floorRate),
		logger:    logger.With(zap.String("role", string(role))),
	}, nil
}

func (u *AgentUsecase) Role() model.Role { return u.role }

// AgentPrompt is a validated request ready to be streamed.
type AgentPrompt struct {
	IntentID string
	System   string
	User     string
}

// Prepare validates req and builds the prompts. Errors here happen before any
// frame is written and map to HTTP statuses.
func (u *AgentUsecase) Prepare(ctx context.Context, req oracle.Request) (*AgentPrompt, error) {
	if req.Role != "" && req.Role != u.role {
		return nil, fmt.Errorf("%w: endpoint serves %s, got %s", ErrInvalidRole, u.role, req.Role)
	}
	intent, err := u.intents.GetByID(ctx, req.IntentID)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataStoreFailure, err)
	}

	var system string
	if u.role == model.RoleBuyer {
		system = prompt.BuyerSystem(intent.Description, intent.MaxAmount)
	} else {
		floor := intent.MaxAmount.Mul(u.floorRate).Round(2)
		system = prompt.SellerSystem(intent.Description, floor, intent.MaxAmount)
	}
	return &AgentPrompt{
		IntentID: intent.ID,
		System:   system,
		User:     prompt.Turn(u.role, req.PriorMessage, req.History),
	}, nil
}

// Respond streams the model's reply as text frames and closes with a final
// frame carrying the decision and any price found in the reply.
func (u *AgentUsecase) Respond(ctx context.Context, p *AgentPrompt, emit func(oracle.Frame) error) error {
	var full strings.Builder
	err := u.llm.StreamText(ctx, p.System, p.User, func(chunk string) error {
		full.WriteString(chunk)
		return emit(oracle.Frame{Type: oracle.FrameText, Content: chunk})
	})
	if err != nil {
		u.logger.Error("Failed to generate reply", zap.String("intent_id", p.IntentID), zap.Error(err))
		return err
	}

	narrative := full.String()
	turn, _ := ParseTurn(u.role, 0, narrative, nil)
	final := oracle.Frame{
		Type:     oracle.FrameFinal,
		Content:  narrative,
		IsFinal:  true,
		Decision: mustJSON(string(turn.Decision)),
	}
	if turn.Amounts.HasPrice() {
		final.DeclaredAmounts = mustJSON(map[string]string{"price": turn.Amounts.Price.String()})
	}
	u.logger.Info("Reply generated",
		zap.String("intent_id", p.IntentID),
		zap.String("decision", string(turn.Decision)),
	)
	return emit(final)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
