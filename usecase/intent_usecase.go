package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"negotiation-backend/dao"
	"negotiation-backend/model"
)

var ErrInvalidIntent = errors.New("invalid intent")

type IntentUsecase struct {
	intentRepo *dao.IntentRepository
	logRepo    *dao.NegotiationLogRepository
}

func NewIntentUsecase(intentRepo *dao.IntentRepository, logRepo *dao.NegotiationLogRepository) *IntentUsecase {
	return &IntentUsecase{intentRepo: intentRepo, logRepo: logRepo}
}

func (u *IntentUsecase) GetAllIntents(ctx context.Context) ([]model.Intent, error) {
	return u.intentRepo.GetAll(ctx)
}

func (u *IntentUsecase) GetIntentByID(ctx context.Context, id string) (*model.Intent, error) {
	intent, err := u.intentRepo.GetByID(ctx, id)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, ErrIntentNotFound
	}
	return intent, err
}

// CreateIntent registers a live intent with a buyer-side budget ceiling.
func (u *IntentUsecase) CreateIntent(ctx context.Context, userID, description string, maxAmount decimal.Decimal) (*model.Intent, error) {
	description = strings.TrimSpace(description)
	if userID == "" {
		return nil, errors.Join(ErrInvalidIntent, errors.New("user_id is required"))
	}
	if description == "" {
		return nil, errors.Join(ErrInvalidIntent, errors.New("description is required"))
	}
	if !maxAmount.IsPositive() {
		return nil, errors.Join(ErrInvalidIntent, errors.New("max_amount_usd must be positive"))
	}

	intent := &model.Intent{
		ID:          uuid.NewString(),
		UserID:      userID,
		MaxAmount:   maxAmount,
		Description: description,
		Status:      model.IntentLive,
		CreatedAt:   time.Now(),
	}
	if err := u.intentRepo.Insert(ctx, intent); err != nil {
		return nil, err
	}
	return intent, nil
}

// GetNegotiationLogs returns the recorded turns of every session run for the intent.
func (u *IntentUsecase) GetNegotiationLogs(ctx context.Context, intentID string) ([]model.NegotiationLog, error) {
	if _, err := u.GetIntentByID(ctx, intentID); err != nil {
		return nil, err
	}
	return u.logRepo.GetLogsByIntentID(ctx, intentID)
}
