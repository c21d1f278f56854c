package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"negotiation-backend/model"
	"negotiation-backend/usecase"
)

type IntentController struct {
	usecase *usecase.IntentUsecase
	logger  *zap.Logger
}

func NewIntentController(usecase *usecase.IntentUsecase, logger *zap.Logger) *IntentController {
	return &IntentController{usecase: usecase, logger: logger}
}

func (c *IntentController) GetIntents(w http.ResponseWriter, r *http.Request) {
	intents, err := c.usecase.GetAllIntents(r.Context())
	if err != nil {
		c.logger.Error("Failed to list intents", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if intents == nil {
		intents = []model.Intent{}
	}
	writeJSON(w, http.StatusOK, intents)
}

func (c *IntentController) GetIntent(w http.ResponseWriter, r *http.Request) {
	intent, err := c.usecase.GetIntentByID(r.Context(), chi.URLParam(r, "intentID"))
	if errors.Is(err, usecase.ErrIntentNotFound) {
		writeError(w, http.StatusNotFound, "Intent not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

type createIntentRequest struct {
	UserID      string          `json:"user_id"`
	Description string          `json:"description"`
	MaxAmount   decimal.Decimal `json:"max_amount_usd"`
}

func (c *IntentController) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	intent, err := c.usecase.CreateIntent(r.Context(), req.UserID, req.Description, req.MaxAmount)
	if errors.Is(err, usecase.ErrInvalidIntent) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		c.logger.Error("Failed to create intent", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	c.logger.Info("Intent created", zap.String("intent_id", intent.ID), zap.String("max_amount", intent.MaxAmount.String()))
	writeJSON(w, http.StatusCreated, intent)
}
