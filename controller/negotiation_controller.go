package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"negotiation-backend/model"
	"negotiation-backend/pkg/sse"
	"negotiation-backend/usecase"
)

type Negotiator interface {
	Start(ctx context.Context, intentID string) *usecase.EventStream
	Initiate(ctx context.Context, intentID string) (*model.InitiateResult, error)
}

type NegotiationController struct {
	negotiations Negotiator
	intents      *usecase.IntentUsecase
	logger       *zap.Logger
}

func NewNegotiationController(negotiations Negotiator, intents *usecase.IntentUsecase, logger *zap.Logger) *NegotiationController {
	return &NegotiationController{negotiations: negotiations, intents: intents, logger: logger}
}

// Stream runs a negotiation and relays its events as server-sent events named
// after the event type. Disconnecting cancels the negotiation.
func (c *NegotiationController) Stream(w http.ResponseWriter, r *http.Request) {
	intentID := chi.URLParam(r, "intentID")
	sw, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stream := c.negotiations.Start(r.Context(), intentID)
	for ev := range stream.Events() {
		if err := sw.Event(string(ev.Type), ev); err != nil {
			c.logger.Debug("Observer disconnected", zap.String("intent_id", intentID), zap.Error(err))
			return
		}
	}
}

func (c *NegotiationController) Initiate(w http.ResponseWriter, r *http.Request) {
	intentID := chi.URLParam(r, "intentID")
	res, err := c.negotiations.Initiate(r.Context(), intentID)
	if err != nil {
		status := http.StatusInternalServerError
		switch usecase.KindOf(err) {
		case usecase.KindIntentNotFound:
			status = http.StatusNotFound
		case usecase.KindOracleUnavailable, usecase.KindEmptyTurn:
			status = http.StatusBadGateway
		}
		c.logger.Warn("Initiate failed", zap.String("intent_id", intentID), zap.Error(err))
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *NegotiationController) GetLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := c.intents.GetNegotiationLogs(r.Context(), chi.URLParam(r, "intentID"))
	if errors.Is(err, usecase.ErrIntentNotFound) {
		writeError(w, http.StatusNotFound, "Intent not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []model.NegotiationLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}
