package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"negotiation-backend/pkg/oracle"
	"negotiation-backend/pkg/sse"
	"negotiation-backend/usecase"
)

// AgentController serves the oracle protocol for one role.
type AgentController struct {
	usecase *usecase.AgentUsecase
	logger  *zap.Logger
}

func NewAgentController(usecase *usecase.AgentUsecase, logger *zap.Logger) *AgentController {
	return &AgentController{usecase: usecase, logger: logger}
}

func (c *AgentController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"role":   string(c.usecase.Role()),
	})
}

func (c *AgentController) Negotiate(w http.ResponseWriter, r *http.Request) {
	var req oracle.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	prompt, err := c.usecase.Prepare(r.Context(), req)
	switch {
	case errors.Is(err, usecase.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, usecase.ErrIntentNotFound):
		writeError(w, http.StatusNotFound, "Intent not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sw, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	err = c.usecase.Respond(r.Context(), prompt, func(f oracle.Frame) error {
		return sw.Data(f)
	})
	if err != nil && r.Context().Err() == nil {
		if werr := sw.Data(oracle.Frame{Type: oracle.FrameError, Content: err.Error()}); werr != nil {
			c.logger.Warn("Failed to send error frame", zap.Error(werr))
		}
	}
}
