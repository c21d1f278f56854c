package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"negotiation-backend/model"
	"negotiation-backend/pkg/a2a"
	"negotiation-backend/pkg/oracle"
	"negotiation-backend/usecase"
)

const a2aPath = "/a2a"

// AgentCard publishes the A2A card of this role's agent. The card points back
// at the host the request came in on.
func (c *AgentController) AgentCard(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	role := string(c.usecase.Role())
	writeJSON(w, http.StatusOK, a2a.AgentCard{
		Name:               "Negotiation Agent (" + role + ")",
		Description:        "Negotiates marketplace deals on behalf of the " + role,
		URL:                scheme + "://" + r.Host + a2aPath,
		Version:            "1.0.0",
		ProtocolVersion:    a2a.ProtocolVersion,
		PreferredTransport: "JSONRPC",
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []a2a.AgentSkill{{
			ID:          "negotiate",
			Name:        "Negotiation",
			Description: "Negotiates on behalf of the " + role + " for marketplace items",
			Tags:        []string{"negotiation", "marketplace"},
			Examples:    []string{"negotiate this deal", "make an offer"},
		}},
	})
}

type a2aMetadata struct {
	IntentID  string                    `json:"intent_id"`
	AgentType model.Role                `json:"agent_type"`
	History   []model.ConversationEntry `json:"history"`
}

// A2A answers JSON-RPC message/send with the agent's full reply. The decision
// and declared price are attached as reply metadata.
func (c *AgentController) A2A(w http.ResponseWriter, r *http.Request) {
	var rpc a2a.Request
	if err := json.NewDecoder(r.Body).Decode(&rpc); err != nil {
		writeRPCError(w, nil, a2a.CodeParseError, "Invalid JSON")
		return
	}
	if rpc.Method != a2a.MethodSendMessage {
		writeRPCError(w, rpc.ID, a2a.CodeMethodNotFound, "Method not found: "+rpc.Method)
		return
	}
	var params a2a.MessageSendParams
	if err := json.Unmarshal(rpc.Params, &params); err != nil {
		writeRPCError(w, rpc.ID, a2a.CodeInvalidParams, "Invalid message params")
		return
	}
	var meta a2aMetadata
	if len(params.Message.Metadata) > 0 {
		if err := json.Unmarshal(params.Message.Metadata, &meta); err != nil {
			writeRPCError(w, rpc.ID, a2a.CodeInvalidParams, "Invalid message metadata")
			return
		}
	}
	if meta.IntentID == "" {
		writeRPCError(w, rpc.ID, a2a.CodeInvalidParams, "intent_id required in message metadata")
		return
	}

	prompt, err := c.usecase.Prepare(r.Context(), oracle.Request{
		IntentID:     meta.IntentID,
		Role:         meta.AgentType,
		PriorMessage: params.Message.Text(),
		History:      meta.History,
	})
	switch {
	case errors.Is(err, usecase.ErrInvalidRole), errors.Is(err, usecase.ErrIntentNotFound):
		writeRPCError(w, rpc.ID, a2a.CodeInvalidParams, err.Error())
		return
	case err != nil:
		writeRPCError(w, rpc.ID, a2a.CodeInternalError, err.Error())
		return
	}

	var reply strings.Builder
	var final *oracle.Frame
	err = c.usecase.Respond(r.Context(), prompt, func(f oracle.Frame) error {
		switch f.Type {
		case oracle.FrameText:
			reply.WriteString(f.Content)
		case oracle.FrameFinal:
			final = &f
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("A2A reply failed", zap.String("intent_id", meta.IntentID), zap.Error(err))
		writeRPCError(w, rpc.ID, a2a.CodeInternalError, err.Error())
		return
	}

	msg := a2a.Message{
		Kind:      "message",
		MessageID: uuid.NewString(),
		Role:      "agent",
		Parts:     []a2a.Part{a2a.TextPart(reply.String())},
	}
	if final != nil {
		replyMeta := map[string]json.RawMessage{a2a.MetaDecision: final.Decision}
		var amounts map[string]json.RawMessage
		if json.Unmarshal(final.DeclaredAmounts, &amounts) == nil && amounts["price"] != nil {
			replyMeta[a2a.MetaPrice] = amounts["price"]
		}
		msg.Metadata, _ = json.Marshal(replyMeta)
	}
	writeJSON(w, http.StatusOK, a2a.Response{JSONRPC: "2.0", ID: rpc.ID, Result: msg})
}

// JSON-RPC errors travel in a 200 response.
func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, msg string) {
	writeJSON(w, http.StatusOK, a2a.Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &a2a.RPCError{Code: code, Message: msg},
	})
}
