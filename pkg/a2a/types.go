// Package a2a implements the subset of the Agent2Agent protocol the
// negotiation roles use: agent card discovery and JSON-RPC message/send.
package a2a

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ProtocolVersion = "0.3.0"

	// CardPath is where an agent publishes its card. LegacyCardPath is the
	// pre-0.3 location, still tried when CardPath is missing.
	CardPath       = "/.well-known/agent-card.json"
	LegacyCardPath = "/.well-known/agent.json"

	MethodSendMessage = "message/send"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Metadata keys carried on a negotiation message.
const (
	MetaIntentID  = "intent_id"
	MetaAgentType = "agent_type"
	MetaHistory   = "history"
	MetaDecision  = "decision"
	MetaPrice     = "price"
)

type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	ProtocolVersion    string            `json:"protocolVersion,omitempty"`
	PreferredTransport string            `json:"preferredTransport,omitempty"`
	DefaultInputModes  []string          `json:"defaultInputModes"`
	DefaultOutputModes []string          `json:"defaultOutputModes"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	Skills             []AgentSkill      `json:"skills"`
}

type AgentCapabilities struct {
	Streaming bool `json:"streaming"`
}

type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Examples    []string `json:"examples,omitempty"`
}

type Part struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

func TextPart(text string) Part {
	return Part{Kind: "text", Text: text}
}

type Message struct {
	Kind      string          `json:"kind"`
	MessageID string          `json:"messageId"`
	Role      string          `json:"role"` // user, agent
	Parts     []Part          `json:"parts"`
	ContextID string          `json:"contextId,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Text joins the text parts.
func (m *Message) Text() string {
	return joinText(m.Parts)
}

type MessageSendParams struct {
	Message Message `json:"message"`
}

// SendResult is the result of message/send. Agents answer either with a
// message or with a task whose status message and artifacts carry the reply.
type SendResult struct {
	Kind     string          `json:"kind"` // message, task
	Parts    []Part          `json:"parts,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Status   *struct {
		State   string   `json:"state"`
		Message *Message `json:"message,omitempty"`
	} `json:"status,omitempty"`
	Artifacts []struct {
		Parts []Part `json:"parts"`
	} `json:"artifacts,omitempty"`
}

// Text returns the reply text of a message or task result.
func (r *SendResult) Text() string {
	if r.Kind != "task" {
		return joinText(r.Parts)
	}
	var sb strings.Builder
	for _, a := range r.Artifacts {
		sb.WriteString(joinText(a.Parts))
	}
	if sb.Len() == 0 && r.Status != nil && r.Status.Message != nil {
		return r.Status.Message.Text()
	}
	return sb.String()
}

// ReplyMetadata returns the metadata of a message result, or of a task's
// status message.
func (r *SendResult) ReplyMetadata() json.RawMessage {
	if r.Kind == "task" && r.Status != nil && r.Status.Message != nil {
		return r.Status.Message.Metadata
	}
	return r.Metadata
}

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("a2a: rpc error %d: %s", e.Code, e.Message)
}

func joinText(parts []Part) string {
	var sb strings.Builder
	for _, p := range parts {
		if p.Kind == "text" || p.Kind == "" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
