package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"negotiation-backend/pkg/oracle"
)

var ErrCardNotFound = errors.New("a2a: agent card not found")

// Client sends negotiation turns to A2A agents. It satisfies the same
// streaming contract as the oracle client: the reply is delivered as one text
// frame, followed by a final frame when the agent reports its decision in the
// reply metadata.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.Mutex
	cards map[string]*AgentCard
}

func NewClient(httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{httpClient: httpClient, logger: logger, cards: map[string]*AgentCard{}}
}

// ResolveCard fetches and caches the agent card published under baseURL.
func (c *Client) ResolveCard(ctx context.Context, baseURL string) (*AgentCard, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	c.mu.Lock()
	card, ok := c.cards[baseURL]
	c.mu.Unlock()
	if ok {
		return card, nil
	}

	card, err := c.fetchCard(ctx, baseURL+CardPath)
	if errors.Is(err, ErrCardNotFound) {
		card, err = c.fetchCard(ctx, baseURL+LegacyCardPath)
	}
	if err != nil {
		return nil, err
	}
	if card.URL == "" {
		card.URL = baseURL
	}

	c.mu.Lock()
	c.cards[baseURL] = card
	c.mu.Unlock()
	c.logger.Debug("Resolved agent card", zap.String("agent", card.Name), zap.String("url", card.URL))
	return card, nil
}

func (c *Client) fetchCard(ctx context.Context, u string) (*AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("a2a: fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrCardNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("a2a: agent card HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("a2a: decode agent card: %w", err)
	}
	return &card, nil
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// SendMessage calls message/send on the agent's JSON-RPC endpoint.
func (c *Client) SendMessage(ctx context.Context, rpcURL string, msg Message) (*SendResult, error) {
	params, err := json.Marshal(MessageSendParams{Message: msg})
	if err != nil {
		return nil, err
	}
	id, _ := json.Marshal(uuid.NewString())
	body, err := json.Marshal(Request{JSONRPC: "2.0", ID: id, Method: MethodSendMessage, Params: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("a2a: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("a2a: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &oracle.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var rpc rpcResponse
	if err := json.Unmarshal(raw, &rpc); err != nil {
		return nil, fmt.Errorf("a2a: could not parse response: %w", err)
	}
	if rpc.Error != nil {
		return nil, rpc.Error
	}
	var result SendResult
	if err := json.Unmarshal(rpc.Result, &result); err != nil {
		return nil, fmt.Errorf("a2a: unexpected result: %w", err)
	}
	return &result, nil
}

// Stream sends one turn to the agent at endpoint and feeds the reply to
// handler. The prior message is the message text; intent, role and history
// travel as message metadata.
func (c *Client) Stream(ctx context.Context, endpoint string, req oracle.Request, handler oracle.FrameHandler) error {
	card, err := c.ResolveCard(ctx, endpoint)
	if err != nil {
		return err
	}

	meta, err := json.Marshal(map[string]any{
		MetaIntentID:  req.IntentID,
		MetaAgentType: req.Role,
		MetaHistory:   req.History,
	})
	if err != nil {
		return err
	}
	result, err := c.SendMessage(ctx, card.URL, Message{
		Kind:      "message",
		MessageID: uuid.NewString(),
		Role:      "user",
		Parts:     []Part{TextPart(req.PriorMessage)},
		Metadata:  meta,
	})
	if err != nil {
		return err
	}

	text := result.Text()
	if text != "" {
		handler.OnFrame(oracle.Frame{Type: oracle.FrameText, Content: text})
	}
	if final, ok := finalFrame(text, result.ReplyMetadata()); ok {
		handler.OnFrame(final)
	}
	return nil
}

// finalFrame lifts the decision and price an agent reports in its reply
// metadata into a final frame. Without a decision there is no final frame and
// the decision is read from the narrative.
func finalFrame(text string, raw json.RawMessage) (oracle.Frame, bool) {
	if len(raw) == 0 {
		return oracle.Frame{}, false
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(raw, &meta); err != nil {
		return oracle.Frame{}, false
	}
	decision, ok := meta[MetaDecision]
	if !ok {
		return oracle.Frame{}, false
	}
	f := oracle.Frame{Type: oracle.FrameFinal, Content: text, Decision: decision, IsFinal: true}
	if price, ok := meta[MetaPrice]; ok {
		f.DeclaredAmounts, _ = json.Marshal(map[string]json.RawMessage{"price": price})
	}
	return f, true
}
