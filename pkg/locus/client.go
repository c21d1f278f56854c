// Package locus is a JSON-RPC client for the Locus MCP payment server.
package locus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultURL = "https://mcp.paywithlocus.com"

var ErrToolFailed = errors.New("locus: tool call failed")

type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/mcp") {
		baseURL += "/mcp"
	}
	return &Client{
		url:        baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      string    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ToolResult is the MCP tools/call result.
type ToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StructuredContent map[string]any `json:"structuredContent"`
	IsError           bool           `json:"isError"`
}

// Text joins the text content blocks.
func (r *ToolResult) Text() string {
	var parts []string
	for _, c := range r.Content {
		if c.Type == "text" || c.Type == "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// CallTool invokes an MCP tool. The server may answer with plain JSON or with
// an event stream carrying the JSON-RPC response in a data line.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "tools/call",
		Params:  rpcParams{Name: name, Arguments: args},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("locus: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("locus: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("locus: HTTP %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	payload := extractPayload(raw)
	if payload == nil {
		return nil, fmt.Errorf("locus: could not parse response: %s", truncate(string(raw), 200))
	}
	var rpc rpcResponse
	if err := json.Unmarshal(payload, &rpc); err != nil {
		return nil, fmt.Errorf("locus: could not parse response: %w", err)
	}
	if rpc.Error != nil {
		return nil, fmt.Errorf("%w: %s (code %d)", ErrToolFailed, rpc.Error.Message, rpc.Error.Code)
	}

	var result ToolResult
	if len(rpc.Result) > 0 {
		if err := json.Unmarshal(rpc.Result, &result); err != nil {
			return nil, fmt.Errorf("locus: unexpected result: %w", err)
		}
	}
	if result.IsError {
		return nil, fmt.Errorf("%w: %s", ErrToolFailed, result.Text())
	}
	return &result, nil
}

// extractPayload returns the first decodable JSON document, either the whole
// body or the first valid `data:` line of an event stream.
func extractPayload(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if json.Valid(trimmed) {
		return trimmed
	}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := []byte(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		if json.Valid(data) {
			return data
		}
	}
	return nil
}

// SendToAddress sends USDC from the API key's wallet and returns the
// transaction reference reported by the server.
func (c *Client) SendToAddress(ctx context.Context, address string, amount decimal.Decimal, memo string) (string, error) {
	result, err := c.CallTool(ctx, "send_to_address", map[string]any{
		"address": address,
		"amount":  json.Number(amount.String()),
		"memo":    memo,
	})
	if err != nil {
		return "", err
	}
	return transactionID(result), nil
}

// PaymentContext returns the wallet balance summary text.
func (c *Client) PaymentContext(ctx context.Context) (string, error) {
	result, err := c.CallTool(ctx, "get_payment_context", nil)
	if err != nil {
		return "", err
	}
	return result.Text(), nil
}

// Transfer sends amount to the destination wallet. The source wallet is the
// one bound to the API key; from is only logged.
func (c *Client) Transfer(ctx context.Context, from, to string, amount decimal.Decimal, memo string) (string, error) {
	c.logger.Info("Sending payment",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("amount", amount.String()),
	)
	return c.SendToAddress(ctx, to, amount, memo)
}

var txKeys = []string{"transaction_id", "transactionId", "tx_hash", "txHash", "id"}

func transactionID(r *ToolResult) string {
	if id := lookupID(r.StructuredContent); id != "" {
		return id
	}
	text := r.Text()
	var fields map[string]any
	if json.Unmarshal([]byte(text), &fields) == nil {
		if id := lookupID(fields); id != "" {
			return id
		}
	}
	return strings.TrimSpace(text)
}

func lookupID(fields map[string]any) string {
	for _, k := range txKeys {
		if v, ok := fields[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
