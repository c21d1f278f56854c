// Package oracle talks to a role-specific decision oracle endpoint.
//
// The endpoint accepts a JSON request on POST /negotiate and answers with a
// server-sent event stream of `data: {...}` frames: zero or more text frames
// followed by a single final frame carrying the decision tag.
package oracle

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"negotiation-backend/model"
)

// Request is the body sent to an oracle endpoint for one turn.
type Request struct {
	IntentID     string                    `json:"intent_id"`
	Role         model.Role                `json:"role"`
	PriorMessage string                    `json:"prior_message"`
	History      []model.ConversationEntry `json:"history"`
}

type FrameType string

const (
	FrameText  FrameType = "text"
	FrameFinal FrameType = "final"
	FrameError FrameType = "error"
)

// Frame is one decoded stream payload. Decision and DeclaredAmounts are kept
// raw; interpreting them is the decision parser's job.
type Frame struct {
	Type            FrameType       `json:"type"`
	Content         string          `json:"content,omitempty"`
	Decision        json.RawMessage `json:"decision,omitempty"`
	DeclaredAmounts json.RawMessage `json:"declared_amounts,omitempty"`
	IsFinal         bool            `json:"is_final,omitempty"`
}

// FrameHandler receives frames as they arrive.
// Implementations should be fast; they run on the reading goroutine.
type FrameHandler interface {
	OnFrame(f Frame)
	// OnMalformed is called for a data block that could not be decoded. The
	// stream keeps going.
	OnMalformed(raw string, err error)
}

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("oracle: status=%d body=%s", e.StatusCode, e.Body)
}

type Client struct {
	httpClient *http.Client
}

// NewClient returns a client using httpClient, or http.DefaultClient when nil.
// Per-turn deadlines come from the caller's context.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient}
}

// Stream posts req to endpoint and feeds every frame to handler until the body
// ends. It returns an error for transport failures, non-success statuses and
// read errors; malformed frames are not errors.
func (c *Client) Stream(ctx context.Context, endpoint string, req Request, handler FrameHandler) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("oracle: marshal request: %w", err)
	}

	u := strings.TrimRight(endpoint, "/") + "/negotiate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("oracle: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("oracle: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return readFrames(resp.Body, handler)
}

// readFrames collects `data:` lines until a blank line and decodes each block.
func readFrames(r io.Reader, handler FrameHandler) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var data strings.Builder
	flush := func() {
		raw := strings.TrimSpace(data.String())
		data.Reset()
		if raw == "" {
			return
		}
		var f Frame
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			handler.OnMalformed(raw, err)
			return
		}
		if f.Type == "" {
			handler.OnMalformed(raw, fmt.Errorf("frame without type"))
			return
		}
		handler.OnFrame(f)
	}

	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// event names, ids and comments carry nothing we use
		}
	}
	flush()

	if err := sc.Err(); err != nil {
		return fmt.Errorf("oracle: read stream: %w", err)
	}
	return nil
}
