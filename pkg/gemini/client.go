package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// StreamText generates a reply to prompt under the given system instruction and
// hands each text chunk to onChunk as it arrives. Returning an error from
// onChunk stops the stream.
func (c *Client) StreamText(ctx context.Context, system, prompt string, onChunk func(string) error) error {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}

	received := false
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, genai.Text(prompt), config) {
		if err != nil {
			return fmt.Errorf("gemini: stream failed: %w", err)
		}
		text := chunkText(resp)
		if text == "" {
			continue
		}
		received = true
		if err := onChunk(text); err != nil {
			return err
		}
	}
	if !received {
		return fmt.Errorf("empty response from Gemini")
	}
	return nil
}

func chunkText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
