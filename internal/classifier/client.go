package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"wbor-twilio/internal/apperr"
)

// ChatClient is a minimal client for OpenAI-compatible chat completion APIs.
type ChatClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewChatClient(baseURL, apiKey, model string, httpClient *http.Client) *ChatClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ChatClient{baseURL: baseURL, apiKey: apiKey, model: model, httpClient: httpClient}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float32         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns the first choice's content.
// Errors are apperr upstream errors.
func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	const op = "classifier.complete"

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:      64,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", apperr.Internal(op, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", apperr.Internal(op, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.Upstream(op, fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperr.Upstream(op, fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		return "", apperr.UpstreamStatus(op, resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", apperr.Upstream(op, fmt.Errorf("parsing response: %w", err))
	}
	if len(chatResp.Choices) == 0 {
		return "", apperr.Upstream(op, fmt.Errorf("no choices in response"))
	}
	return chatResp.Choices[0].Message.Content, nil
}
