package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
)

const chatAPI = "chat"

// ErrChatNotConfigured is returned when no chat API key was supplied.
var ErrChatNotConfigured = errors.New("chat service not configured")

type ChatOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// ChatClient talks to an OpenAI-compatible chat completions endpoint.
type ChatClient struct {
	client *HTTPClient
	opts   ChatOptions
	logger *logger.Logger
}

func NewChatClient(client *HTTPClient, opts ChatOptions, logger *logger.Logger) *ChatClient {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &ChatClient{client: client, opts: opts, logger: logger}
}

func (c *ChatClient) Configured() bool {
	return c.opts.APIKey != ""
}

type chatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends messages and returns the first choice's content unchanged.
func (c *ChatClient) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if !c.Configured() {
		return "", ErrChatNotConfigured
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	start := time.Now()
	header := http.Header{"Authorization": []string{"Bearer " + c.opts.APIKey}}
	resp, err := c.client.PostJSON(ctx, chatAPI, c.opts.BaseURL+"/chat/completions", header, body)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}

	var payload chatCompletionResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", fmt.Errorf("chat service returned status %d with unreadable body: %w", resp.StatusCode, err)
	}
	if payload.Error != nil {
		return "", fmt.Errorf("chat service error (status %d): %s", resp.StatusCode, payload.Error.Message)
	}
	if !resp.ok() {
		return "", fmt.Errorf("chat service returned status %d", resp.StatusCode)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("chat service returned no choices")
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"model":    c.opts.Model,
		"messages": len(messages),
		"duration": time.Since(start),
	}).Info("Chat completion received")

	return payload.Choices[0].Message.Content, nil
}
