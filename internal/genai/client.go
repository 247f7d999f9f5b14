// Package genai provides a client for an OpenAI-compatible chat completion
// API, used against Google's Gemini compatibility endpoint.
package genai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultModel      = "gemini-2.0-flash"
	DefaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultTimeout    = 5 * time.Minute
	MaxRetries        = 2
	InitialBackoff    = 1 * time.Second
	MaxBackoff        = 10 * time.Second
	BackoffMultiplier = 2.0
)

// Client handles communication with the generation API
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// ChatMessage represents a message in the chat conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request envelope for the chat completions endpoint.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// streamChunk is one server-sent event in a streaming response.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// apiErrorBody is an error response from the API
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// APIError represents an API error with status code and message
type APIError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("generation API error (%d): %s - %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("generation API error (%d): %s", e.StatusCode, e.Message)
}

// IsRateLimitError checks if the error is a rate limit error
func (e *APIError) IsRateLimitError() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsServerError checks if the error is a server error
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// isRetryableError checks if an error should be retried
func isRetryableError(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.IsRateLimitError() || apiErr.IsServerError()
	}
	return false
}

// NewClient creates a new generation client
func NewClient(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// StreamChat sends a streaming chat completion request and forwards each
// produced text fragment to emit as it arrives. Failures before the first
// fragment are retried with exponential backoff; once the stream has begun,
// an error ends it without retry since partial output has already been
// delivered.
func (c *Client) StreamChat(ctx context.Context, messages []ChatMessage, emit func(content string) error) error {
	var lastErr error
	backoff := InitialBackoff

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * BackoffMultiplier)
			if backoff > MaxBackoff {
				backoff = MaxBackoff
			}
		}

		started, err := c.doStream(ctx, messages, emit)
		if err == nil {
			return nil
		}
		if started || !isRetryableError(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("failed after %d retries: %w", MaxRetries, lastErr)
}

// doStream performs one streaming request. The returned bool reports whether
// any fragment was emitted before the error.
func (c *Client) doStream(ctx context.Context, messages []ChatMessage, emit func(content string) error) (bool, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var errBody apiErrorBody
		if err := json.Unmarshal(respBody, &errBody); err == nil && errBody.Error.Message != "" {
			return false, &APIError{
				StatusCode: resp.StatusCode,
				Message:    errBody.Error.Message,
				Type:       errBody.Error.Type,
			}
		}
		return false, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	started := false
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			if payload == "[DONE]" {
				return started, nil
			}
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Skip malformed keep-alive frames rather than killing the stream.
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			started = true
			if err := emit(choice.Delta.Content); err != nil {
				return started, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return started, fmt.Errorf("stream read failed: %w", err)
	}
	return started, nil
}
