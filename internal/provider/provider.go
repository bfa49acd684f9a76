// Package provider implements the streaming chat-completion client and the
// SSE frame decoder for OpenRouter-compatible endpoints.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/weft-ai/weft/internal/logging"
	"github.com/weft-ai/weft/pkg/types"
)

// DefaultBaseURL is the OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// TransportError is a fatal HTTP-level failure carrying the response status
// and body. It ends the run as failed.
type TransportError struct {
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("provider returned %d: %s", e.Status, body)
}

// Client talks to one chat-completion endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client from provider configuration.
func NewClient(cfg types.ProviderConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// No overall timeout: the response body streams for the lifetime
		// of an iteration. Cancellation comes from the request context.
		httpClient: &http.Client{},
		log:        logging.For("provider"),
	}
}

// Stream sends a streaming completion request and returns the decoded chunk
// sequence. Cancelling ctx aborts the underlying connection; no further
// chunks are yielded after that.
func (c *Client) Stream(ctx context.Context, req *CompletionRequest) (*ChunkStream, error) {
	body := chatRequest{
		Model:             req.Model,
		Messages:          convertMessages(req.Messages),
		Tools:             convertTools(req.Tools),
		MaxTokens:         req.MaxTokens,
		Temperature:       req.Temperature,
		Stream:            true,
		ParallelToolCalls: len(req.Tools) > 0,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Msg("starting completion stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, &TransportError{Status: resp.StatusCode, Body: string(respBody)}
	}

	return newChunkStream(ctx, resp.Body, c.log), nil
}
