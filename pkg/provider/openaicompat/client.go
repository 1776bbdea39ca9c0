package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/werkbank-dev/werkbank/pkg/api"
	"github.com/werkbank-dev/werkbank/pkg/provider"
)

// Config holds the settings for an OpenAI-compatible backend.
type Config struct {
	// BaseURL is the backend root, e.g. "https://api.openai.com".
	BaseURL string

	// APIKey is sent as a Bearer token when non-empty.
	APIKey string

	// Model is the model name used for every completion.
	Model string

	// Timeout bounds each HTTP request. Defaults to 60s.
	Timeout time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for
	// testing). If nil, a client with Timeout is used.
	HTTPClient *http.Client
}

// Client performs completions against an OpenAI-compatible Chat Completions
// backend. It implements provider.Provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// Ensure Client implements provider.Provider at compile time.
var _ provider.Provider = (*Client)(nil)

// New creates a Client for an OpenAI-compatible backend.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openaicompat: base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openaicompat: model is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return "openai"
}

// Complete performs a non-streaming completion against the Chat Completions
// endpoint.
func (c *Client) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	temp := req.Temperature
	chatReq := ChatCompletionRequest{
		Model:       c.model,
		Temperature: &temp,
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, ChatMessage{Role: m.Role, Content: m.Content})
	}
	if req.JSONMode {
		chatReq.ResponseFormat = ChatResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var chatResp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to parse backend response: %s", err.Error()))
	}

	if len(chatResp.Choices) == 0 {
		return nil, api.NewServerError("backend returned no choices")
	}

	resp := &provider.Response{
		Content: chatResp.Choices[0].Message.Content,
		Model:   chatResp.Model,
	}
	if chatResp.Usage != nil {
		resp.Usage = provider.Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		}
	}
	return resp, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
