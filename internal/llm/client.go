// Package llm provides a streaming text-generation client for the
// Anthropic Messages API. Requests carry ordered content parts (document
// attachments by URL, then a text instruction); responses are consumed
// as a server-sent event stream of text deltas.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultMaxTokens = 8192
	DefaultTimeout   = 5 * time.Minute

	// anthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"
)

// ErrMissingAPIKey indicates the client was configured without credentials.
var ErrMissingAPIKey = errors.New("llm: API key is required")

// Config holds configuration for the Anthropic client.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the model to use (default: claude-3-5-sonnet-latest).
	Model string

	// MaxTokens caps the generated output length (default: 8192).
	MaxTokens int

	// Timeout is the request timeout, covering the full stream
	// (default: 5m).
	Timeout time.Duration
}

// Client issues streaming message requests against the Anthropic API.
type Client struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
}

// ContentPart is one entry of a multi-part user message.
type ContentPart struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *documentSource `json:"source,omitempty"`
}

// documentSource references a document by URL.
type documentSource struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// DocumentPart builds a document content part referencing a URL.
// The API fetches the document itself; only PDF documents are supported
// by URL source.
func DocumentPart(url string) ContentPart {
	return ContentPart{Type: "document", Source: &documentSource{Type: "url", URL: url}}
}

// message is the Anthropic message format.
type message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Stream    bool      `json:"stream"`
}

// apiError is the Anthropic error envelope.
type apiError struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient creates an Anthropic client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Stream issues one streaming message request with a single user message
// built from the given parts, in order. The returned stream yields text
// deltas until the message completes; it must be closed by the caller.
func (c *Client) Stream(ctx context.Context, system string, parts []ContentPart) (*Stream, error) {
	reqBody := messagesRequest{
		Model:     c.model,
		Messages:  []message{{Role: "user", Content: parts}},
		MaxTokens: c.maxTokens,
		System:    system,
		Stream:    true,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/v1/messages",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("anthropic error (status %d): reading body: %w", resp.StatusCode, readErr)
		}
		var envelope apiError
		if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil && envelope.Error != nil {
			return nil, fmt.Errorf("anthropic error: %s", envelope.Error.Message)
		}
		return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(body))
	}

	return newStream(resp.Body), nil
}

// ModelName returns the name of the model being used.
func (c *Client) ModelName() string {
	return c.model
}

// Ping validates the service is reachable by checking the /v1/models
// endpoint. This is a lightweight check that validates the API key
// without running inference.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("llm: failed to create ping request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("llm: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("llm: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("llm: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
