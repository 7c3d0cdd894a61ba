// Package openai implements llm.Gateway against an OpenAI-compatible REST API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lifelog/internal/llm"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 120 * time.Second

	maxErrorBody = 4 << 10
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("openai api key is required")

// Config configures a Client. Only APIKey is required.
type Config struct {
	APIKey             string
	BaseURL            string
	ChatModel          string
	TranscriptionModel string
	Timeout            time.Duration
	HTTPClient         *http.Client
	Usage              llm.UsageRecorder
	Logger             *slog.Logger
}

// Client talks to the chat, embeddings, and transcription endpoints.
type Client struct {
	apiKey             string
	baseURL            string
	chatModel          string
	transcriptionModel string
	http               *http.Client
	usage              llm.UsageRecorder
	logger             *slog.Logger
}

var _ llm.Gateway = (*Client)(nil)

// New builds a client. The API key is only ever sent to BaseURL.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:             apiKey,
		baseURL:            strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		chatModel:          strings.TrimSpace(cfg.ChatModel),
		transcriptionModel: strings.TrimSpace(cfg.TranscriptionModel),
		http:               cfg.HTTPClient,
		usage:              cfg.Usage,
		logger:             cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.chatModel == "" {
		c.chatModel = llm.DefaultChatModel
	}
	if c.transcriptionModel == "" {
		c.transcriptionModel = llm.DefaultTranscriptionModel
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.usage == nil {
		c.usage = llm.Discard{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

type usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) postJSON(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &llm.GatewayError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}
	return c.post(ctx, op, path, "application/json", bytes.NewReader(payload), out)
}

func (c *Client) post(ctx context.Context, op, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return &llm.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &llm.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.logger.Debug("llm call", "op", op, "status", resp.StatusCode, "duration", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &llm.GatewayError{Op: op, Status: resp.StatusCode, Err: decodeAPIError(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &llm.GatewayError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%w: %v", llm.ErrParse, err)}
	}
	return nil
}

func decodeAPIError(r io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var apiErr apiError
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
		return errors.New(apiErr.Error.Message)
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = "empty response body"
	}
	return errors.New(msg)
}
