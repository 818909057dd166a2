package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/intent-arbiter/internal/llm"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "anthropic"),
	}
}

func (c *Client) Clarify(ctx context.Context, input llm.ClarifyRequest) (llm.ClarifyResponse, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return llm.ClarifyResponse{}, fmt.Errorf("%w: missing anthropic API key", llm.ErrUnavailable)
	}

	payload := map[string]any{
		"model":       c.cfg.Model,
		"max_tokens":  512,
		"temperature": 0,
		"system":      llm.SystemPrompt(),
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": llm.UserPrompt(input),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return llm.ClarifyResponse{}, fmt.Errorf("marshal anthropic request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return llm.ClarifyResponse{}, err
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("content-type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return llm.ClarifyResponse{}, llm.TransportError("anthropic", err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return llm.ClarifyResponse{}, llm.TransportError("anthropic", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Error("anthropic request failed", "status", res.StatusCode, "body", string(respBody))
		return llm.ClarifyResponse{}, llm.StatusError("anthropic", res.StatusCode)
	}

	var response messagesResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return llm.ClarifyResponse{}, fmt.Errorf("decode anthropic response: %w", err)
	}

	// Content is a list of blocks; the decision is in the first text block.
	for _, block := range response.Content {
		if block.Type != "text" {
			continue
		}
		wire, err := llm.ParseWire(block.Text)
		if err != nil {
			c.logger.Warn("anthropic reply was not a decision", "error", err)
			return llm.Malformed(), nil
		}
		return llm.ValidateResponse(input, wire), nil
	}
	return llm.ClarifyResponse{}, fmt.Errorf("no text content in anthropic response")
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}
