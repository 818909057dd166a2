package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
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
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4o-mini"
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
		logger: logger.With("component", "openai"),
	}
}

// Clarify asks a chat-completions endpoint to pick among the frozen options.
func (c *Client) Clarify(ctx context.Context, input llm.ClarifyRequest) (llm.ClarifyResponse, error) {
	// Local OpenAI-compatible servers run without a key.
	if requiresAPIKey(c.cfg.BaseURL) && strings.TrimSpace(c.cfg.APIKey) == "" {
		return llm.ClarifyResponse{}, fmt.Errorf("%w: missing API key for %s", llm.ErrUnavailable, c.cfg.BaseURL)
	}

	payload := map[string]any{
		"model":       c.cfg.Model,
		"temperature": 0,
		"response_format": map[string]string{
			"type": "json_object",
		},
		"messages": []map[string]string{
			{"role": "system", "content": llm.SystemPrompt()},
			{"role": "user", "content": llm.UserPrompt(input)},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return llm.ClarifyResponse{}, fmt.Errorf("marshal openai request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return llm.ClarifyResponse{}, err
	}
	if apiKey := strings.TrimSpace(c.cfg.APIKey); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return llm.ClarifyResponse{}, llm.TransportError("openai", err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return llm.ClarifyResponse{}, llm.TransportError("openai", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Error("openai chat completion failed", "status", res.StatusCode, "body", strings.TrimSpace(string(respBody)))
		return llm.ClarifyResponse{}, llm.StatusError("openai", res.StatusCode)
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return llm.ClarifyResponse{}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(response.Choices) == 0 {
		return llm.ClarifyResponse{}, fmt.Errorf("openai response returned no choices")
	}
	wire, err := llm.ParseWire(sanitizeModelReply(response.Choices[0].Message.Content))
	if err != nil {
		c.logger.Warn("openai reply was not a decision", "error", err)
		return llm.Malformed(), nil
	}
	decision := llm.ValidateResponse(input, wire)
	c.logger.Debug("openai decision", "decision", decision.Decision, "choice_id", decision.ChoiceID, "downgrade", decision.Downgrade)
	return decision, nil
}

var (
	thinkBlockPattern = regexp.MustCompile(`(?is)<think\b[^>]*>.*?</think>`)
	thinkFencePattern = regexp.MustCompile("(?is)```think\\s*.*?```")
)

// sanitizeModelReply drops reasoning blocks some local models emit before the
// JSON body.
func sanitizeModelReply(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	trimmed = thinkBlockPattern.ReplaceAllString(trimmed, "")
	trimmed = thinkFencePattern.ReplaceAllString(trimmed, "")
	return strings.TrimSpace(trimmed)
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func requiresAPIKey(baseURL string) bool {
	lower := strings.ToLower(baseURL)
	if strings.Contains(lower, "localhost") || strings.Contains(lower, "127.0.0.1") || strings.Contains(lower, "ollama") {
		return false
	}
	return true
}
