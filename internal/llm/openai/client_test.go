package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dwizi/intent-arbiter/internal/llm"
)

func testRequest() llm.ClarifyRequest {
	return llm.ClarifyRequest{
		Input: "the blue one",
		Options: []llm.OptionRef{
			{ID: "opt-0", Label: "Links Panel A", Type: "panel"},
			{ID: "opt-1", Label: "Links Panel B", Type: "panel"},
		},
		ContractVersion: "2",
		Attempt:         1,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func replyWith(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}
}

func TestClarifySuccess(t *testing.T) {
	var receivedAuth, receivedModel, receivedUser string
	var receivedFormat map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		receivedAuth = req.Header.Get("Authorization")
		var body struct {
			Model          string            `json:"model"`
			ResponseFormat map[string]string `json:"response_format"`
			Messages       []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		receivedModel = body.Model
		receivedFormat = body.ResponseFormat
		if len(body.Messages) > 1 {
			receivedUser = body.Messages[1].Content
		}
		replyWith(`<think>weighing</think>{"contract_version":"2","decision":"select","choice_id":"opt-1","confidence":0.92}`)(w, req)
	}))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL, Model: "gpt-test"}, testLogger())
	response, err := client.Clarify(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("clarify failed: %v", err)
	}
	if response.Decision != llm.DecisionSelect || response.ChoiceID != "opt-1" || response.Confidence != 0.92 {
		t.Fatalf("unexpected response %+v", response)
	}
	if receivedAuth != "Bearer secret" {
		t.Fatalf("expected bearer auth, got %q", receivedAuth)
	}
	if receivedModel != "gpt-test" || receivedFormat["type"] != "json_object" {
		t.Fatalf("unexpected model %q format %v", receivedModel, receivedFormat)
	}
	if !strings.Contains(receivedUser, "id=opt-0") || !strings.Contains(receivedUser, "user_input: the blue one") {
		t.Fatalf("unexpected user prompt %q", receivedUser)
	}
}

func TestClarifyMalformedReplyAbstains(t *testing.T) {
	server := httptest.NewServer(replyWith("I think it is panel B"))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL}, testLogger())
	response, err := client.Clarify(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("clarify failed: %v", err)
	}
	if response.Decision != llm.DecisionAskClarify {
		t.Fatalf("expected ask_clarify, got %+v", response)
	}
}

func TestClarifyRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"slow down"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL}, testLogger())
	_, err := client.Clarify(context.Background(), testRequest())
	if !errors.Is(err, llm.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestClarifyTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-release:
		case <-req.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := New(Config{APIKey: "secret", BaseURL: server.URL, Timeout: 50 * time.Millisecond}, testLogger())
	_, err := client.Clarify(context.Background(), testRequest())
	if !errors.Is(err, llm.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestClarifyRequiresKeyForRemote(t *testing.T) {
	client := New(Config{BaseURL: "https://api.openai.com/v1"}, testLogger())
	if _, err := client.Clarify(context.Background(), testRequest()); !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if requiresAPIKey("http://localhost:11434/v1") {
		t.Fatal("expected local endpoint to run without a key")
	}
}
