package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dochelper/internal/llm"
)

func newTestClient(server *httptest.Server) *Client {
	return &Client{
		apiKey:  "sk-test",
		baseURL: server.URL,
		client:  server.Client(),
	}
}

func TestCompleteSendsMessagesRequest(t *testing.T) {
	var payload map[string]any
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotHeaders = r.Header.Clone()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("unmarshal payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Looks good."}],"usage":{"input_tokens":120,"output_tokens":45}}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	completion, err := client.Complete(context.Background(), llm.Request{
		Model:     "claude-3-haiku-20240307",
		System:    "You are a reviewer.",
		MaxTokens: 2500,
		Messages:  []llm.Message{{Role: "user", Content: "Please analyze this document:\n\nHello."}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completion.Text != "Looks good." {
		t.Fatalf("expected text %q, got %q", "Looks good.", completion.Text)
	}
	if completion.Usage.InputTokens != 120 || completion.Usage.OutputTokens != 45 {
		t.Fatalf("unexpected usage: %+v", completion.Usage)
	}

	if got := gotHeaders.Get("x-api-key"); got != "sk-test" {
		t.Fatalf("expected x-api-key header, got %q", got)
	}
	if got := gotHeaders.Get("anthropic-version"); got != "2023-06-01" {
		t.Fatalf("expected anthropic-version header, got %q", got)
	}
	if got := gotHeaders.Get("content-type"); got != "application/json" {
		t.Fatalf("expected content-type header, got %q", got)
	}

	if got, _ := payload["model"].(string); got != "claude-3-haiku-20240307" {
		t.Fatalf("expected payload.model, got %q", got)
	}
	if got, _ := payload["max_tokens"].(float64); got != 2500 {
		t.Fatalf("expected payload.max_tokens 2500, got %v", got)
	}
	if got, _ := payload["system"].(string); got != "You are a reviewer." {
		t.Fatalf("expected payload.system, got %q", got)
	}
	rawMessages, ok := payload["messages"].([]any)
	if !ok || len(rawMessages) != 1 {
		t.Fatalf("expected one message, got %#v", payload["messages"])
	}
	msg, ok := rawMessages[0].(map[string]any)
	if !ok {
		t.Fatalf("expected message object, got %#v", rawMessages[0])
	}
	if msg["role"] != "user" {
		t.Fatalf("expected role user, got %v", msg["role"])
	}
	blocks, ok := msg["content"].([]any)
	if !ok || len(blocks) != 1 {
		t.Fatalf("expected one content block, got %#v", msg["content"])
	}
	block := blocks[0].(map[string]any)
	if block["type"] != "text" {
		t.Fatalf("expected text content block, got %v", block["type"])
	}
	if text, _ := block["text"].(string); !strings.HasPrefix(text, "Please analyze this document:") {
		t.Fatalf("unexpected content text: %q", text)
	}
}

func TestCompleteOmitsEmptySystem(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	if _, err := client.Complete(context.Background(), llm.Request{
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 100,
		Messages:  []llm.Message{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, present := payload["system"]; present {
		t.Fatalf("payload.system should be absent, got %#v", payload["system"])
	}
}

func TestCompleteConcatenatesTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"part one "},{"type":"thinking","text":"hidden"},{"type":"text","text":"part two"}],"usage":{}}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	completion, err := client.Complete(context.Background(), llm.Request{
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 100,
		Messages:  []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completion.Text != "part one part two" {
		t.Fatalf("expected concatenated text blocks, got %q", completion.Text)
	}
}

func TestCompleteEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[],"usage":{}}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	if _, err := client.Complete(context.Background(), llm.Request{
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 100,
		Messages:  []llm.Message{{Role: "user", Content: "hi"}},
	}); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestCompleteStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, llm.ErrUnauthorized},
		{http.StatusForbidden, llm.ErrUnauthorized},
		{http.StatusTooManyRequests, llm.ErrRateLimited},
		{http.StatusInternalServerError, llm.ErrUnavailable},
		{http.StatusServiceUnavailable, llm.ErrUnavailable},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := newTestClient(server)
		_, err := client.Complete(context.Background(), llm.Request{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 100,
			Messages:  []llm.Message{{Role: "user", Content: "hi"}},
		})
		server.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestCompleteBadRequestIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"max_tokens required"}}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.Complete(context.Background(), llm.Request{
		Model:    "claude-sonnet-4-20250514",
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil || !strings.Contains(err.Error(), "max_tokens required") {
		t.Fatalf("expected error with response body, got %v", err)
	}
}

func TestCompleteDeadlineMapsToTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"late"}],"usage":{}}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Complete(ctx, llm.Request{
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 100,
		Messages:  []llm.Message{{Role: "user", Content: "hi"}},
	})
	if !errors.Is(err, llm.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}
