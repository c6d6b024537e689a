package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harunnryd/cleanline/pkg/llm"
	"github.com/harunnryd/cleanline/pkg/resilience"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "We have openings Friday."}}],
  "usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
}`

func TestGenerateSendsSystemAndUser(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing auth header")
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	}))
	defer srv.Close()

	a, err := NewAdapter(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	resp, err := a.Generate(context.Background(), llm.UserPrompt("be brief", "any openings?", 150, llm.Temperature(0.7)))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "We have openings Friday." || resp.Usage.TotalTokens != 17 {
		t.Fatalf("unexpected response %+v", resp)
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %v", got["messages"])
	}
	if got["max_completion_tokens"] != float64(150) {
		t.Fatalf("expected max tokens in request, got %v", got["max_completion_tokens"])
	}
}

func TestGenerateMapsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	a, _ := NewAdapter(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	_, err := a.Generate(context.Background(), llm.UserPrompt("", "hi", 10, nil))
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestNewAdapterRequiresKey(t *testing.T) {
	if _, err := NewAdapter(Config{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
