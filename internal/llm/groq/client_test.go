package groq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"clinix-backend/internal/llm"
)

func withServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	oldURL := apiURL
	server := httptest.NewServer(h)
	apiURL = server.URL
	t.Cleanup(func() {
		apiURL = oldURL
		server.Close()
	})
}

func TestCompleteSendsModelTemperatureAndKey(t *testing.T) {
	var got map[string]any
	var auth string
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"urgency\":\"low\"} "}}],"usage":{"total_tokens":12}}`))
	})

	client, err := NewClient(llm.StaticKey("test-key"), "openai/gpt-oss-120b", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	out, err := client.Complete(context.Background(), llm.Request{
		System:      "sys",
		Prompt:      "hello",
		Temperature: llm.Float32(0.2),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"urgency":"low"}` {
		t.Fatalf("unexpected content: %q", out)
	}
	if auth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", auth)
	}
	if got["model"] != "openai/gpt-oss-120b" {
		t.Fatalf("unexpected model: %v", got["model"])
	}
	if temp, ok := got["temperature"].(float64); !ok || temp < 0.19 || temp > 0.21 {
		t.Fatalf("unexpected temperature: %v", got["temperature"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(msgs))
	}
	if _, ok := got["response_format"]; ok {
		t.Fatalf("expected no response_format when JSON is false")
	}
}

func TestCompleteMissingKeyMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	client, err := NewClient(llm.StaticKey(""), "m", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Complete(context.Background(), llm.Request{Prompt: "x"})
	var pe *llm.ProviderError
	if !errors.As(err, &pe) || pe.Provider != ProviderName {
		t.Fatalf("expected groq provider error, got %v", err)
	}
	if !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no upstream calls, got %d", calls.Load())
	}
}

func TestCompleteNon2xxIsProviderError(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit","type":"tokens"}}`))
	})

	client, _ := NewClient(llm.StaticKey("k"), "m", time.Second)
	_, err := client.Complete(context.Background(), llm.Request{Prompt: "x"})
	var pe *llm.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	client, _ := NewClient(llm.StaticKey("k"), "m", time.Second)
	if _, err := client.Complete(context.Background(), llm.Request{Prompt: "x"}); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestNewClientRequiresModel(t *testing.T) {
	if _, err := NewClient(nil, " ", time.Second); err == nil {
		t.Fatalf("expected error for empty model")
	}
}
