package completion_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/v3/option"

	"nambo/internal/completion"
	"nambo/internal/domain"
	"nambo/internal/prompt"
)

const openAIReply = `{
  "id": "resp_1",
  "object": "response",
  "created_at": 1700000000,
  "status": "completed",
  "model": "gpt-4",
  "output": [{
    "type": "message",
    "id": "msg_1",
    "status": "completed",
    "role": "assistant",
    "content": [{"type": "output_text", "text": "  I hear you.  ", "annotations": []}]
  }]
}`

const anthropicReply = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-7-sonnet-latest",
  "content": [{"type": "text", "text": "I hear you."}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 10, "output_tokens": 4}
}`

type recorder struct {
	mu   sync.Mutex
	path string
	body map[string]any
}

func (r *recorder) handler(status int, reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		raw, _ := io.ReadAll(req.Body)

		r.mu.Lock()
		r.path = req.URL.Path
		r.body = map[string]any{}
		_ = json.Unmarshal(raw, &r.body)
		r.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}
}

func chatRequest() prompt.Request {
	turns := []domain.Turn{
		{Role: domain.RoleUser, Text: "hello", Index: 0},
		{Role: domain.RoleAssistant, Text: "hi there", Index: 1},
	}
	return prompt.Build(prompt.Persona, "user said hello", true, turns, "my partner is angry")
}

func TestOpenAIClientComplete(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK, openAIReply))
	defer srv.Close()

	client := completion.NewOpenAIClient("test-key", "",
		openaioption.WithBaseURL(srv.URL+"/"),
		openaioption.WithMaxRetries(0))

	got, err := client.Complete(context.Background(), chatRequest(), completion.Options{
		Temperature:     0.7,
		MaxOutputTokens: 256,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != "I hear you." {
		t.Fatalf("unexpected reply: %q", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.body["instructions"] != prompt.Persona {
		t.Fatalf("persona not sent as instructions: %v", rec.body["instructions"])
	}
	if rec.body["model"] != "gpt-4" {
		t.Fatalf("unexpected model: %v", rec.body["model"])
	}
	input, ok := rec.body["input"].([]any)
	if !ok {
		t.Fatalf("expected input item list, got %T", rec.body["input"])
	}
	// summary substitute + two turns + new input
	if len(input) != 4 {
		t.Fatalf("input length mismatch: got %d want 4", len(input))
	}
}

func TestOpenAIClientWrapsFailures(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusTooManyRequests, `{"error":{"message":"quota","type":"insufficient_quota"}}`))
	defer srv.Close()

	client := completion.NewOpenAIClient("test-key", "gpt-4",
		openaioption.WithBaseURL(srv.URL+"/"),
		openaioption.WithMaxRetries(0))

	_, err := client.Complete(context.Background(), chatRequest(), completion.Options{MaxOutputTokens: 16})
	if err == nil {
		t.Fatal("expected error")
	}
	if !completion.IsUpstream(err) {
		t.Fatalf("expected upstream error, got %T: %v", err, err)
	}
}

func TestAnthropicClientComplete(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK, anthropicReply))
	defer srv.Close()

	client := completion.NewAnthropicClient("test-key", "",
		anthropicoption.WithBaseURL(srv.URL),
		anthropicoption.WithMaxRetries(0))

	got, err := client.Complete(context.Background(), chatRequest(), completion.Options{
		Temperature:     0.7,
		MaxOutputTokens: 256,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != "I hear you." {
		t.Fatalf("unexpected reply: %q", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.path != "/v1/messages" {
		t.Fatalf("unexpected path: %q", rec.path)
	}
	system, ok := rec.body["system"].([]any)
	if !ok || len(system) != 2 {
		t.Fatalf("expected persona and summary in system, got %v", rec.body["system"])
	}
	messages, ok := rec.body["messages"].([]any)
	if !ok || len(messages) != 3 {
		t.Fatalf("expected three messages, got %v", rec.body["messages"])
	}
}

func TestAnthropicClientWrapsFailures(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`))
	defer srv.Close()

	client := completion.NewAnthropicClient("test-key", "",
		anthropicoption.WithBaseURL(srv.URL),
		anthropicoption.WithMaxRetries(0))

	_, err := client.Complete(context.Background(), chatRequest(), completion.Options{})
	if !completion.IsUpstream(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	if _, err := completion.New("llama", "key", ""); !errors.Is(err, completion.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestDefaultModel(t *testing.T) {
	if got := completion.DefaultModel(completion.ProviderOpenAI); got != "gpt-4" {
		t.Fatalf("unexpected openai default: %q", got)
	}
	if got := completion.DefaultModel(completion.ProviderAnthropic); got == "" {
		t.Fatal("expected anthropic default model")
	}
}
