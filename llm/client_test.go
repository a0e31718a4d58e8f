package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// proxyStub records chat completion requests and answers from a script.
type proxyStub struct {
	mu       sync.Mutex
	requests []map[string]any
	respond  func(model string) (int, string)
}

func (s *proxyStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		s.mu.Lock()
		s.requests = append(s.requests, payload)
		s.mu.Unlock()

		model, _ := payload["model"].(string)
		status, resp := s.respond(model)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}
}

func (s *proxyStub) models() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.requests {
		m, _ := r["model"].(string)
		out = append(out, m)
	}
	return out
}

const okCompletion = `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`

const noEndpoints = `{"error":{"message":"No endpoints found for primary-model.","code":404}}`

func newTestClient(t *testing.T, stub *proxyStub, model, fallback string) *AssistantClient {
	t.Helper()
	server := httptest.NewServer(stub.handler(t))
	t.Cleanup(server.Close)
	provider, err := ProviderOpenAI.BaseURL(server.URL).APIKey("test-key")
	if err != nil {
		t.Fatalf("failed to build provider: %v", err)
	}
	return NewAssistantClient(provider, model, fallback)
}

func TestRequestSendsSystemPromptAndTools(t *testing.T) {
	stub := &proxyStub{respond: func(string) (int, string) { return 200, okCompletion }}
	client := newTestClient(t, stub, "primary-model", "fallback-model")

	tools := []ToolDefinition{{
		Name:        "search_stylus_docs",
		Description: "search",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{"query": map[string]any{"type": "string"}}},
	}}
	msg, err := client.Request(context.Background(), AssistantRequest{
		Messages:     []Message{UserMessage("What is Stylus?")},
		Tools:        tools,
		SystemPrompt: "be helpful",
	})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if msg.Content != "hello" || msg.Role != RoleAssistant {
		t.Errorf("unexpected message: %+v", msg)
	}

	if len(stub.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(stub.requests))
	}
	req := stub.requests[0]
	if req["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v, want auto", req["tool_choice"])
	}
	messages, _ := req["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(messages))
	}
	first, _ := messages[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be helpful" {
		t.Errorf("first message should be the system prompt, got %v", first)
	}
	if _, ok := req["tools"].([]any); !ok {
		t.Error("tools were not sent")
	}
}

func TestRequestParsesToolCalls(t *testing.T) {
	resp := `{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"search_stylus_docs","arguments":"{\"query\":\"gas\"}"}}]}}]}`
	stub := &proxyStub{respond: func(string) (int, string) { return 200, resp }}
	client := newTestClient(t, stub, "primary-model", "")

	msg, err := client.Request(context.Background(), AssistantRequest{Messages: []Message{UserMessage("q")}})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "search_stylus_docs" || tc.Arguments != `{"query":"gas"}` {
		t.Errorf("unexpected tool call: %+v", tc)
	}
}

func TestRequestFallsBackOnceWhenNoEndpoints(t *testing.T) {
	stub := &proxyStub{respond: func(model string) (int, string) {
		if model == "primary-model" {
			return 404, noEndpoints
		}
		return 200, okCompletion
	}}
	client := newTestClient(t, stub, "primary-model", "fallback-model")

	var statuses []string
	msg, err := client.Request(context.Background(), AssistantRequest{
		Messages: []Message{UserMessage("q")},
		OnStatus: func(s string) { statuses = append(statuses, s) },
	})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if msg.Content != "hello" {
		t.Errorf("content = %q", msg.Content)
	}

	models := stub.models()
	if len(models) != 2 || models[0] != "primary-model" || models[1] != "fallback-model" {
		t.Errorf("unexpected model sequence: %v", models)
	}
	if len(statuses) != 1 || statuses[0] != StatusFallback {
		t.Errorf("unexpected statuses: %v", statuses)
	}

	// Payload must be identical apart from the model.
	first, second := stub.requests[0], stub.requests[1]
	delete(first, "model")
	delete(second, "model")
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("fallback payload differs:\n%s\n%s", a, b)
	}
}

func TestRequestFallbackFailureReportsFallbackStatus(t *testing.T) {
	stub := &proxyStub{respond: func(model string) (int, string) {
		if model == "primary-model" {
			return 404, noEndpoints
		}
		return 500, "upstream exploded"
	}}
	client := newTestClient(t, stub, "primary-model", "fallback-model")

	_, err := client.Request(context.Background(), AssistantRequest{Messages: []Message{UserMessage("q")}})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != 500 {
		t.Errorf("status = %d, want 500", statusErr.StatusCode)
	}
	if err.Error() != "LLM request failed (500): upstream exploded" {
		t.Errorf("unexpected error: %s", err.Error())
	}
	if got := len(stub.models()); got != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", got)
	}
}

func TestRequestNoFallbackWhenModelsMatch(t *testing.T) {
	stub := &proxyStub{respond: func(string) (int, string) { return 404, noEndpoints }}
	client := newTestClient(t, stub, "primary-model", "primary-model")

	_, err := client.Request(context.Background(), AssistantRequest{Messages: []Message{UserMessage("q")}})
	if !IsEndpointNotFound(err) {
		t.Fatalf("expected endpoint-not-found error, got %v", err)
	}
	if got := len(stub.models()); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestRequestNoFallbackForOtherErrors(t *testing.T) {
	stub := &proxyStub{respond: func(string) (int, string) { return 401, `{"error":{"message":"bad key"}}` }}
	client := newTestClient(t, stub, "primary-model", "fallback-model")

	_, err := client.Request(context.Background(), AssistantRequest{Messages: []Message{UserMessage("q")}})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 401 {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if got := len(stub.models()); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestRequestMissingMessage(t *testing.T) {
	stub := &proxyStub{respond: func(string) (int, string) { return 200, `{"choices":[]}` }}
	client := newTestClient(t, stub, "primary-model", "")

	_, err := client.Request(context.Background(), AssistantRequest{Messages: []Message{UserMessage("q")}})
	var invalid *InvalidResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidResponseError, got %v", err)
	}
	if err.Error() != "LLM returned no message." {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
