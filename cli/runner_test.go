package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getfairai/sifter/config"
	"github.com/getfairai/sifter/llm"
	"github.com/getfairai/sifter/skill"
	"github.com/getfairai/sifter/storage"
)

// backend serves both the chat completions proxy and the skills API.
type backend struct {
	mu          sync.Mutex
	completions []map[string]any
	searches    []string
	answers     []string // assistant replies, in order; tool calls when "TOOL:<query>"
}

func (b *backend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/llm/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("invalid completion request: %v", err)
		}
		b.mu.Lock()
		b.completions = append(b.completions, payload)
		i := len(b.completions) - 1
		b.mu.Unlock()

		answer := b.answers[len(b.answers)-1]
		if i < len(b.answers) {
			answer = b.answers[i]
		}
		w.Header().Set("Content-Type", "application/json")
		if query, ok := strings.CutPrefix(answer, "TOOL:"); ok {
			args, _ := json.Marshal(map[string]string{"query": query})
			_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"search_stylus_docs","arguments":`+jsonString(string(args))+`}}]}}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":`+jsonString(answer)+`}}]}`)
	})
	mux.HandleFunc("/skills/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/search") {
			var payload map[string]string
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &payload)
			b.mu.Lock()
			b.searches = append(b.searches, payload["prompt"])
			b.mu.Unlock()
			_, _ = io.WriteString(w, `{"references":[{"title":"Stylus Docs","url":"https://docs.arbitrum.io/stylus"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"system_prompt":"published prompt"}`)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return mux
}

func jsonString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func newTestApp(t *testing.T, b *backend, verbose bool) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	server := httptest.NewServer(b.handler(t))
	t.Cleanup(server.Close)

	settings := config.Settings{
		HTTPTimeout: 5 * time.Second,
		LLM: config.LLMConfig{
			Provider:      "openai",
			BaseURL:       server.URL + "/llm",
			APIKey:        "test-key",
			Model:         "primary-model",
			FallbackModel: "fallback-model",
			Temperature:   0.7,
		},
		KnowledgeBase: config.KnowledgeBaseConfig{SkillsAPIBaseURL: server.URL + "/skills"},
		Admin:         config.AdminConfig{BaseURL: server.URL},
	}
	var out, errOut bytes.Buffer
	return NewApp(settings, Options{Out: &out, Err: &errOut, Verbose: verbose}), &out, &errOut
}

func TestAskPrintsFormattedAnswerWithReferences(t *testing.T) {
	b := &backend{answers: []string{"TOOL:deploy", "Use cargo stylus deploy."}}
	app, out, errOut := newTestApp(t, b, true)

	if err := app.Ask(context.Background(), "How do I deploy?", skill.IDResearch); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	want := "Use cargo stylus deploy.\n\nReferences:\n- [Stylus Docs](https://docs.arbitrum.io/stylus)\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	if len(b.searches) != 1 || b.searches[0] != "deploy" {
		t.Errorf("searches = %v", b.searches)
	}
	if len(b.completions) != 2 {
		t.Fatalf("expected 2 completions, got %d", len(b.completions))
	}
	messages, _ := b.completions[0]["messages"].([]any)
	first, _ := messages[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "published prompt" {
		t.Errorf("system message = %v", first)
	}
	if !strings.Contains(errOut.String(), "Running Stylus Research...") {
		t.Errorf("verbose status missing: %q", errOut.String())
	}
}

func TestAskRejectsUnknownSkill(t *testing.T) {
	app, _, _ := newTestApp(t, &backend{answers: []string{"x"}}, false)
	err := app.Ask(context.Background(), "q", "no-such-skill")
	if err == nil || !strings.Contains(err.Error(), `unknown skill "no-such-skill"`) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAskRequiresAPIKey(t *testing.T) {
	app, _, _ := newTestApp(t, &backend{answers: []string{"x"}}, false)
	app.settings.LLM.APIKey = ""
	if err := app.Ask(context.Background(), "q", ""); err == nil || !strings.Contains(err.Error(), "API key not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestChatPersistsAndSwitchesSkill(t *testing.T) {
	b := &backend{answers: []string{"First answer.", "Second answer."}}
	app, out, _ := newTestApp(t, b, false)
	store := storage.NewInMemoryStorage()

	input := strings.NewReader("hello\n/skill sift-stylus-code-helper\nshow me an example\nexit\n")
	err := app.Chat(context.Background(), input, ChatOptions{SessionID: "s1", Store: store})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "Hi, you are in Stylus Research.") {
		t.Errorf("missing greeting: %q", text)
	}
	if !strings.Contains(text, "First answer.") || !strings.Contains(text, "Second answer.") {
		t.Errorf("missing answers: %q", text)
	}

	history, _ := store.Load(context.Background(), "s1")
	if len(history) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(history))
	}
	if history[1].SkillID != skill.IDResearch || history[3].SkillID != skill.IDCodeHelper {
		t.Errorf("skill labels = %q, %q", history[1].SkillID, history[3].SkillID)
	}

	// The second request carries the whole transcript.
	messages, _ := b.completions[1]["messages"].([]any)
	if len(messages) != 4 {
		t.Errorf("second request sent %d messages, want system + 3", len(messages))
	}
}

func TestChatResumesSession(t *testing.T) {
	b := &backend{answers: []string{"ok"}}
	app, out, _ := newTestApp(t, b, false)
	store := storage.NewInMemoryStorage()
	_ = store.Save(context.Background(), "s1", []llm.Message{
		llm.UserMessage("earlier"),
		{Role: llm.RoleAssistant, Content: "before", SkillID: skill.IDPortingAuditor},
	})

	if err := app.Chat(context.Background(), strings.NewReader("exit\n"), ChatOptions{SessionID: "s1", Store: store}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if !strings.Contains(out.String(), "Resuming session 's1' (2 messages)") {
		t.Errorf("missing resume notice: %q", out.String())
	}
	if !strings.Contains(out.String(), "[Auditor]> ") {
		t.Errorf("resumed session should restore the last skill: %q", out.String())
	}
}

func TestChatShowsErrorsInline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/llm") {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":{"message":"boom"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"system_prompt":"p"}`)
	}))
	defer server.Close()

	var out bytes.Buffer
	app := NewApp(config.Settings{
		HTTPTimeout:   5 * time.Second,
		LLM:           config.LLMConfig{Provider: "openai", BaseURL: server.URL + "/llm", APIKey: "k", Model: "m"},
		KnowledgeBase: config.KnowledgeBaseConfig{SkillsAPIBaseURL: server.URL},
	}, Options{Out: &out, Err: io.Discard})

	if err := app.Chat(context.Background(), strings.NewReader("hi\n"), ChatOptions{}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if !strings.Contains(out.String(), "Error: LLM request failed (500)") {
		t.Errorf("expected inline error, got %q", out.String())
	}
}

func TestChatCommands(t *testing.T) {
	app, out, errOut := newTestApp(t, &backend{answers: []string{"x"}}, false)
	input := strings.NewReader("/help\n/skills\n/prompts\n/refresh\n/skill nope\n/bogus\n")

	if err := app.Chat(context.Background(), input, ChatOptions{SkillID: skill.IDPortingAuditor}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	text := out.String()
	for _, want := range []string{"Commands:", "Available skills:", "Analyze https://github.com/Uniswap", "System prompts will be reloaded"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if !strings.Contains(errOut.String(), `unknown skill "nope"`) || !strings.Contains(errOut.String(), "unknown command /bogus") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestSkillsListsCatalog(t *testing.T) {
	app, out, _ := newTestApp(t, &backend{answers: []string{"x"}}, false)
	app.Skills(false)

	text := out.String()
	for _, id := range []string{skill.IDResearch + " (default)", skill.IDPortingAuditor, skill.IDCodeHelper} {
		if !strings.Contains(text, id) {
			t.Errorf("skills output missing %q", id)
		}
	}
}

func TestHealthReportsNotReady(t *testing.T) {
	app, out, _ := newTestApp(t, &backend{answers: []string{"x"}}, false)
	if err := app.Health(context.Background()); err != nil {
		t.Fatalf("Health should not fail for a non-2xx answer: %v", err)
	}
	if !strings.Contains(out.String(), "Knowledge base not ready (503)") {
		t.Errorf("output = %q", out.String())
	}
}
