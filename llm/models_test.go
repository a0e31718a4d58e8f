package llm

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestWireDropsSkillID(t *testing.T) {
	msg := Message{Role: RoleAssistant, Content: "done", SkillID: "sift-stylus-research"}

	data, err := json.Marshal(msg.Wire())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(data), "skill") {
		t.Errorf("wire record leaked skill id: %s", data)
	}
	if string(data) != `{"role":"assistant","content":"done"}` {
		t.Errorf("unexpected wire record: %s", data)
	}
}

func TestWireOmitsContentOnlyForToolCallTurns(t *testing.T) {
	tests := []struct {
		name        string
		msg         Message
		wantContent bool
	}{
		{
			name:        "tool calls with empty content",
			msg:         Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "search_stylus_docs", Arguments: "{}"}}},
			wantContent: false,
		},
		{
			name:        "tool calls with content",
			msg:         Message{Role: RoleAssistant, Content: "looking", ToolCalls: []ToolCall{{ID: "c1"}}},
			wantContent: true,
		},
		{
			name:        "empty user message keeps content",
			msg:         Message{Role: RoleUser},
			wantContent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.msg.Wire()
			if got := w.Content != nil; got != tt.wantContent {
				t.Errorf("content present = %v, want %v", got, tt.wantContent)
			}
		})
	}
}

func TestWireToolMessage(t *testing.T) {
	w := ToolMessage("call_1", `{"ok":true}`).Wire()
	if w.ToolCallID != "call_1" {
		t.Errorf("ToolCallID = %q", w.ToolCallID)
	}
	if w.Text() != `{"ok":true}` {
		t.Errorf("Text() = %q", w.Text())
	}
	if len(w.ToolCalls) != 0 {
		t.Errorf("tool message should not carry tool calls")
	}
}

func TestWireCopiesToolCalls(t *testing.T) {
	msg := Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "a", Name: "x"}}}
	w := msg.Wire()
	w.ToolCalls[0].ID = "changed"
	if msg.ToolCalls[0].ID != "a" {
		t.Error("Wire should not alias the source tool calls")
	}
}

func TestValidateTranscript(t *testing.T) {
	valid := []Message{
		UserMessage("q"),
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "search_stylus_docs"}}},
		ToolMessage("c1", "{}"),
	}
	if err := ValidateTranscript(valid); err != nil {
		t.Errorf("expected valid transcript, got %v", err)
	}

	orphan := []Message{UserMessage("q"), ToolMessage("c9", "{}")}
	if err := ValidateTranscript(orphan); err == nil {
		t.Error("expected error for orphan tool message")
	}
}

func TestLatestUserContent(t *testing.T) {
	msgs := []Message{UserMessage("first"), AssistantMessage("a"), UserMessage("second"), ToolMessage("c", "{}")}
	if got := LatestUserContent(msgs); got != "second" {
		t.Errorf("LatestUserContent = %q, want second", got)
	}
	if got := LatestUserContent(nil); got != "" {
		t.Errorf("LatestUserContent(nil) = %q", got)
	}
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	err := NewStatusError(502, strings.Repeat("x", 500))
	if len(err.Body) != maxErrorBody {
		t.Errorf("body length = %d, want %d", len(err.Body), maxErrorBody)
	}
	if !strings.HasPrefix(err.Error(), "LLM request failed (502): ") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestIsEndpointNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"404 with marker", NewStatusError(404, `{"error":{"message":"No endpoints found for x"}}`), true},
		{"404 without marker", NewStatusError(404, "not here"), false},
		{"500 with marker", NewStatusError(500, "No endpoints found"), false},
		{"other error", &InvalidResponseError{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEndpointNotFound(tt.err); got != tt.want {
				t.Errorf("IsEndpointNotFound = %v, want %v", got, tt.want)
			}
		})
	}
}
