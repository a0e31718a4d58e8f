// Package llm provides shared data models for LLM providers.
package llm

import "fmt"

// Role identifies the author of a message in a transcript.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one conversational turn.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // For assistant messages with tool calls
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool result messages
	SkillID    string     `json:"skill_id,omitempty"`     // Display label only, never sent to the model
}

// ToolCall represents a tool call from the LLM.
// Arguments is kept as raw text because models do emit invalid JSON.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition defines a tool that the LLM can call.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// HasToolCalls reports whether the message requests tool execution.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// WireMessage is the minimal record an LLM API accepts.
type WireMessage struct {
	Role       Role       `json:"role"`
	Content    *string    `json:"content,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// Text returns the content or "" when it was omitted.
func (w WireMessage) Text() string {
	if w.Content == nil {
		return ""
	}
	return *w.Content
}

// Wire projects the message onto the fields the model sees.
// SkillID is dropped; content is omitted only for pure tool-call turns.
func (m Message) Wire() WireMessage {
	w := WireMessage{Role: m.Role}
	if m.Content != "" || !m.HasToolCalls() {
		content := m.Content
		w.Content = &content
	}
	if m.ToolCallID != "" {
		w.ToolCallID = m.ToolCallID
	}
	if m.HasToolCalls() {
		w.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	return w
}

// ToWire normalizes a whole transcript.
func ToWire(messages []Message) []WireMessage {
	result := make([]WireMessage, len(messages))
	for i, msg := range messages {
		result[i] = msg.Wire()
	}
	return result
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolMessage creates a tool result message for the given call.
func ToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Content: content}
}

// LatestUserContent returns the content of the most recent user message.
func LatestUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// ValidateTranscript checks that every tool message answers a tool call
// issued by an earlier assistant message.
func ValidateTranscript(messages []Message) error {
	issued := make(map[string]bool)
	for i, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			for _, tc := range msg.ToolCalls {
				issued[tc.ID] = true
			}
		case RoleTool:
			if !issued[msg.ToolCallID] {
				return fmt.Errorf("message %d: tool result references unknown tool call %q", i, msg.ToolCallID)
			}
		}
	}
	return nil
}
