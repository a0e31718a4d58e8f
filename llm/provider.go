// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for completion backends.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Mapping of provider errors onto StatusError / InvalidResponseError

package llm

import (
	"context"
)

// ToolChoiceAuto lets the model decide whether to call a tool.
const ToolChoiceAuto = "auto"

// CompletionRequest is one round trip to a completion endpoint.
// The model is chosen per request so callers can fall back to another alias.
type CompletionRequest struct {
	Model      string
	Messages   []WireMessage
	Tools      []ToolDefinition
	ToolChoice string
}

// Provider defines the abstract interface for LLM providers.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Complete sends a completion request and returns the assistant message.
	// HTTP failures are reported as *StatusError and a payload without a
	// message as *InvalidResponseError.
	Complete(ctx context.Context, req CompletionRequest) (Message, error)
}
