// AssistantClient - one assistant turn against a Provider, with a single
// fallback-model retry when the primary alias has no serving endpoint.

package llm

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// StatusFallback is reported before the fallback attempt.
const StatusFallback = "Primary model unavailable, trying fallback..."

var tracer = otel.Tracer("sifter/llm")

// StatusFunc receives progress updates. It must not block.
type StatusFunc func(status string)

// Notify calls fn when it is set.
func (fn StatusFunc) Notify(status string) {
	if fn != nil {
		fn(status)
	}
}

// AssistantRequest is one request for the next assistant message.
type AssistantRequest struct {
	Messages     []Message
	Tools        []ToolDefinition
	SystemPrompt string
	OnStatus     StatusFunc
}

// AssistantClient wraps a Provider with the model selection policy.
type AssistantClient struct {
	provider      Provider
	model         string
	fallbackModel string
}

// NewAssistantClient creates a client that asks for model and, when the
// proxy reports no endpoint for it, retries once with fallbackModel.
func NewAssistantClient(provider Provider, model, fallbackModel string) *AssistantClient {
	return &AssistantClient{
		provider:      provider,
		model:         model,
		fallbackModel: fallbackModel,
	}
}

// Model returns the primary model alias.
func (c *AssistantClient) Model() string {
	return c.model
}

// Provider returns the underlying provider.
func (c *AssistantClient) Provider() Provider {
	return c.provider
}

// Request prepends the system prompt, declares tools with tool_choice
// "auto" and returns the assistant message. No retry other than the
// single fallback attempt is made.
func (c *AssistantClient) Request(ctx context.Context, req AssistantRequest) (Message, error) {
	ctx, span := tracer.Start(ctx, "llm.request")
	defer span.End()

	wire := make([]WireMessage, 0, len(req.Messages)+1)
	wire = append(wire, SystemMessage(req.SystemPrompt).Wire())
	wire = append(wire, ToWire(req.Messages)...)

	completion := CompletionRequest{
		Model:    c.model,
		Messages: wire,
		Tools:    req.Tools,
	}
	if len(req.Tools) > 0 {
		completion.ToolChoice = ToolChoiceAuto
	}

	span.SetAttributes(
		attribute.String("llm.provider", c.provider.Name()),
		attribute.String("llm.model", c.model),
		attribute.Int("llm.messages", len(wire)),
		attribute.Int("llm.tools", len(req.Tools)),
	)

	msg, err := c.provider.Complete(ctx, completion)
	if err != nil && c.shouldFallback(err) {
		slog.WarnContext(ctx, "primary model unavailable, retrying with fallback",
			"model", c.model,
			"fallback_model", c.fallbackModel,
			"error", err)
		req.OnStatus.Notify(StatusFallback)

		completion.Model = c.fallbackModel
		span.SetAttributes(attribute.String("llm.fallback_model", c.fallbackModel))
		msg, err = c.provider.Complete(ctx, completion)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Message{}, err
	}

	slog.DebugContext(ctx, "assistant message received",
		"model", completion.Model,
		"tool_calls", len(msg.ToolCalls),
		"content_len", len(msg.Content))
	return msg, nil
}

func (c *AssistantClient) shouldFallback(err error) bool {
	return c.fallbackModel != "" &&
		c.fallbackModel != c.model &&
		IsEndpointNotFound(err)
}
