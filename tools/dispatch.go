// Tool Dispatcher.
//
// Information Hiding:
// - Tool lookup by the name the model emitted
// - Conversion of every failure into result text for the model
// - Tracing of individual tool calls
//
// Each call is executed exactly once. A failed tool call is information for
// the model's next round, not a reason to retry.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/getfairai/sifter/llm"
)

const defaultErrorLabel = "Error"

var tracer = otel.Tracer("sifter/tools")

// Scope carries the conversation context a tool call runs in.
type Scope struct {
	SkillID    string
	SeedPrompt string
	OnStatus   llm.StatusFunc
}

// Dispatcher executes model tool calls against a registry.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher for the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Definitions returns the tool declarations to offer the model.
func (d *Dispatcher) Definitions() []llm.ToolDefinition {
	return d.registry.Definitions()
}

// Execute runs one tool call and returns the text of the tool message.
// It never fails: unknown tools, bad arguments and backend errors all come
// back as text the model can read.
func (d *Dispatcher) Execute(ctx context.Context, call llm.ToolCall, scope Scope) string {
	name := call.Name
	if name == "" {
		name = "unknown"
	}

	ctx, span := tracer.Start(ctx, "tool.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.call_id", call.ID),
		attribute.String("skill.id", scope.SkillID),
	)

	tool, ok := d.registry.Get(call.Name)
	if !ok {
		slog.WarnContext(ctx, "model requested unsupported tool", "tool", name)
		span.SetStatus(codes.Error, "unsupported tool")
		return fmt.Sprintf("Error: unsupported tool '%s'", name)
	}

	result, err := tool.Execute(ctx, Call{
		Arguments:  json.RawMessage(call.Arguments),
		SkillID:    scope.SkillID,
		SeedPrompt: scope.SeedPrompt,
		OnStatus:   scope.OnStatus,
	})
	if err != nil {
		result = FailureResult(err)
	}

	if !result.Success() {
		label := tool.Metadata().ErrorLabel
		if label == "" {
			label = defaultErrorLabel
		}
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, result.Error.Error())
		slog.WarnContext(ctx, "tool call failed",
			"tool", name,
			"call_id", call.ID,
			"error", result.Error)
		return label + ": " + result.Error.Error()
	}

	slog.DebugContext(ctx, "tool call completed",
		"tool", name,
		"call_id", call.ID,
		"output_len", len(result.Output))
	return strings.TrimSpace(result.Output)
}
