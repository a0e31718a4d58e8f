// Package conversation runs one skill conversation turn: it asks the model
// for the next message, executes requested tool calls, and finalizes the
// answer with references.
//
// Contains the states, requests and results shared by the runner.
package conversation

import (
	"context"

	"github.com/getfairai/sifter/llm"
	"github.com/getfairai/sifter/tools"
)

// MaxToolRounds bounds how many tool rounds one turn may run before the
// loop guard answers instead of the model.
const MaxToolRounds = 3

// LoopGuardMessage is the synthetic answer appended when tool rounds run out.
const LoopGuardMessage = "I hit a tool-call loop while gathering sources. Please rephrase your request and I will retry with a narrower scope."

// Status updates emitted while a turn runs.
const (
	StatusDrafting   = "Drafting final response..."
	StatusUsingTools = "Using skill tools to gather references..."
	StatusRewriting  = "Restructuring verdict..."
)

// State is a phase of the tool-calling loop.
type State int

const (
	StateAwaitingModel State = iota
	StateToolCallRequested
	StateExecutingTools
	StateFinalAnswer
	StateLoopAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateToolCallRequested:
		return "tool_call_requested"
	case StateExecutingTools:
		return "executing_tools"
	case StateFinalAnswer:
		return "final_answer"
	case StateLoopAborted:
		return "loop_aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the loop stops in this state.
func (s State) Terminal() bool {
	return s == StateFinalAnswer || s == StateLoopAborted
}

// Assistant produces the next assistant message.
type Assistant interface {
	Request(ctx context.Context, req llm.AssistantRequest) (llm.Message, error)
}

// ToolDispatcher declares and executes tools.
type ToolDispatcher interface {
	Definitions() []llm.ToolDefinition
	Execute(ctx context.Context, call llm.ToolCall, scope tools.Scope) string
}

// PromptResolver returns the system prompt of a skill.
type PromptResolver interface {
	SystemPrompt(ctx context.Context, skillID string) (string, error)
}

// Request is one user turn.
type Request struct {
	// Messages is the transcript ending with the new user message.
	Messages []llm.Message
	SkillID  string
	OnStatus llm.StatusFunc
}

// Result is the outcome of a turn.
type Result struct {
	// Messages is the caller's transcript plus everything this turn added.
	Messages []llm.Message
	State    State
	// Rounds is the number of tool rounds executed.
	Rounds int
	// ModelCalls counts assistant requests, including a verdict rewrite.
	ModelCalls int
	Rewritten  bool
}

// Final returns the last message of the transcript.
func (r Result) Final() llm.Message {
	if len(r.Messages) == 0 {
		return llm.Message{}
	}
	return r.Messages[len(r.Messages)-1]
}
