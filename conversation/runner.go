// Tool-calling conversation loop.
//
// Information Hiding:
// - State transitions of the loop
// - System prompt resolution and seed prompt selection
// - Reference injection and the auditor verdict rewrite

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/getfairai/sifter/format"
	"github.com/getfairai/sifter/internal/logger"
	"github.com/getfairai/sifter/llm"
	"github.com/getfairai/sifter/skill"
	"github.com/getfairai/sifter/tools"
)

var tracer = otel.Tracer("sifter/conversation")

// Runner executes skill conversations. It holds no per-turn state, so one
// Runner may serve concurrent turns.
type Runner struct {
	assistant     Assistant
	dispatcher    ToolDispatcher
	prompts       PromptResolver
	catalog       *skill.Catalog
	maxToolRounds int
}

// NewRunner creates a runner.
func NewRunner(assistant Assistant, dispatcher ToolDispatcher, prompts PromptResolver, catalog *skill.Catalog) *Runner {
	return &Runner{
		assistant:     assistant,
		dispatcher:    dispatcher,
		prompts:       prompts,
		catalog:       catalog,
		maxToolRounds: MaxToolRounds,
	}
}

// WithMaxToolRounds overrides the tool round limit.
func (r *Runner) WithMaxToolRounds(n int) *Runner {
	if n >= 0 {
		r.maxToolRounds = n
	}
	return r
}

// turn is the mutable state of one Run.
type turn struct {
	skill        skill.Skill
	systemPrompt string
	seedPrompt   string
	onStatus     llm.StatusFunc
	messages     []llm.Message
	state        State
	rounds       int
	modelCalls   int
	rewritten    bool
}

// Run executes one user turn. The caller's transcript is copied, never
// modified. Exhausting the tool rounds ends in StateLoopAborted with the
// loop guard message, which is not an error.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	sk := r.catalog.Get(req.SkillID)
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "conversation", SkillID: sk.ID})
	ctx, span := tracer.Start(ctx, "conversation.run")
	defer span.End()
	span.SetAttributes(attribute.String("skill.id", sk.ID))

	startTime := time.Now()
	result, err := r.run(ctx, sk, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	span.SetAttributes(
		attribute.String("conversation.state", result.State.String()),
		attribute.Int("conversation.rounds", result.Rounds),
		attribute.Int("conversation.model_calls", result.ModelCalls),
	)
	slog.InfoContext(ctx, "conversation turn completed",
		"state", result.State.String(),
		"rounds", result.Rounds,
		"model_calls", result.ModelCalls,
		"rewritten", result.Rewritten,
		"duration_ms", time.Since(startTime).Milliseconds())
	return result, nil
}

func (r *Runner) run(ctx context.Context, sk skill.Skill, req Request) (Result, error) {
	systemPrompt, err := r.prompts.SystemPrompt(ctx, sk.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve system prompt: %w", err)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return Result{}, fmt.Errorf("published system prompt is missing for skill '%s'", sk.ID)
	}

	t := &turn{
		skill:        sk,
		systemPrompt: systemPrompt,
		seedPrompt:   llm.LatestUserContent(req.Messages),
		onStatus:     req.OnStatus,
		messages:     append([]llm.Message(nil), req.Messages...),
		state:        StateAwaitingModel,
	}
	definitions := r.dispatcher.Definitions()

	for !t.state.Terminal() {
		switch t.state {
		case StateAwaitingModel:
			if t.rounds > r.maxToolRounds {
				t.state = StateLoopAborted
				continue
			}
			if t.rounds > 0 {
				t.onStatus.Notify(StatusDrafting)
			} else {
				t.onStatus.Notify(fmt.Sprintf("Running %s...", sk.Label))
			}

			msg, err := r.assistant.Request(ctx, llm.AssistantRequest{
				Messages:     t.messages,
				Tools:        definitions,
				SystemPrompt: t.systemPrompt,
				OnStatus:     t.onStatus,
			})
			t.modelCalls++
			if err != nil {
				return Result{}, err
			}
			msg.Role = llm.RoleAssistant
			t.messages = append(t.messages, msg)

			if msg.HasToolCalls() {
				t.state = StateToolCallRequested
			} else {
				t.state = StateFinalAnswer
			}

		case StateToolCallRequested:
			t.onStatus.Notify(StatusUsingTools)
			t.state = StateExecutingTools

		case StateExecutingTools:
			r.executeTools(ctx, t)
			t.rounds++
			t.state = StateAwaitingModel
		}
	}

	switch t.state {
	case StateFinalAnswer:
		r.finalize(ctx, t)
	case StateLoopAborted:
		slog.WarnContext(ctx, "tool round limit reached", "rounds", t.rounds)
		t.messages = append(t.messages, llm.Message{
			Role:    llm.RoleAssistant,
			Content: LoopGuardMessage,
			SkillID: sk.ID,
		})
	}

	return Result{
		Messages:   t.messages,
		State:      t.state,
		Rounds:     t.rounds,
		ModelCalls: t.modelCalls,
		Rewritten:  t.rewritten,
	}, nil
}

// executeTools runs the calls of the last assistant message in order,
// appending one tool message per call.
func (r *Runner) executeTools(ctx context.Context, t *turn) {
	calls := t.messages[len(t.messages)-1].ToolCalls
	scope := tools.Scope{
		SkillID:    t.skill.ID,
		SeedPrompt: t.seedPrompt,
		OnStatus:   t.onStatus,
	}
	for _, call := range calls {
		result := r.dispatcher.Execute(ctx, call, scope)
		t.messages = append(t.messages, llm.ToolMessage(call.ID, result))
	}
}

// finalize rewrites the final answer in place: the auditor skill may get a
// restructured verdict, then references from tool results are appended.
func (r *Runner) finalize(ctx context.Context, t *turn) {
	last := len(t.messages) - 1
	content := t.messages[last].Content

	if t.skill.ID == skill.IDPortingAuditor && NeedsVerdictRewrite(content) {
		if rewritten, ok := r.rewriteVerdict(ctx, t); ok {
			content = rewritten
			t.rewritten = true
		}
	}

	refs := format.ExtractReferences(t.messages)
	t.messages[last].Content = format.EnsureClickableReferences(content, refs)
	t.messages[last].SkillID = t.skill.ID
}

// rewriteVerdict issues one tool-free request asking the model to
// restructure its answer. Any failure keeps the original answer.
func (r *Runner) rewriteVerdict(ctx context.Context, t *turn) (string, bool) {
	t.onStatus.Notify(StatusRewriting)

	messages := append(append([]llm.Message(nil), t.messages...), llm.UserMessage(verdictRewritePrompt))
	msg, err := r.assistant.Request(ctx, llm.AssistantRequest{
		Messages:     messages,
		SystemPrompt: t.systemPrompt,
		OnStatus:     t.onStatus,
	})
	t.modelCalls++
	if err != nil {
		slog.WarnContext(ctx, "verdict rewrite failed, keeping original answer", "error", err)
		return "", false
	}
	if msg.HasToolCalls() || strings.TrimSpace(msg.Content) == "" {
		slog.WarnContext(ctx, "verdict rewrite returned no usable text, keeping original answer")
		return "", false
	}
	return msg.Content, true
}

// Submit runs a turn for an interactive front end. Errors do not escape:
// they become an assistant message starting with "Error:".
func (r *Runner) Submit(ctx context.Context, req Request) []llm.Message {
	result, err := r.Run(ctx, req)
	if err != nil {
		slog.ErrorContext(ctx, "conversation turn failed",
			"skill_id", req.SkillID,
			"error", err)
		messages := append([]llm.Message(nil), req.Messages...)
		return append(messages, llm.Message{
			Role:    llm.RoleAssistant,
			Content: "Error: " + err.Error(),
			SkillID: r.catalog.Get(req.SkillID).ID,
		})
	}
	return result.Messages
}
