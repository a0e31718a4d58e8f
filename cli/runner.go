// Command execution for CLI commands.
//
// Information Hiding:
// - Wiring of providers, knowledge-base client, prompt cache and tools
// - REPL command parsing
// - Output formatting

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/getfairai/sifter/admin"
	"github.com/getfairai/sifter/config"
	"github.com/getfairai/sifter/conversation"
	"github.com/getfairai/sifter/format"
	"github.com/getfairai/sifter/internal/logger"
	"github.com/getfairai/sifter/kb"
	"github.com/getfairai/sifter/llm"
	"github.com/getfairai/sifter/skill"
	"github.com/getfairai/sifter/storage"
	"github.com/getfairai/sifter/tools"
)

// DefaultDBPath is the SQLite file for transcripts and the admin token.
const DefaultDBPath = ".sifter/sifter.db"

// Options holds CLI execution options.
type Options struct {
	Provider      string
	Model         string
	FallbackModel string
	Verbose       bool

	Out io.Writer // Answers; defaults to os.Stdout
	Err io.Writer // Status and warnings; defaults to os.Stderr
}

// LoadSettings reads configuration and applies flag overrides.
func LoadSettings(opts Options) (config.Settings, error) {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return config.Settings{}, err
	}
	if opts.Model != "" {
		settings.LLM.Model = opts.Model
	}
	if opts.FallbackModel != "" {
		settings.LLM.FallbackModel = opts.FallbackModel
	}
	return settings, nil
}

// App is a wired sifter instance.
type App struct {
	settings config.Settings
	catalog  *skill.Catalog
	kb       *kb.Client
	prompts  *skill.PromptCache
	runner   *conversation.Runner
	admin    *admin.Client

	out     io.Writer
	errOut  io.Writer
	verbose bool
}

// NewApp wires an App from settings. The LLM provider is created lazily
// so commands that never call the model work without an API key.
func NewApp(settings config.Settings, opts Options) *App {
	httpClient := &http.Client{Timeout: settings.HTTPTimeout}
	catalog := skill.NewCatalog()
	kbClient := kb.NewClient(settings.KnowledgeBase.BaseURL(), httpClient)

	app := &App{
		settings: settings,
		catalog:  catalog,
		kb:       kbClient,
		prompts:  skill.NewPromptCache(catalog, kbClient, settings.Prompts.PromptOverrides()),
		admin:    admin.NewClient(settings.Admin.BaseURL, httpClient),
		out:      opts.Out,
		errOut:   opts.Err,
		verbose:  opts.Verbose,
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	if app.errOut == nil {
		app.errOut = os.Stderr
	}
	return app
}

// conversationRunner builds the runner on first use.
func (a *App) conversationRunner() (*conversation.Runner, error) {
	if a.runner != nil {
		return a.runner, nil
	}
	provider, err := createProvider(a.settings, &http.Client{Timeout: a.settings.HTTPTimeout})
	if err != nil {
		return nil, err
	}
	registry, err := tools.WithDefaults(a.kb, a.catalog)
	if err != nil {
		return nil, err
	}

	assistant := llm.NewAssistantClient(provider, a.settings.LLM.Model, a.settings.LLM.FallbackModel)
	a.runner = conversation.NewRunner(assistant, tools.NewDispatcher(registry), a.prompts, a.catalog)
	slog.Debug("conversation runner ready",
		"provider", provider.Name(),
		"model", a.settings.LLM.Model,
		"fallback_model", a.settings.LLM.FallbackModel,
		"kb", a.kb.BaseURL())
	return a.runner, nil
}

func createProvider(settings config.Settings, httpClient *http.Client) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}
	if settings.LLM.APIKey == "" {
		return nil, fmt.Errorf("%s: API key not set (SIFTER_LLM_API_KEY or %s)", providerType, providerType.EnvVar())
	}

	builder := llm.NewProviderBuilder(providerType).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		HTTPClient(httpClient)
	if settings.LLM.BaseURL != "" {
		builder = builder.BaseURL(settings.LLM.BaseURL)
	}
	return builder.APIKey(settings.LLM.APIKey)
}

func (a *App) resolveSkill(id string) (skill.Skill, error) {
	if id == "" {
		return a.catalog.Default(), nil
	}
	sk, ok := a.catalog.Lookup(id)
	if !ok {
		return skill.Skill{}, fmt.Errorf("unknown skill %q (run 'sifter skills' to list them)", id)
	}
	return sk, nil
}

func (a *App) statusFunc() llm.StatusFunc {
	if !a.verbose {
		return nil
	}
	return func(status string) {
		fmt.Fprintf(a.errOut, "... %s\n", status)
	}
}

// Ask runs a single turn and prints the formatted answer.
func (a *App) Ask(ctx context.Context, prompt, skillID string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return errors.New("prompt is required")
	}
	sk, err := a.resolveSkill(skillID)
	if err != nil {
		return err
	}
	runner, err := a.conversationRunner()
	if err != nil {
		return err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "cli", SessionID: logger.Ptr(uuid.NewString())})
	result, err := runner.Run(ctx, conversation.Request{
		Messages: []llm.Message{llm.UserMessage(prompt)},
		SkillID:  sk.ID,
		OnStatus: a.statusFunc(),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, format.FormatAssistantContent(result.Final().Content))
	if a.verbose {
		fmt.Fprintf(a.errOut, "(%s, %d tool rounds, %d model calls)\n", result.State, result.Rounds, result.ModelCalls)
	}
	return nil
}

// ChatOptions configures an interactive session.
type ChatOptions struct {
	SkillID   string
	SessionID string
	// Store persists the transcript when SessionID is set. May be nil.
	Store storage.ConversationStorage
}

// Chat runs the REPL reading lines from in until EOF or "exit".
func (a *App) Chat(ctx context.Context, in io.Reader, opts ChatOptions) error {
	sk, err := a.resolveSkill(opts.SkillID)
	if err != nil {
		return err
	}
	runner, err := a.conversationRunner()
	if err != nil {
		return err
	}

	session := opts.SessionID
	store := opts.Store
	if session == "" {
		session = uuid.NewString()
		store = nil
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "cli", SessionID: logger.Ptr(session)})

	var history []llm.Message
	if store != nil {
		history, err = store.Load(ctx, session)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if len(history) > 0 {
			if last := history[len(history)-1].SkillID; a.catalog.Has(last) {
				sk = a.catalog.Get(last)
			}
			fmt.Fprintf(a.out, "Resuming session '%s' (%d messages)\n\n", session, len(history))
		}
	}
	if len(history) == 0 {
		fmt.Fprintf(a.out, "%s\n\n", a.catalog.InitialAssistantMessage(sk.ID).Content)
	}
	fmt.Fprintln(a.out, "Type /help for commands, 'exit' to quit.")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprintf(a.out, "[%s]> ", sk.ShortLabel)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		if strings.HasPrefix(input, "/") {
			sk, history = a.chatCommand(input, sk, history)
			continue
		}

		history = runner.Submit(ctx, conversation.Request{
			Messages: append(history, llm.UserMessage(input)),
			SkillID:  sk.ID,
			OnStatus: a.statusFunc(),
		})
		fmt.Fprintf(a.out, "\n%s\n\n", format.FormatAssistantContent(history[len(history)-1].Content))

		if store != nil {
			if err := store.Save(ctx, session, history); err != nil {
				fmt.Fprintf(a.errOut, "Warning: failed to save history: %v\n", err)
			}
		}
	}
	fmt.Fprintln(a.out)

	return scanner.Err()
}

// chatCommand handles a slash command and returns the new skill and history.
func (a *App) chatCommand(input string, sk skill.Skill, history []llm.Message) (skill.Skill, []llm.Message) {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/skill":
		if len(fields) < 2 {
			fmt.Fprintf(a.out, "Current skill: %s (%s)\n", sk.Label, sk.ID)
			return sk, history
		}
		next, err := a.resolveSkill(fields[1])
		if err != nil {
			fmt.Fprintln(a.errOut, err)
			return sk, history
		}
		fmt.Fprintf(a.out, "%s\n", a.catalog.InitialAssistantMessage(next.ID).Content)
		return next, history
	case "/skills":
		a.printSkills(false)
	case "/prompts":
		for _, p := range a.catalog.SuggestedPrompts(sk.ID) {
			fmt.Fprintf(a.out, "  - %s\n", p)
		}
	case "/refresh":
		a.prompts.Refresh()
		fmt.Fprintln(a.out, "System prompts will be reloaded on the next question.")
	case "/new":
		fmt.Fprintln(a.out, "Started a new conversation.")
		return sk, nil
	case "/help":
		fmt.Fprintln(a.out, "Commands: /skill <id>, /skills, /prompts, /refresh, /new, exit")
	default:
		fmt.Fprintf(a.errOut, "unknown command %s (try /help)\n", fields[0])
	}
	return sk, history
}

// Skills lists the catalog.
func (a *App) Skills(withPrompts bool) {
	a.printSkills(withPrompts)
}

func (a *App) printSkills(withPrompts bool) {
	fmt.Fprintln(a.out, "Available skills:")
	fmt.Fprintln(a.out)
	for _, opt := range a.catalog.Options() {
		marker := ""
		if opt.ID == a.catalog.Default().ID {
			marker = " (default)"
		}
		fmt.Fprintf(a.out, "  %s%s\n", opt.ID, marker)
		fmt.Fprintf(a.out, "    %s: %s\n", opt.Label, opt.Description)
		if withPrompts {
			for _, p := range a.catalog.SuggestedPrompts(opt.ID) {
				fmt.Fprintf(a.out, "      - %s\n", p)
			}
		}
		fmt.Fprintln(a.out)
	}
}

// Health reports knowledge-base readiness. A backend that answers but is
// not ready is reported, not returned as an error.
func (a *App) Health(ctx context.Context) error {
	health, err := a.kb.Health(ctx)
	if err != nil {
		return fmt.Errorf("knowledge base unreachable at %s: %w", health.URL, err)
	}
	if health.Ready {
		fmt.Fprintf(a.out, "Knowledge base ready (%d) at %s\n", health.StatusCode, health.URL)
	} else {
		fmt.Fprintf(a.out, "Knowledge base not ready (%d) at %s\n", health.StatusCode, health.URL)
	}
	return nil
}
