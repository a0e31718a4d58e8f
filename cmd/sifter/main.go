// Package main provides the sifter CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/getfairai/sifter/admin"
	"github.com/getfairai/sifter/cli"
	"github.com/getfairai/sifter/config"
	"github.com/getfairai/sifter/internal/logger"
	"github.com/getfairai/sifter/internal/telemetry"
	"github.com/getfairai/sifter/storage"
)

var (
	// Global flags
	provider      string
	model         string
	fallbackModel string
	verbose       bool

	app *cli.App
	tel *telemetry.Telemetry
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "sifter",
		Short: "Source-backed Arbitrum Stylus assistant",
		Long: `A CLI for the Sifter skill assistant.

Each skill answers with evidence from the Stylus knowledge base:
- sift-stylus-research: answers with links across docs, repos and community sources
- sift-stylus-porting-auditor: Solidity to Stylus porting verdicts
- sift-stylus-code-helper: Stylus code examples and fixes`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tel.Shutdown(shutdownCtx)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider ("+strings.Join(config.SupportedProviders(), ", ")+")")
	rootCmd.PersistentFlags().StringVarP(&model, "model", "m", "", "Primary model (overrides SIFTER_LLM_MODEL)")
	rootCmd.PersistentFlags().StringVar(&fallbackModel, "fallback-model", "", "Fallback model used when the primary has no endpoint")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show progress and debug logs")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(skillsCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(adminCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(ctx context.Context) error {
	opts := cli.Options{
		Provider:      provider,
		Model:         model,
		FallbackModel: fallbackModel,
		Verbose:       verbose,
	}
	settings, err := cli.LoadSettings(opts)
	if err != nil {
		return err
	}
	if verbose {
		settings.LogLevel = "debug"
	}
	logger.Setup(settings, os.Stderr)

	tel, err = telemetry.Setup(ctx, settings.OTel)
	if err != nil {
		return err
	}

	app = cli.NewApp(settings, opts)
	return nil
}

func askCmd() *cobra.Command {
	var skillID string

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Ask(cmd.Context(), strings.Join(args, " "), skillID)
		},
	}

	cmd.Flags().StringVarP(&skillID, "skill", "s", "", "Skill ID (default: sift-stylus-research)")
	return cmd
}

func chatCmd() *cobra.Command {
	var skillID string
	var sessionID string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

With --session the transcript is stored in the SQLite database at --db and
resumed on the next run. Inside the session:
  /skill <id>  switch skill
  /refresh     reload system prompts
  /new         start over`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.ChatOptions{SkillID: skillID, SessionID: sessionID}
			if sessionID != "" {
				store, err := storage.OpenSqlite(dbPath)
				if err != nil {
					return fmt.Errorf("failed to open database: %w", err)
				}
				defer store.Close()
				opts.Store = store
			}
			return app.Chat(cmd.Context(), os.Stdin, opts)
		},
	}

	cmd.Flags().StringVarP(&skillID, "skill", "s", "", "Skill ID (default: sift-stylus-research)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence")
	cmd.Flags().StringVar(&dbPath, "db", cli.DefaultDBPath, "Database path for storage")
	return cmd
}

func skillsCmd() *cobra.Command {
	var withPrompts bool

	cmd := &cobra.Command{
		Use:   "skills",
		Short: "List available skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Skills(withPrompts)
			return nil
		},
	}

	cmd.Flags().BoolVar(&withPrompts, "prompts", true, "Show suggested prompts")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check knowledge-base readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Health(cmd.Context())
		},
	}
}

func adminCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin API: logs, exports and feedback",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", cli.DefaultDBPath, "Database path holding the admin token")

	withTokens := func(fn func(cmd *cobra.Command, args []string, tokens storage.TokenStore) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, err := storage.OpenSqlite(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()
			return fn(cmd, args, store)
		}
	}

	var password string
	login := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the admin token",
		RunE: withTokens(func(cmd *cobra.Command, args []string, tokens storage.TokenStore) error {
			if password == "" {
				password = os.Getenv("SIFTER_ADMIN_PASSWORD")
			}
			return app.AdminLogin(cmd.Context(), password, tokens)
		}),
	}
	login.Flags().StringVar(&password, "password", "", "Admin password (or SIFTER_ADMIN_PASSWORD)")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored admin token",
		RunE: withTokens(func(cmd *cobra.Command, args []string, tokens storage.TokenStore) error {
			return app.AdminLogout(cmd.Context(), tokens)
		}),
	}

	var offset, limit int64
	logs := &cobra.Command{
		Use:   "logs [source]",
		Short: "Print a page of a log source",
		Args:  cobra.ExactArgs(1),
		RunE: withTokens(func(cmd *cobra.Command, args []string, tokens storage.TokenStore) error {
			return app.AdminLogs(cmd.Context(), tokens, args[0], offset, limit)
		}),
	}
	logs.Flags().Int64Var(&offset, "offset", 0, "Byte offset to start from")
	logs.Flags().Int64Var(&limit, "limit", admin.DefaultLogLimit, "Maximum bytes to fetch")

	stream := &cobra.Command{
		Use:   "stream [source]",
		Short: "Follow a log source until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: withTokens(func(cmd *cobra.Command, args []string, tokens storage.TokenStore) error {
			return app.AdminStream(cmd.Context(), tokens, args[0])
		}),
	}

	var exportOpts admin.ExportOptions
	export := &cobra.Command{
		Use:   "export",
		Short: "Export rated conversation turns as JSON lines",
		RunE: withTokens(func(cmd *cobra.Command, args []string, tokens storage.TokenStore) error {
			return app.AdminExport(cmd.Context(), tokens, exportOpts)
		}),
	}
	export.Flags().IntVar(&exportOpts.MinRating, "min-rating", 0, "Minimum rating")
	export.Flags().StringVar(&exportOpts.SinceTimestamp, "since", "", "Only turns after this timestamp")
	export.Flags().IntVar(&exportOpts.MaxTurns, "max-turns", admin.DefaultMaxTurns, "Maximum turns")

	var feedbackLimit, feedbackOffset int
	feedback := &cobra.Command{
		Use:   "feedback",
		Short: "List platform feedback",
		RunE: withTokens(func(cmd *cobra.Command, args []string, tokens storage.TokenStore) error {
			return app.AdminFeedback(cmd.Context(), tokens, feedbackLimit, feedbackOffset)
		}),
	}
	feedback.Flags().IntVar(&feedbackLimit, "limit", admin.DefaultFeedbackLimit, "Page size")
	feedback.Flags().IntVar(&feedbackOffset, "offset", 0, "Offset")

	cmd.AddCommand(login, logout, logs, stream, export, feedback)
	return cmd
}
