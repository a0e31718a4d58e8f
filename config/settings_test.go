package config

import (
	"os"
	"testing"
	"time"

	"github.com/getfairai/sifter/skill"
)

// setEnv sets key for the duration of the test and restores the old value.
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	original, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, original)
		} else {
			os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	original, had := os.LookupEnv(key)
	os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, original)
		}
	})
}

func TestNewDefaults(t *testing.T) {
	for _, key := range []string{
		"SIFTER_LLM_PROVIDER", "SIFTER_LLM_BASE_URL", "SIFTER_LLM_MODEL", "SIFTER_LLM_FALLBACK_MODEL",
		"SIFTER_HTTP_TIMEOUT", "SIFTER_MCP_TARGET", "SIFTER_MCP_LOCAL_BASE_URL",
		"SIFTER_MCP_REMOTE_BASE_URL", "SIFTER_SKILLS_API_BASE_URL", "SIFTER_ADMIN_BASE_URL",
	} {
		unsetEnv(t, key)
	}

	settings, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
	if settings.LLM.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("unexpected base URL %q", settings.LLM.BaseURL)
	}
	if settings.LLM.Model != "google/gemini-2.0-flash-exp" {
		t.Errorf("unexpected model %q", settings.LLM.Model)
	}
	if settings.LLM.FallbackModel != "openai/gpt-4o-mini" {
		t.Errorf("unexpected fallback model %q", settings.LLM.FallbackModel)
	}
	if settings.HTTPTimeout != 60*time.Second {
		t.Errorf("unexpected timeout %v", settings.HTTPTimeout)
	}
	if settings.KnowledgeBase.Target != TargetLocal {
		t.Errorf("expected local target, got %q", settings.KnowledgeBase.Target)
	}
	if settings.KnowledgeBase.BaseURL() != "" {
		t.Errorf("local target without URL should resolve empty, got %q", settings.KnowledgeBase.BaseURL())
	}
}

func TestNewWithAlias(t *testing.T) {
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Provider)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("unknown_provider")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestAPIKeyFallsBackToProviderVariable(t *testing.T) {
	unsetEnv(t, "SIFTER_LLM_API_KEY")
	setEnv(t, "ANTHROPIC_API_KEY", "test-key")

	settings, err := New("anthropic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.APIKey != "test-key" {
		t.Errorf("expected 'test-key', got %q", settings.LLM.APIKey)
	}

	setEnv(t, "SIFTER_LLM_API_KEY", "explicit")
	settings = MustNew("anthropic")
	if settings.LLM.APIKey != "explicit" {
		t.Errorf("SIFTER_LLM_API_KEY should win, got %q", settings.LLM.APIKey)
	}
}

func TestKnowledgeBaseTargetResolution(t *testing.T) {
	unsetEnv(t, "SIFTER_SKILLS_API_BASE_URL")
	unsetEnv(t, "SIFTER_MCP_REMOTE_BASE_URL")
	unsetEnv(t, "SIFTER_ADMIN_BASE_URL")
	setEnv(t, "SIFTER_MCP_TARGET", " Remote ")
	setEnv(t, "SIFTER_MCP_LOCAL_BASE_URL", "http://localhost:8000")

	settings := MustNew("")
	if got := settings.KnowledgeBase.BaseURL(); got != "https://api.siftstylus.xyz" {
		t.Errorf("remote target resolved to %q", got)
	}
	if settings.Admin.BaseURL != "https://api.siftstylus.xyz" {
		t.Errorf("admin base should default to the knowledge-base host, got %q", settings.Admin.BaseURL)
	}

	setEnv(t, "SIFTER_SKILLS_API_BASE_URL", "https://kb.example/skills")
	settings = MustNew("")
	if got := settings.KnowledgeBase.BaseURL(); got != "https://kb.example/skills" {
		t.Errorf("explicit base should win, got %q", got)
	}
	if settings.Admin.BaseURL != "https://kb.example" {
		t.Errorf("admin base = %q", settings.Admin.BaseURL)
	}
}

func TestEmptyRemoteBaseURLIsHonored(t *testing.T) {
	unsetEnv(t, "SIFTER_SKILLS_API_BASE_URL")
	setEnv(t, "SIFTER_MCP_TARGET", "remote")
	setEnv(t, "SIFTER_MCP_REMOTE_BASE_URL", "")

	if got := MustNew("").KnowledgeBase.BaseURL(); got != "" {
		t.Errorf("explicitly empty remote URL should stay empty, got %q", got)
	}
}

func TestInvalidNumericValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SIFTER_LLM_MAX_TOKENS", "lots"},
		{"SIFTER_LLM_TEMPERATURE", "warm"},
		{"SIFTER_HTTP_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setEnv(t, tt.key, tt.value)
			if _, err := New(""); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestHTTPTimeoutFormats(t *testing.T) {
	setEnv(t, "SIFTER_HTTP_TIMEOUT", "90")
	if got := MustNew("").HTTPTimeout; got != 90*time.Second {
		t.Errorf("plain seconds: got %v", got)
	}
	setEnv(t, "SIFTER_HTTP_TIMEOUT", "2m")
	if got := MustNew("").HTTPTimeout; got != 2*time.Minute {
		t.Errorf("duration: got %v", got)
	}
}

func TestPromptOverrides(t *testing.T) {
	setEnv(t, "SIFTER_PORTING_AUDITOR_SYSTEM_PROMPT", "audit hard")
	unsetEnv(t, "SIFTER_RESEARCH_SYSTEM_PROMPT")

	overrides := MustNew("").Prompts.PromptOverrides()
	if overrides[skill.IDPortingAuditor] != "audit hard" {
		t.Errorf("auditor override = %q", overrides[skill.IDPortingAuditor])
	}
	if overrides[skill.IDResearch] != "" {
		t.Errorf("research override = %q", overrides[skill.IDResearch])
	}
}

func TestMustNewPanicsOnUnknownProvider(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustNew("nope")
}
