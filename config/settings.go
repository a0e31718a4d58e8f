// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup
// - Knowledge-base target resolution (local or remote backend)

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/getfairai/sifter/llm"
	"github.com/getfairai/sifter/skill"
)

// Environment names understood by IsDevelopment / IsProduction.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Knowledge-base targets.
const (
	TargetLocal  = "local"
	TargetRemote = "remote"
)

const (
	defaultProxyBaseURL   = "https://openrouter.ai/api/v1"
	defaultRemoteBaseURL  = "https://api.siftstylus.xyz"
	defaultHTTPTimeout    = 60 * time.Second
	defaultServiceName    = "sifter"
	defaultLogLevel       = "warn"
	defaultTemperature    = 0.7
	defaultMaxTokensLimit = 0
)

// Settings holds all application configuration.
type Settings struct {
	Env           string
	LogLevel      string
	HTTPTimeout   time.Duration
	LLM           LLMConfig
	KnowledgeBase KnowledgeBaseConfig
	Admin         AdminConfig
	Prompts       PromptConfig
	OTel          OTelConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider      string
	BaseURL       string
	APIKey        string
	Model         string
	FallbackModel string
	MaxTokens     uint32
	Temperature   float64
}

// KnowledgeBaseConfig locates the skills API.
type KnowledgeBaseConfig struct {
	Target           string
	LocalBaseURL     string
	RemoteBaseURL    string
	SkillsAPIBaseURL string // Explicit override, wins over the target
}

// AdminConfig locates the admin API.
type AdminConfig struct {
	BaseURL string
}

// PromptConfig holds per-skill system prompt overrides.
type PromptConfig struct {
	Research       string
	PortingAuditor string
}

// OTelConfig configures trace export.
type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// Enabled reports whether an exporter endpoint is configured.
func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// New creates settings, loading values from environment variables. A
// non-empty provider overrides SIFTER_LLM_PROVIDER.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	if provider == "" {
		provider = os.Getenv("SIFTER_LLM_PROVIDER")
	}
	providerType, err := llm.ParseProviderType(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("SIFTER_LLM_MAX_TOKENS", defaultMaxTokensLimit)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("SIFTER_LLM_TEMPERATURE", defaultTemperature)
	if err != nil {
		return Settings{}, err
	}

	httpTimeout, err := getEnvDuration("SIFTER_HTTP_TIMEOUT", defaultHTTPTimeout)
	if err != nil {
		return Settings{}, err
	}

	baseURL := getEnv("SIFTER_LLM_BASE_URL", "")
	if baseURL == "" && providerType == llm.ProviderOpenAI {
		baseURL = defaultProxyBaseURL
	}

	apiKey := os.Getenv("SIFTER_LLM_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv(providerType.EnvVar())
	}

	kb := KnowledgeBaseConfig{
		Target:           normalizeTarget(os.Getenv("SIFTER_MCP_TARGET")),
		LocalBaseURL:     lookupEnv("SIFTER_MCP_LOCAL_BASE_URL", ""),
		RemoteBaseURL:    lookupEnv("SIFTER_MCP_REMOTE_BASE_URL", defaultRemoteBaseURL),
		SkillsAPIBaseURL: os.Getenv("SIFTER_SKILLS_API_BASE_URL"),
	}

	return Settings{
		Env:         strings.ToLower(getEnv("SIFTER_ENV", EnvDevelopment)),
		LogLevel:    getEnv("SIFTER_LOG_LEVEL", defaultLogLevel),
		HTTPTimeout: httpTimeout,
		LLM: LLMConfig{
			Provider:      providerType.String(),
			BaseURL:       baseURL,
			APIKey:        apiKey,
			Model:         getEnv("SIFTER_LLM_MODEL", providerType.DefaultModel()),
			FallbackModel: getEnv("SIFTER_LLM_FALLBACK_MODEL", providerType.DefaultFallbackModel()),
			MaxTokens:     maxTokens,
			Temperature:   temperature,
		},
		KnowledgeBase: kb,
		Admin: AdminConfig{
			BaseURL: strings.TrimRight(getEnv("SIFTER_ADMIN_BASE_URL", adminFallback(kb)), "/"),
		},
		Prompts: PromptConfig{
			Research:       os.Getenv("SIFTER_RESEARCH_SYSTEM_PROMPT"),
			PortingAuditor: os.Getenv("SIFTER_PORTING_AUDITOR_SYSTEM_PROMPT"),
		},
		OTel: OTelConfig{
			Endpoint:       strings.TrimRight(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "/"),
			Headers:        os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", defaultServiceName),
			ServiceVersion: getEnv("SIFTER_VERSION", "dev"),
		},
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// IsDevelopment reports whether SIFTER_ENV selects development.
func (s Settings) IsDevelopment() bool {
	return s.Env == EnvDevelopment
}

// IsProduction reports whether SIFTER_ENV selects production.
func (s Settings) IsProduction() bool {
	return s.Env == EnvProduction
}

// BaseURL resolves the skills API base: the explicit override, then the
// selected target's URL.
func (c KnowledgeBaseConfig) BaseURL() string {
	if c.SkillsAPIBaseURL != "" {
		return c.SkillsAPIBaseURL
	}
	if c.Target == TargetRemote {
		return c.RemoteBaseURL
	}
	return c.LocalBaseURL
}

// PromptOverrides maps skill IDs to configured system prompts.
func (c PromptConfig) PromptOverrides() map[string]string {
	return map[string]string{
		skill.IDResearch:       c.Research,
		skill.IDPortingAuditor: c.PortingAuditor,
	}
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	return []string{
		llm.ProviderOpenAI.String(),
		llm.ProviderAnthropic.String(),
		llm.ProviderDeepSeek.String(),
		llm.ProviderGemini.String(),
	}
}

func normalizeTarget(value string) string {
	if strings.EqualFold(strings.TrimSpace(value), TargetRemote) {
		return TargetRemote
	}
	return TargetLocal
}

// adminFallback points the admin client at the knowledge-base host.
func adminFallback(kb KnowledgeBaseConfig) string {
	base := strings.TrimRight(strings.TrimSpace(kb.BaseURL()), "/")
	return strings.TrimSuffix(base, "/skills")
}

// Environment variable helpers with proper error handling

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

// lookupEnv honors variables that are set but empty.
func lookupEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return defaultVal
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return d, nil
}
