// LLM Provider Factory - builder-first API for creating LLM providers.
//
// Quick Start:
//
//	// OpenAI-compatible proxy (OpenRouter by default in config)
//	proxy, err := llm.ProviderOpenAI.BaseURL("https://openrouter.ai/api/v1").APIKey("sk-or-...")
//
//	// Read the key from the provider's environment variable
//	claude, err := llm.ProviderAnthropic.FromEnv()
//
//	// Full configuration
//	custom, err := llm.NewProviderBuilder(llm.ProviderGemini).
//	    MaxTokens(8192).
//	    Temperature(0.3).
//	    HTTPClient(&http.Client{Timeout: time.Minute}).
//	    FromEnv()
//
// Models are not bound to a provider: every CompletionRequest names its own
// model so the assistant client can fall back to a second alias.

package llm

import (
	"fmt"
	"net/http"
	"os"
	"strings"
)

// DefaultMaxTokens is used by providers that require an explicit limit.
const DefaultMaxTokens = 4096

// DefaultTemperature is used when the builder is not given one.
const DefaultTemperature = float32(0.7)

// ProviderConfig carries everything a provider constructor needs.
type ProviderConfig struct {
	APIKey      string
	BaseURL     string // Empty means the provider's public endpoint
	MaxTokens   uint32 // Zero leaves the limit to the provider where allowed
	Temperature float32
	HTTPClient  *http.Client
}

// ProviderType represents supported LLM providers.
type ProviderType int

const (
	// ProviderOpenAI is any OpenAI-compatible chat completions endpoint.
	ProviderOpenAI ProviderType = iota
	// ProviderAnthropic is the Anthropic provider (Claude models).
	ProviderAnthropic
	// ProviderDeepSeek is DeepSeek's OpenAI-compatible endpoint.
	ProviderDeepSeek
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderDeepSeek:
		return "deepseek"
	case ProviderGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable name for this provider's API key.
func (p ProviderType) EnvVar() string {
	switch p {
	case ProviderOpenAI:
		return "OPENROUTER_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderDeepSeek:
		return "DEEPSEEK_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// DefaultModel returns the primary model alias for this provider.
func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderOpenAI:
		return ModelProxyGeminiFlash
	case ProviderAnthropic:
		return ModelAnthropicClaudeSonnet4
	case ProviderDeepSeek:
		return ModelDeepSeekChat
	case ProviderGemini:
		return ModelGeminiFlash2
	default:
		return ""
	}
}

// DefaultFallbackModel returns the alias tried when the primary has no endpoint.
func (p ProviderType) DefaultFallbackModel() string {
	switch p {
	case ProviderOpenAI:
		return ModelProxyGPT4oMini
	case ProviderAnthropic:
		return ModelAnthropicClaudeHaiku35
	default:
		return p.DefaultModel()
	}
}

// ParseProviderType parses a provider from string (case-insensitive).
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "openai", "openrouter", "proxy":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "deepseek":
		return ProviderDeepSeek, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// FromEnv creates a provider with defaults, reading API key from environment.
func (p ProviderType) FromEnv() (Provider, error) {
	return NewProviderBuilder(p).FromEnv()
}

// BaseURL starts configuring this provider against a specific endpoint.
func (p ProviderType) BaseURL(url string) *ProviderBuilder {
	return NewProviderBuilder(p).BaseURL(url)
}

// APIKey creates a provider with an explicit API key (uses defaults for everything else).
func (p ProviderType) APIKey(key string) (Provider, error) {
	return NewProviderBuilder(p).APIKey(key)
}

// ProviderBuilder is a builder for configuring LLM providers.
type ProviderBuilder struct {
	providerType ProviderType
	baseURL      string
	maxTokens    uint32
	temperature  *float32
	httpClient   *http.Client
}

// NewProviderBuilder creates a new builder for the given provider.
func NewProviderBuilder(providerType ProviderType) *ProviderBuilder {
	return &ProviderBuilder{providerType: providerType}
}

// BaseURL points the provider at a proxy or self-hosted endpoint.
func (b *ProviderBuilder) BaseURL(url string) *ProviderBuilder {
	b.baseURL = url
	return b
}

// MaxTokens sets maximum tokens for responses.
func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

// Temperature sets temperature (0.0 = deterministic, 1.0 = creative).
func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// HTTPClient sets the client used for every request (timeouts live here).
func (b *ProviderBuilder) HTTPClient(client *http.Client) *ProviderBuilder {
	b.httpClient = client
	return b
}

// FromEnv builds the provider, reading API key from environment.
func (b *ProviderBuilder) FromEnv() (Provider, error) {
	envVar := b.providerType.EnvVar()
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", b.providerType, envVar)
	}
	return b.build(apiKey)
}

// APIKey builds the provider with an explicit API key.
func (b *ProviderBuilder) APIKey(key string) (Provider, error) {
	return b.build(key)
}

func (b *ProviderBuilder) build(apiKey string) (Provider, error) {
	cfg := ProviderConfig{
		APIKey:      apiKey,
		BaseURL:     b.baseURL,
		MaxTokens:   b.maxTokens,
		Temperature: DefaultTemperature,
		HTTPClient:  b.httpClient,
	}
	if b.temperature != nil {
		cfg.Temperature = *b.temperature
	}

	switch b.providerType {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg), nil
	case ProviderDeepSeek:
		return NewDeepSeekProvider(cfg), nil
	case ProviderGemini:
		return NewGeminiProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", b.providerType)
	}
}

// Model identifier constants.

// OpenRouter aliases used through the OpenAI-compatible proxy.
const (
	// ModelProxyGeminiFlash is the primary research model.
	ModelProxyGeminiFlash = "google/gemini-2.0-flash-exp"
	// ModelProxyGPT4oMini is the fallback when the primary alias has no endpoint.
	ModelProxyGPT4oMini = "openai/gpt-4o-mini"
)

// Anthropic model identifiers
const (
	// ModelAnthropicClaudeSonnet4 is Claude Sonnet 4: Balanced performance.
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	// ModelAnthropicClaudeHaiku35 is Claude Haiku 3.5: Fast and cheap.
	ModelAnthropicClaudeHaiku35 = "claude-3-5-haiku-latest"
)

// DeepSeek model identifiers
const (
	// ModelDeepSeekChat is the general chat model.
	ModelDeepSeekChat = "deepseek-chat"
)

// Gemini model identifiers
const (
	// ModelGeminiFlash2 is Gemini 2.0 Flash.
	ModelGeminiFlash2 = "gemini-2.0-flash"
)
