// DeepSeek Provider - the OpenAI-compatible provider pointed at DeepSeek.
//
// Information Hiding:
// - Uses OpenAI-compatible API with different base URL

package llm

const deepseekBaseURL = "https://api.deepseek.com/v1"

// NewDeepSeekProvider creates an OpenAI-compatible provider for DeepSeek.
func NewDeepSeekProvider(cfg ProviderConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = deepseekBaseURL
	}
	p := NewOpenAIProvider(cfg)
	p.name = "deepseek"
	return p
}
