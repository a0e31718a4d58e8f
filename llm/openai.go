// OpenAI-compatible Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication (any OpenAI-compatible proxy, e.g. OpenRouter)
// - Request/response format for the Chat Completions API
// - Translation of go-openai error types into StatusError

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI-compatible endpoints.
type OpenAIProvider struct {
	name        string
	client      *openai.Client
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a provider talking to cfg.BaseURL (or api.openai.com).
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIProvider{
		name:        "openai",
		client:      openai.NewClientWithConfig(clientConfig),
		maxTokens:   int(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Complete sends a chat completion request with optional tool declarations.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (Message, error) {
	oaiReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    convertToOpenAIMessages(req.Messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}
	if len(req.Tools) > 0 {
		oaiReq.Tools = convertToOpenAITools(req.Tools)
		if req.ToolChoice != "" {
			oaiReq.ToolChoice = req.ToolChoice
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, oaiReq)
	if err != nil {
		return Message{}, mapOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return Message{}, &InvalidResponseError{Model: req.Model}
	}
	choice := resp.Choices[0].Message
	if choice.Role == "" && choice.Content == "" && len(choice.ToolCalls) == 0 {
		return Message{}, &InvalidResponseError{Model: req.Model}
	}

	msg := Message{Role: RoleAssistant, Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return msg, nil
}

// mapOpenAIError converts go-openai errors into StatusError when an HTTP
// status is known. Transport errors are wrapped unchanged.
func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		body, marshalErr := json.Marshal(openai.ErrorResponse{Error: apiErr})
		if marshalErr != nil {
			body = []byte(apiErr.Message)
		}
		return NewStatusError(apiErr.HTTPStatusCode, string(body))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewStatusError(reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	return fmt.Errorf("chat completion failed: %w", err)
}

// convertToOpenAIMessages handles tool calls and tool responses.
func convertToOpenAIMessages(messages []WireMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Text(),
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		result[i] = oaiMsg
	}
	return result
}

// convertToOpenAITools converts tool definitions to OpenAI format.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
