package generation

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"copymint/internal/credentials"
)

// OpenAIProvider is an alternate generation backend using the OpenAI chat
// completion API. Selected with GENERATION_PROVIDER=openai.
type OpenAIProvider struct {
	newClient func(apiKey string) *openai.Client
}

// NewOpenAIProvider creates an OpenAI-backed provider.
func NewOpenAIProvider() *OpenAIProvider {
	return &OpenAIProvider{newClient: openai.NewClient}
}

// Name returns the provider identifier
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Generate sends one chat completion request using the given credential.
func (p *OpenAIProvider) Generate(ctx context.Context, cred credentials.Credential, req Request) (string, error) {
	client := p.newClient(string(cred))

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &ProviderError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return "", fmt.Errorf("request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model %s", req.Model)
	}

	return resp.Choices[0].Message.Content, nil
}
