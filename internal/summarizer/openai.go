package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend calls any OpenAI-compatible chat completions endpoint,
// including Ollama's /v1.
type OpenAIBackend struct {
	model  string
	client *openai.Client
}

func NewOpenAIBackend(baseURL, model, apiKey string, timeout time.Duration) *OpenAIBackend {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIBackend{
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

func (b *OpenAIBackend) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: %w", ErrNoResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var (
		apiErr *openai.APIError
		reqErr *openai.RequestError
		urlErr *url.Error
	)
	switch {
	case errors.As(err, &apiErr), errors.As(err, &reqErr), errors.As(err, &urlErr),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("openai: %w: %w", ErrBackendUnavailable, err)
	default:
		return fmt.Errorf("openai: %w", err)
	}
}
