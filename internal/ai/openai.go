package ai

import (
	"context"
	"errors"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAI generates text with the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI returns an OpenAI generator. An empty baseURL uses the public API.
func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (g *OpenAI) Name() string { return "openai/" + g.model }

func (g *OpenAI) Close() error { return nil }

func (g *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}

	rsp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if openAIStatus(err) == http.StatusTooManyRequests {
			return "", rateLimited(err)
		}
		return "", err
	}

	if len(rsp.Choices) == 0 || len(rsp.Choices[0].Message.Content) == 0 {
		return "", ErrEmptyResponse
	}
	return rsp.Choices[0].Message.Content, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
