package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 2048

// Anthropic generates text with the Messages API.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic returns an Anthropic generator. The SDK's own retries are
// disabled; rate limits are surfaced as ErrRateLimited instead.
func NewAnthropic(apiKey, model string, opts ...anthropicopt.RequestOption) *Anthropic {
	if model == "" {
		model = DefaultAnthropicModel
	}
	opts = append([]anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(apiKey),
		anthropicopt.WithMaxRetries(0),
	}, opts...)
	client := anthropic.NewClient(opts...)
	return &Anthropic{client: &client, model: model}
}

func (g *Anthropic) Name() string { return "anthropic/" + g.model }

func (g *Anthropic) Close() error { return nil }

func (g *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	rsp, err := g.client.Messages.New(ctx, req)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", rateLimited(err)
		}
		return "", err
	}

	var b strings.Builder
	for _, content := range rsp.Content {
		if text, ok := content.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
