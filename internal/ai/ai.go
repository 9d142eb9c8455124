// Package ai wraps the LLM providers used to write market reports.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"mspro-labs/city-pulse/internal/config"
)

var logger = log.New(os.Stdout, "AI: ", log.LstdFlags|log.Lshortfile)

var (
	// ErrRateLimited is wrapped around provider errors that signal a quota
	// or rate limit (HTTP 429).
	ErrRateLimited = errors.New("provider rate limit exceeded")
	// ErrEmptyResponse means the provider answered without any text.
	ErrEmptyResponse = errors.New("provider returned no text")
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Name identifies provider and model, e.g. "gemini/gemini-2.0-flash".
	Name() string
	Close() error
}

// Default models per provider.
const (
	DefaultGeminiModel    = "gemini-2.0-flash"
	FallbackGeminiModel   = "gemini-flash-latest"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// New builds the Generator selected by app.ReportProvider.
func New(ctx context.Context, app config.AppConfig) (Generator, error) {
	key, err := app.ReportKey()
	if err != nil {
		return nil, err
	}

	switch app.ReportProvider {
	case config.ProviderOpenAI:
		return NewOpenAI(key, app.ReportModel, ""), nil
	case config.ProviderAnthropic:
		return NewAnthropic(key, app.ReportModel), nil
	default:
		models := []string{DefaultGeminiModel, FallbackGeminiModel}
		if app.ReportModel != "" {
			models = []string{app.ReportModel}
		}
		return NewGemini(ctx, key, models...)
	}
}

func rateLimited(err error) error {
	return fmt.Errorf("%w: %v", ErrRateLimited, err)
}
