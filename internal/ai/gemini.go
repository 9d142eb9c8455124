package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Gemini generates text with Google's Gemini models.
type Gemini struct {
	genaiClient *genai.Client
	models      []string
	active      int
}

// NewGemini creates a connected client. Models are tried in order; a model
// the API does not know is skipped in favour of the next one.
func NewGemini(ctx context.Context, apiKey string, models ...string) (*Gemini, error) {
	if len(models) == 0 {
		models = []string{DefaultGeminiModel}
	}
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}
	return &Gemini{genaiClient: c, models: models}, nil
}

func (g *Gemini) Name() string { return "gemini/" + g.models[g.active] }

// Close terminates the connection.
func (g *Gemini) Close() error {
	if g.genaiClient != nil {
		return g.genaiClient.Close()
	}
	return nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	for {
		text, err := g.generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if httpCode(err) == http.StatusNotFound && g.active+1 < len(g.models) {
			logger.Printf("WARN: model %s unavailable, trying %s", g.models[g.active], g.models[g.active+1])
			g.active++
			continue
		}
		if isGeminiRateLimit(err) {
			return "", rateLimited(err)
		}
		return "", err
	}
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	model := g.genaiClient.GenerativeModel(g.models[g.active])
	rsp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	if len(rsp.Candidates) == 0 || rsp.Candidates[0].Content == nil || len(rsp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range rsp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func httpCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) {
		return coded.HTTPCode()
	}
	return 0
}

func isGeminiRateLimit(err error) bool {
	if httpCode(err) == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
