package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mspro-labs/city-pulse/internal/ai"
	"mspro-labs/city-pulse/internal/models"
)

type fakeGenerator struct {
	errs  []error
	text  string
	calls int
}

func (f *fakeGenerator) Name() string { return "fake/model" }
func (f *fakeGenerator) Close() error { return nil }

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return "", f.errs[f.calls-1]
	}
	return f.text, nil
}

func sample() []models.Record {
	return []models.Record{
		{Name: "A Mart", Category: "general stores", Rating: models.Float(4.3), Reviews: models.Int(120)},
		{Name: "B Mart", Category: "general stores", Rating: models.Float(4.8), Reviews: models.Int(10)},
		{Name: "C Mart", Category: "general stores"},
		{Name: "Zeta Textiles", Category: "textile shops", Rating: models.Float(4.8), Reviews: models.Int(300)},
		{Name: "Hotel Aida", Category: "restaurants", Rating: models.Float(4.0)},
		{Name: "Kappa Cafe", Category: "restaurants", Rating: models.Float(3.1)},
		{Name: "Dosa Point", Category: "restaurants", Rating: models.Float(3.9)},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize("Kottayam", sample())
	require.Equal(t, 7, s.Total)
	require.Equal(t, []CategoryCount{
		{"general stores", 3},
		{"restaurants", 3},
		{"textile shops", 1},
	}, s.Categories)
	require.Equal(t, "general stores", s.Dominant())
	require.Equal(t, 6, s.Rated)
	require.InDelta(t, 4.15, s.AverageRating, 0.001)

	require.Len(t, s.TopRated, 5)
	names := make([]string, 0, len(s.TopRated))
	for _, r := range s.TopRated {
		names = append(names, r.Name)
	}
	require.Equal(t, []string{"Zeta Textiles", "B Mart", "A Mart", "Hotel Aida", "Dosa Point"}, names)

	empty := Summarize("", nil)
	require.Zero(t, empty.Total)
	require.Empty(t, empty.Dominant())
	require.Contains(t, empty.Text(), "N/A")
}

func TestPromptMentionsSampleAndSections(t *testing.T) {
	p := Prompt(Summarize("Kottayam", sample()))
	require.Contains(t, p, "Kottayam")
	require.Contains(t, p, "based on 7 sample data points")
	require.Contains(t, p, "Potential Gaps")
	require.Contains(t, p, "Dominant category: general stores")
	require.Contains(t, p, "1. Zeta Textiles  4.8 (300 reviews)")
}

func TestGenerateRetriesRateLimits(t *testing.T) {
	limited := errors.Join(ai.ErrRateLimited, errors.New("429"))
	gen := &fakeGenerator{errs: []error{limited, limited}, text: "analysis"}

	text, err := Generate(context.Background(), gen, "p", RetryOptions{Attempts: 3, Wait: time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, "analysis", text)
	require.Equal(t, 3, gen.calls)
}

func TestGenerateGivesUpAfterAttempts(t *testing.T) {
	limited := errors.Join(ai.ErrRateLimited, errors.New("429"))
	gen := &fakeGenerator{errs: []error{limited, limited, limited, limited}, text: "never"}

	_, err := Generate(context.Background(), gen, "p", RetryOptions{Attempts: 3, Wait: time.Millisecond})
	require.ErrorIs(t, err, ai.ErrRateLimited)
	require.Equal(t, 3, gen.calls)
}

func TestGenerateDoesNotRetryOtherErrors(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("invalid api key")}, text: "never"}
	_, err := Generate(context.Background(), gen, "p", DefaultRetry)
	require.ErrorContains(t, err, "invalid api key")
	require.Equal(t, 1, gen.calls)
}

func TestGenerateStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &fakeGenerator{errs: []error{ai.ErrRateLimited}, text: "never"}
	_, err := Generate(ctx, gen, "p", RetryOptions{Attempts: 3, Wait: time.Hour})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCreateWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	gen := &fakeGenerator{text: "## Executive Summary\nCafé culture is strong – “very” strong."}

	out, err := Create(context.Background(), gen, "Kottayam", sample(), dir, RetryOptions{Attempts: 1})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out.JSONPath, dir))
	require.Contains(t, out.JSONPath, "Market_Analysis_")
	require.Contains(t, out.PDFPath, "Market_Report_")

	data, err := os.ReadFile(out.JSONPath)
	require.NoError(t, err)
	var rep Report
	require.NoError(t, json.Unmarshal(data, &rep))
	require.Equal(t, gen.text, rep.Analysis)
	require.Equal(t, "fake/model", rep.Provider)
	require.Contains(t, rep.DataSummary, "Total shops scraped: 7")

	pdf, err := os.ReadFile(out.PDFPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(pdf), "%PDF"))

	_, err = Create(context.Background(), gen, "Kottayam", nil, dir, DefaultRetry)
	require.ErrorIs(t, err, ErrNoRecords)
}
