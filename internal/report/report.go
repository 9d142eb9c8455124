// Package report builds an LLM market analysis from a set of Records and
// writes it out as JSON and PDF.
package report

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"mspro-labs/city-pulse/internal/ai"
	"mspro-labs/city-pulse/internal/models"
)

var logger = log.New(os.Stdout, "REPORT: ", log.LstdFlags|log.Lshortfile)

// ErrNoRecords is returned when there is nothing to analyse.
var ErrNoRecords = errors.New("no records to analyse")

const topN = 5

// CategoryCount is one row of the category breakdown.
type CategoryCount struct {
	Category string
	Count    int
}

// Summary is the data snapshot handed to the model.
type Summary struct {
	Location      string
	Total         int
	Categories    []CategoryCount
	TopRated      []models.Record
	Rated         int
	AverageRating float64
}

// Dominant returns the most frequent category, or "" for an empty summary.
func (s Summary) Dominant() string {
	if len(s.Categories) == 0 {
		return ""
	}
	return s.Categories[0].Category
}

// Summarize computes the snapshot. Records are only read.
func Summarize(location string, records []models.Record) Summary {
	s := Summary{Location: location, Total: len(records)}

	counts := make(map[string]int)
	var sum float64
	var rated []models.Record
	for _, r := range records {
		cat := r.Category
		if cat == "" {
			cat = "uncategorized"
		}
		counts[cat]++
		if r.Rating != nil {
			sum += *r.Rating
			rated = append(rated, r)
		}
	}

	for cat, n := range counts {
		s.Categories = append(s.Categories, CategoryCount{Category: cat, Count: n})
	}
	slices.SortFunc(s.Categories, func(a, b CategoryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})

	s.Rated = len(rated)
	if s.Rated > 0 {
		s.AverageRating = sum / float64(s.Rated)
	}

	slices.SortStableFunc(rated, func(a, b models.Record) int {
		if c := cmp.Compare(*b.Rating, *a.Rating); c != 0 {
			return c
		}
		return cmp.Compare(reviews(b), reviews(a))
	})
	if len(rated) > topN {
		rated = rated[:topN]
	}
	s.TopRated = rated
	return s
}

func reviews(r models.Record) int {
	if r.Reviews == nil {
		return 0
	}
	return *r.Reviews
}

// Text renders the snapshot as plain text, for the prompt and the report.
func (s Summary) Text() string {
	var b strings.Builder
	if s.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", s.Location)
	}
	fmt.Fprintf(&b, "Total shops scraped: %d\n\n", s.Total)

	b.WriteString("Category breakdown:\n")
	width := 0
	for _, c := range s.Categories {
		width = max(width, runewidth.StringWidth(c.Category))
	}
	for _, c := range s.Categories {
		fmt.Fprintf(&b, "  %s  %d\n", runewidth.FillRight(c.Category, width), c.Count)
	}
	if len(s.Categories) == 0 {
		b.WriteString("  N/A\n")
	}

	if s.Rated > 0 {
		fmt.Fprintf(&b, "\nAverage rating: %.2f (from %d rated listings)\n", s.AverageRating, s.Rated)
	}
	if d := s.Dominant(); d != "" {
		fmt.Fprintf(&b, "Dominant category: %s\n", d)
	}

	b.WriteString("\nTop rated shops:\n")
	if len(s.TopRated) == 0 {
		b.WriteString("  N/A\n")
	}
	for i, r := range s.TopRated {
		fmt.Fprintf(&b, "  %d. %s  %.1f", i+1, r.Name, *r.Rating)
		if r.Reviews != nil {
			fmt.Fprintf(&b, " (%d reviews)", *r.Reviews)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Prompt asks for a market snapshot based on the summary.
func Prompt(s Summary) string {
	place := "the city"
	if s.Location != "" {
		place = s.Location
	}
	return fmt.Sprintf(`Act as a Market Intelligence Analyst.
Here is a SUMMARY SNAPSHOT of retail data scraped from %s (Note: this is a sample, not a complete census):

%s
Please provide a market snapshot analysis.
Important: explicitly mention that this analysis is based on available online data samples.

Include:
1. Executive Summary (highlighting that this is based on %d sample data points)
2. Observed Category Trends (which businesses appear most frequent in this sample?)
3. Potential Gaps (what businesses seem underrepresented in the online results?)
4. Strategic Recommendations for a new investor (based on this digital footprint)

Format the output clearly with headers.
`, place, s.Text(), s.Total)
}

// RetryOptions bound the retries on provider rate limits.
type RetryOptions struct {
	Attempts int
	Wait     time.Duration
}

// DefaultRetry is three attempts with a fixed 30 second wait.
var DefaultRetry = RetryOptions{Attempts: 3, Wait: 30 * time.Second}

// Generate asks gen for the analysis. Only rate-limit errors are retried,
// after a fixed wait; any other error is returned at once.
func Generate(ctx context.Context, gen ai.Generator, prompt string, opts RetryOptions) (string, error) {
	attempts := max(opts.Attempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := gen.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ai.ErrRateLimited) {
			return "", fmt.Errorf("%s failed: %w", gen.Name(), err)
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		logger.Printf("WARN: quota exceeded, waiting %s (attempt %d/%d)", opts.Wait, attempt, attempts)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(opts.Wait):
		}
	}
	return "", fmt.Errorf("%s failed after %d attempts: %w", gen.Name(), attempts, lastErr)
}

// Report is one generated analysis.
type Report struct {
	Timestamp   time.Time `json:"timestamp"`
	Location    string    `json:"location,omitempty"`
	Provider    string    `json:"provider"`
	Analysis    string    `json:"analysis"`
	DataSummary string    `json:"data_summary"`
}

// Outputs are the files a report was written to.
type Outputs struct {
	Report   Report
	JSONPath string
	PDFPath  string
}

// Create summarizes records, asks gen for the analysis and writes the JSON
// and PDF files into dir.
func Create(ctx context.Context, gen ai.Generator, location string, records []models.Record, dir string, opts RetryOptions) (*Outputs, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	sum := Summarize(location, records)

	logger.Printf("Sending %d-record snapshot to %s...", sum.Total, gen.Name())
	text, err := Generate(ctx, gen, Prompt(sum), opts)
	if err != nil {
		return nil, err
	}

	out := &Outputs{Report: Report{
		Timestamp:   time.Now(),
		Location:    location,
		Provider:    gen.Name(),
		Analysis:    text,
		DataSummary: sum.Text(),
	}}
	if out.JSONPath, err = WriteJSON(dir, out.Report); err != nil {
		return out, err
	}
	if out.PDFPath, err = WritePDF(dir, out.Report); err != nil {
		return out, err
	}
	return out, nil
}
