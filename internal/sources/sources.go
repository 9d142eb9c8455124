// Package sources holds the adapters that turn a (location, category) query
// into raw listing fragments.
package sources

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"mspro-labs/city-pulse/internal/config"
	"mspro-labs/city-pulse/internal/models"
)

var logger = log.New(os.Stdout, "SOURCES: ", log.LstdFlags|log.Lshortfile)

var (
	// ErrRateLimited means the source answered with a block or rate-limit signal.
	ErrRateLimited = errors.New("rate limited by source")
	// ErrUnexpectedStatus means the source answered with a non-success status.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// DefaultLimit applies when a caller passes a non-positive limit.
const DefaultLimit = 20

// Fetcher retrieves fragments for one query. Every call issues a new query;
// an error means the query contributed nothing.
type Fetcher interface {
	Source() models.Source
	Fetch(ctx context.Context, location, category string, limit int) ([]models.Fragment, error)
}

// Preflighter is implemented by fetchers that can check their credentials
// before any query runs.
type Preflighter interface {
	Preflight(ctx context.Context) error
}

// Choice is the operator's source selection, resolved once at startup.
type Choice int

const (
	ChoiceAPI Choice = iota + 1
	ChoiceBrowser
	ChoiceDirectory
	ChoiceCombined
)

func (c Choice) String() string {
	switch c {
	case ChoiceAPI:
		return "api"
	case ChoiceBrowser:
		return "browser"
	case ChoiceDirectory:
		return "directory"
	case ChoiceCombined:
		return "combined"
	}
	return fmt.Sprintf("Choice(%d)", int(c))
}

// Sources lists the adapters a choice expands to, in query order.
func (c Choice) Sources() []models.Source {
	switch c {
	case ChoiceAPI:
		return []models.Source{models.SourceAPI}
	case ChoiceBrowser:
		return []models.Source{models.SourceBrowser}
	case ChoiceDirectory:
		return []models.Source{models.SourceDirectory}
	case ChoiceCombined:
		return []models.Source{models.SourceAPI, models.SourceBrowser, models.SourceDirectory}
	}
	return nil
}

// ParseChoice accepts the menu number (1-4) or the name of a choice.
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "api", "serpapi":
		return ChoiceAPI, nil
	case "2", "browser":
		return ChoiceBrowser, nil
	case "3", "directory":
		return ChoiceDirectory, nil
	case "4", "combined", "all":
		return ChoiceCombined, nil
	}
	return 0, fmt.Errorf("unknown source %q (want 1=api, 2=browser, 3=directory, 4=combined)", s)
}

// Build constructs the fetchers for a choice. Credentials are checked here,
// before any network activity.
func Build(choice Choice, app config.AppConfig, cfg *config.SourcesConfig) ([]Fetcher, error) {
	srcs := choice.Sources()
	if len(srcs) == 0 {
		return nil, fmt.Errorf("invalid source choice %d", int(choice))
	}

	var fetchers []Fetcher
	for _, src := range srcs {
		switch src {
		case models.SourceAPI:
			api, err := NewAPI(app.SerpAPIKey, cfg.API)
			if err != nil {
				return nil, err
			}
			fetchers = append(fetchers, api)
		case models.SourceBrowser:
			fetchers = append(fetchers, NewBrowser(cfg.Browser))
		case models.SourceDirectory:
			fetchers = append(fetchers, NewDirectory(cfg.Directory))
		}
	}
	return fetchers, nil
}

// searchQuery is the free-text query sent to map-style sources.
func searchQuery(location, category string) string {
	return fmt.Sprintf("%s in %s", strings.TrimSpace(category), strings.TrimSpace(location))
}

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

func truncate(frags []models.Fragment, limit int) []models.Fragment {
	limit = effectiveLimit(limit)
	if len(frags) > limit {
		return frags[:limit]
	}
	return frags
}

// pacer enforces a fixed delay between consecutive queries of one adapter.
type pacer struct {
	delay time.Duration
	last  time.Time
}

func (p *pacer) wait(ctx context.Context) error {
	if p.delay > 0 && !p.last.IsZero() {
		if remaining := p.delay - time.Since(p.last); remaining > 0 {
			t := time.NewTimer(remaining)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	p.last = time.Now()
	return nil
}
