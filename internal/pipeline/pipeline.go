// Package pipeline runs the collect, normalize and dedupe stages over an
// explicit collection, and publishes the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"mspro-labs/city-pulse/internal/config"
	"mspro-labs/city-pulse/internal/dedupe"
	"mspro-labs/city-pulse/internal/models"
	"mspro-labs/city-pulse/internal/normalize"
	"mspro-labs/city-pulse/internal/sources"
)

var logger = log.New(os.Stdout, "PIPELINE: ", log.LstdFlags|log.Lshortfile)

// ErrNoCategories is returned when a run has no category to search.
var ErrNoCategories = errors.New("no categories to search")

// ConfigError marks a failure that prevented any fetch.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err stopped a run before any fetch.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Params are the inputs of one run.
type Params struct {
	Location   string
	Categories []string
	Limit      int
}

// Query identifies one adapter call.
type Query struct {
	Source   models.Source
	Location string
	Category string
}

// QueryFailure is a query that contributed nothing because it failed.
type QueryFailure struct {
	Query
	Err error
}

// Tagged is a fragment with the query that produced it.
type Tagged struct {
	Query
	Fragment models.Fragment
}

// Summary describes a run for the operator.
type Summary struct {
	RunID      string
	Location   string
	Categories []string
	Sources    []models.Source
	StartedAt  time.Time
	Queries    int
	Fetched    int
	Rejected   int
	Normalized int
	Unique     int
	Failed     []QueryFailure
}

// Result is the output of Run.
type Result struct {
	Records []models.Record
	Summary Summary
}

// Run validates params, fetches every (fetcher, category) query in order,
// normalizes and dedupes. Only configuration problems are returned as
// errors; failed queries are reported in the summary.
func Run(ctx context.Context, p Params, fetchers []sources.Fetcher) (*Result, error) {
	loc, cats, err := validate(p)
	if err != nil {
		closeAll(fetchers)
		return nil, &ConfigError{Err: err}
	}
	if err := preflight(ctx, fetchers); err != nil {
		closeAll(fetchers)
		return nil, &ConfigError{Err: err}
	}

	sum := Summary{RunID: uuid.NewString(), Location: loc, Categories: cats, StartedAt: time.Now()}
	for _, f := range fetchers {
		sum.Sources = append(sum.Sources, f.Source())
	}

	tagged, failed := Collect(ctx, fetchers, loc, cats, p.Limit)
	sum.Queries = len(fetchers) * len(cats)
	sum.Fetched = len(tagged)
	sum.Failed = failed

	records, rejected := NormalizeAll(tagged)
	sum.Rejected = rejected
	sum.Normalized = len(records)

	unique := dedupe.Dedupe(records)
	sum.Unique = len(unique)

	logger.Printf("Run %s: %d fragments, %d rejected, %d unique, %d failed queries",
		sum.RunID, sum.Fetched, sum.Rejected, sum.Unique, len(sum.Failed))
	return &Result{Records: unique, Summary: sum}, nil
}

func validate(p Params) (string, []string, error) {
	loc, err := config.ValidateLocation(p.Location)
	if err != nil {
		return "", nil, err
	}
	var cats []string
	seen := make(map[string]struct{})
	for _, c := range p.Categories {
		c = strings.Join(strings.Fields(c), " ")
		if c == "" {
			continue
		}
		k := strings.ToLower(c)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		cats = append(cats, c)
	}
	if len(cats) == 0 {
		return "", nil, ErrNoCategories
	}
	return loc, cats, nil
}

func preflight(ctx context.Context, fetchers []sources.Fetcher) error {
	if len(fetchers) == 0 {
		return errors.New("no sources selected")
	}
	for _, f := range fetchers {
		if pf, ok := f.(sources.Preflighter); ok {
			if err := pf.Preflight(ctx); err != nil {
				return fmt.Errorf("%s source: %w", f.Source(), err)
			}
		}
	}
	return nil
}

// Collect runs every category against each fetcher in turn. A failed query
// is logged and recorded; it never stops the others. Each fetcher that holds
// a session is closed as soon as its queries are done.
func Collect(ctx context.Context, fetchers []sources.Fetcher, location string, categories []string, limit int) ([]Tagged, []QueryFailure) {
	var tagged []Tagged
	var failed []QueryFailure

	for _, f := range fetchers {
		func() {
			defer closeFetcher(f)
			for _, cat := range categories {
				q := Query{Source: f.Source(), Location: location, Category: cat}
				frags, err := fetchOne(ctx, f, q, limit)
				if err != nil {
					logger.Printf("WARN: %s query %q failed: %v", q.Source, cat, err)
					failed = append(failed, QueryFailure{Query: q, Err: err})
					continue
				}
				logger.Printf("%s query %q returned %d fragments", q.Source, cat, len(frags))
				for _, frag := range frags {
					tagged = append(tagged, Tagged{Query: q, Fragment: frag})
				}
			}
		}()
	}
	return tagged, failed
}

// fetchOne turns a panic inside an adapter into a query failure.
func fetchOne(ctx context.Context, f sources.Fetcher, q Query, limit int) (frags []models.Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			frags, err = nil, fmt.Errorf("panic in %s adapter: %v", q.Source, r)
		}
	}()
	return f.Fetch(ctx, q.Location, q.Category, limit)
}

// NormalizeAll maps tagged fragments to Records and counts the rejected ones.
func NormalizeAll(tagged []Tagged) ([]models.Record, int) {
	records := make([]models.Record, 0, len(tagged))
	rejected := 0
	for _, t := range tagged {
		rec, ok := normalize.Normalize(t.Fragment, t.Category, t.Source)
		if !ok {
			rejected++
			continue
		}
		records = append(records, rec)
	}
	return records, rejected
}

func closeFetcher(f sources.Fetcher) {
	c, ok := f.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Printf("WARN: closing %s source: %v", f.Source(), err)
	}
}

func closeAll(fetchers []sources.Fetcher) {
	for _, f := range fetchers {
		closeFetcher(f)
	}
}
