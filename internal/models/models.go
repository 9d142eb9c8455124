package models

import "fmt"

// Source tags where a Record came from. It is set once by the normalizer.
type Source string

const (
	SourceAPI       Source = "api"
	SourceBrowser   Source = "browser"
	SourceDirectory Source = "directory"
)

// ParseSource maps a stored provenance tag back to a Source.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceAPI, SourceBrowser, SourceDirectory:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Fragment is one raw listing as an adapter returned it, before normalization.
type Fragment map[string]any

// Record holds the normalized data for a single business listing.
// Empty strings and nil pointers mean the field is absent.
type Record struct {
	Name     string
	Category string
	Rating   *float64
	Reviews  *int
	Address  string
	Phone    string
	Website  string
	Hours    string
	Source   Source
}

// Float returns a pointer to v, for building Records in code.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
