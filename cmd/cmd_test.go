package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mspro-labs/city-pulse/internal/db"
	"mspro-labs/city-pulse/internal/models"
	"mspro-labs/city-pulse/internal/pipeline"
)

func TestPrompterDefaultsAndEOF(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("Kochi\n\ny\n"), &out)

	require.Equal(t, "Kochi", p.ask("Location", ""))
	require.Equal(t, "gyms", p.ask("Categories", "gyms"))
	require.True(t, p.confirm("Continue?"))
	require.False(t, p.eof)

	// Input exhausted: defaults from here on.
	require.Equal(t, "1", p.ask("Choice", "1"))
	require.False(t, p.confirm("Continue?"))
	require.True(t, p.eof)
	require.Contains(t, out.String(), "Categories [gyms]: ")
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"general stores", "gyms", "cafes"}, splitList(" general stores, gyms ,, cafes "))
	require.Empty(t, splitList(" , "))
}

func TestLocationFromFilename(t *testing.T) {
	require.Equal(t, "Changanasherry", locationFromFilename("/tmp/Changanasherry_20260309.xlsx"))
	require.Equal(t, "New York", locationFromFilename("New_York_20260309.csv"))
	require.Equal(t, "shops", locationFromFilename("shops.xlsx"))
}

func TestPickSpreadsheet(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Kochi_20260301.xlsx", "Kottayam_20260302.csv", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	var out bytes.Buffer
	got, err := pickSpreadsheet(dir, newPrompter(strings.NewReader("1\n"), &out))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "Kochi_20260301.xlsx"), got)
	require.NotContains(t, out.String(), "notes.txt")

	_, err = pickSpreadsheet(dir, newPrompter(strings.NewReader("7\n"), &out))
	require.Error(t, err)

	_, err = pickSpreadsheet(t.TempDir(), newPrompter(strings.NewReader(""), &out))
	require.ErrorIs(t, err, errNoSpreadsheets)
}

func TestPrintTableAlignsWideRunes(t *testing.T) {
	var out bytes.Buffer
	printTable(&out, [][]string{
		{"കോട്ടയം", "1"},
		{"Kochi", "22"},
	})
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasSuffix(lines[0], "  1"))
	require.True(t, strings.HasSuffix(lines[1], "  22"))
}

func TestPrintSummary(t *testing.T) {
	sum := pipeline.Summary{
		RunID: "run-1", Location: "Kottayam", Queries: 4, Fetched: 30, Rejected: 2, Unique: 25,
		Failed: []pipeline.QueryFailure{{
			Query: pipeline.Query{Source: models.SourceBrowser, Category: "gyms"},
			Err:   errors.New("timeout"),
		}},
	}
	var out bytes.Buffer
	printSummary(&out, sum, &pipeline.PublishReport{TabularPath: "Kottayam_20260309.xlsx", TableErr: errors.New("connection refused")})

	s := out.String()
	require.Contains(t, s, "Unique records     25")
	require.Contains(t, s, "Table              FAILED: connection refused")
	require.Contains(t, s, "browser  gyms      timeout")

	out.Reset()
	printSummary(&out, pipeline.Summary{}, &pipeline.PublishReport{TableKind: "sqlite", TableRows: 3})
	require.Contains(t, out.String(), "3 rows upserted (sqlite)")
}

func TestPrintRuns(t *testing.T) {
	var out bytes.Buffer
	printRuns(&out, nil)
	require.Equal(t, "No runs recorded yet.\n", out.String())

	out.Reset()
	printRuns(&out, []db.Run{{
		Location: "Kochi", Sources: []string{"api", "browser"}, Unique: 12,
		Output: "Kochi.xlsx", TableErr: "x", StartedAt: time.Now(),
	}})
	require.Contains(t, out.String(), "api+browser")
	require.Contains(t, out.String(), "Kochi.xlsx (table failed)")
}

func TestMenuQuits(t *testing.T) {
	var out bytes.Buffer
	runMenu(context.Background(), newPrompter(strings.NewReader("9\nq\n"), &out))
	require.Contains(t, out.String(), `Unknown option "9"`)
	require.Contains(t, out.String(), "Goodbye.")

	out.Reset()
	runMenu(context.Background(), newPrompter(strings.NewReader(""), &out))
	require.Contains(t, out.String(), "Goodbye.")
}
