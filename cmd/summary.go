package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"mspro-labs/city-pulse/internal/db"
	"mspro-labs/city-pulse/internal/pipeline"
)

// printTable writes rows with every column padded to its widest cell.
// Widths are measured in terminal cells so Malayalam or CJK text lines up.
func printTable(w io.Writer, rows [][]string) {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i == len(row)-1 {
				cells[i] = cell
				continue
			}
			cells[i] = runewidth.FillRight(cell, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func printSummary(w io.Writer, sum pipeline.Summary, rep *pipeline.PublishReport) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run %s complete\n", sum.RunID)

	table := "skipped"
	switch {
	case rep.TableErr != nil:
		table = "FAILED: " + rep.TableErr.Error()
	case rep.TableKind != "":
		table = fmt.Sprintf("%d rows upserted (%s)", rep.TableRows, rep.TableKind)
	}

	printTable(w, [][]string{
		{"Location", sum.Location},
		{"Queries", fmt.Sprint(sum.Queries)},
		{"Fragments fetched", fmt.Sprint(sum.Fetched)},
		{"Rejected", fmt.Sprint(sum.Rejected)},
		{"Unique records", fmt.Sprint(sum.Unique)},
		{"Failed queries", fmt.Sprint(len(sum.Failed))},
		{"Spreadsheet", rep.TabularPath},
		{"Table", table},
	})

	if len(sum.Failed) > 0 {
		fmt.Fprintln(w, "\nFailed queries:")
		rows := [][]string{{"SOURCE", "CATEGORY", "REASON"}}
		for _, f := range sum.Failed {
			rows = append(rows, []string{string(f.Source), f.Category, f.Err.Error()})
		}
		printTable(w, rows)
	}
}

func printRuns(w io.Writer, runs []db.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return
	}
	rows := [][]string{{"STARTED", "LOCATION", "SOURCES", "UNIQUE", "REJECTED", "FAILED", "OUTPUT"}}
	for _, r := range runs {
		out := r.Output
		if r.TableErr != "" {
			out += " (table failed)"
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Location,
			strings.Join(r.Sources, "+"),
			fmt.Sprint(r.Unique),
			fmt.Sprint(r.Rejected),
			fmt.Sprint(r.Failed),
			out,
		})
	}
	printTable(w, rows)
}
