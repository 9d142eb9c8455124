package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mspro-labs/city-pulse/internal/ai"
	"mspro-labs/city-pulse/internal/config"
	"mspro-labs/city-pulse/internal/db"
	"mspro-labs/city-pulse/internal/export"
	"mspro-labs/city-pulse/internal/models"
	"mspro-labs/city-pulse/internal/report"
)

type reportOptions struct {
	input    string
	location string
	fromDB   bool
}

var reportOpts reportOptions

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate an AI market report from a spreadsheet or the database",
	Long: `Summarizes the listings (totals, category breakdown, top rated) and asks the
configured LLM provider for a market snapshot. The analysis is saved as
Market_Analysis_<timestamp>.json and Market_Report_<timestamp>.pdf.

Without --input or --from-db, the spreadsheets in the output directory are listed
to pick from.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runReport(cmd.Context(), reportOpts, newPrompter(os.Stdin, os.Stdout)); err != nil {
			log.Fatalf("Report failed: %v", err)
		}
	},
}

func init() {
	f := reportCmd.Flags()
	f.StringVarP(&reportOpts.input, "input", "i", "", "spreadsheet to analyse (.xlsx or .csv)")
	f.StringVarP(&reportOpts.location, "location", "l", "", "location name (default: taken from the file name)")
	f.BoolVar(&reportOpts.fromDB, "from-db", false, "analyse the active rows of the database table instead of a file")
	rootCmd.AddCommand(reportCmd)
}

func runReport(ctx context.Context, opts reportOptions, p *prompter) error {
	appCfg, err := config.GetAppConfig()
	if err != nil {
		return err
	}
	// Fail on a missing key before reading any data.
	if _, err := appCfg.ReportKey(); err != nil {
		return err
	}

	var records []models.Record
	location := opts.location

	if opts.fromDB {
		store, err := db.Open(appCfg)
		if err != nil {
			return err
		}
		defer store.Close()
		if records, err = store.ListRecords(ctx, location); err != nil {
			return fmt.Errorf("failed to load records: %w", err)
		}
	} else {
		input := opts.input
		if input == "" {
			if input, err = pickSpreadsheet(appCfg.OutputDir, p); err != nil {
				return err
			}
		}
		if records, err = export.ReadFile(input); err != nil {
			return err
		}
		if location == "" {
			location = locationFromFilename(input)
		}
	}

	return generateReport(ctx, appCfg, location, records)
}

// generateReport runs the report for records and prints where it went.
func generateReport(ctx context.Context, appCfg config.AppConfig, location string, records []models.Record) error {
	gen, err := ai.New(ctx, appCfg)
	if err != nil {
		return err
	}
	defer gen.Close()

	out, err := report.Create(ctx, gen, location, records, appCfg.OutputDir, report.DefaultRetry)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(out.Report.Analysis)
	fmt.Println()
	fmt.Printf("Report saved to %s and %s\n", out.PDFPath, out.JSONPath)
	return nil
}

var errNoSpreadsheets = errors.New("no .xlsx or .csv files found")

func pickSpreadsheet(dir string, p *prompter) (string, error) {
	var files []string
	for _, pattern := range []string{"*.xlsx", "*.csv"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", err
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w in %s", errNoSpreadsheets, dir)
	}
	slices.Sort(files)

	fmt.Fprintln(p.out, "Available spreadsheets:")
	for i, f := range files {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, filepath.Base(f))
	}
	ans := p.ask("Select file number", strconv.Itoa(len(files)))
	n, err := strconv.Atoi(ans)
	if err != nil || n < 1 || n > len(files) {
		return "", fmt.Errorf("invalid selection %q", ans)
	}
	return files[n-1], nil
}

var reDateSuffix = regexp.MustCompile(`_\d{8}$`)

// locationFromFilename turns "New_York_20260309.xlsx" into "New York".
func locationFromFilename(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = reDateSuffix.ReplaceAllString(base, "")
	return strings.Join(strings.Fields(strings.ReplaceAll(base, "_", " ")), " ")
}
