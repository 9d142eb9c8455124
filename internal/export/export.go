// Package export writes Records to spreadsheet files and reads them back.
package export

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"mspro-labs/city-pulse/internal/models"
)

// SheetName is the worksheet that holds the listings in .xlsx files.
const SheetName = "Shops"

// Columns is the fixed column order of every tabular export.
var Columns = []string{"S.No", "Name", "Category", "Rating", "Reviews", "Address", "Phone", "Website", "Hours", "Source"}

// DefaultFilename returns "<Location>_<YYYYMMDD>.xlsx".
func DefaultFilename(location string, now time.Time) string {
	loc := strings.Join(strings.Fields(location), "_")
	loc = strings.NewReplacer("/", "_", `\`, "_").Replace(loc)
	return fmt.Sprintf("%s_%s.xlsx", loc, now.Format("20060102"))
}

// WriteFile writes records to path, as .csv or .xlsx depending on the
// extension. Rows are stably sorted by category. An empty slice still
// produces a file with the header row.
func WriteFile(path string, records []models.Record) error {
	rows := sortedRows(records)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return writeCSV(path, rows)
	case ".xlsx":
		return writeXLSX(path, rows)
	default:
		return fmt.Errorf("unsupported export format %q (want .xlsx or .csv)", filepath.Ext(path))
	}
}

// ReadFile reads a file written by WriteFile. Columns are matched by header
// name, so files with extra or reordered columns are accepted.
func ReadFile(path string) ([]models.Record, error) {
	var (
		table [][]string
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		table, err = readCSV(path)
	case ".xlsx":
		table, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported export format %q (want .xlsx or .csv)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return parseTable(table)
}

func sortedRows(records []models.Record) [][]string {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b models.Record) int {
		return cmp.Compare(a.Category, b.Category)
	})

	rows := make([][]string, 0, len(sorted))
	for i, r := range sorted {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.Name,
			r.Category,
			formatRating(r.Rating),
			formatReviews(r.Reviews),
			r.Address,
			r.Phone,
			r.Website,
			r.Hours,
			string(r.Source),
		})
	}
	return rows
}

func formatRating(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatReviews(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeXLSX(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		// Numeric columns are stored as numbers so spreadsheets can sort them.
		values[0] = i + 1
		if n, err := strconv.ParseFloat(row[3], 64); err == nil {
			values[3] = n
		}
		if n, err := strconv.Atoi(row[4]); err == nil {
			values[4] = n
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	table, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return table, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sheet := SheetName
	if idx, _ := f.GetSheetIndex(SheetName); idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s has no worksheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func parseTable(table [][]string) ([]models.Record, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("file has no header row")
	}
	idx := make(map[string]int)
	for i, h := range table[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx["name"]; !ok {
		return nil, fmt.Errorf("file has no Name column")
	}

	records := make([]models.Record, 0, len(table)-1)
	for n, row := range table[1:] {
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		rec := models.Record{
			Name:     get("name"),
			Category: get("category"),
			Address:  get("address"),
			Phone:    get("phone"),
			Website:  get("website"),
			Hours:    get("hours"),
		}
		if rec.Name == "" {
			continue
		}
		if v := get("rating"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad rating %q", n+2, v)
			}
			rec.Rating = &f
		}
		if v := get("reviews"); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad reviews %q", n+2, v)
			}
			rec.Reviews = &i
		}
		if v := get("source"); v != "" {
			src, err := models.ParseSource(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", n+2, err)
			}
			rec.Source = src
		}
		records = append(records, rec)
	}
	return records, nil
}
