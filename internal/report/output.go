package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
)

const stampLayout = "20060102_150405"

// WriteJSON writes Market_Analysis_<timestamp>.json into dir.
func WriteJSON(dir string, rep Report) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("Market_Analysis_%s.json", rep.Timestamp.Format(stampLayout)))
	data, err := json.MarshalIndent(rep, "", "    ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Printf("JSON report saved to: %s", path)
	return path, nil
}

// WritePDF writes Market_Report_<timestamp>.pdf into dir: a title header, a
// page footer, the analysis and the data summary.
func WritePDF(dir string, rep Report) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("Market_Report_%s.pdf", rep.Timestamp.Format(stampLayout)))

	pdf := fpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; anything outside it is replaced.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 15)
		pdf.CellFormat(0, 10, "Market Intelligence Report", "", 1, "C", false, 0, "")
		pdf.Ln(10)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 10, "Date: "+rep.Timestamp.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	if rep.Location != "" {
		pdf.CellFormat(0, 10, tr("Location: "+rep.Location), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "AI Analysis", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 6, tr(rep.Analysis), "", "L", false)
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "Data Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Courier", "", 10)
	pdf.MultiCell(0, 5, tr(rep.DataSummary), "", "L", false)

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Printf("PDF report saved to: %s", path)
	return path, nil
}
