package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const menuText = `
=== City Pulse ===
1. Full cycle (scrape + AI report)
2. Quick scrape (no report)
3. AI report from an existing spreadsheet
4. Export database table to a spreadsheet
5. Run history
Q. Quit`

// runMenu loops until the operator quits or input ends. A failed action is
// logged and the menu is shown again.
func runMenu(ctx context.Context, p *prompter) {
	for {
		fmt.Fprintln(p.out, menuText)
		choice := strings.ToLower(p.ask("Select an option", "q"))

		var err error
		switch choice {
		case "1":
			err = runScrape(ctx, scrapeOptions{report: true}, p)
		case "2":
			err = runScrape(ctx, scrapeOptions{}, p)
		case "3":
			err = runReport(ctx, reportOptions{}, p)
		case "4":
			loc := p.ask("Location to export (blank for all)", "")
			_, err = runExport(ctx, exportOptions{location: loc})
		case "5":
			err = listRuns(ctx, p.out, 20)
		case "q", "quit", "exit":
			fmt.Fprintln(p.out, "Goodbye.")
			return
		default:
			fmt.Fprintf(p.out, "Unknown option %q\n", choice)
		}
		if err != nil {
			log.Printf("ERROR: %v", err)
		}
		if ctx.Err() != nil || p.eof {
			return
		}
	}
}
