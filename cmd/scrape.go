package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mspro-labs/city-pulse/internal/config"
	"mspro-labs/city-pulse/internal/db"
	"mspro-labs/city-pulse/internal/export"
	"mspro-labs/city-pulse/internal/models"
	"mspro-labs/city-pulse/internal/pipeline"
	"mspro-labs/city-pulse/internal/sources"
)

type scrapeOptions struct {
	location   string
	categories []string
	source     string
	limit      int
	output     string
	report     bool
	yes        bool
}

var scrapeOpts scrapeOptions

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Collect listings for a location and export them",
	Long: `Queries the selected sources for every category, normalizes and merges the
results, writes a spreadsheet and upserts the database table. Values not given
as flags are asked for interactively.

Examples:
  city-pulse scrape -l Changanasherry -c "textile shops" -c restaurants -s api
  city-pulse scrape -l Kochi -s combined --report --yes`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runScrape(cmd.Context(), scrapeOpts, newPrompter(os.Stdin, os.Stdout)); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
	},
}

func init() {
	f := scrapeCmd.Flags()
	f.StringVarP(&scrapeOpts.location, "location", "l", "", "city or area to search")
	f.StringArrayVarP(&scrapeOpts.categories, "category", "c", nil, "category term, repeatable (default: "+strings.Join(config.DefaultCategories, ", ")+")")
	f.StringVarP(&scrapeOpts.source, "source", "s", "", "1|api, 2|browser, 3|directory, 4|combined")
	f.IntVar(&scrapeOpts.limit, "limit", 0, "max listings per query (default from config file)")
	f.StringVarP(&scrapeOpts.output, "output", "o", "", "spreadsheet path, .xlsx or .csv (default <Location>_<YYYYMMDD>.xlsx)")
	f.BoolVar(&scrapeOpts.report, "report", false, "generate an AI market report after the export")
	f.BoolVarP(&scrapeOpts.yes, "yes", "y", false, "do not ask before spending API quota")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(ctx context.Context, opts scrapeOptions, p *prompter) error {
	// 1. Load Config
	appCfg, err := config.GetAppConfig()
	if err != nil {
		return err
	}
	srcCfg, err := config.LoadSourcesConfig(appCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load sources config: %w", err)
	}
	if opts.limit > 0 {
		srcCfg.Limit = opts.limit
	}

	// 2. Resolve the run parameters
	location := opts.location
	if location == "" {
		location = p.ask("Enter target location (e.g. Changanasherry)", "")
	}
	if location, err = config.ValidateLocation(location); err != nil {
		return err
	}

	categories := opts.categories
	if len(categories) == 0 {
		categories = splitList(p.ask("Categories, comma separated", strings.Join(config.DefaultCategories, ", ")))
	}

	rawChoice := opts.source
	if rawChoice == "" {
		fmt.Fprintln(p.out, "Select source:")
		for c := sources.ChoiceAPI; c <= sources.ChoiceCombined; c++ {
			fmt.Fprintf(p.out, "  %d. %s\n", c, c)
		}
		rawChoice = p.ask("Choice", "1")
	}
	choice, err := sources.ParseChoice(rawChoice)
	if err != nil {
		return err
	}

	usesAPI := slices.Contains(choice.Sources(), models.SourceAPI)
	if usesAPI && appCfg.SerpAPIKey == "" {
		appCfg.SerpAPIKey = p.ask("Enter SerpApi key (SERPAPI_KEY)", "")
	}

	// 3. Build the adapters; a missing credential stops here
	fetchers, err := sources.Build(choice, appCfg, srcCfg)
	if err != nil {
		return err
	}

	if usesAPI && !opts.yes {
		fmt.Fprintf(p.out, "This run will use about %d SerpApi searches (one per category).\n", len(categories))
		if !p.confirm("Continue?") {
			for _, f := range fetchers {
				if c, ok := f.(io.Closer); ok {
					c.Close()
				}
			}
			fmt.Fprintln(p.out, "Aborted.")
			return nil
		}
	}

	// 4. Run the pipeline
	res, err := pipeline.Run(ctx, pipeline.Params{
		Location:   location,
		Categories: categories,
		Limit:      srcCfg.Limit,
	}, fetchers)
	if err != nil {
		return err
	}

	// 5. Export
	output := opts.output
	if output == "" {
		output = filepath.Join(appCfg.OutputDir, export.DefaultFilename(res.Summary.Location, time.Now()))
	}

	store, storeErr := db.Open(appCfg)
	if storeErr != nil {
		log.Printf("WARN: table export disabled: %v", storeErr)
	} else {
		defer store.Close()
	}

	rep, err := pipeline.Publish(ctx, res.Records, pipeline.PublishOptions{
		TabularPath: output,
		Store:       store,
		Summary:     res.Summary,
	})
	if err != nil {
		return err
	}
	if storeErr != nil {
		rep.TableErr = storeErr
	}

	printSummary(p.out, res.Summary, rep)

	// 6. Optional report; its failure does not fail the run
	if opts.report {
		if err := generateReport(ctx, appCfg, res.Summary.Location, res.Records); err != nil {
			log.Printf("WARN: report generation failed: %v", err)
		}
	}
	return nil
}
