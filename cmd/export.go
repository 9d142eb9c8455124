package cmd

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"mspro-labs/city-pulse/internal/config"
	"mspro-labs/city-pulse/internal/db"
	"mspro-labs/city-pulse/internal/export"
)

type exportOptions struct {
	location string
	output   string
}

var exportOpts exportOptions

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the database table to a spreadsheet",
	Long:  `Writes the active rows of the database table (cloud or local) to an .xlsx or .csv file.`,
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := runExport(cmd.Context(), exportOpts); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOpts.location, "location", "l", "", "only export this location (default: all)")
	exportCmd.Flags().StringVarP(&exportOpts.output, "output", "o", "", "output path, .xlsx or .csv")
	rootCmd.AddCommand(exportCmd)
}

func runExport(ctx context.Context, opts exportOptions) (string, error) {
	appCfg, err := config.GetAppConfig()
	if err != nil {
		return "", err
	}
	store, err := db.Open(appCfg)
	if err != nil {
		return "", err
	}
	defer store.Close()

	records, err := store.ListRecords(ctx, opts.location)
	if err != nil {
		return "", fmt.Errorf("failed to load records: %w", err)
	}

	output := opts.output
	if output == "" {
		name := opts.location
		if name == "" {
			name = "All_Locations"
		}
		output = filepath.Join(appCfg.OutputDir, export.DefaultFilename(name, time.Now()))
	}
	if err := export.WriteFile(output, records); err != nil {
		return "", err
	}
	fmt.Printf("Exported %d records from the %s table to %s\n", len(records), store.Kind(), output)
	return output, nil
}
