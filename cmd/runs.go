package cmd

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"mspro-labs/city-pulse/internal/config"
	"mspro-labs/city-pulse/internal/db"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the history of pipeline runs",
	Run: func(cmd *cobra.Command, args []string) {
		if err := listRuns(cmd.Context(), os.Stdout, runsLimit); err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func listRuns(ctx context.Context, w io.Writer, limit int) error {
	appCfg, err := config.GetAppConfig()
	if err != nil {
		return err
	}
	store, err := db.Open(appCfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	printRuns(w, runs)
	return nil
}
