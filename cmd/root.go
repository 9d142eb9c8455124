package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "city-pulse",
	Short: "Collect, clean and analyse local business listings for a city",
	Long: `city-pulse lists local businesses for a city and a set of categories from a
maps-search API, a headless browser and a business directory, merges duplicates,
writes a spreadsheet and a database table, and asks an LLM for a market report.

Run without a subcommand for the interactive menu.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadDotEnv()
	},
	Run: func(cmd *cobra.Command, args []string) {
		runMenu(cmd.Context(), newPrompter(os.Stdin, os.Stdout))
	},
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadDotEnv reads credentials from ./.env when present. Variables already
// set in the environment win.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARN: could not read .env: %v", err)
	}
}
