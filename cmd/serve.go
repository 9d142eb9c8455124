package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mspro-labs/city-pulse/internal/ai"
	"mspro-labs/city-pulse/internal/config"
	"mspro-labs/city-pulse/internal/db"
	"mspro-labs/city-pulse/internal/models"
	"mspro-labs/city-pulse/internal/report"
	"mspro-labs/city-pulse/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard web server",
	Run: func(cmd *cobra.Command, args []string) {
		runServer(cmd.Context(), serveAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServer(ctx context.Context, addr string) {
	// 1. Setup
	appCfg, err := config.GetAppConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	store, err := db.Open(appCfg)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	defer store.Close()

	// 2. Report action, only when the provider has a key
	var reporter web.ReportFunc
	if _, err := appCfg.ReportKey(); err != nil {
		log.Printf("WARN: report action disabled: %v", err)
	} else {
		reporter = func(ctx context.Context, location string, records []models.Record) (*report.Outputs, error) {
			gen, err := ai.New(ctx, appCfg)
			if err != nil {
				return nil, err
			}
			defer gen.Close()
			return report.Create(ctx, gen, location, records, appCfg.OutputDir, report.DefaultRetry)
		}
	}

	srv, err := web.NewServer(store, reporter)
	if err != nil {
		log.Fatalf("Failed to build dashboard: %v", err)
	}

	// 3. Start Server
	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Report generation may wait out rate limits.
		WriteTimeout: 3 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Dashboard started at http://localhost%s (%s table)", addr, store.Kind())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
