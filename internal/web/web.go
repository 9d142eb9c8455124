// Package web serves the dashboard over the table store.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mspro-labs/city-pulse/internal/db"
	"mspro-labs/city-pulse/internal/models"
	"mspro-labs/city-pulse/internal/report"
)

// Embed the 'templates' directory.
// The path is relative to this file (internal/web/web.go).
//
//go:embed templates
var Assets embed.FS

var logger = log.New(os.Stdout, "WEB: ", log.LstdFlags|log.Lshortfile)

// ReportFunc generates a report for the records of one location.
type ReportFunc func(ctx context.Context, location string, records []models.Record) (*report.Outputs, error)

// Helper for templates
var funcMap = template.FuncMap{
	"rating": func(v *float64) string {
		if v == nil {
			return "N/A"
		}
		return fmt.Sprintf("%.1f", *v)
	},
	"count": func(v *int) string {
		if v == nil {
			return "N/A"
		}
		return fmt.Sprint(*v)
	},
	"pct": func(v float64) string { return fmt.Sprintf("%.0f%%", v) },
}

// Server renders the dashboard pages.
type Server struct {
	store      db.Store
	reporter   ReportFunc
	homeTmpl   *template.Template
	reportTmpl *template.Template
}

// NewServer parses the templates. A nil reporter hides the report action.
func NewServer(store db.Store, reporter ReportFunc) (*Server, error) {
	// Pre-build templates separately to avoid block collisions.
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(Assets, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}

	home, err := template.Must(base.Clone()).ParseFS(Assets, "templates/home.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse home template: %w", err)
	}
	rep, err := template.Must(base.Clone()).ParseFS(Assets, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}

	return &Server{store: store, reporter: reporter, homeTmpl: home, reportTmpl: rep}, nil
}

// Routes returns the dashboard router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome)
	r.Post("/report", s.handleReport)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return r
}

// Bar is one row of a distribution chart.
type Bar struct {
	Label   string
	Count   int
	Percent float64
}

type homeData struct {
	Locations  []string
	Location   string
	Summary    report.Summary
	Categories []Bar
	Ratings    []Bar
	Records    []models.Record
	CanReport  bool
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	location := strings.TrimSpace(r.URL.Query().Get("location"))

	locations, err := s.store.ListLocations(ctx)
	if err != nil {
		logger.Printf("DB error: %v", err)
		http.Error(w, "Failed to load locations", http.StatusInternalServerError)
		return
	}
	records, err := s.store.ListRecords(ctx, location)
	if err != nil {
		logger.Printf("DB error: %v", err)
		http.Error(w, "Failed to load listings", http.StatusInternalServerError)
		return
	}

	sum := report.Summarize(location, records)
	data := homeData{
		Locations:  locations,
		Location:   location,
		Summary:    sum,
		Categories: categoryBars(sum),
		Ratings:    RatingBuckets(records),
		Records:    records,
		CanReport:  s.reporter != nil && len(records) > 0,
	}
	if err := s.homeTmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		logger.Printf("Template error: %v", err)
	}
}

type reportData struct {
	Location string
	Outputs  *report.Outputs
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.reporter == nil {
		http.Error(w, "Report generation is not configured", http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad form", http.StatusBadRequest)
		return
	}
	location := strings.TrimSpace(r.PostFormValue("location"))

	records, err := s.store.ListRecords(r.Context(), location)
	if err != nil {
		logger.Printf("DB error: %v", err)
		http.Error(w, "Failed to load listings", http.StatusInternalServerError)
		return
	}
	if len(records) == 0 {
		http.Error(w, "No listings to analyse", http.StatusBadRequest)
		return
	}

	out, err := s.reporter(r.Context(), location, records)
	if err != nil {
		logger.Printf("Report error: %v", err)
		http.Error(w, "Report generation failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	if err := s.reportTmpl.ExecuteTemplate(w, "base.html", reportData{Location: location, Outputs: out}); err != nil {
		logger.Printf("Template error: %v", err)
	}
}

func categoryBars(sum report.Summary) []Bar {
	bars := make([]Bar, 0, len(sum.Categories))
	for _, c := range sum.Categories {
		bars = append(bars, Bar{Label: c.Category, Count: c.Count, Percent: percent(c.Count, sum.Total)})
	}
	return bars
}

// RatingBuckets groups records into half-star bands above 3.0, everything
// below 3.0, and the unrated ones.
func RatingBuckets(records []models.Record) []Bar {
	bars := []Bar{
		{Label: "4.5 - 5.0"},
		{Label: "4.0 - 4.4"},
		{Label: "3.5 - 3.9"},
		{Label: "3.0 - 3.4"},
		{Label: "below 3.0"},
		{Label: "unrated"},
	}
	for _, r := range records {
		switch {
		case r.Rating == nil:
			bars[5].Count++
		case *r.Rating >= 4.5:
			bars[0].Count++
		case *r.Rating >= 4.0:
			bars[1].Count++
		case *r.Rating >= 3.5:
			bars[2].Count++
		case *r.Rating >= 3.0:
			bars[3].Count++
		default:
			bars[4].Count++
		}
	}
	for i := range bars {
		bars[i].Percent = percent(bars[i].Count, len(records))
	}
	return bars
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}
