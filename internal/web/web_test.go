package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mspro-labs/city-pulse/internal/db"
	"mspro-labs/city-pulse/internal/models"
	"mspro-labs/city-pulse/internal/report"
)

type fakeStore struct {
	db.Store
	records map[string][]models.Record
}

func (f *fakeStore) ListLocations(context.Context) ([]string, error) {
	return []string{"Kochi", "Kottayam"}, nil
}

func (f *fakeStore) ListRecords(_ context.Context, location string) ([]models.Record, error) {
	if location == "" {
		var all []models.Record
		for _, recs := range f.records {
			all = append(all, recs...)
		}
		return all, nil
	}
	return f.records[location], nil
}

func newStore() *fakeStore {
	return &fakeStore{records: map[string][]models.Record{
		"Kottayam": {
			{Name: "A Mart", Category: "general stores", Rating: models.Float(4.6), Reviews: models.Int(120), Source: models.SourceAPI},
			{Name: "Zeta <Textiles>", Category: "textile shops", Website: "https://zeta.example.in", Source: models.SourceDirectory},
		},
	}}
}

func TestHomePage(t *testing.T) {
	srv, err := NewServer(newStore(), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?location=Kottayam", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, "A Mart")
	require.Contains(t, body, "Zeta &lt;Textiles&gt;")
	require.Contains(t, body, `<option value="Kottayam" selected>`)
	require.Contains(t, body, "4.60")
	require.NotContains(t, body, "Generate AI report")
}

func TestHomePageEmptyLocation(t *testing.T) {
	srv, err := NewServer(newStore(), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?location=Kochi", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "No listings yet.")
}

func TestReportAction(t *testing.T) {
	var gotLocation string
	var gotCount int
	reporter := func(_ context.Context, location string, records []models.Record) (*report.Outputs, error) {
		gotLocation, gotCount = location, len(records)
		return &report.Outputs{
			Report:   report.Report{Timestamp: time.Now(), Provider: "fake/model", Analysis: "Strong retail demand."},
			JSONPath: "Market_Analysis_x.json",
			PDFPath:  "Market_Report_x.pdf",
		}, nil
	}
	srv, err := NewServer(newStore(), reporter)
	require.NoError(t, err)
	h := srv.Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?location=Kottayam", nil))
	require.Contains(t, rec.Body.String(), "Generate AI report")

	form := url.Values{"location": {"Kottayam"}}
	req := httptest.NewRequest(http.MethodPost, "/report", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Kottayam", gotLocation)
	require.Equal(t, 2, gotCount)
	require.Contains(t, rec.Body.String(), "Strong retail demand.")
	require.Contains(t, rec.Body.String(), "Market_Report_x.pdf")
}

func TestReportActionErrors(t *testing.T) {
	post := func(h http.Handler, location string) *httptest.ResponseRecorder {
		form := url.Values{"location": {location}}
		req := httptest.NewRequest(http.MethodPost, "/report", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	noReporter, err := NewServer(newStore(), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, post(noReporter.Routes(), "Kottayam").Code)

	failing, err := NewServer(newStore(), func(context.Context, string, []models.Record) (*report.Outputs, error) {
		return nil, errors.New("quota exhausted")
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, post(failing.Routes(), "Kochi").Code)
	require.Equal(t, http.StatusBadGateway, post(failing.Routes(), "Kottayam").Code)
}

func TestRatingBuckets(t *testing.T) {
	recs := []models.Record{
		{Rating: models.Float(5)}, {Rating: models.Float(4.5)}, {Rating: models.Float(4.2)},
		{Rating: models.Float(3.5)}, {Rating: models.Float(3.0)}, {Rating: models.Float(1.0)}, {},
		{Rating: models.Float(0)},
	}
	bars := RatingBuckets(recs)
	counts := make([]int, len(bars))
	for i, b := range bars {
		counts[i] = b.Count
	}
	require.Equal(t, []int{2, 1, 1, 1, 2, 1}, counts)
	require.InDelta(t, 25.0, bars[0].Percent, 0.001)

	for _, b := range RatingBuckets(nil) {
		require.Zero(t, b.Percent)
	}
}
