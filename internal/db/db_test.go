package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mspro-labs/city-pulse/internal/config"
	"mspro-labs/city-pulse/internal/dedupe"
	"mspro-labs/city-pulse/internal/models"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	store, err := Connect(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndList(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.Equal(t, "sqlite", store.Kind())

	recs := []models.Record{
		{Name: "A Mart", Category: "general stores", Rating: models.Float(4.3), Reviews: models.Int(120),
			Address: "MC Road", Source: models.SourceAPI},
		{Name: "Zeta Textiles", Category: "textile shops", Phone: "0481 242 1111", Source: models.SourceDirectory},
	}
	n, err := store.SaveRecords(ctx, "Kottayam", recs)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	got, err := store.ListRecords(ctx, "Kottayam")
	require.NoError(t, err)
	require.Equal(t, recs, got)

	locs, err := store.ListLocations(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Kottayam"}, locs)

	none, err := store.ListRecords(ctx, "Kochi")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestUpsertKeepsStoredValues(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	first := models.Record{Name: "A Mart", Category: "general stores", Rating: models.Float(4.3),
		Address: "MC Road", Phone: "0481 242 0000", Source: models.SourceAPI}
	_, err := store.SaveRecords(ctx, "Kottayam", []models.Record{first})
	require.NoError(t, err)

	// Same identity key; rating and phone absent this time.
	second := models.Record{Name: "A MART.", Category: "general stores", Reviews: models.Int(130),
		Address: "MC Road.", Source: models.SourceBrowser}
	_, err = store.SaveRecords(ctx, "Kottayam", []models.Record{second})
	require.NoError(t, err)

	got, err := store.ListRecords(ctx, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "A MART.", got[0].Name)
	require.Equal(t, 4.3, *got[0].Rating)
	require.Equal(t, 130, *got[0].Reviews)
	require.Equal(t, "0481 242 0000", got[0].Phone)
	require.Equal(t, "MC Road.", got[0].Address)
	require.Equal(t, models.SourceBrowser, got[0].Source)
}

func TestSaveKeepsSameNameBusinessesApart(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	recs := dedupe.Dedupe([]models.Record{
		{Name: "City Bakery", Category: "bakeries", Phone: "0481 242 0001", Source: models.SourceAPI},
		{Name: "City Bakery", Category: "bakeries", Phone: "0481 242 0999", Source: models.SourceDirectory},
		{Name: "City Bakery", Category: "cafes", Source: models.SourceBrowser},
	})
	require.Len(t, recs, 3)

	n, err := store.SaveRecords(ctx, "Kottayam", recs)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	got, err := store.ListRecords(ctx, "Kottayam")
	require.NoError(t, err)
	require.Len(t, got, 3)
	var phones []string
	for _, r := range got {
		phones = append(phones, r.Phone)
	}
	require.ElementsMatch(t, []string{"0481 242 0001", "0481 242 0999", ""}, phones)
}

func TestSaveMarksMissingRowsInactive(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	a := models.Record{Name: "A Mart", Category: "general stores", Source: models.SourceAPI}
	b := models.Record{Name: "B Mart", Category: "general stores", Source: models.SourceAPI}
	c := models.Record{Name: "C Cafe", Category: "restaurants", Source: models.SourceAPI}

	_, err := store.SaveRecords(ctx, "Kottayam", []models.Record{a, b})
	require.NoError(t, err)
	_, err = store.SaveRecords(ctx, "Kochi", []models.Record{c})
	require.NoError(t, err)
	_, err = store.SaveRecords(ctx, "Kottayam", []models.Record{b})
	require.NoError(t, err)

	got, err := store.ListRecords(ctx, "Kottayam")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "B Mart", got[0].Name)

	// Other locations are untouched.
	got, err = store.ListRecords(ctx, "Kochi")
	require.NoError(t, err)
	require.Len(t, got, 1)

	locs, err := store.ListLocations(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Kochi", "Kottayam"}, locs)
}

func TestRunHistory(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordRun(ctx, Run{
		ID: "run-1", Location: "Kottayam", Categories: []string{"general stores", "restaurants"},
		Sources: []string{"api"}, Fetched: 30, Rejected: 2, Unique: 25, Output: "Kottayam_20260309.xlsx",
		StartedAt: base,
	}))
	require.NoError(t, store.RecordRun(ctx, Run{
		ID: "run-2", Location: "Kochi", Categories: []string{"gyms"}, Sources: []string{"browser", "directory"},
		Failed: 1, TableErr: "connection refused", StartedAt: base.Add(time.Hour),
	}))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "run-2", runs[0].ID)
	require.Equal(t, []string{"browser", "directory"}, runs[0].Sources)
	require.Equal(t, "connection refused", runs[0].TableErr)
	require.True(t, base.Add(time.Hour).Equal(runs[0].StartedAt))

	require.Equal(t, []string{"general stores", "restaurants"}, runs[1].Categories)
	require.Equal(t, 25, runs[1].Unique)

	runs, err = store.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	require.Error(t, store.RecordRun(ctx, Run{ID: "run-1", Location: "Kottayam"}))
}

func TestOpenFallsBackToSQLite(t *testing.T) {
	store, err := Open(config.AppConfig{DBPath: filepath.Join(t.TempDir(), "offline.db")})
	require.NoError(t, err)
	defer store.Close()
	require.Equal(t, "sqlite", store.Kind())
}

func TestRebind(t *testing.T) {
	s := &sqlStore{numbered: true}
	require.Equal(t, "SELECT $1, $2 WHERE a = $3", s.rebind("SELECT ?, ? WHERE a = ?"))
	s.numbered = false
	require.Equal(t, "SELECT ?", s.rebind("SELECT ?"))
}
