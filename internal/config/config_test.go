package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetAppConfigDefaults(t *testing.T) {
	for _, k := range []string{"DB_PATH", "CONFIG_PATH", "OUTPUT_DIR", "CLOUD_DB_URL", "SUPABASE_DB_URL",
		"SERPAPI_KEY", "GEMINI_API_KEY", "GEMINI_KEY", "REPORT_PROVIDER", "REPORT_MODEL"} {
		t.Setenv(k, "")
	}

	cfg, err := GetAppConfig()
	require.NoError(t, err)
	require.Equal(t, "./local-data/city-pulse.db", cfg.DBPath)
	require.Equal(t, "config.yaml", cfg.ConfigPath)
	require.Equal(t, "gemini", cfg.ReportProvider)
	require.Empty(t, cfg.SerpAPIKey)

	_, err = cfg.ReportKey()
	require.ErrorIs(t, err, ErrMissingCredential)
}

func TestGetAppConfigAliases(t *testing.T) {
	t.Setenv("CLOUD_DB_URL", "")
	t.Setenv("SUPABASE_DB_URL", "postgres://u:p@db.example.com/postgres")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GEMINI_KEY", "g-key")
	t.Setenv("REPORT_PROVIDER", "Gemini")

	cfg, err := GetAppConfig()
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@db.example.com/postgres", cfg.CloudDBURL)

	key, err := cfg.ReportKey()
	require.NoError(t, err)
	require.Equal(t, "g-key", key)
}

func TestGetAppConfigRejectsUnknownProvider(t *testing.T) {
	t.Setenv("REPORT_PROVIDER", "mystery")
	_, err := GetAppConfig()
	require.Error(t, err)
}

func TestLoadSourcesConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadSourcesConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultSourcesConfig(), *cfg)
}

func TestLoadSourcesConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
limit: 5
api:
  timeout: 3s
browser:
  delay: 250ms
  selectors:
    card: "li.result"
directory:
  search_url: "https://dir.example.com/{location}/{category}"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := LoadSourcesConfig(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Limit)
	require.Equal(t, 3*time.Second, cfg.API.Timeout)
	require.Equal(t, "https://serpapi.com/search.json", cfg.API.Endpoint)
	require.Equal(t, 250*time.Millisecond, cfg.Browser.Delay)
	require.Equal(t, "li.result", cfg.Browser.Selectors.Card)
	require.Equal(t, "span[role='img']", cfg.Browser.Selectors.Rating)
	require.Equal(t, "https://dir.example.com/{location}/{category}", cfg.Directory.SearchURL)
}

func TestLoadSourcesConfigBadLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limit: 0\n"), 0o644))
	_, err := LoadSourcesConfig(path)
	require.Error(t, err)
}

func TestValidateLocation(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "  Changanasherry ", want: "Changanasherry"},
		{in: "New   York City", want: "New York City"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "12345", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ValidateLocation(tt.in)
		if tt.wantErr {
			require.True(t, errors.Is(err, ErrInvalidLocation), "input %q", tt.in)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}
