package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingCredential is returned when a required key is not configured.
	ErrMissingCredential = errors.New("missing credential")
	// ErrRejectedCredential is returned when a provider refuses a configured key.
	ErrRejectedCredential = errors.New("rejected credential")
	// ErrInvalidLocation is returned for a location that cannot be searched.
	ErrInvalidLocation = errors.New("invalid location")
)

const maxLocationLen = 120

// DefaultCategories are searched when the operator gives no category.
var DefaultCategories = []string{"general stores", "textile shops", "electronics shops", "restaurants"}

// AppConfig holds infrastructure config and credentials from standard env vars
type AppConfig struct {
	DBPath         string
	ConfigPath     string // Path to the YAML sources file
	OutputDir      string
	CloudDBURL     string
	SerpAPIKey     string
	GeminiAPIKey   string
	OpenAIAPIKey   string
	AnthropicKey   string
	ReportProvider string
	ReportModel    string
}

// SourcesConfig holds all source specific settings (from YAML)
type SourcesConfig struct {
	Limit     int             `yaml:"limit"`
	API       APIConfig       `yaml:"api"`
	Browser   BrowserConfig   `yaml:"browser"`
	Directory DirectoryConfig `yaml:"directory"`
}

type APIConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	AccountEndpoint string        `yaml:"account_endpoint"`
	Engine          string        `yaml:"engine"`
	Timeout         time.Duration `yaml:"timeout"`
	Delay           time.Duration `yaml:"delay"`
}

type BrowserConfig struct {
	SearchURL string           `yaml:"search_url"`
	Headless  bool             `yaml:"headless"`
	Timeout   time.Duration    `yaml:"timeout"`
	Delay     time.Duration    `yaml:"delay"`
	Selectors BrowserSelectors `yaml:"selectors"`
}

type BrowserSelectors struct {
	ConsentButton string `yaml:"consent_button"`
	ResultsWait   string `yaml:"results_wait"`
	Card          string `yaml:"card"`
	Name          string `yaml:"name"`
	Rating        string `yaml:"rating"`
	Reviews       string `yaml:"reviews"`
	Address       string `yaml:"address"`
}

type DirectoryConfig struct {
	SearchURL string             `yaml:"search_url"`
	UserAgent string             `yaml:"user_agent"`
	Timeout   time.Duration      `yaml:"timeout"`
	Delay     time.Duration      `yaml:"delay"`
	Selectors DirectorySelectors `yaml:"selectors"`
}

type DirectorySelectors struct {
	Listing string `yaml:"listing"`
	Name    string `yaml:"name"`
	Rating  string `yaml:"rating"`
	Reviews string `yaml:"reviews"`
	Address string `yaml:"address"`
	Phone   string `yaml:"phone"`
	Website string `yaml:"website"`
	Hours   string `yaml:"hours"`
}

// GetAppConfig reads infrastructure settings and credentials from environment variables.
func GetAppConfig() (AppConfig, error) {
	cfg := AppConfig{
		DBPath:         getEnv("DB_PATH", "./local-data/city-pulse.db"),
		ConfigPath:     getEnv("CONFIG_PATH", "config.yaml"),
		OutputDir:      getEnv("OUTPUT_DIR", "."),
		CloudDBURL:     firstEnv("CLOUD_DB_URL", "SUPABASE_DB_URL"),
		SerpAPIKey:     firstEnv("SERPAPI_KEY"),
		GeminiAPIKey:   firstEnv("GEMINI_API_KEY", "GEMINI_KEY"),
		OpenAIAPIKey:   firstEnv("OPENAI_API_KEY"),
		AnthropicKey:   firstEnv("ANTHROPIC_API_KEY"),
		ReportProvider: strings.ToLower(getEnv("REPORT_PROVIDER", ProviderGemini)),
		ReportModel:    os.Getenv("REPORT_MODEL"),
	}

	switch cfg.ReportProvider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		return AppConfig{}, fmt.Errorf("REPORT_PROVIDER must be one of gemini, openai, anthropic (got %q)", cfg.ReportProvider)
	}
	return cfg, nil
}

// Report providers accepted in REPORT_PROVIDER.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ReportKey returns the credential for the configured report provider.
func (c AppConfig) ReportKey() (string, error) {
	var key, name string
	switch c.ReportProvider {
	case ProviderOpenAI:
		key, name = c.OpenAIAPIKey, "OPENAI_API_KEY"
	case ProviderAnthropic:
		key, name = c.AnthropicKey, "ANTHROPIC_API_KEY"
	default:
		key, name = c.GeminiAPIKey, "GEMINI_API_KEY"
	}
	if key == "" {
		return "", fmt.Errorf("%w: %s environment variable is required for %s reports", ErrMissingCredential, name, c.ReportProvider)
	}
	return key, nil
}

// DefaultSourcesConfig returns the settings used when no YAML file is present.
func DefaultSourcesConfig() SourcesConfig {
	return SourcesConfig{
		Limit: 20,
		API: APIConfig{
			Endpoint:        "https://serpapi.com/search.json",
			AccountEndpoint: "https://serpapi.com/account.json",
			Engine:          "google_maps",
			Timeout:         10 * time.Second,
			Delay:           time.Second,
		},
		Browser: BrowserConfig{
			SearchURL: "https://www.google.com/maps/search/{query}",
			Headless:  true,
			Timeout:   90 * time.Second,
			Delay:     5 * time.Second,
			Selectors: BrowserSelectors{
				ConsentButton: "form[action*='consent'] button",
				ResultsWait:   "div[role='feed']",
				Card:          "div[role='article']",
				Name:          "div.fontHeadlineSmall",
				Rating:        "span[role='img']",
			},
		},
		Directory: DirectoryConfig{
			SearchURL: "https://www.justdial.com/{location}/{category}",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
			Timeout:   15 * time.Second,
			Delay:     2 * time.Second,
			Selectors: DirectorySelectors{
				Listing: "div.resultbox",
				Name:    ".resultbox_title_anchor",
				Rating:  ".resultbox_totalrate",
				Reviews: ".resultbox_countrate",
				Address: ".resultbox_address",
				Phone:   ".callcontent",
				Website: "a.website",
				Hours:   ".resultbox_timing",
			},
		},
	}
}

// LoadSourcesConfig reads the YAML file on top of the defaults.
// A missing file yields the defaults.
func LoadSourcesConfig(path string) (*SourcesConfig, error) {
	cfg := DefaultSourcesConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive (got %d)", cfg.Limit)
	}
	return &cfg, nil
}

// ValidateLocation trims and checks a location string.
func ValidateLocation(raw string) (string, error) {
	loc := strings.Join(strings.Fields(raw), " ")
	if loc == "" {
		return "", fmt.Errorf("%w: location is empty", ErrInvalidLocation)
	}
	if len(loc) > maxLocationLen {
		return "", fmt.Errorf("%w: location longer than %d characters", ErrInvalidLocation, maxLocationLen)
	}
	if strings.IndexFunc(loc, unicode.IsLetter) < 0 {
		return "", fmt.Errorf("%w: %q has no letters", ErrInvalidLocation, loc)
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
