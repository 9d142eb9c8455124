package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"mspro-labs/city-pulse/internal/config"
	"mspro-labs/city-pulse/internal/models"
)

// API queries the SerpApi Google Maps engine.
type API struct {
	key    string
	cfg    config.APIConfig
	client *http.Client
	pace   pacer
}

type serpResponse struct {
	Error        string            `json:"error"`
	LocalResults []models.Fragment `json:"local_results"`
}

// NewAPI returns an API adapter. A missing key is a configuration error.
func NewAPI(key string, cfg config.APIConfig) (*API, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: SERPAPI_KEY environment variable is required for the api source", config.ErrMissingCredential)
	}
	return &API{
		key:    key,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		pace:   pacer{delay: cfg.Delay},
	}, nil
}

func (a *API) Source() models.Source { return models.SourceAPI }

// Preflight checks the key against the account endpoint so a rejected key
// stops the run before any search is spent.
func (a *API) Preflight(ctx context.Context) error {
	if a.cfg.AccountEndpoint == "" {
		return nil
	}
	u, err := url.Parse(a.cfg.AccountEndpoint)
	if err != nil {
		return fmt.Errorf("invalid account endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api_key", a.key)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("account check failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: SERPAPI_KEY (status %d)", config.ErrRejectedCredential, resp.StatusCode)
	case resp.StatusCode >= 300:
		return fmt.Errorf("account check: %w %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

// Fetch issues one search request for the query.
func (a *API) Fetch(ctx context.Context, location, category string, limit int) ([]models.Fragment, error) {
	if err := a.pace.wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(a.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", searchQuery(location, category))
	q.Set("engine", a.cfg.Engine)
	q.Set("type", "search")
	q.Set("api_key", a.key)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	logger.Printf("Searching api for: %s", q.Get("q"))
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var body serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if body.Error != "" {
		// SerpApi reports "no results" through the error field as well.
		if body.Error == "Google hasn't returned any results for this query." {
			return nil, nil
		}
		return nil, fmt.Errorf("search api error: %s", body.Error)
	}
	return truncate(body.LocalResults, limit), nil
}
