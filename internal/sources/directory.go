package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mspro-labs/city-pulse/internal/config"
	"mspro-labs/city-pulse/internal/models"
)

// Directory scrapes a business directory's static search page. Its data is
// lower trust than the other sources and is taken as-is.
type Directory struct {
	cfg    config.DirectoryConfig
	client *http.Client
	pace   pacer
}

// NewDirectory returns a Directory adapter.
func NewDirectory(cfg config.DirectoryConfig) *Directory {
	return &Directory{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		pace:   pacer{delay: cfg.Delay},
	}
}

func (d *Directory) Source() models.Source { return models.SourceDirectory }

// Fetch downloads and parses the directory listing page for the query.
func (d *Directory) Fetch(ctx context.Context, location, category string, limit int) ([]models.Fragment, error) {
	if err := d.pace.wait(ctx); err != nil {
		return nil, err
	}

	target := directoryURL(d.cfg.SearchURL, location, category)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	logger.Printf("Fetching directory page: %s", target)
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w (status %d)", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		// Directories answer unknown city/category pages with 404.
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory page: %w", err)
	}
	return truncate(parseListings(doc, d.cfg.Selectors), limit), nil
}

// directoryURL fills the {location} and {category} placeholders as path
// segments ("New York" -> "New-York").
func directoryURL(tmpl, location, category string) string {
	seg := func(s string) string {
		return url.PathEscape(strings.Join(strings.Fields(s), "-"))
	}
	r := strings.NewReplacer("{location}", seg(location), "{category}", seg(category))
	return r.Replace(tmpl)
}

func parseListings(doc *goquery.Document, sel config.DirectorySelectors) []models.Fragment {
	var frags []models.Fragment
	doc.Find(sel.Listing).Each(func(_ int, s *goquery.Selection) {
		frag := models.Fragment{}
		set := func(key, selector string) {
			if selector == "" {
				return
			}
			if txt := strings.TrimSpace(s.Find(selector).First().Text()); txt != "" {
				frag[key] = txt
			}
		}
		set("name", sel.Name)
		set("rating", sel.Rating)
		set("reviews", sel.Reviews)
		set("address", sel.Address)
		set("phone", sel.Phone)
		set("hours", sel.Hours)

		if sel.Website != "" {
			link := s.Find(sel.Website).First()
			if href, ok := link.Attr("href"); ok && strings.TrimSpace(href) != "" {
				frag["website"] = strings.TrimSpace(href)
			} else if txt := strings.TrimSpace(link.Text()); txt != "" {
				frag["website"] = txt
			}
		}

		// Nameless blocks are kept; the normalizer drops and counts them.
		frags = append(frags, frag)
	})
	return frags
}
