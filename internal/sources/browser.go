package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"mspro-labs/city-pulse/internal/config"
	"mspro-labs/city-pulse/internal/models"
)

// Browser drives one headless browser session against a maps search page.
// The session starts on the first Fetch and lives until Close.
// The configured Delay is spent once per query, after the results settle.
type Browser struct {
	cfg     config.BrowserConfig
	browser *rod.Browser
	render  func(ctx context.Context, target string) (string, error)
}

// NewBrowser returns a Browser adapter; no browser is launched yet.
func NewBrowser(cfg config.BrowserConfig) *Browser {
	b := &Browser{cfg: cfg}
	b.render = b.fetchHTML
	return b
}

func (b *Browser) Source() models.Source { return models.SourceBrowser }

// Fetch renders the search page for the query and scrapes the visible cards.
func (b *Browser) Fetch(ctx context.Context, location, category string, limit int) ([]models.Fragment, error) {
	target := searchPageURL(b.cfg.SearchURL, location, category)
	logger.Printf("Navigating to: %s", target)
	html, err := b.render(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results page: %w", err)
	}

	frags, err := parseResults(html, b.cfg.Selectors)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}
	return truncate(frags, limit), nil
}

// Close shuts the browser session down. It is safe to call more than once.
func (b *Browser) Close() error {
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}

func launchBrowser(headless bool) (*rod.Browser, error) {
	l := launcher.New().Headless(headless).NoSandbox(true)
	u, err := l.Launch()
	if err != nil {
		return nil, err
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, err
	}
	return browser, nil
}

func (b *Browser) fetchHTML(ctx context.Context, target string) (string, error) {
	if b.browser == nil {
		logger.Println("Launching headless browser...")
		browser, err := launchBrowser(b.cfg.Headless)
		if err != nil {
			return "", fmt.Errorf("failed to launch browser: %w", err)
		}
		b.browser = browser
	}

	page, err := stealth.Page(b.browser)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.Printf("WARN: closing page: %v", cerr)
		}
	}()

	page = page.Context(ctx).Timeout(b.cfg.Timeout)
	sel := b.cfg.Selectors

	err = rod.Try(func() {
		page.MustNavigate(target)
		page.MustWaitStable()

		// Handle consent screen, but don't fail the scrape if it's missing
		if sel.ConsentButton != "" {
			_ = rod.Try(func() {
				page.Timeout(5 * time.Second).MustElement(sel.ConsentButton).MustClick()
				page.MustWaitStable()
			})
		}

		if sel.ResultsWait != "" {
			page.MustElement(sel.ResultsWait)
		}
	})
	if err != nil {
		return "", err
	}

	// Fixed pause after the page settles; the only throttle this source has,
	// so consecutive queries are at least Delay apart.
	if err := sleep(ctx, b.cfg.Delay); err != nil {
		return "", err
	}

	var html string
	err = rod.Try(func() {
		html = page.MustHTML()
	})
	return html, err
}

func searchPageURL(tmpl, location, category string) string {
	q := url.QueryEscape(searchQuery(location, category))
	return strings.ReplaceAll(tmpl, "{query}", q)
}

var reReviewCount = regexp.MustCompile(`(?i)(\d[\d.,]*\s?[km]?)\s*reviews?`)

// parseResults reads the result cards of a rendered search page. Only what
// the list view shows is read; phone, website and hours stay absent.
func parseResults(html string, sel config.BrowserSelectors) ([]models.Fragment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var frags []models.Fragment
	doc.Find(sel.Card).Each(func(_ int, s *goquery.Selection) {
		name := cardName(s, sel)
		if name == "" {
			return
		}
		frag := models.Fragment{"name": name}

		if sel.Rating != "" {
			r := s.Find(sel.Rating).First()
			label, ok := r.Attr("aria-label")
			if !ok {
				label = r.Text()
			}
			if label = strings.TrimSpace(label); label != "" {
				frag["rating"] = label
				if m := reReviewCount.FindStringSubmatch(label); m != nil {
					frag["reviews"] = strings.TrimSpace(m[1])
				}
			}
		}
		if sel.Reviews != "" {
			if txt := strings.TrimSpace(s.Find(sel.Reviews).First().Text()); txt != "" {
				frag["reviews"] = txt
			}
		}
		if sel.Address != "" {
			if txt := strings.TrimSpace(s.Find(sel.Address).First().Text()); txt != "" {
				frag["address"] = txt
			}
		}
		frags = append(frags, frag)
	})
	return frags, nil
}

func cardName(s *goquery.Selection, sel config.BrowserSelectors) string {
	if label, ok := s.Attr("aria-label"); ok && strings.TrimSpace(label) != "" {
		return strings.TrimSpace(label)
	}
	if sel.Name != "" {
		if txt := strings.TrimSpace(s.Find(sel.Name).First().Text()); txt != "" {
			return txt
		}
	}
	// Fall back to the first visible line of the card.
	for _, line := range strings.Split(s.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
