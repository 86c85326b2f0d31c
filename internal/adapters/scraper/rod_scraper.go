package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"golang.org/x/sync/errgroup"

	"github.com/benefis-partners/prospect-pipeline/internal/platform/resilience"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

const defaultRodMaxConcurrency = 5

// RodScraper implements ports.ProfileScraper with a headless browser
// (github.com/go-rod/rod), fetching profile pages directly rather than
// delegating to a managed scraping actor. Selected via
// config.ScraperConfig.Engine == "rod" in cmd/api's adapter wiring.
type RodScraper struct {
	browser        *rod.Browser
	pageWait       time.Duration
	maxConcurrency int
	breaker        *resilience.Breaker
}

// NewRodScraper launches a headless Chromium instance and returns a
// RodScraper bound to it. Callers must call Close when done.
func NewRodScraper(pageWait time.Duration, maxConcurrency int) (*RodScraper, error) {
	url, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, fmt.Errorf("rod scraper: launch browser: %w", err)
	}
	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("rod scraper: connect: %w", err)
	}
	if pageWait == 0 {
		pageWait = 2 * time.Second
	}
	if maxConcurrency <= 0 {
		maxConcurrency = defaultRodMaxConcurrency
	}
	return &RodScraper{
		browser:        browser,
		pageWait:       pageWait,
		maxConcurrency: maxConcurrency,
		breaker:        resilience.NewBreaker("scraper-rod", 5, 30*time.Second),
	}, nil
}

// Close releases the underlying browser process.
func (s *RodScraper) Close() error {
	return s.browser.Close()
}

// ScrapeMany fans a batch out into one Scrape call per URL, up to
// maxConcurrency in flight — a single local browser process has no batch
// endpoint to submit to, so per-URL fan-out is this adapter's only mode,
// per spec.md §5's documented fallback for adapters lacking batch support.
// A URL that fails to scrape is simply absent from the result map.
func (s *RodScraper) ScrapeMany(ctx context.Context, profileURLs []string) (map[string]*model.Profile, error) {
	var mu sync.Mutex
	profiles := make(map[string]*model.Profile, len(profileURLs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for _, profileURL := range profileURLs {
		profileURL := profileURL
		g.Go(func() error {
			profile, err := s.scrape(gctx, profileURL)
			if err != nil {
				return nil
			}
			mu.Lock()
			profiles[profileURL] = profile
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // per-URL errors are dropped, not the group's, since callers key off the result map

	return profiles, nil
}

// scrape fetches profileURL directly and extracts the same Profile shape
// ActorClient returns, so callers are indifferent to which implementation
// backs the port.
func (s *RodScraper) scrape(ctx context.Context, profileURL string) (*model.Profile, error) {
	return resilience.Call(ctx, s.breaker, model.Stage2Validate, resilience.DefaultPolicy, func(ctx context.Context) (*model.Profile, error) {
		return s.scrapeOnce(ctx, profileURL)
	})
}

func (s *RodScraper) scrapeOnce(ctx context.Context, profileURL string) (*model.Profile, error) {
	page, err := s.browser.Context(ctx).Page(rod.NewPageOptions(nil))
	if err != nil {
		return nil, model.NewStageError(model.Stage2Validate, model.ErrKindTransport, "rod scraper: open page: %v", err)
	}
	defer page.Close()

	if err := page.Navigate(profileURL); err != nil {
		return nil, model.NewStageError(model.Stage2Validate, model.ErrKindTransport, "rod scraper: navigate: %v", err)
	}
	if err := page.WaitStable(s.pageWait); err != nil {
		return nil, model.NewStageError(model.Stage2Validate, model.ErrKindTimeout, "rod scraper: page never stabilized: %v", err)
	}

	fullName := textOf(page, "h1")
	headline := textOf(page, "[data-field=headline]")
	currentTitle := textOf(page, "[data-field=current-title]")
	currentEmployer := textOf(page, "[data-field=current-employer]")
	location := textOf(page, "[data-field=location]")
	connectionsRaw := textOf(page, "[data-field=connections]")

	if fullName == "" {
		return nil, model.NewStageError(model.Stage2Validate, model.ErrKindBadResponse, "rod scraper: page did not render expected profile fields")
	}

	profile := &model.Profile{
		ProfileURL:      profileURL,
		FullName:        fullName,
		Headline:        headline,
		CurrentTitle:    currentTitle,
		CurrentEmployer: currentEmployer,
		Location:        model.Location{Raw: location},
	}
	if n, err := strconv.Atoi(strings.TrimSuffix(strings.ReplaceAll(connectionsRaw, ",", ""), "+")); err == nil {
		profile.Connections = n
		profile.HasConnections = true
	}
	profile.ReconcileCurrentEmployment()
	profile.ComputeDerivedScores()
	return profile, nil
}

func textOf(page *rod.Page, selector string) string {
	el, err := page.Timeout(3 * time.Second).Element(selector)
	if err != nil {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
