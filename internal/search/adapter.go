// Package search discovers listing URLs from paginated search-result pages
// and records each one as a pending work item.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"listing_spider/internal/browser"
	"listing_spider/internal/config"
	"listing_spider/internal/logger"
	"listing_spider/internal/models"
)

// ErrDisallowed is returned for seeds excluded by robots.txt.
var ErrDisallowed = errors.New("disallowed by robots.txt")

type Store interface {
	InsertDiscoveredURL(ctx context.Context, u models.DiscoveredURL) (bool, error)
}

type PageFetcher interface {
	RemoteUp(ctx context.Context) bool
	FetchRemote(ctx context.Context, target string) (string, error)
	FetchLocal(ctx context.Context, target string) (string, error)
	FetchHTML(ctx context.Context, target string) (string, error)
}

type RobotsChecker interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Result summarises one seed.
type Result struct {
	Seed         string
	TotalResults int
	TotalPages   int
	PagesVisited int
	Links        []string
	Inserted     int
}

type Adapter struct {
	cfg     config.SearchConfig
	fetcher PageFetcher
	store   Store
	robots  RobotsChecker
	log     logger.Logger

	backoffBase time.Duration
	backoffCap  time.Duration
}

type Option func(*Adapter)

func WithRobots(r RobotsChecker) Option {
	return func(a *Adapter) { a.robots = r }
}

// WithBackoff sets the first-page retry wait: base·2^(n-1), capped.
func WithBackoff(base, ceiling time.Duration) Option {
	return func(a *Adapter) { a.backoffBase, a.backoffCap = base, ceiling }
}

func NewAdapter(cfg config.SearchConfig, fetcher PageFetcher, store Store, log logger.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:         cfg,
		fetcher:     fetcher,
		store:       store,
		log:         log,
		backoffBase: 3 * time.Second,
		backoffCap:  15 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run discovers every seed in turn. A failing seed is logged and skipped.
func (a *Adapter) Run(ctx context.Context, seeds []string) []*Result {
	var results []*Result
	for _, seed := range seeds {
		if ctx.Err() != nil {
			break
		}
		res, err := a.Discover(ctx, seed)
		if err != nil {
			a.log.Error("search: seed failed", logger.String("seed", seed), logger.Error(err))
			continue
		}
		results = append(results, res)
	}
	return results
}

// Discover crawls one seed: page 1 with the retry ladder, then, when
// enabled, the numbered pages implied by the advertised result count.
func (a *Adapter) Discover(ctx context.Context, seed string) (*Result, error) {
	log := a.log.With(logger.String("seed", seed))

	if a.robots != nil && !a.robots.Allowed(ctx, seed) {
		return nil, fmt.Errorf("%w: %s", ErrDisallowed, seed)
	}

	html, err := a.fetchFirstPage(ctx, seed)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", seed, err)
	}

	res := &Result{Seed: seed, PagesVisited: 1}
	res.TotalResults = TotalResults(doc, a.cfg.ResultsPerPage)
	res.TotalPages = ceilDiv(res.TotalResults, a.cfg.ResultsPerPage)

	links := ListingLinks(doc, seed)
	res.Links = append(res.Links, links...)
	res.Inserted += a.record(ctx, seed, seed, links)

	log.Info("search: first page done",
		logger.Int("total_results", res.TotalResults),
		logger.Int("total_pages", res.TotalPages),
		logger.Int("links", len(links)),
	)

	if !a.cfg.FollowPages {
		return res, nil
	}

	last := res.TotalPages
	if a.cfg.MaxPages > 0 && last > a.cfg.MaxPages {
		last = a.cfg.MaxPages
	}
	for n := 2; n <= last; n++ {
		if err := browser.Sleep(ctx, a.cfg.PageDelay()); err != nil {
			return res, err
		}

		pageURL := PageURL(seed, n)
		html, err := a.fetcher.FetchHTML(ctx, pageURL)
		if err != nil {
			log.Warn("search: page failed", logger.String("page", pageURL), logger.Error(err))
			continue
		}
		res.PagesVisited++

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			log.Warn("search: parse page", logger.String("page", pageURL), logger.Error(err))
			continue
		}
		links := ListingLinks(doc, pageURL)
		if len(links) == 0 {
			log.Info("search: empty page, stopping", logger.String("page", pageURL))
			break
		}
		res.Links = append(res.Links, links...)
		res.Inserted += a.record(ctx, seed, pageURL, links)
	}

	log.Info("search: seed done",
		logger.Int("pages", res.PagesVisited),
		logger.Int("links", len(res.Links)),
		logger.Int("inserted", res.Inserted),
	)
	return res, nil
}

// fetchFirstPage tries the remote renderer for the first two attempts when it
// is up, the local browser otherwise, waiting longer between attempts.
func (a *Adapter) fetchFirstPage(ctx context.Context, seed string) (string, error) {
	remoteUp := a.fetcher.RemoteUp(ctx)
	attempts := max(a.cfg.MaxAttempts, 1)

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			wait := min(a.backoffBase<<(i-1), a.backoffCap)
			if err := browser.Sleep(ctx, wait); err != nil {
				return "", err
			}
		}

		if remoteUp && i < 2 {
			html, err := a.fetcher.FetchRemote(ctx, seed)
			if err == nil && html != "" {
				return html, nil
			}
			lastErr = err
		}

		html, err := a.fetcher.FetchLocal(ctx, seed)
		if err == nil && html != "" {
			return html, nil
		}
		if err != nil {
			lastErr = err
		}
		a.log.Warn("search: first page attempt failed",
			logger.String("seed", seed),
			logger.Int("attempt", i+1),
			logger.Error(lastErr),
		)
	}
	if lastErr == nil {
		lastErr = errors.New("empty document")
	}
	return "", fmt.Errorf("first page of %s after %d attempts: %w", seed, attempts, lastErr)
}

func (a *Adapter) record(ctx context.Context, seed, pageURL string, links []string) int {
	inserted := 0
	for _, link := range links {
		ok, err := a.store.InsertDiscoveredURL(ctx, models.DiscoveredURL{
			SourceURL:  seed,
			ScrapedURL: pageURL,
			ListingURL: link,
		})
		if err != nil {
			a.log.Error("search: save listing url", logger.String("url", link), logger.Error(err))
			continue
		}
		if ok {
			inserted++
		}
	}
	return inserted
}

// PageURL returns the n-th result page of seed, e.g. <seed>/2_p/.
func PageURL(seed string, n int) string {
	if n <= 1 {
		return seed
	}
	u, err := url.Parse(seed)
	if err != nil {
		return strings.TrimSuffix(seed, "/") + fmt.Sprintf("/%d_p/", n)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + fmt.Sprintf("/%d_p/", n)
	return u.String()
}

func ceilDiv(a, b int) int {
	if b <= 0 || a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func hostOf(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return parsed.Host
}
