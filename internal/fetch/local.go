package fetch

import (
	"context"
	"fmt"

	"listing_spider/internal/logger"
)

// Local scroll profile: 200px steps, at most 50 of them.
const (
	localScrollStep  = 200
	localScrollSteps = 50
)

// Navigator is the slice of a browser page the local fetch needs.
type Navigator interface {
	Navigate(ctx context.Context, u string) error
	ScrollWindow(ctx context.Context, step, maxSteps int) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// OpenFunc opens a fresh page. Each call gets its own browser context.
type OpenFunc func(ctx context.Context) (Navigator, error)

// LocalFetcher renders a URL in a local headless browser.
type LocalFetcher struct {
	open OpenFunc
	log  logger.Logger
}

func NewLocalFetcher(open OpenFunc, log logger.Logger) *LocalFetcher {
	return &LocalFetcher{open: open, log: log}
}

// FetchHTML navigates to target, scrolls to trigger lazy content and
// serialises the document. The page is closed on every path.
func (l *LocalFetcher) FetchHTML(ctx context.Context, target string) (html string, err error) {
	if l == nil || l.open == nil {
		return "", ErrBrowserUnavailable
	}

	page, err := l.open(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			l.log.Warn("local fetch: close page", logger.String("url", target), logger.Error(cerr))
		}
	}()

	if err := page.Navigate(ctx, target); err != nil {
		return "", err
	}
	if err := page.ScrollWindow(ctx, localScrollStep, localScrollSteps); err != nil {
		l.log.Warn("local fetch: scroll failed", logger.String("url", target), logger.Error(err))
	}

	html, err = page.HTML(ctx)
	if err != nil {
		return "", err
	}
	l.log.Debug("local fetch: fetched", logger.String("url", target), logger.Int("bytes", len(html)))
	return html, nil
}
