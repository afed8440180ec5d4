// Package fetch turns a URL into HTML: a remote rendering service first,
// a local headless browser when the service is down.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly"
	"github.com/gocolly/colly/extensions"

	"listing_spider/internal/browser"
	"listing_spider/internal/config"
	"listing_spider/internal/logger"
)

var (
	// ErrRenderServiceUnavailable is returned once every render attempt failed.
	ErrRenderServiceUnavailable = errors.New("render-service-unavailable")
	// ErrBrowserUnavailable is returned when no local browser is configured or it failed.
	ErrBrowserUnavailable = errors.New("browser-unavailable")
)

// RenderClient talks to a ScrapingBee-style rendering API.
type RenderClient struct {
	cfg config.RenderConfig
	log logger.Logger
}

func NewRenderClient(cfg config.RenderConfig, log logger.Logger) *RenderClient {
	return &RenderClient{cfg: cfg, log: log}
}

func (c *RenderClient) newCollector(timeout time.Duration) *colly.Collector {
	col := colly.NewCollector(colly.AllowURLRevisit())
	col.MaxBodySize = 0
	col.SetRequestTimeout(timeout)
	extensions.RandomUserAgent(col)
	return col
}

// renderURL builds the API request that renders target with JS, a fixed
// settle wait, a network-idle condition and a fixed viewport.
func (c *RenderClient) renderURL(target string) string {
	q := url.Values{}
	q.Set("api_key", c.cfg.APIKey)
	q.Set("url", target)
	q.Set("render_js", "true")
	q.Set("wait", strconv.Itoa(c.cfg.WaitMS))
	if c.cfg.WaitFor != "" {
		q.Set("wait_for", c.cfg.WaitFor)
	}
	q.Set("window_width", strconv.Itoa(c.cfg.WindowWidth))
	q.Set("window_height", strconv.Itoa(c.cfg.WindowHeight))
	if c.cfg.StealthProxy {
		q.Set("stealth_proxy", "true")
	}
	return c.cfg.Endpoint + "?" + q.Encode()
}

// get performs one GET and returns the body of a 2xx response.
func (c *RenderClient) get(reqURL string, timeout time.Duration) (string, int, error) {
	col := c.newCollector(timeout)

	var (
		body   string
		status int
	)
	col.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
	})
	col.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = string(r.Body)
	})
	col.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := col.Visit(reqURL); err != nil {
		return "", status, err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return "", status, fmt.Errorf("HTTP %d", status)
	}
	return body, status, nil
}

// FetchHTML renders target, retrying a bounded number of times with a fixed
// delay. Empty bodies count as failures.
func (c *RenderClient) FetchHTML(ctx context.Context, target string) (string, error) {
	reqURL := c.renderURL(target)
	attempts := max(c.cfg.MaxAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		body, status, err := c.get(reqURL, c.cfg.Timeout())
		if err == nil && strings.TrimSpace(body) != "" {
			c.log.Debug("render: fetched",
				logger.String("url", target),
				logger.Int("bytes", len(body)),
				logger.Int("attempt", attempt),
			)
			return body, nil
		}
		if err == nil {
			err = errors.New("empty body")
		}
		c.log.Warn("render: attempt failed",
			logger.String("url", target),
			logger.Int("attempt", attempt),
			logger.Int("status", status),
			logger.Error(err),
		)

		if attempt < attempts {
			if err := browser.Sleep(ctx, c.cfg.RetryDelay()); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrRenderServiceUnavailable, target)
}

// Probe renders a known-good page and reports whether the service answered 200.
func (c *RenderClient) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q := url.Values{}
	q.Set("api_key", c.cfg.APIKey)
	q.Set("url", c.cfg.ProbeURL)

	_, status, err := c.get(c.cfg.Endpoint+"?"+q.Encode(), c.cfg.ProbeTimeout())
	if err != nil {
		return fmt.Errorf("render probe: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("render probe: HTTP %d", status)
	}
	return nil
}
