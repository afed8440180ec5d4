// Package reveal forces lazy page content to materialise in a headless
// browser before extraction: progressive scrolling and the photo gallery.
package reveal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"listing_spider/internal/browser"
	"listing_spider/internal/logger"
)

// Page is the browser surface the revealer drives.
type Page interface {
	SetContent(ctx context.Context, html string) error
	ScrollWindow(ctx context.Context, step, maxSteps int) error
	ScrollElement(ctx context.Context, selector string, step, maxSteps int) error
	Has(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

type OpenFunc func(ctx context.Context) (Page, error)

const (
	heroSelector  = `[data-testid="hdp-hero-foreground"]`
	closeSelector = `[data-testid="close-button"]`
)

// GalleryContainers are tried in order; the first present one is scrolled.
var GalleryContainers = []string{
	`div.h_100\% .ov-y_auto.pos_relative`,
	`.ov-y_auto`,
	`.pos_relative`,
	`[data-testid="grid-gallery"]`,
	`.gallery-container`,
	`.modal-body`,
	`.scroll-container`,
}

type Options struct {
	// MediaMarker is the path fragment every kept image URL must contain.
	MediaMarker   string
	HeroDelay     time.Duration
	CloseDelay    time.Duration
	ContainerWait time.Duration
	SettleDelay   time.Duration
}

func DefaultOptions() Options {
	return Options{
		MediaMarker:   "pictures",
		HeroDelay:     3 * time.Second,
		CloseDelay:    2 * time.Second,
		ContainerWait: 3 * time.Second,
		SettleDelay:   3 * time.Second,
	}
}

// Result holds the scrolled document and the gallery image URLs.
type Result struct {
	HTML   string
	Images []string
}

type Revealer struct {
	open OpenFunc
	opts Options
	log  logger.Logger
}

func NewRevealer(open OpenFunc, opts Options, log logger.Logger) *Revealer {
	return &Revealer{open: open, opts: opts, log: log}
}

// Reveal loads html into a fresh page and returns the scrolled document with
// the gallery images. Only failing to open or load the page is an error;
// every later interaction failure is logged and yields partial results.
func (r *Revealer) Reveal(ctx context.Context, html string) (*Result, error) {
	page, err := r.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("reveal: open page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			r.log.Warn("reveal: close page", logger.Error(cerr))
		}
	}()

	if err := page.SetContent(ctx, html); err != nil {
		return nil, fmt.Errorf("reveal: load document: %w", err)
	}

	if err := page.ScrollWindow(ctx, 200, 50); err != nil {
		r.interactionFailed("scroll page", "", err)
	}

	res := &Result{HTML: html}
	if scrolled, err := page.HTML(ctx); err != nil {
		r.interactionFailed("serialise", "", err)
	} else {
		res.HTML = scrolled
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.openGallery(ctx, page)

	galleryHTML := res.HTML
	if err := browser.Sleep(ctx, r.opts.SettleDelay); err != nil {
		return nil, err
	}
	if h, err := page.HTML(ctx); err != nil {
		r.interactionFailed("serialise gallery", "", err)
	} else {
		galleryHTML = h
	}

	res.Images = CollectImages(galleryHTML, r.opts.MediaMarker)
	r.log.Debug("reveal: done", logger.Int("images", len(res.Images)), logger.Int("bytes", len(res.HTML)))
	return res, nil
}

func (r *Revealer) openGallery(ctx context.Context, page Page) {
	if r.clickIfPresent(ctx, page, heroSelector) {
		_ = browser.Sleep(ctx, r.opts.HeroDelay)
	}
	if r.clickIfPresent(ctx, page, closeSelector) {
		_ = browser.Sleep(ctx, r.opts.CloseDelay)
	}

	for _, sel := range GalleryContainers {
		if err := page.WaitFor(ctx, sel, r.opts.ContainerWait); err != nil {
			continue
		}
		if err := page.ScrollElement(ctx, sel, 300, 20); err != nil {
			r.interactionFailed("scroll gallery", sel, err)
			continue
		}
		r.log.Debug("reveal: scrolled gallery", logger.String("selector", sel))
		return
	}

	r.log.Debug("reveal: no gallery container, scrolling page")
	if err := page.ScrollWindow(ctx, 300, 10); err != nil {
		r.interactionFailed("scroll page", "", err)
	}
}

func (r *Revealer) clickIfPresent(ctx context.Context, page Page, selector string) bool {
	has, err := page.Has(ctx, selector)
	if err != nil {
		r.interactionFailed("query", selector, err)
		return false
	}
	if !has {
		return false
	}
	if err := page.Click(ctx, selector); err != nil {
		r.interactionFailed("click", selector, err)
		return false
	}
	return true
}

func (r *Revealer) interactionFailed(step, selector string, err error) {
	r.log.Warn("reveal: interaction failed",
		logger.String("step", step),
		logger.String("selector", selector),
		logger.Error(err),
	)
}

// CollectImages returns the de-duplicated image URLs referenced by img src,
// img srcset and source srcset, keeping absolute non-data URLs whose text
// contains marker.
func CollectImages(html, marker string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return []string{}
	}

	seen := make(map[string]bool)
	images := []string{}
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] || !keepImage(u, marker) {
			return
		}
		seen[u] = true
		images = append(images, u)
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src)
		}
		if set, ok := s.Attr("srcset"); ok {
			for _, u := range parseSrcset(set) {
				add(u)
			}
		}
	})
	doc.Find("source").Each(func(_ int, s *goquery.Selection) {
		if set, ok := s.Attr("srcset"); ok {
			for _, u := range parseSrcset(set) {
				add(u)
			}
		}
	})
	return images
}

func parseSrcset(set string) []string {
	var out []string
	for _, part := range strings.Split(set, ",") {
		fields := strings.Fields(part)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

func keepImage(u, marker string) bool {
	if strings.HasPrefix(u, "data:") {
		return false
	}
	parsed, err := url.Parse(u)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return marker == "" || strings.Contains(u, marker)
}
