package reveal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing_spider/internal/logger"
	"listing_spider/internal/reveal"
)

type fakePage struct {
	content      string
	galleryHTML  string
	present      map[string]bool
	clicked      []string
	scrolledSels []string
	windowScroll int
	scrollErr    error
	clickErr     error
	htmlCalls    int
	closed       bool
}

func (p *fakePage) SetContent(_ context.Context, html string) error {
	p.content = html
	return nil
}

func (p *fakePage) ScrollWindow(context.Context, int, int) error {
	p.windowScroll++
	return nil
}

func (p *fakePage) ScrollElement(_ context.Context, sel string, _, _ int) error {
	if p.scrollErr != nil {
		return p.scrollErr
	}
	p.scrolledSels = append(p.scrolledSels, sel)
	return nil
}

func (p *fakePage) Has(_ context.Context, sel string) (bool, error) {
	return p.present[sel], nil
}

func (p *fakePage) Click(_ context.Context, sel string) error {
	if p.clickErr != nil {
		return p.clickErr
	}
	p.clicked = append(p.clicked, sel)
	return nil
}

func (p *fakePage) WaitFor(_ context.Context, sel string, _ time.Duration) error {
	if p.present[sel] {
		return nil
	}
	return errors.New("timeout waiting for " + sel)
}

func (p *fakePage) HTML(context.Context) (string, error) {
	p.htmlCalls++
	if p.htmlCalls > 1 && p.galleryHTML != "" {
		return p.galleryHTML, nil
	}
	return p.content, nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

func fastOptions() reveal.Options {
	opts := reveal.DefaultOptions()
	opts.HeroDelay, opts.CloseDelay, opts.ContainerWait, opts.SettleDelay = 0, 0, 0, 0
	return opts
}

func newRevealer(p *fakePage) *reveal.Revealer {
	return reveal.NewRevealer(func(context.Context) (reveal.Page, error) { return p, nil }, fastOptions(), logger.NewNop())
}

func TestRevealOpensGalleryAndCollectsImages(t *testing.T) {
	p := &fakePage{
		present: map[string]bool{
			`[data-testid="hdp-hero-foreground"]`: true,
			`[data-testid="close-button"]`:        true,
			`[data-testid="grid-gallery"]`:        true,
		},
		galleryHTML: `<html><body>
			<img src="https://www.trulia.com/pictures/thumbs/a.jpg" srcset="https://www.trulia.com/pictures/b.jpg 1x, https://www.trulia.com/pictures/c.jpg 2x">
			<img src="data:image/png;base64,AAAA">
			<img src="/pictures/relative.jpg">
			<img src="https://cdn.example/logo.png">
			<picture><source srcset="https://www.trulia.com/pictures/d.webp 640w"></picture>
			<img src="https://www.trulia.com/pictures/thumbs/a.jpg">
		</body></html>`,
	}

	res, err := newRevealer(p).Reveal(context.Background(), "<html><body>listing</body></html>")
	require.NoError(t, err)

	assert.Equal(t, "<html><body>listing</body></html>", res.HTML)
	assert.Equal(t, []string{
		"https://www.trulia.com/pictures/thumbs/a.jpg",
		"https://www.trulia.com/pictures/b.jpg",
		"https://www.trulia.com/pictures/c.jpg",
		"https://www.trulia.com/pictures/d.webp",
	}, res.Images)
	assert.Equal(t, []string{`[data-testid="hdp-hero-foreground"]`, `[data-testid="close-button"]`}, p.clicked)
	assert.Equal(t, []string{`[data-testid="grid-gallery"]`}, p.scrolledSels)
	assert.True(t, p.closed)
}

func TestRevealDegradesWhenGalleryInteractionFails(t *testing.T) {
	p := &fakePage{
		present: map[string]bool{
			`[data-testid="hdp-hero-foreground"]`: true,
			`.modal-body`:                         true,
		},
		clickErr:  errors.New("node detached"),
		scrollErr: errors.New("element not found"),
	}

	res, err := newRevealer(p).Reveal(context.Background(), "<html><body><h1>House</h1></body></html>")
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "House")
	assert.NotNil(t, res.Images)
	assert.Empty(t, res.Images)
	// the whole-page fallback scroll runs after every container failed
	assert.Equal(t, 2, p.windowScroll)
	assert.True(t, p.closed)
}

func TestRevealOpenFailure(t *testing.T) {
	r := reveal.NewRevealer(func(context.Context) (reveal.Page, error) {
		return nil, errors.New("no chrome")
	}, fastOptions(), logger.NewNop())

	_, err := r.Reveal(context.Background(), "<html></html>")
	assert.Error(t, err)
}
