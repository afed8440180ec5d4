package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const (
	scrollInterval = 200 * time.Millisecond
	clickTimeout   = 5 * time.Second
)

// Page is a single browser tab bound to its own incognito context.
type Page struct {
	page       *rod.Page
	context    *rod.Browser
	navTimeout time.Duration
	settle     time.Duration
}

const windowScrollJS = `(step, maxSteps, interval) => new Promise((resolve) => {
	let total = 0;
	let n = 0;
	const timer = setInterval(() => {
		const prev = window.scrollY;
		window.scrollBy(0, step);
		total += step;
		n++;
		if (total >= document.body.scrollHeight || window.scrollY === prev || n >= maxSteps) {
			clearInterval(timer);
			setTimeout(resolve, 1000);
		}
	}, interval);
})`

const elementScrollJS = `(selector, step, maxSteps, interval) => new Promise((resolve) => {
	const el = document.querySelector(selector);
	if (!el) {
		resolve(false);
		return;
	}
	let n = 0;
	const timer = setInterval(() => {
		const prev = el.scrollTop;
		el.scrollBy(0, step);
		n++;
		if (el.scrollHeight - el.scrollTop <= el.clientHeight + 50 || el.scrollTop === prev || n >= maxSteps) {
			clearInterval(timer);
			setTimeout(() => resolve(true), 1000);
		}
	}, interval);
})`

// Navigate loads u and waits for the load event plus the settle period.
func (p *Page) Navigate(ctx context.Context, u string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	pg := p.page.Context(navCtx)
	if err := pg.Navigate(u); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", u, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load %s: %w", u, err)
	}
	return Sleep(ctx, p.settle)
}

// SetContent replaces the document with html.
func (p *Page) SetContent(ctx context.Context, html string) error {
	if err := p.page.Context(ctx).SetDocumentContent(html); err != nil {
		return fmt.Errorf("browser: set content: %w", err)
	}
	return nil
}

func (p *Page) ScrollWindow(ctx context.Context, step, maxSteps int) error {
	_, err := p.page.Context(ctx).Eval(windowScrollJS, step, maxSteps, scrollInterval.Milliseconds())
	if err != nil {
		return fmt.Errorf("browser: scroll window: %w", err)
	}
	return nil
}

func (p *Page) ScrollElement(ctx context.Context, selector string, step, maxSteps int) error {
	res, err := p.page.Context(ctx).Eval(elementScrollJS, selector, step, maxSteps, scrollInterval.Milliseconds())
	if err != nil {
		return fmt.Errorf("browser: scroll %s: %w", selector, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("browser: scroll %s: element not found", selector)
	}
	return nil
}

func (p *Page) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	return has, err
}

func (p *Page) Click(ctx context.Context, selector string) error {
	cctx, cancel := context.WithTimeout(ctx, clickTimeout)
	defer cancel()

	el, err := p.page.Context(cctx).Element(selector)
	if err != nil {
		return fmt.Errorf("browser: find %s: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %s: %w", selector, err)
	}
	return nil
}

// WaitFor blocks until selector matches or timeout elapses.
func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := p.page.Context(wctx).Element(selector); err != nil {
		return fmt.Errorf("browser: wait for %s: %w", selector, err)
	}
	return nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: serialise: %w", err)
	}
	return html, nil
}

// Close closes the tab and disposes its incognito context.
func (p *Page) Close() error {
	err := p.page.Close()
	if cerr := p.context.Close(); err == nil {
		err = cerr
	}
	return err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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
