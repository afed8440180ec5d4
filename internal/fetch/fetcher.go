package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"listing_spider/internal/logger"
)

// Remote is the primary fetch strategy together with its connectivity probe.
type Remote interface {
	FetchHTML(ctx context.Context, target string) (string, error)
	Probe(ctx context.Context) error
}

// Strategy is any single way of fetching a page.
type Strategy interface {
	FetchHTML(ctx context.Context, target string) (string, error)
}

// Fetcher combines the remote renderer with the local fallback. Preflight
// decides which one a run starts with; a remote failure falls through to
// the local browser.
type Fetcher struct {
	remote Remote
	local  Strategy
	log    logger.Logger

	mu       sync.Mutex
	remoteUp bool
	probed   bool
}

func NewFetcher(remote Remote, local Strategy, log logger.Logger) *Fetcher {
	return &Fetcher{remote: remote, local: local, log: log}
}

// Preflight probes the remote service and remembers the result until the
// next Preflight call.
func (f *Fetcher) Preflight(ctx context.Context) bool {
	up := false
	if f.remote != nil {
		err := f.remote.Probe(ctx)
		if err != nil {
			f.log.Warn("fetch: render service probe failed, using local browser", logger.Error(err))
		}
		up = err == nil
	}

	f.mu.Lock()
	f.remoteUp, f.probed = up, true
	f.mu.Unlock()
	return up
}

func (f *Fetcher) RemoteUp(ctx context.Context) bool {
	f.mu.Lock()
	probed, up := f.probed, f.remoteUp
	f.mu.Unlock()
	if !probed {
		return f.Preflight(ctx)
	}
	return up
}

func (f *Fetcher) FetchRemote(ctx context.Context, target string) (string, error) {
	if f.remote == nil {
		return "", ErrRenderServiceUnavailable
	}
	return f.remote.FetchHTML(ctx, target)
}

func (f *Fetcher) FetchLocal(ctx context.Context, target string) (string, error) {
	if f.local == nil {
		return "", ErrBrowserUnavailable
	}
	return f.local.FetchHTML(ctx, target)
}

// FetchHTML uses the remote renderer when the last probe passed and falls
// back to the local browser when it is down or gives up.
func (f *Fetcher) FetchHTML(ctx context.Context, target string) (string, error) {
	var remoteErr error
	if f.RemoteUp(ctx) {
		html, err := f.FetchRemote(ctx, target)
		if err == nil {
			return html, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		remoteErr = err
		f.log.Warn("fetch: remote render failed, falling back to local browser",
			logger.String("url", target), logger.Error(err))
	}

	html, err := f.FetchLocal(ctx, target)
	if err != nil {
		if remoteErr != nil {
			return "", fmt.Errorf("fetch %s: %w", target, errors.Join(remoteErr, err))
		}
		return "", fmt.Errorf("fetch %s: %w", target, err)
	}
	return html, nil
}
