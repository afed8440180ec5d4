package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"listing_spider/internal/logger"
)

// Robots answers robots.txt questions per host, fetching each file once.
// A robots.txt that cannot be fetched or parsed allows everything.
type Robots struct {
	client *http.Client
	agent  string
	log    logger.Logger

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

func NewRobots(agent string, timeout time.Duration, log logger.Logger) *Robots {
	return &Robots{
		client: &http.Client{Timeout: timeout},
		agent:  agent,
		log:    log,
		groups: make(map[string]*robotstxt.Group),
	}
}

func (r *Robots) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	group := r.group(ctx, u)
	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

func (r *Robots) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	key := u.Scheme + "://" + u.Host

	r.mu.Lock()
	g, ok := r.groups[key]
	r.mu.Unlock()
	if ok {
		return g
	}

	g, err := r.load(ctx, key+"/robots.txt")
	if err != nil {
		r.log.Warn("robots.txt unavailable, allowing host", logger.String("host", u.Host), logger.Error(err))
	}

	r.mu.Lock()
	r.groups[key] = g
	r.mu.Unlock()
	return g
}

func (r *Robots) load(ctx context.Context, robotsURL string) (*robotstxt.Group, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.agent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data.FindGroup(r.agent), nil
}
