package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"listing_spider/internal/browser"
	"listing_spider/internal/config"
	"listing_spider/internal/db"
	"listing_spider/internal/fetch"
	"listing_spider/internal/logger"
	"listing_spider/internal/mailbox"
	"listing_spider/internal/pipeline"
	"listing_spider/internal/reveal"
	"listing_spider/internal/scheduler"
	"listing_spider/internal/search"
)

const (
	JobSearchCrawl = "search-crawl"
	JobSearchDrain = "search-drain"
	JobMailboxPoll = "mailbox-poll"

	shutdownTimeout = 2 * time.Minute
)

var ErrMailboxDisabled = errors.New("mailbox adapter is disabled in config")

// ListingApp wires the discovery adapters, the processing pipeline and the
// scheduler around one document store and one browser.
type ListingApp struct {
	cfg *config.Config
	log logger.Logger

	db      *db.MongoDB
	browser *browser.Manager
	fetcher *fetch.Fetcher
	search  *search.Adapter
	drainer *pipeline.Drainer

	tokens *mailbox.TokenManager
	poller *mailbox.Poller

	scheduler *scheduler.Scheduler
}

func NewListingApp(cfg *config.Config, log logger.Logger) (*ListingApp, error) {
	store, err := db.NewMongoDB(cfg.DB, log)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("timezone %q: %w", cfg.App.Timezone, err)
	}

	mgr := browser.NewManager(cfg.Browser, log)
	fetcher := fetch.NewFetcher(
		fetch.NewRenderClient(cfg.Render, log),
		fetch.NewLocalFetcher(navigatorOpener(mgr), log),
		log,
	)

	var searchOpts []search.Option
	if cfg.Search.RespectRobots {
		searchOpts = append(searchOpts, search.WithRobots(search.NewRobots(cfg.Browser.UserAgent, cfg.Render.ProbeTimeout(), log)))
	}

	var revealer pipeline.Revealer
	if cfg.Pipeline.RevealEnabled {
		revealer = reveal.NewRevealer(pageOpener(mgr), reveal.DefaultOptions(), log)
	}
	proc := pipeline.NewProcessor(cfg.Pipeline, cfg.App.ScratchDir, fetcher, revealer, pipeline.NewResolver(store, log), log)

	a := &ListingApp{
		cfg:       cfg,
		log:       log,
		db:        store,
		browser:   mgr,
		fetcher:   fetcher,
		search:    search.NewAdapter(cfg.Search, fetcher, store, log, searchOpts...),
		drainer:   pipeline.NewDrainer(cfg.Pipeline, store, proc, log),
		scheduler: scheduler.New(loc, log),
	}

	if cfg.Mailbox.Enabled {
		if err := a.initMailbox(); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *ListingApp) initMailbox() error {
	oc, err := mailbox.OAuthConfig(a.cfg.Mailbox)
	if err != nil {
		return err
	}

	var tokenStore mailbox.TokenStore = a.db
	if a.cfg.Mailbox.TokenStore == "file" {
		tokenStore = mailbox.NewFileTokenStore(a.cfg.Mailbox.TokenFile)
	}

	a.tokens = mailbox.NewTokenManager(oc, tokenStore, a.cfg.Mailbox.Account, a.cfg.Mailbox.ExpiryMargin(), a.log)
	a.poller = mailbox.NewPoller(a.cfg.Mailbox, a.tokens, mailbox.GmailSourceFunc(a.cfg.Mailbox.Account), a.db, a.log)
	return nil
}

// Crawl runs one discovery pass over seeds, or the configured seeds when
// none are given.
func (a *ListingApp) Crawl(ctx context.Context, seeds []string) error {
	if len(seeds) == 0 {
		seeds = a.cfg.Search.Seeds
	}
	if len(seeds) == 0 {
		return errors.New("no seeds configured")
	}

	logger.FromContext(ctx, a.log).Debug("app: crawl starting", logger.Strings("seeds", seeds))
	a.fetcher.Preflight(ctx)
	results := a.search.Run(ctx, seeds)

	var links, inserted int
	for _, r := range results {
		links += len(r.Links)
		inserted += r.Inserted
	}
	logger.FromContext(ctx, a.log).Info("app: crawl finished",
		logger.Int("seeds", len(seeds)),
		logger.Int("succeeded", len(results)),
		logger.Int("links", links),
		logger.Int("inserted", inserted))
	return ctx.Err()
}

func (a *ListingApp) crawlConfigured(ctx context.Context) error {
	return a.Crawl(ctx, nil)
}

// Drain processes pending search-result links.
func (a *ListingApp) Drain(ctx context.Context) error {
	a.fetcher.Preflight(ctx)
	st, err := a.drainer.DrainDiscovered(ctx)
	a.logStats(ctx, "app: drain finished", st)
	return err
}

// Poll checks the inbox and processes every pending mail candidate.
func (a *ListingApp) Poll(ctx context.Context) error {
	if a.poller == nil {
		return ErrMailboxDisabled
	}
	a.fetcher.Preflight(ctx)
	st, err := a.drainer.DrainMail(ctx, a.poller)
	a.logStats(ctx, "app: mailbox run finished", st)
	return err
}

func (a *ListingApp) logStats(ctx context.Context, msg string, st pipeline.Stats) {
	logger.FromContext(ctx, a.log).Info(msg,
		logger.Int("pending", st.Pending),
		logger.Int("processed", st.Processed),
		logger.Int("failed", st.Failed))
}

// RegisterJobs adds the periodic jobs; nothing is triggered until Run.
func (a *ListingApp) RegisterJobs() error {
	jobs := []scheduler.Job{
		{Name: JobSearchDrain, Spec: a.cfg.Scheduler.DrainSpec, Run: a.Drain},
	}
	if len(a.cfg.Search.Seeds) > 0 {
		jobs = append(jobs, scheduler.Job{Name: JobSearchCrawl, Spec: a.cfg.Scheduler.CrawlSpec, Run: a.crawlConfigured})
	}
	if a.poller != nil {
		jobs = append(jobs, scheduler.Job{Name: JobMailboxPoll, Spec: a.cfg.Scheduler.PollSpec, Run: a.Poll})
	}

	for _, j := range jobs {
		if err := a.scheduler.Register(j); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the scheduler and the HTTP server and blocks until ctx is done.
func (a *ListingApp) Run(ctx context.Context) error {
	if err := a.RegisterJobs(); err != nil {
		return err
	}

	a.log.Info("app: starting",
		logger.String("name", a.cfg.App.Name),
		logger.String("database", a.cfg.DB.Database),
		logger.String("http_addr", a.cfg.App.HTTPAddr))

	a.fetcher.Preflight(ctx)
	a.scheduler.Start()

	serveErr := a.Serve(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, a.scheduler.Stop(stopCtx))
}

// Serve runs the HTTP server until ctx is done.
func (a *ListingApp) Serve(ctx context.Context) error {
	var mail *mailbox.Handlers
	if a.tokens != nil {
		mail = mailbox.NewHandlers(a.tokens, a.log)
	}

	srv := &http.Server{
		Addr:              a.cfg.App.HTTPAddr,
		Handler:           newRouter(a.db, mail, a.scheduler, a.log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("app: http server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("app: shutting down http server")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func (a *ListingApp) HTTPAddr() string { return a.cfg.App.HTTPAddr }

// HasMailbox reports whether the consent endpoints are served.
func (a *ListingApp) HasMailbox() bool { return a.tokens != nil }

func (a *ListingApp) Close() error {
	return errors.Join(a.browser.Close(), a.db.Close())
}

func navigatorOpener(mgr *browser.Manager) fetch.OpenFunc {
	return func(ctx context.Context) (fetch.Navigator, error) {
		p, err := mgr.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func pageOpener(mgr *browser.Manager) reveal.OpenFunc {
	return func(ctx context.Context) (reveal.Page, error) {
		p, err := mgr.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
