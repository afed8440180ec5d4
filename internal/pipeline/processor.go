package pipeline

import (
	"context"
	"errors"
	"fmt"

	"listing_spider/internal/config"
	"listing_spider/internal/extract"
	"listing_spider/internal/fetch"
	"listing_spider/internal/logger"
	"listing_spider/internal/models"
	"listing_spider/internal/reveal"
)

type Fetcher interface {
	FetchHTML(ctx context.Context, target string) (string, error)
}

type Revealer interface {
	Reveal(ctx context.Context, html string) (*reveal.Result, error)
}

type Persister interface {
	Persist(ctx context.Context, rec *models.ListingRecord, sourceURL string) (*models.Listing, error)
}

// Processor runs one listing URL through fetch, reveal, extract and persist.
// Each item gets its own workspace, removed when the item is done.
type Processor struct {
	cfg      config.PipelineConfig
	scratch  string
	fetcher  Fetcher
	revealer Revealer
	persist  Persister
	log      logger.Logger
}

// NewProcessor builds a Processor keeping workspaces under scratch. A nil
// revealer extracts straight from the fetched HTML.
func NewProcessor(cfg config.PipelineConfig, scratch string, fetcher Fetcher, revealer Revealer, persist Persister, log logger.Logger) *Processor {
	return &Processor{cfg: cfg, scratch: scratch, fetcher: fetcher, revealer: revealer, persist: persist, log: log}
}

func (p *Processor) Process(ctx context.Context, target string) (listing *models.Listing, err error) {
	log := p.log.With(logger.String("url", target))

	ws, err := fetch.NewWorkspace(p.scratch, p.cfg.KeepFailedSnapshots, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := ws.Close(err != nil); cerr != nil {
			log.Warn("pipeline: workspace cleanup", logger.Error(cerr))
		}
	}()

	raw, err := p.fetcher.FetchHTML(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if err := ws.WriteRaw(raw); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	rendered, images := raw, []string{}
	if p.revealer != nil {
		res, rerr := p.revealer.Reveal(ctx, raw)
		switch {
		case rerr == nil:
			rendered, images = res.HTML, res.Images
		case errors.Is(rerr, context.Canceled) || errors.Is(rerr, context.DeadlineExceeded):
			return nil, rerr
		default:
			log.Warn("pipeline: reveal failed, extracting fetched html", logger.Error(rerr))
		}
	}
	if err := ws.WriteRendered(rendered); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	rec, err := extract.Extract(rendered, target)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	rec.Images = images

	return p.persist.Persist(ctx, rec, target)
}
