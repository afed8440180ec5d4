package pipeline

import (
	"context"
	"errors"
	"time"

	"listing_spider/internal/browser"
	"listing_spider/internal/config"
	"listing_spider/internal/logger"
	"listing_spider/internal/mailbox"
	"listing_spider/internal/models"
)

type WorkStore interface {
	PendingDiscoveredURLs(ctx context.Context, limit int) ([]models.DiscoveredURL, error)
	MarkListingProcessed(ctx context.Context, listingURL string) error
	PendingMailCandidates(ctx context.Context, limit int) ([]models.MailCandidate, error)
	MarkMailCandidateProcessed(ctx context.Context, messageID string) error
}

type ItemProcessor interface {
	Process(ctx context.Context, target string) (*models.Listing, error)
}

type InboxPoller interface {
	Window(now time.Time) (time.Time, time.Time)
	PollInbox(ctx context.Context, start, end time.Time) ([]mailbox.Candidate, error)
}

// Stats summarises one drain run.
type Stats struct {
	Pending   int
	Processed int
	Failed    int
}

// Drainer feeds pending work items to the processor one at a time. A failed
// item is logged and left unprocessed for the next run.
type Drainer struct {
	cfg   config.PipelineConfig
	store WorkStore
	proc  ItemProcessor
	log   logger.Logger
}

func NewDrainer(cfg config.PipelineConfig, store WorkStore, proc ItemProcessor, log logger.Logger) *Drainer {
	return &Drainer{cfg: cfg, store: store, proc: proc, log: log}
}

// DrainDiscovered processes pending search-result links. Records sharing a
// listing URL are processed once and marked together.
func (d *Drainer) DrainDiscovered(ctx context.Context) (Stats, error) {
	items, err := d.store.PendingDiscoveredURLs(ctx, d.cfg.DrainLimit)
	if err != nil {
		return Stats{}, err
	}

	seen := make(map[string]struct{}, len(items))
	var work []workItem
	for _, it := range items {
		if _, ok := seen[it.ListingURL]; ok {
			continue
		}
		seen[it.ListingURL] = struct{}{}
		work = append(work, workItem{key: it.ListingURL, url: it.ListingURL})
	}

	d.log.Info("pipeline: draining discovered urls", logger.Int("pending", len(work)))
	return d.drain(ctx, work, d.store.MarkListingProcessed)
}

// DrainMail polls the inbox when poller is set, then processes every mail
// candidate that is still unprocessed, including those left by earlier runs.
// A token failure aborts before any item is touched.
func (d *Drainer) DrainMail(ctx context.Context, poller InboxPoller) (Stats, error) {
	if poller != nil {
		start, end := poller.Window(time.Now())
		found, err := poller.PollInbox(ctx, start, end)
		if err != nil {
			if errors.Is(err, mailbox.ErrReauthRequired) {
				d.log.Error("pipeline: mailbox needs re-authorisation", logger.Error(err))
			}
			return Stats{}, err
		}
		d.log.Info("pipeline: inbox polled", logger.Int("candidates", len(found)))
	}

	items, err := d.store.PendingMailCandidates(ctx, d.cfg.DrainLimit)
	if err != nil {
		return Stats{}, err
	}

	work := make([]workItem, 0, len(items))
	for _, it := range items {
		work = append(work, workItem{key: it.MessageID, url: it.URL})
	}

	d.log.Info("pipeline: draining mail candidates", logger.Int("pending", len(work)))
	return d.drain(ctx, work, d.store.MarkMailCandidateProcessed)
}

// workItem is a listing URL and the store key marked once it is persisted.
type workItem struct {
	key string
	url string
}

func (d *Drainer) drain(ctx context.Context, work []workItem, mark func(context.Context, string) error) (Stats, error) {
	log := logger.FromContext(ctx, d.log)
	st := Stats{Pending: len(work)}
	for i, w := range work {
		if i > 0 {
			if err := browser.Sleep(ctx, d.cfg.ItemDelay()); err != nil {
				return st, err
			}
		}

		key, u := w.key, w.url
		start := time.Now()
		listing, err := d.proc.Process(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return st, ctx.Err()
			}
			st.Failed++
			log.Warn("pipeline: item failed",
				logger.String("key", key),
				logger.String("url", u),
				logger.Error(err))
			continue
		}

		if err := mark(ctx, key); err != nil {
			st.Failed++
			log.Error("pipeline: listing saved but item not marked",
				logger.String("key", key),
				logger.String("listing_id", listing.ID.Hex()),
				logger.Error(err))
			continue
		}
		st.Processed++
		log.Info("pipeline: item processed",
			logger.String("key", key),
			logger.String("listing_id", listing.ID.Hex()),
			logger.Duration("took", time.Since(start)))
	}
	return st, nil
}
