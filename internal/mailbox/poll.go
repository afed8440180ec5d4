// Package mailbox discovers listing URLs from notification emails: OAuth
// token upkeep, message listing, HTML body decoding and link picking.
package mailbox

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"listing_spider/internal/config"
	"listing_spider/internal/logger"
	"listing_spider/internal/models"
)

type CandidateStore interface {
	FindMailCandidate(ctx context.Context, messageID string) (*models.MailCandidate, error)
	UpsertMailCandidate(ctx context.Context, messageID, url string) error
}

type TokenProvider interface {
	EnsureValid(ctx context.Context) (*oauth2.Token, error)
}

// Candidate is a listing URL waiting to go through the pipeline.
type Candidate struct {
	MessageID string
	URL       string
}

type Poller struct {
	cfg       config.MailboxConfig
	tokens    TokenProvider
	newSource SourceFunc
	store     CandidateStore
	log       logger.Logger
}

func NewPoller(cfg config.MailboxConfig, tokens TokenProvider, newSource SourceFunc, store CandidateStore, log logger.Logger) *Poller {
	return &Poller{cfg: cfg, tokens: tokens, newSource: newSource, store: store, log: log}
}

// Window returns the default search window around now: LookbackDays before
// today to LookaheadDays after it.
func (p *Poller) Window(now time.Time) (time.Time, time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return day.AddDate(0, 0, -p.cfg.LookbackDays), day.AddDate(0, 0, p.cfg.LookaheadDays)
}

// PollInbox lists matching messages in [start, end) and returns one candidate
// per message that carries a listing link. Messages already processed are
// skipped; messages already recorded reuse their stored URL. A failing
// message is logged and skipped; token failures abort the poll.
func (p *Poller) PollInbox(ctx context.Context, start, end time.Time) ([]Candidate, error) {
	tok, err := p.tokens.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}

	src, err := p.newSource(ctx, tok)
	if err != nil {
		return nil, err
	}

	q := Query{
		Senders:    p.cfg.Senders,
		After:      start,
		Before:     end,
		OnlyUnread: p.cfg.OnlyUnread(),
		MaxResults: p.cfg.MaxResults,
	}
	ids, err := src.ListMessageIDs(ctx, q)
	if err != nil {
		return nil, err
	}
	p.log.Info("mailbox: messages listed",
		logger.Int("count", len(ids)),
		logger.Int64("max_results", q.MaxResults),
		logger.String("query", q.String()))

	var out []Candidate
	for _, id := range ids {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		c, ok, err := p.candidate(ctx, src, id)
		if err != nil {
			p.log.Warn("mailbox: message skipped", logger.String("message_id", id), logger.Error(err))
			continue
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (p *Poller) candidate(ctx context.Context, src MessageSource, id string) (Candidate, bool, error) {
	existing, err := p.store.FindMailCandidate(ctx, id)
	if err != nil {
		return Candidate{}, false, fmt.Errorf("lookup: %w", err)
	}
	if existing != nil && existing.IsProcessed {
		return Candidate{}, false, nil
	}
	if existing != nil && existing.URL != "" {
		return Candidate{MessageID: id, URL: existing.URL}, true, nil
	}

	msg, err := src.GetMessage(ctx, id)
	if err != nil {
		return Candidate{}, false, err
	}
	link, ok := PickListingLink(msg.HTML, p.cfg.PartnerDomains)
	if !ok {
		p.log.Debug("mailbox: no listing link", logger.String("message_id", id), logger.String("subject", msg.Subject))
		return Candidate{}, false, nil
	}

	if err := p.store.UpsertMailCandidate(ctx, id, link); err != nil {
		return Candidate{}, false, fmt.Errorf("record candidate: %w", err)
	}
	return Candidate{MessageID: id, URL: link}, true, nil
}
