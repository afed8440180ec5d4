// Package pipeline runs work items through fetch, reveal, extract and
// persist, and resolves scraped agent contacts to stored agents.
package pipeline

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"listing_spider/internal/logger"
	"listing_spider/internal/models"
)

type ListingStore interface {
	FindAgentByPhone(ctx context.Context, phone string) (*models.Agent, error)
	InsertAgent(ctx context.Context, a *models.Agent) (primitive.ObjectID, error)
	UpdateAgentProfile(ctx context.Context, id primitive.ObjectID, fullName, brokerage, image string) error
	InsertListing(ctx context.Context, l *models.Listing) (primitive.ObjectID, error)
}

// PersistenceError wraps a failed store write. The work item stays
// unprocessed and is picked up again by the next run.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Resolver matches the primary agent contact of a record to a stored agent
// by phone number and writes the listing.
type Resolver struct {
	store ListingStore
	log   logger.Logger
}

func NewResolver(store ListingStore, log logger.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// Persist stores rec as a new listing. Listings are never deduplicated here.
func (r *Resolver) Persist(ctx context.Context, rec *models.ListingRecord, sourceURL string) (*models.Listing, error) {
	listing := toListing(rec, sourceURL)

	if contact, ok := rec.PrimaryAgent(); ok {
		id, err := r.resolveAgent(ctx, contact)
		if err != nil {
			return nil, err
		}
		listing.AgentID = &id
	}

	if _, err := r.store.InsertListing(ctx, listing); err != nil {
		return nil, &PersistenceError{Op: "insert listing", Err: err}
	}
	r.log.Info("pipeline: listing saved",
		logger.String("listing_id", listing.ID.Hex()),
		logger.String("url", sourceURL),
		logger.Bool("has_agent", listing.AgentID != nil))
	return listing, nil
}

// resolveAgent refreshes name, brokerage and image of the agent holding the
// same phone number, keeping stored values the page left empty. Contacts
// without a phone always become a new agent.
func (r *Resolver) resolveAgent(ctx context.Context, c models.AgentContact) (primitive.ObjectID, error) {
	if c.Phone != "" {
		existing, err := r.store.FindAgentByPhone(ctx, c.Phone)
		if err != nil {
			return primitive.NilObjectID, &PersistenceError{Op: "find agent", Err: err}
		}
		if existing != nil {
			name := firstNonEmpty(c.Name, existing.FullName)
			brokerage := firstNonEmpty(c.Brokerage, existing.Brokerage)
			image := firstNonEmpty(c.Image, existing.Image)
			if err := r.store.UpdateAgentProfile(ctx, existing.ID, name, brokerage, image); err != nil {
				return primitive.NilObjectID, &PersistenceError{Op: "update agent", Err: err}
			}
			r.log.Debug("pipeline: agent updated", logger.String("agent_id", existing.ID.Hex()))
			return existing.ID, nil
		}
	}

	agent := &models.Agent{
		FullName:    c.Name,
		PhoneNumber: c.Phone,
		Brokerage:   c.Brokerage,
		Image:       c.Image,
	}
	id, err := r.store.InsertAgent(ctx, agent)
	if err != nil {
		return primitive.NilObjectID, &PersistenceError{Op: "insert agent", Err: err}
	}
	r.log.Info("pipeline: agent created", logger.String("agent_id", id.Hex()), logger.String("phone", c.Phone))
	return id, nil
}

func toListing(rec *models.ListingRecord, sourceURL string) *models.Listing {
	images := rec.Images
	if images == nil {
		images = []string{}
	}
	return &models.Listing{
		Title:                rec.Title,
		Price:                rec.Price,
		Address:              rec.Address,
		Beds:                 rec.Beds,
		Baths:                rec.Baths,
		Floor:                rec.Floor,
		Description:          rec.Description,
		HomeHighlights:       rec.HomeHighlights,
		Features:             rec.Features,
		CommunityDescription: rec.CommunityDescription,
		OfficeDetails:        rec.OfficeDetails,
		Images:               images,
		SourceURL:            sourceURL,
	}
}

func firstNonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
