package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"listing_spider/internal/models"
)

func (d *MongoDB) FindAgentByPhone(ctx context.Context, phone string) (*models.Agent, error) {
	var a models.Agent
	found, err := findOne(ctx, d.agents, bson.M{"phoneNumber": phone}, &a)
	if err != nil || !found {
		return nil, err
	}
	return &a, nil
}

func (d *MongoDB) InsertAgent(ctx context.Context, a *models.Agent) (primitive.ObjectID, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	res, err := d.agents.InsertOne(ctx, a)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("insert agent: %w", err)
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	a.ID = id
	return id, nil
}

// UpdateAgentProfile overwrites the scraped profile fields and nothing else.
func (d *MongoDB) UpdateAgentProfile(ctx context.Context, id primitive.ObjectID, fullName, brokerage, image string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := d.agents.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"fullName":  fullName,
		"brokerage": brokerage,
		"image":     image,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("update agent %s: %w", id.Hex(), err)
	}
	return nil
}

func (d *MongoDB) InsertListing(ctx context.Context, l *models.Listing) (primitive.ObjectID, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now

	res, err := d.listings.InsertOne(ctx, l)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("insert listing: %w", err)
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	l.ID = id
	return id, nil
}

func (d *MongoDB) FindListingByID(ctx context.Context, id primitive.ObjectID) (*models.Listing, error) {
	var l models.Listing
	found, err := findOne(ctx, d.listings, bson.M{"_id": id}, &l)
	if err != nil || !found {
		return nil, err
	}
	return &l, nil
}
