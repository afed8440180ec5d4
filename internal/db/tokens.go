package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"listing_spider/internal/models"
)

// LoadToken returns the stored token state for account, or nil if none exists.
func (d *MongoDB) LoadToken(ctx context.Context, account string) (*models.TokenState, error) {
	var t models.TokenState
	found, err := findOne(ctx, d.tokens, bson.M{"_id": account}, &t)
	if err != nil || !found {
		return nil, err
	}
	return &t, nil
}

// SaveToken replaces the stored token state in place.
func (d *MongoDB) SaveToken(ctx context.Context, t *models.TokenState) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := d.tokens.ReplaceOne(ctx, bson.M{"_id": t.Account}, t, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}
