package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"listing_spider/internal/models"
)

// InsertDiscoveredURL records u unless the same source/page/listing triple
// already exists. An existing record is left untouched; inserted reports
// whether a new document was written.
func (d *MongoDB) InsertDiscoveredURL(ctx context.Context, u models.DiscoveredURL) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{
		"sourceUrl":  u.SourceURL,
		"scrapedUrl": u.ScrapedURL,
		"listingUrl": u.ListingURL,
	}
	update := bson.M{"$setOnInsert": bson.M{
		"sourceUrl":  u.SourceURL,
		"scrapedUrl": u.ScrapedURL,
		"listingUrl": u.ListingURL,
		"isScraped":  false,
		"priority":   u.Priority,
		"createdAt":  now,
		"updatedAt":  now,
	}}

	res, err := d.discoveredURLs.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert discovered url: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

// PendingDiscoveredURLs returns unprocessed records, highest priority first,
// oldest first within a priority.
func (d *MongoDB) PendingDiscoveredURLs(ctx context.Context, limit int) ([]models.DiscoveredURL, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := d.discoveredURLs.Find(ctx, bson.M{"isScraped": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("find pending discovered urls: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.DiscoveredURL
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkListingProcessed flags every record pointing at listingURL as processed.
func (d *MongoDB) MarkListingProcessed(ctx context.Context, listingURL string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := d.discoveredURLs.UpdateMany(ctx,
		bson.M{"listingUrl": listingURL},
		bson.M{"$set": bson.M{"isScraped": true, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mark listing processed: %w", err)
	}
	return nil
}
