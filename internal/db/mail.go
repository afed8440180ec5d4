package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"listing_spider/internal/models"
)

func (d *MongoDB) FindMailCandidate(ctx context.Context, messageID string) (*models.MailCandidate, error) {
	var c models.MailCandidate
	found, err := findOne(ctx, d.mailCandidates, bson.M{"messageId": messageID}, &c)
	if err != nil || !found {
		return nil, err
	}
	return &c, nil
}

// UpsertMailCandidate records the URL found in a message. The processed flag
// of an existing record is never reset.
func (d *MongoDB) UpsertMailCandidate(ctx context.Context, messageID, url string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{"url": url, "updatedAt": now},
		"$setOnInsert": bson.M{
			"isScraped": false,
			"createdAt": now,
		},
	}
	_, err := d.mailCandidates.UpdateOne(ctx, bson.M{"messageId": messageID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert mail candidate: %w", err)
	}
	return nil
}

func (d *MongoDB) MarkMailCandidateProcessed(ctx context.Context, messageID string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := d.mailCandidates.UpdateOne(ctx,
		bson.M{"messageId": messageID},
		bson.M{"$set": bson.M{"isScraped": true, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mark mail candidate processed: %w", err)
	}
	return nil
}

func (d *MongoDB) PendingMailCandidates(ctx context.Context, limit int) ([]models.MailCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(int64(limit))
	cursor, err := d.mailCandidates.Find(ctx, bson.M{"isScraped": false, "url": bson.M{"$ne": ""}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find pending mail candidates: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.MailCandidate
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
