package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"listing_spider/internal/config"
	"listing_spider/internal/logger"
)

const (
	connectTimeout = 10 * time.Second
	writeTimeout   = 5 * time.Second
	readTimeout    = 30 * time.Second
)

// MongoDB is the document store behind every pipeline entity. Each write is a
// single atomic document operation; nothing is wrapped in a transaction.
type MongoDB struct {
	client         *mongo.Client
	database       *mongo.Database
	discoveredURLs *mongo.Collection
	mailCandidates *mongo.Collection
	agents         *mongo.Collection
	listings       *mongo.Collection
	tokens         *mongo.Collection
	log            logger.Logger
}

func NewMongoDB(cfg config.DBConfig, log logger.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)

	d := &MongoDB{
		client:         client,
		database:       db,
		discoveredURLs: db.Collection(cfg.Collections.DiscoveredURLs),
		mailCandidates: db.Collection(cfg.Collections.MailCandidates),
		agents:         db.Collection(cfg.Collections.Agents),
		listings:       db.Collection(cfg.Collections.Listings),
		tokens:         db.Collection(cfg.Collections.Tokens),
		log:            log,
	}

	if err := d.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't create indices: %w", err)
	}

	return d, nil
}

func (d *MongoDB) createIndexes(ctx context.Context) error {
	specs := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{d.discoveredURLs, mongo.IndexModel{
			Keys:    bson.D{{Key: "sourceUrl", Value: 1}, {Key: "scrapedUrl", Value: 1}, {Key: "listingUrl", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{d.discoveredURLs, mongo.IndexModel{
			Keys: bson.D{{Key: "isScraped", Value: 1}, {Key: "priority", Value: -1}, {Key: "createdAt", Value: 1}},
		}},
		{d.discoveredURLs, mongo.IndexModel{
			Keys: bson.D{{Key: "listingUrl", Value: 1}},
		}},
		{d.mailCandidates, mongo.IndexModel{
			Keys:    bson.D{{Key: "messageId", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{d.agents, mongo.IndexModel{
			Keys: bson.D{{Key: "phoneNumber", Value: 1}},
		}},
		{d.listings, mongo.IndexModel{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		}},
	}

	for _, s := range specs {
		if _, err := s.coll.Indexes().CreateOne(ctx, s.model); err != nil {
			return fmt.Errorf("index on %s: %w", s.coll.Name(), err)
		}
	}
	return nil
}

// Ping checks that the primary is reachable.
func (d *MongoDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return d.client.Ping(ctx, nil)
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// findOne decodes the first match into out; a miss reports false with no error.
func findOne(ctx context.Context, coll *mongo.Collection, filter any, out any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err := coll.FindOne(ctx, filter).Decode(out)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
