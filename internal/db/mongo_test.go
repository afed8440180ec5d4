package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"listing_spider/internal/config"
	"listing_spider/internal/db"
	"listing_spider/internal/logger"
	"listing_spider/internal/models"
)

func newTestDB(t *testing.T) *db.MongoDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := config.Config{DB: config.DBConfig{Connection: uri, Database: "listings_test"}}
	cfg.SetDefaults()

	store, err := db.NewMongoDB(cfg.DB, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMongoDB(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	t.Run("discovered url insert is idempotent", func(t *testing.T) {
		u := models.DiscoveredURL{
			SourceURL:  "https://www.trulia.com/CA/Fresno/",
			ScrapedURL: "https://www.trulia.com/CA/Fresno/",
			ListingURL: "https://www.trulia.com/home/1-main-st-100",
		}
		inserted, err := store.InsertDiscoveredURL(ctx, u)
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = store.InsertDiscoveredURL(ctx, u)
		require.NoError(t, err)
		assert.False(t, inserted)

		pending, err := store.PendingDiscoveredURLs(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.False(t, pending[0].IsProcessed)
	})

	t.Run("mark processed covers every page the listing was seen on", func(t *testing.T) {
		listing := "https://www.trulia.com/home/2-oak-ave-200"
		for _, page := range []string{"https://www.trulia.com/CA/Fresno/", "https://www.trulia.com/CA/Fresno/2_p/"} {
			_, err := store.InsertDiscoveredURL(ctx, models.DiscoveredURL{
				SourceURL: "https://www.trulia.com/CA/Fresno/", ScrapedURL: page, ListingURL: listing,
			})
			require.NoError(t, err)
		}

		require.NoError(t, store.MarkListingProcessed(ctx, listing))

		pending, err := store.PendingDiscoveredURLs(ctx, 10)
		require.NoError(t, err)
		for _, p := range pending {
			assert.NotEqual(t, listing, p.ListingURL)
		}

		// re-discovery must not resurrect a processed record
		inserted, err := store.InsertDiscoveredURL(ctx, models.DiscoveredURL{
			SourceURL: "https://www.trulia.com/CA/Fresno/", ScrapedURL: "https://www.trulia.com/CA/Fresno/", ListingURL: listing,
		})
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	t.Run("mail candidate keeps processed flag on upsert", func(t *testing.T) {
		require.NoError(t, store.UpsertMailCandidate(ctx, "msg-1", "https://www.trulia.com/home/x-1"))
		require.NoError(t, store.MarkMailCandidateProcessed(ctx, "msg-1"))
		require.NoError(t, store.UpsertMailCandidate(ctx, "msg-1", "https://www.trulia.com/home/x-1"))

		c, err := store.FindMailCandidate(ctx, "msg-1")
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.True(t, c.IsProcessed)

		missing, err := store.FindMailCandidate(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("agent lookup and profile refresh", func(t *testing.T) {
		a := &models.Agent{FullName: "Jane Doe", PhoneNumber: "(555) 123-4567", Brokerage: "Acme"}
		id, err := store.InsertAgent(ctx, a)
		require.NoError(t, err)

		require.NoError(t, store.UpdateAgentProfile(ctx, id, "Jane Q. Doe", "Acme Realty", "https://img/1.jpg"))

		got, err := store.FindAgentByPhone(ctx, "(555) 123-4567")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "Jane Q. Doe", got.FullName)
		assert.Equal(t, "Acme Realty", got.Brokerage)
	})

	t.Run("listing round trip", func(t *testing.T) {
		l := &models.Listing{Title: "3 bd home", Price: "$400,000", Images: []string{"https://pictures/a.jpg"}}
		id, err := store.InsertListing(ctx, l)
		require.NoError(t, err)

		got, err := store.FindListingByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "3 bd home", got.Title)
		assert.Equal(t, []string{"https://pictures/a.jpg"}, got.Images)
	})

	t.Run("token save replaces in place", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
		require.NoError(t, store.SaveToken(ctx, &models.TokenState{Account: "me", AccessToken: "a1", RefreshToken: "r1", Expiry: exp}))
		require.NoError(t, store.SaveToken(ctx, &models.TokenState{Account: "me", AccessToken: "a2", RefreshToken: "r1", Expiry: exp}))

		tok, err := store.LoadToken(ctx, "me")
		require.NoError(t, err)
		require.NotNil(t, tok)
		assert.Equal(t, "a2", tok.AccessToken)
		assert.True(t, exp.Equal(tok.Expiry))
	})
}
