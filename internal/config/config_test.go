package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing_spider/internal/config"
	"listing_spider/internal/mailbox"
)

const minimalYAML = `
db:
  connection: mongodb://localhost:27017
  database: crm
search:
  seeds:
    - https://www.trulia.com/County/NJ/Salem_Real_Estate/
mailbox:
  senders:
    - share-property@prop.trulia.com
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Render.MaxAttempts)
	assert.Equal(t, 90*time.Second, cfg.Render.Timeout())
	assert.Equal(t, 2*time.Second, cfg.Render.RetryDelay())
	assert.Equal(t, 1920, cfg.Render.WindowWidth)
	assert.Equal(t, "networkidle", cfg.Render.WaitFor)
	assert.Equal(t, 40, cfg.Search.ResultsPerPage)
	assert.Equal(t, time.Minute, cfg.Mailbox.ExpiryMargin())
	assert.Equal(t, []string{"trulia.com"}, cfg.Mailbox.PartnerDomains)
	assert.Equal(t, "0 8 * * *", cfg.Scheduler.PollSpec)
	assert.Equal(t, "trulialistings", cfg.DB.Collections.DiscoveredURLs)
	assert.Equal(t, "mongo", cfg.Mailbox.TokenStore)
	assert.True(t, cfg.Mailbox.OnlyUnread())
}

func TestParse_IncludeRead(t *testing.T) {
	cfg, err := config.Parse([]byte(minimalYAML + "  include_read: true\n"))
	require.NoError(t, err)

	assert.False(t, cfg.Mailbox.OnlyUnread())
}

func TestParse_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("RENDER_API_KEY", "from-env")
	t.Setenv("MONGO_URI", "mongodb://override:27017")

	cfg, err := config.Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Render.APIKey)
	assert.Equal(t, "mongodb://override:27017", cfg.DB.Connection)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing database", yaml: "db:\n  connection: mongodb://x\n"},
		{name: "bad cron spec", yaml: minimalYAML + "scheduler:\n  poll_spec: \"every day\"\n"},
		{name: "bad token store", yaml: minimalYAML + "  token_store: redis\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "crm", cfg.DB.Database)
	assert.Len(t, cfg.Search.Seeds, 1)
}

func TestLoadConfig_SampleFile(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join("..", "..", "config.yaml"))
	require.NoError(t, err)

	assert.True(t, cfg.Render.StealthProxy)
	assert.True(t, cfg.Pipeline.RevealEnabled)
	assert.True(t, cfg.Mailbox.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Pipeline.ItemDelay())
	assert.NotEmpty(t, cfg.Search.Seeds)
}

func TestLoadConfig_SampleMailboxQuery(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join("..", "..", "config.yaml"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"share-property@prop.trulia.com",
		"abooker@nationwideusamovers.com",
	}, cfg.Mailbox.Senders)

	q := mailbox.Query{Senders: cfg.Mailbox.Senders, OnlyUnread: cfg.Mailbox.OnlyUnread()}
	assert.Contains(t, q.String(), "is:unread")
	assert.Contains(t, q.String(), "from:(share-property@prop.trulia.com OR abooker@nationwideusamovers.com)")
}
