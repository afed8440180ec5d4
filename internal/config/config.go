package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v2"

	"listing_spider/internal/logger"
)

type AppConfig struct {
	Name       string `yaml:"name"`
	HTTPAddr   string `yaml:"http_addr"`
	Timezone   string `yaml:"timezone"`
	ScratchDir string `yaml:"scratch_dir"`
}

type DBConfig struct {
	Connection  string `yaml:"connection"`
	Database    string `yaml:"database"`
	Collections struct {
		DiscoveredURLs string `yaml:"discovered_urls"`
		MailCandidates string `yaml:"mail_candidates"`
		Agents         string `yaml:"agents"`
		Listings       string `yaml:"listings"`
		Tokens         string `yaml:"tokens"`
	} `yaml:"collections"`
}

// RenderConfig configures the remote-rendering service used as the primary fetch strategy.
type RenderConfig struct {
	Endpoint        string `yaml:"endpoint"`
	APIKey          string `yaml:"api_key"`
	WaitMS          int    `yaml:"wait_ms"`
	WaitFor         string `yaml:"wait_for"`
	WindowWidth     int    `yaml:"window_width"`
	WindowHeight    int    `yaml:"window_height"`
	StealthProxy    bool   `yaml:"stealth_proxy"`
	TimeoutSec      int    `yaml:"timeout_sec"`
	MaxAttempts     int    `yaml:"max_attempts"`
	RetryDelayMS    int    `yaml:"retry_delay_ms"`
	ProbeURL        string `yaml:"probe_url"`
	ProbeTimeoutSec int    `yaml:"probe_timeout_sec"`
}

type BrowserConfig struct {
	Bin           string `yaml:"bin"`
	RemoteURL     string `yaml:"remote_url"`
	NoSandbox     bool   `yaml:"no_sandbox"`
	UserAgent     string `yaml:"user_agent"`
	WindowWidth   int    `yaml:"window_width"`
	WindowHeight  int    `yaml:"window_height"`
	NavTimeoutSec int    `yaml:"nav_timeout_sec"`
	SettleMS      int    `yaml:"settle_ms"`
}

type SearchConfig struct {
	Seeds          []string `yaml:"seeds"`
	ResultsPerPage int      `yaml:"results_per_page"`
	FollowPages    bool     `yaml:"follow_pages"`
	MaxPages       int      `yaml:"max_pages"`
	PageDelayMS    int      `yaml:"page_delay_ms"`
	MaxAttempts    int      `yaml:"max_attempts"`
	RespectRobots  bool     `yaml:"respect_robots"`
}

type MailboxConfig struct {
	Enabled         bool     `yaml:"enabled"`
	ClientID        string   `yaml:"client_id"`
	ClientSecret    string   `yaml:"client_secret"`
	RedirectURL     string   `yaml:"redirect_url"`
	CredentialsFile string   `yaml:"credentials_file"`
	TokenStore      string   `yaml:"token_store"`
	TokenFile       string   `yaml:"token_file"`
	Account         string   `yaml:"account"`
	Senders         []string `yaml:"senders"`
	PartnerDomains  []string `yaml:"partner_domains"`
	IncludeRead     bool     `yaml:"include_read"`
	MaxResults      int64    `yaml:"max_results"`
	LookbackDays    int      `yaml:"lookback_days"`
	LookaheadDays   int      `yaml:"lookahead_days"`
	ExpiryMarginSec int      `yaml:"expiry_margin_sec"`
}

type SchedulerConfig struct {
	CrawlSpec string `yaml:"crawl_spec"`
	DrainSpec string `yaml:"drain_spec"`
	PollSpec  string `yaml:"poll_spec"`
}

type PipelineConfig struct {
	DrainLimit          int  `yaml:"drain_limit"`
	ItemDelayMS         int  `yaml:"item_delay_ms"`
	KeepFailedSnapshots bool `yaml:"keep_failed_snapshots"`
	RevealEnabled       bool `yaml:"reveal_enabled"`
}

type Config struct {
	App       AppConfig       `yaml:"app"`
	DB        DBConfig        `yaml:"db"`
	Logging   logger.Config   `yaml:"logging"`
	Render    RenderConfig    `yaml:"render"`
	Browser   BrowserConfig   `yaml:"browser"`
	Search    SearchConfig    `yaml:"search"`
	Mailbox   MailboxConfig   `yaml:"mailbox"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. A missing .env file is not an error.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes raw YAML into a Config and finishes it like LoadConfig does.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.DB.Connection, "MONGO_URI")
	override(&c.Render.APIKey, "RENDER_API_KEY")
	override(&c.Mailbox.ClientID, "GOOGLE_CLIENT_ID")
	override(&c.Mailbox.ClientSecret, "GOOGLE_CLIENT_SECRET")
	override(&c.Mailbox.RedirectURL, "GOOGLE_REDIRECT_URL")
	override(&c.Logging.Level, "LOG_LEVEL")
}

func (c *Config) SetDefaults() {
	setString(&c.App.Name, "listing-spider")
	setString(&c.App.HTTPAddr, ":8000")
	setString(&c.App.Timezone, "Local")

	setString(&c.DB.Collections.DiscoveredURLs, "trulialistings")
	setString(&c.DB.Collections.MailCandidates, "gmaillistings")
	setString(&c.DB.Collections.Agents, "agents")
	setString(&c.DB.Collections.Listings, "listings")
	setString(&c.DB.Collections.Tokens, "oauth_tokens")

	setString(&c.Logging.Level, "info")

	setString(&c.Render.Endpoint, "https://app.scrapingbee.com/api/v1/")
	setInt(&c.Render.WaitMS, 8000)
	setString(&c.Render.WaitFor, "networkidle")
	setInt(&c.Render.WindowWidth, 1920)
	setInt(&c.Render.WindowHeight, 1080)
	setInt(&c.Render.TimeoutSec, 90)
	setInt(&c.Render.MaxAttempts, 3)
	setInt(&c.Render.RetryDelayMS, 2000)
	setString(&c.Render.ProbeURL, "https://httpbin.org/html")
	setInt(&c.Render.ProbeTimeoutSec, 30)

	setString(&c.Browser.UserAgent, "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	setInt(&c.Browser.WindowWidth, 1920)
	setInt(&c.Browser.WindowHeight, 1080)
	setInt(&c.Browser.NavTimeoutSec, 60)
	setInt(&c.Browser.SettleMS, 5000)

	setInt(&c.Search.ResultsPerPage, 40)
	setInt(&c.Search.PageDelayMS, 3000)
	setInt(&c.Search.MaxAttempts, 3)

	setString(&c.Mailbox.TokenStore, "mongo")
	setString(&c.Mailbox.TokenFile, "token.json")
	setString(&c.Mailbox.Account, "me")
	if len(c.Mailbox.PartnerDomains) == 0 {
		c.Mailbox.PartnerDomains = []string{"trulia.com"}
	}
	if c.Mailbox.MaxResults <= 0 {
		c.Mailbox.MaxResults = 100
	}
	setInt(&c.Mailbox.LookbackDays, 1)
	setInt(&c.Mailbox.LookaheadDays, 2)
	setInt(&c.Mailbox.ExpiryMarginSec, 60)

	setString(&c.Scheduler.CrawlSpec, "0 2 * * *")
	setString(&c.Scheduler.DrainSpec, "0 4 * * *")
	setString(&c.Scheduler.PollSpec, "0 8 * * *")

	setInt(&c.Pipeline.DrainLimit, 500)
	setInt(&c.Pipeline.ItemDelayMS, 3000)
}

func (c *Config) Validate() error {
	var errs []error
	if c.DB.Connection == "" {
		errs = append(errs, errors.New("db.connection is required"))
	}
	if c.DB.Database == "" {
		errs = append(errs, errors.New("db.database is required"))
	}
	if c.Render.MaxAttempts < 1 {
		errs = append(errs, errors.New("render.max_attempts must be positive"))
	}
	if c.Search.ResultsPerPage < 1 {
		errs = append(errs, errors.New("search.results_per_page must be positive"))
	}
	switch c.Mailbox.TokenStore {
	case "mongo", "file":
	default:
		errs = append(errs, fmt.Errorf("mailbox.token_store %q must be mongo or file", c.Mailbox.TokenStore))
	}
	for name, spec := range map[string]string{
		"crawl_spec": c.Scheduler.CrawlSpec,
		"drain_spec": c.Scheduler.DrainSpec,
		"poll_spec":  c.Scheduler.PollSpec,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (r RenderConfig) Timeout() time.Duration      { return seconds(r.TimeoutSec) }
func (r RenderConfig) RetryDelay() time.Duration   { return millis(r.RetryDelayMS) }
func (r RenderConfig) ProbeTimeout() time.Duration { return seconds(r.ProbeTimeoutSec) }

func (b BrowserConfig) NavTimeout() time.Duration { return seconds(b.NavTimeoutSec) }
func (b BrowserConfig) Settle() time.Duration     { return millis(b.SettleMS) }

func (s SearchConfig) PageDelay() time.Duration { return millis(s.PageDelayMS) }

func (m MailboxConfig) ExpiryMargin() time.Duration { return seconds(m.ExpiryMarginSec) }

// OnlyUnread reports whether polling is limited to unread messages, the
// default unless include_read is set.
func (m MailboxConfig) OnlyUnread() bool { return !m.IncludeRead }

func (p PipelineConfig) ItemDelay() time.Duration { return millis(p.ItemDelayMS) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
func millis(n int) time.Duration  { return time.Duration(n) * time.Millisecond }

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}
