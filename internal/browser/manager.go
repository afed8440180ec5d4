// Package browser owns the local headless Chrome: launch on first use,
// one stealth page per work item, shutdown on Close.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"listing_spider/internal/config"
	"listing_spider/internal/logger"
)

// Manager launches Chrome lazily and hands out isolated pages.
type Manager struct {
	cfg     config.BrowserConfig
	log     logger.Logger
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

func NewManager(cfg config.BrowserConfig, log logger.Logger) *Manager {
	return &Manager{cfg: cfg, log: log}
}

func (m *Manager) connect() (*rod.Browser, error) {
	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil {
		return m.browser, nil
	}

	wsURL := m.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			NoSandbox(m.cfg.NoSandbox).
			Set("disable-blink-features", "AutomationControlled")
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.log.Info("browser: launched local chrome", logger.String("url", wsURL))
	} else {
		m.log.Info("browser: connecting to remote", logger.String("url", wsURL))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		m.cleanupLauncher()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return b, nil
}

// NewPage opens a stealth page in a fresh incognito context. Closing the
// page disposes the context.
func (m *Manager) NewPage(ctx context.Context) (*Page, error) {
	m.mu.Lock()
	b, err := m.connect()
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	incognito, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("browser: incognito context: %w", err)
	}

	page, err := stealth.Page(incognito)
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.WindowWidth,
		Height:            m.cfg.WindowHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		m.log.Warn("browser: set viewport failed", logger.Error(err))
	}
	if m.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: m.cfg.UserAgent}); err != nil {
			m.log.Warn("browser: set user agent failed", logger.Error(err))
		}
	}

	return &Page{
		page:       page,
		context:    incognito,
		navTimeout: m.cfg.NavTimeout(),
		settle:     m.cfg.Settle(),
	}, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.cleanupLauncher()
	return err
}

func (m *Manager) cleanupLauncher() {
	if m.lnch != nil {
		m.lnch.Kill()
		m.lnch.Cleanup()
		m.lnch = nil
	}
}
