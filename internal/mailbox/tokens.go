package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"

	"listing_spider/internal/config"
	"listing_spider/internal/logger"
	"listing_spider/internal/models"
)

// ErrReauthRequired means the stored grant is missing, expired or revoked and
// the consent flow (GET /api/gmailAuth) has to be run again.
var ErrReauthRequired = errors.New("mailbox: refresh token expired or revoked, re-run OAuth consent (GET /api/gmailAuth)")

type TokenStore interface {
	LoadToken(ctx context.Context, account string) (*models.TokenState, error)
	SaveToken(ctx context.Context, t *models.TokenState) error
}

// OAuthConfig builds the Google OAuth client for read-only mailbox access.
// Explicit client id/secret win over the credentials file.
func OAuthConfig(cfg config.MailboxConfig) (*oauth2.Config, error) {
	if cfg.ClientID == "" && cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		oc, err := google.ConfigFromJSON(data, gmail.GmailReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials: %w", err)
		}
		if cfg.RedirectURL != "" {
			oc.RedirectURL = cfg.RedirectURL
		}
		return oc, nil
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("mailbox: client id and secret are required")
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}, nil
}

// TokenManager owns the persisted token pair of one mailbox account. Each
// caller gets its own token value; nothing is shared through a client object.
type TokenManager struct {
	oauth   *oauth2.Config
	store   TokenStore
	account string
	margin  time.Duration
	log     logger.Logger
	now     func() time.Time
	mu      sync.Mutex
}

func NewTokenManager(oc *oauth2.Config, store TokenStore, account string, margin time.Duration, log logger.Logger) *TokenManager {
	return &TokenManager{
		oauth:   oc,
		store:   store,
		account: account,
		margin:  margin,
		log:     log,
		now:     time.Now,
	}
}

// AuthURL is the consent page asking for offline read-only access.
func (m *TokenManager) AuthURL(state string) string {
	return m.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for a token pair and stores it.
func (m *TokenManager) Exchange(ctx context.Context, code string) error {
	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("oauth exchange: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state := &models.TokenState{Account: m.account}
	if prev, err := m.store.LoadToken(ctx, m.account); err == nil && prev != nil {
		state = prev
	}
	merge(state, tok)
	return m.store.SaveToken(ctx, state)
}

// EnsureValid returns a usable access token, refreshing and persisting it
// when it is missing or expires within the safety margin.
func (m *TokenManager) EnsureValid(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.store.LoadToken(ctx, m.account)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if state == nil || state.RefreshToken == "" {
		return nil, ErrReauthRequired
	}

	if state.AccessToken != "" && state.Expiry.After(m.now().Add(m.margin)) {
		return toOAuth(state), nil
	}

	src := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: state.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			m.log.Error("mailbox: refresh token rejected", logger.String("account", m.account), logger.Error(err))
			return nil, fmt.Errorf("%w: %s", ErrReauthRequired, re.ErrorDescription)
		}
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	merge(state, fresh)
	if err := m.store.SaveToken(ctx, state); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	m.log.Info("mailbox: access token refreshed", logger.Time("expiry", state.Expiry))
	return toOAuth(state), nil
}

// merge copies fresh values over state; a response without a refresh token
// keeps the stored one.
func merge(state *models.TokenState, tok *oauth2.Token) {
	state.AccessToken = tok.AccessToken
	state.Expiry = tok.Expiry
	if tok.TokenType != "" {
		state.TokenType = tok.TokenType
	}
	if tok.RefreshToken != "" {
		state.RefreshToken = tok.RefreshToken
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		state.Scope = scope
	}
}

func toOAuth(state *models.TokenState) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  state.AccessToken,
		TokenType:    state.TokenType,
		RefreshToken: state.RefreshToken,
		Expiry:       state.Expiry,
	}
}

// FileTokenStore keeps the token pair in a JSON file, one account per file.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) LoadToken(_ context.Context, account string) (*models.TokenState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var t models.TokenState
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	t.Account = account
	return &t, nil
}

func (s *FileTokenStore) SaveToken(_ context.Context, t *models.TokenState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
