package mailbox

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/go-chi/chi/v5"

	"listing_spider/internal/logger"
)

const stateCookie = "oauth_state"

// Handlers serve the one-time consent flow.
type Handlers struct {
	tokens *TokenManager
	log    logger.Logger
}

func NewHandlers(tokens *TokenManager, log logger.Logger) *Handlers {
	return &Handlers{tokens: tokens, log: log}
}

func (h *Handlers) Routes(r chi.Router) {
	r.Get("/api/gmailAuth", h.auth)
	r.Get("/api/oauth2callback", h.callback)
}

func (h *Handlers) auth(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		http.Error(w, "state generation failed", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})
	http.Redirect(w, r, h.tokens.AuthURL(state), http.StatusFound)
}

func (h *Handlers) callback(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(stateCookie); err != nil || c.Value != r.URL.Query().Get("state") {
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	if err := h.tokens.Exchange(r.Context(), code); err != nil {
		h.log.Error("mailbox: oauth callback failed", logger.Error(err))
		http.Error(w, "OAuth failed.", http.StatusInternalServerError)
		return
	}
	h.log.Info("mailbox: token saved")
	_, _ = w.Write([]byte("Token saved!"))
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
