// Package auth implements the login flow: initiate, provider callback, identity query and logout.
package auth

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/KyleWhite22/GameGeniusAI/internal/api/handlers"
	"github.com/KyleWhite22/GameGeniusAI/internal/api/middleware"
	"github.com/KyleWhite22/GameGeniusAI/internal/core/identity"
	"github.com/KyleWhite22/GameGeniusAI/internal/core/session"
	"github.com/KyleWhite22/GameGeniusAI/internal/metrics"
)

// HandshakeRecorder counts handshake transitions per provider
type HandshakeRecorder interface {
	Handshake(provider, outcome string)
}

// Config holds the client redirect targets
type Config struct {
	// PostLoginURL is used verbatim as the success redirect
	PostLoginURL string
	// LoginURL receives ?err=<code> on failure
	LoginURL string
}

// AuthHandler drives ANONYMOUS → HANDSHAKE_PENDING → AUTHENTICATED and back on logout
type AuthHandler struct {
	providers *identity.Registry
	sessions  *session.Manager
	recorder  HandshakeRecorder
	cfg       Config
}

// NewAuthHandler creates the login flow handler. recorder may be nil.
func NewAuthHandler(providers *identity.Registry, sessions *session.Manager, recorder HandshakeRecorder, cfg Config) *AuthHandler {
	return &AuthHandler{
		providers: providers,
		sessions:  sessions,
		recorder:  recorder,
		cfg:       cfg,
	}
}

// HandleLogin starts the provider handshake. The session is not touched.
// GET /auth/{provider}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	verifier, ok := h.providers.Get(name)
	if !ok {
		handlers.NotFound(w, r)
		return
	}

	redirect, err := verifier.BeginHandshake(r.Context(), r)
	if err != nil {
		failure := identity.AsFailure(err)
		slog.Error("failed to begin handshake",
			"provider", name,
			"error", err,
			"request_id", chimw.GetReqID(r.Context()),
		)
		h.record(name, failure.Code())
		h.redirectFailure(w, r, failure)
		return
	}

	h.record(name, metrics.OutcomeStarted)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// HandleCallback verifies the provider's assertion and binds the identity to the session.
// The session is durable before the redirect is written.
// GET /auth/{provider}/return
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	verifier, ok := h.providers.Get(name)
	if !ok {
		handlers.NotFound(w, r)
		return
	}
	reqID := chimw.GetReqID(r.Context())

	verified, err := verifier.CompleteHandshake(r.Context(), r)
	if err != nil {
		failure := identity.AsFailure(err)
		slog.Warn("handshake failed",
			"provider", name,
			"code", failure.Code(),
			"error", failure.Err,
			"request_id", reqID,
		)
		h.record(name, failure.Code())
		h.redirectFailure(w, r, failure)
		return
	}

	sess := middleware.SessionFromContext(r.Context())
	sess.Authenticate(verified.SessionIdentity())

	if err := h.sessions.Commit(r.Context(), w, sess); err != nil {
		slog.Error("failed to persist authenticated session",
			"provider", name,
			"external_id", verified.ExternalID,
			"error", err,
			"request_id", reqID,
		)
		h.record(name, metrics.OutcomeStoreFailure)
		handlers.WriteError(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	slog.Info("user authenticated",
		"provider", name,
		"external_id", verified.ExternalID,
		"session", session.ShortID(sess.ID),
		"request_id", reqID,
	)
	h.record(name, metrics.OutcomeAuthenticated)
	http.Redirect(w, r, h.cfg.PostLoginURL, http.StatusFound)
}

// HandleUser returns the session identity or null. It never writes to the store.
// GET /auth/user
func (h *AuthHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	handlers.WriteJSON(w, http.StatusOK, map[string]*session.Identity{
		"user": middleware.IdentityFromContext(r.Context()),
	})
}

// HandleLogout deletes the session record, then clears the cookie.
// POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	sessionID := session.ShortID(sess.ID)

	if err := h.sessions.Destroy(r.Context(), w, sess); err != nil {
		slog.Error("failed to destroy session",
			"session", sessionID,
			"error", err,
			"request_id", chimw.GetReqID(r.Context()),
		)
		handlers.WriteError(w, http.StatusInternalServerError, "Failed to log out")
		return
	}

	if sessionID != "" {
		slog.Info("user logged out", "session", sessionID, "request_id", chimw.GetReqID(r.Context()))
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) redirectFailure(w http.ResponseWriter, r *http.Request, failure *identity.AuthFailure) {
	target, err := url.Parse(h.cfg.LoginURL)
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	q := target.Query()
	q.Set("err", failure.Code())
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (h *AuthHandler) record(provider, outcome string) {
	if h.recorder != nil {
		h.recorder.Handshake(provider, outcome)
	}
}
