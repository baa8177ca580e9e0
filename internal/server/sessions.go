package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nkoorts/vibesort/internal/services"
	"github.com/nkoorts/vibesort/internal/shared"
	"golang.org/x/oauth2"
)

const (
	sessionCookie = "vibesort_session"
	stateCookie   = "vibesort_oauth_state"

	sessionTTL = 30 * 24 * time.Hour
	stateTTL   = 10 * time.Minute
)

// SessionStore persists OAuth tokens keyed by opaque session ids.
// [repositories.SessionRepository] is the SQLite implementation.
type SessionStore interface {
	Create(token *oauth2.Token) (string, error)
	Get(id string) (*oauth2.Token, error)
	Update(id string, token *oauth2.Token) error
	Delete(id string) error
}

// Authenticator is the authentication surface the API handler consumes.
type Authenticator interface {
	AuthURL(state string) string
	SetState(w http.ResponseWriter, state string)
	CheckState(w http.ResponseWriter, r *http.Request, state string) error
	Establish(w http.ResponseWriter, r *http.Request, code string) error
	Clear(w http.ResponseWriter, r *http.Request)
	ProviderFor(r *http.Request) (services.Provider, error)
}

// SessionAuth resolves browser requests to authenticated Spotify clients.
//
// Tokens never leave the server: the browser only holds an opaque session id
// in an HTTP-only cookie. Expired tokens are refreshed transparently and the
// refreshed token replaces the stored one.
type SessionAuth struct {
	auth   *services.SpotifyAuth
	store  SessionStore
	logger *log.Logger
}

var _ Authenticator = (*SessionAuth)(nil)

// NewSessionAuth creates a SessionAuth over the given OAuth config and store.
func NewSessionAuth(auth *services.SpotifyAuth, store SessionStore, logger *log.Logger) *SessionAuth {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SessionAuth{auth: auth, store: store, logger: logger}
}

// AuthURL returns the Spotify consent URL for the given state token.
func (s *SessionAuth) AuthURL(state string) string {
	return s.auth.AuthURL(state)
}

// Establish exchanges an authorization code, stores the token, and sets the
// session cookie on the response.
func (s *SessionAuth) Establish(w http.ResponseWriter, r *http.Request, code string) error {
	token, err := s.auth.Exchange(r.Context(), code)
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	id, err := s.store.Create(token)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear deletes the request's session, if any, and expires the cookie.
func (s *SessionAuth) Clear(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if err := s.store.Delete(cookie.Value); err != nil {
			s.logger.Warn("failed to delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ProviderFor resolves the request's session to an authenticated client.
//
// A missing cookie, unknown session, or failed refresh all resolve to
// [shared.ErrNotAuthenticated]; the caller does not need to distinguish them.
func (s *SessionAuth) ProviderFor(r *http.Request) (services.Provider, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, shared.ErrNotAuthenticated
	}

	token, err := s.store.Get(cookie.Value)
	if err != nil {
		if errors.Is(err, shared.ErrSessionNotFound) {
			return nil, shared.ErrNotAuthenticated
		}
		return nil, err
	}

	if !token.Valid() {
		refreshed, err := s.auth.Refresh(r.Context(), token)
		if err != nil {
			s.logger.Warn("token refresh failed", "session", cookie.Value, "error", err)
			return nil, shared.ErrNotAuthenticated
		}
		if err := s.store.Update(cookie.Value, refreshed); err != nil {
			return nil, err
		}
		token = refreshed
	}

	return s.auth.Client(token), nil
}

// SetState sets the short-lived OAuth state cookie.
func (s *SessionAuth) SetState(w http.ResponseWriter, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// CheckState validates the callback's state parameter against the cookie and
// clears the cookie.
func (s *SessionAuth) CheckState(w http.ResponseWriter, r *http.Request, state string) error {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || state == "" || cookie.Value != state {
		return fmt.Errorf("invalid state parameter")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
