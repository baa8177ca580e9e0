package server

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nkoorts/vibesort/internal/repositories"
	"github.com/nkoorts/vibesort/internal/services"
	"github.com/nkoorts/vibesort/internal/shared"
	"golang.org/x/oauth2"
)

func setupSessionAuth(t *testing.T) (*SessionAuth, *repositories.SessionRepository, *sql.DB) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	auth, err := services.NewSpotifyAuth("client-id", "client-secret", "http://localhost:8080/callback")
	if err != nil {
		db.Close()
		t.Fatalf("failed to create auth: %v", err)
	}

	store := repositories.NewSessionRepository(db)
	return NewSessionAuth(auth, store, nil), store, db
}

func requestWithCookie(name, value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.AddCookie(&http.Cookie{Name: name, Value: value})
	return r
}

func TestSessionAuth(t *testing.T) {
	t.Run("ProviderFor without a cookie", func(t *testing.T) {
		auth, _, db := setupSessionAuth(t)
		defer db.Close()

		_, err := auth.ProviderFor(httptest.NewRequest(http.MethodGet, "/api/status", nil))
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("ProviderFor with an unknown session id", func(t *testing.T) {
		auth, _, db := setupSessionAuth(t)
		defer db.Close()

		_, err := auth.ProviderFor(requestWithCookie(sessionCookie, "missing"))
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("ProviderFor with a live session", func(t *testing.T) {
		auth, store, db := setupSessionAuth(t)
		defer db.Close()

		id, err := store.Create(&oauth2.Token{
			AccessToken: "access-1",
			Expiry:      time.Now().Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("failed to seed session: %v", err)
		}

		provider, err := auth.ProviderFor(requestWithCookie(sessionCookie, id))
		if err != nil {
			t.Fatalf("expected an authenticated provider, got %v", err)
		}
		if provider == nil {
			t.Fatal("provider should not be nil")
		}
	})

	t.Run("Clear deletes the session and expires the cookie", func(t *testing.T) {
		auth, store, db := setupSessionAuth(t)
		defer db.Close()

		id, err := store.Create(&oauth2.Token{
			AccessToken: "access-1",
			Expiry:      time.Now().Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("failed to seed session: %v", err)
		}

		w := httptest.NewRecorder()
		auth.Clear(w, requestWithCookie(sessionCookie, id))

		if _, err := store.Get(id); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("session should be deleted, got %v", err)
		}

		cookies := w.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != sessionCookie || cookies[0].MaxAge != -1 {
			t.Errorf("expected an expired session cookie, got %+v", cookies)
		}
	})

	t.Run("CheckState", func(t *testing.T) {
		auth, _, db := setupSessionAuth(t)
		defer db.Close()

		if err := auth.CheckState(httptest.NewRecorder(), requestWithCookie(stateCookie, "abc"), "abc"); err != nil {
			t.Errorf("matching state should pass, got %v", err)
		}
		if err := auth.CheckState(httptest.NewRecorder(), requestWithCookie(stateCookie, "abc"), "evil"); err == nil {
			t.Error("mismatched state should fail")
		}
		if err := auth.CheckState(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback", nil), "abc"); err == nil {
			t.Error("missing state cookie should fail")
		}
	})
}
