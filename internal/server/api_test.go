package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nkoorts/vibesort/internal/models"
	"github.com/nkoorts/vibesort/internal/services"
	"github.com/nkoorts/vibesort/internal/shared"
	tu "github.com/nkoorts/vibesort/internal/testing"
)

// stubAuth is a canned [Authenticator] for handler tests.
type stubAuth struct {
	provider services.Provider
	err      error

	establishedCode string
	cleared         bool
	stateErr        error
}

func (s *stubAuth) AuthURL(state string) string {
	return "https://accounts.spotify.com/authorize?state=" + state
}

func (s *stubAuth) SetState(w http.ResponseWriter, state string) {}

func (s *stubAuth) CheckState(w http.ResponseWriter, r *http.Request, state string) error {
	return s.stateErr
}

func (s *stubAuth) Establish(w http.ResponseWriter, r *http.Request, code string) error {
	s.establishedCode = code
	return nil
}

func (s *stubAuth) Clear(w http.ResponseWriter, r *http.Request) { s.cleared = true }

func (s *stubAuth) ProviderFor(r *http.Request) (services.Provider, error) {
	return s.provider, s.err
}

func newTestHandler(auth *stubAuth, features services.FeatureSource) *APIHandler {
	return NewAPIHandler(auth, features, "http://localhost:5173", nil)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestStatusEndpoint(t *testing.T) {
	t.Run("unauthenticated reports false with 200", func(t *testing.T) {
		handler := newTestHandler(&stubAuth{err: shared.ErrNotAuthenticated}, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if body := decodeBody(t, w); body["authenticated"] != false {
			t.Errorf("expected authenticated false, got %v", body)
		}
	})

	t.Run("authenticated includes the user profile", func(t *testing.T) {
		provider := &tu.MockProvider{User: &models.User{ID: "user1", DisplayName: "N"}}
		handler := newTestHandler(&stubAuth{provider: provider}, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))

		body := decodeBody(t, w)
		if body["authenticated"] != true {
			t.Fatalf("expected authenticated true, got %v", body)
		}
		user, ok := body["user"].(map[string]any)
		if !ok || user["id"] != "user1" {
			t.Errorf("expected user profile, got %v", body["user"])
		}
	})
}

func TestLoginEndpoint(t *testing.T) {
	handler := newTestHandler(&stubAuth{}, nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", w.Code)
	}
	location := w.Header().Get("Location")
	if !strings.HasPrefix(location, "https://accounts.spotify.com/authorize?state=") {
		t.Errorf("unexpected redirect target %s", location)
	}
}

func TestCallbackEndpoint(t *testing.T) {
	t.Run("exchanges the code and redirects to the frontend", func(t *testing.T) {
		auth := &stubAuth{}
		handler := newTestHandler(auth, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=xyz", nil))

		if w.Code != http.StatusTemporaryRedirect {
			t.Fatalf("expected 307, got %d: %s", w.Code, w.Body.String())
		}
		if auth.establishedCode != "abc" {
			t.Errorf("expected code abc to be exchanged, got %q", auth.establishedCode)
		}
		if got := w.Header().Get("Location"); got != "http://localhost:5173" {
			t.Errorf("unexpected redirect target %s", got)
		}
	})

	t.Run("rejects a denied authorization", func(t *testing.T) {
		handler := newTestHandler(&stubAuth{}, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/callback?error=access_denied", nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("rejects a missing code", func(t *testing.T) {
		handler := newTestHandler(&stubAuth{}, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/callback?state=xyz", nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})
}

func TestPlaylistsEndpoint(t *testing.T) {
	provider := &tu.MockProvider{
		Saved: []*models.TrackPage{{Total: 321}},
		Playlists: []*models.PlaylistPage{{
			Playlists: []models.Playlist{{ID: "pl1", Name: "Mix"}},
		}},
	}
	handler := newTestHandler(&stubAuth{provider: provider}, nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/playlists", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Playlists []models.Playlist `json:"playlists"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Playlists) != 2 {
		t.Fatalf("expected liked entry plus one playlist, got %d", len(body.Playlists))
	}
	liked := body.Playlists[0]
	if liked.ID != "liked" || liked.Name != "Liked Songs" || liked.TrackCount != 321 {
		t.Errorf("unexpected liked entry: %+v", liked)
	}
	if body.Playlists[1].ID != "pl1" {
		t.Errorf("expected the real playlist after the liked entry, got %+v", body.Playlists[1])
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		handler := newTestHandler(&stubAuth{err: shared.ErrNotAuthenticated}, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyze?playlist_ids=liked", nil))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("returns the analysis report", func(t *testing.T) {
		provider := &tu.MockProvider{
			Saved: []*models.TrackPage{{Tracks: []models.Track{
				{ID: "a", URI: "spotify:track:a", Name: "A", ArtistIDs: []string{"ar1"}},
			}}},
			Artists: map[string]models.Artist{
				"ar1": {ID: "ar1", Genres: []string{"pop"}},
			},
		}
		features := &tu.MockFeatureSource{
			Vectors: map[string]*models.FeatureVector{
				"a": {Energy: 0.5},
			},
		}
		handler := newTestHandler(&stubAuth{provider: provider}, features)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyze?playlist_ids=liked", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var report models.AnalysisReport
		if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
			t.Fatalf("failed to decode report: %v", err)
		}
		if report.Metrics.TotalTracks != 1 || report.Metrics.AvgEnergy != 0.5 {
			t.Errorf("unexpected metrics: %+v", report.Metrics)
		}
	})
}

func TestCreatePlaylistEndpoint(t *testing.T) {
	t.Run("rejects an empty request", func(t *testing.T) {
		handler := newTestHandler(&stubAuth{provider: &tu.MockProvider{}}, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/create_playlist", strings.NewReader(`{}`))
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("creates the playlist and reports the outcome", func(t *testing.T) {
		provider := &tu.MockProvider{
			User:      &models.User{ID: "user1"},
			Playlists: []*models.PlaylistPage{{}},
		}
		handler := newTestHandler(&stubAuth{provider: provider}, nil)

		payload := `{"name": "Road Trip", "track_uris": ["spotify:track:x"]}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/create_playlist", strings.NewReader(payload))
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		body := decodeBody(t, w)
		if body["created"] != true || body["added"] != float64(1) {
			t.Errorf("unexpected result: %v", body)
		}
	})

	t.Run("creates an empty playlist when no tracks are given", func(t *testing.T) {
		provider := &tu.MockProvider{
			User:      &models.User{ID: "user1"},
			Playlists: []*models.PlaylistPage{{}},
		}
		handler := newTestHandler(&stubAuth{provider: provider}, nil)

		payload := `{"name": "Placeholder", "track_uris": []}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/create_playlist", strings.NewReader(payload))
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		body := decodeBody(t, w)
		if body["created"] != true || body["added"] != float64(0) {
			t.Errorf("unexpected result: %v", body)
		}
		if len(provider.AddedURIs) != 0 {
			t.Errorf("expected no add calls, got %v", provider.AddedURIs)
		}
	})
}

func TestCreateVibePlaylistEndpoint(t *testing.T) {
	t.Run("rejects an unknown vibe with 400", func(t *testing.T) {
		handler := newTestHandler(&stubAuth{provider: &tu.MockProvider{}}, &tu.MockFeatureSource{})

		payload := `{"name": "Mix", "vibe": "euphoric"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/create_vibe_playlist", strings.NewReader(payload))
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("defaults the source to liked songs", func(t *testing.T) {
		provider := &tu.MockProvider{
			User:      &models.User{ID: "user1"},
			Playlists: []*models.PlaylistPage{{}},
			Saved: []*models.TrackPage{{Tracks: []models.Track{
				{ID: "a", URI: "spotify:track:a", Name: "A"},
			}}},
		}
		features := &tu.MockFeatureSource{
			Vectors: map[string]*models.FeatureVector{
				"a": {Energy: 0.8, Danceability: 0.7, Valence: 0.7},
			},
		}
		handler := newTestHandler(&stubAuth{provider: provider}, features)

		payload := `{"name": "Party Mix", "vibe": "party"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/create_vibe_playlist", strings.NewReader(payload))
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		body := decodeBody(t, w)
		if body["matched"] != float64(1) {
			t.Errorf("expected one matched track, got %v", body)
		}
	})

	t.Run("accepts sources as a comma-separated string", func(t *testing.T) {
		provider := &tu.MockProvider{
			User:      &models.User{ID: "user1"},
			Playlists: []*models.PlaylistPage{{}},
			Saved: []*models.TrackPage{{Tracks: []models.Track{
				{ID: "a", URI: "spotify:track:a", Name: "A"},
			}}},
			Items: map[string][]*models.TrackPage{
				"pl1": {{Tracks: []models.Track{
					{ID: "b", URI: "spotify:track:b", Name: "B"},
				}}},
			},
		}
		features := &tu.MockFeatureSource{
			Vectors: map[string]*models.FeatureVector{
				"a": {Energy: 0.8, Danceability: 0.7, Valence: 0.7},
				"b": {Energy: 0.9, Danceability: 0.8, Valence: 0.8},
			},
		}
		handler := newTestHandler(&stubAuth{provider: provider}, features)

		payload := `{"name": "Party Mix", "source_playlist_ids": "liked, pl1", "vibe": "party"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/create_vibe_playlist", strings.NewReader(payload))
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		body := decodeBody(t, w)
		if body["matched"] != float64(2) {
			t.Errorf("expected both sources to be read, got %v", body)
		}
	})

	t.Run("accepts sources as a JSON array", func(t *testing.T) {
		provider := &tu.MockProvider{
			User:      &models.User{ID: "user1"},
			Playlists: []*models.PlaylistPage{{}},
			Items: map[string][]*models.TrackPage{
				"pl1": {{Tracks: []models.Track{
					{ID: "b", URI: "spotify:track:b", Name: "B"},
				}}},
			},
		}
		features := &tu.MockFeatureSource{
			Vectors: map[string]*models.FeatureVector{
				"b": {Energy: 0.9, Danceability: 0.8, Valence: 0.8},
			},
		}
		handler := newTestHandler(&stubAuth{provider: provider}, features)

		payload := `{"name": "Party Mix", "source_playlist_ids": ["pl1"], "vibe": "party"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/create_vibe_playlist", strings.NewReader(payload))
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		body := decodeBody(t, w)
		if body["matched"] != float64(1) {
			t.Errorf("expected one matched track, got %v", body)
		}
	})
}

func TestDeletePlaylistEndpoint(t *testing.T) {
	provider := &tu.MockProvider{}
	handler := newTestHandler(&stubAuth{provider: provider}, nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/delete_playlist/pl1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(provider.UnfollowedIDs) != 1 || provider.UnfollowedIDs[0] != "pl1" {
		t.Errorf("expected pl1 to be unfollowed, got %v", provider.UnfollowedIDs)
	}
}

func TestLogoutEndpoint(t *testing.T) {
	auth := &stubAuth{provider: &tu.MockProvider{}}
	handler := newTestHandler(auth, nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/logout", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !auth.cleared {
		t.Error("expected the session to be cleared")
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("CORS answers preflight and sets headers", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(CORS("http://localhost:5173"))
		router.Handle("/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/ping", nil))

		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204 for preflight, got %d", w.Code)
		}
		if origin := w.Header().Get("Access-Control-Allow-Origin"); origin != "http://localhost:5173" {
			t.Errorf("unexpected allowed origin %q", origin)
		}
		if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("expected credentials to be allowed")
		}
	})

	t.Run("middleware wraps in reverse order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(tag("outer"), tag("inner"))
		router.Handle("GET /ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
			t.Errorf("unexpected middleware order %v", order)
		}
	})
}
