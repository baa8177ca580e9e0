package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nkoorts/vibesort/internal/shared"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*SpotifyClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSpotifyClient(srv.Client(), srv.URL, "test-token"), srv
}

func TestNewSpotifyAuth(t *testing.T) {
	t.Run("requires credentials", func(t *testing.T) {
		if _, err := NewSpotifyAuth("", "", ""); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("auth URL carries state and scopes", func(t *testing.T) {
		auth, err := NewSpotifyAuth("id", "secret", "http://localhost:8080/callback")
		if err != nil {
			t.Fatalf("failed to create auth: %v", err)
		}

		authURL := auth.AuthURL("state-123")
		if !strings.Contains(authURL, "state=state-123") {
			t.Errorf("auth URL missing state: %s", authURL)
		}
		if !strings.Contains(authURL, "user-library-read") {
			t.Errorf("auth URL missing library scope: %s", authURL)
		}
	})
}

func TestSavedTracksPage(t *testing.T) {
	t.Run("maps tracks and skips unresolvable slots", func(t *testing.T) {
		var gotPath string
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.RequestURI()
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
				t.Errorf("unexpected auth header %q", auth)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"items": [
					{"track": {"id": "t1", "uri": "spotify:track:t1", "name": "One",
						"artists": [{"id": "ar1", "name": "A"}],
						"album": {"images": [{"url": "http://img/1"}]}}},
					{"track": null},
					{"track": {"id": "", "uri": "", "name": "local file"}}
				],
				"total": 120,
				"next": "https://api.spotify.com/v1/me/tracks?offset=50&limit=50"
			}`))
		})

		page, err := client.SavedTracksPage(context.Background(), 0)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}

		if !strings.Contains(gotPath, "/me/tracks") || !strings.Contains(gotPath, "limit=50") || !strings.Contains(gotPath, "offset=0") {
			t.Errorf("unexpected request path %s", gotPath)
		}
		if len(page.Tracks) != 1 {
			t.Fatalf("expected 1 resolvable track, got %d", len(page.Tracks))
		}
		track := page.Tracks[0]
		if track.URI != "spotify:track:t1" || track.Image != "http://img/1" {
			t.Errorf("unexpected track %+v", track)
		}
		if len(track.ArtistIDs) != 1 || track.ArtistIDs[0] != "ar1" {
			t.Errorf("unexpected artist ids %v", track.ArtistIDs)
		}
		if !page.Next || page.NextOffset != 50 || page.Total != 120 {
			t.Errorf("unexpected pagination fields %+v", page)
		}
	})

	t.Run("final page reports no next", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items": [], "total": 0, "next": null}`))
		})

		page, err := client.SavedTracksPage(context.Background(), 100)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if page.Next {
			t.Error("expected Next to be false on the final page")
		}
	})
}

func TestPlaylistsPage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"items": [{
				"id": "pl1", "name": "Mix", "description": "d",
				"owner": {"id": "u1", "display_name": "User"},
				"public": true,
				"images": [{"url": "http://img/pl"}],
				"external_urls": {"spotify": "https://open.spotify.com/playlist/pl1"},
				"tracks": {"total": 7}
			}],
			"total": 1,
			"next": null
		}`))
	})

	page, err := client.PlaylistsPage(context.Background(), 0)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if len(page.Playlists) != 1 {
		t.Fatalf("expected 1 playlist, got %d", len(page.Playlists))
	}
	pl := page.Playlists[0]
	if pl.ID != "pl1" || pl.Owner != "User" || pl.TrackCount != 7 || pl.URL != "https://open.spotify.com/playlist/pl1" {
		t.Errorf("unexpected playlist %+v", pl)
	}
}

func TestSeveralArtists(t *testing.T) {
	t.Run("rejects oversized batches", func(t *testing.T) {
		client := NewSpotifyClient(nil, "http://invalid", "tok")
		ids := make([]string, 51)
		if _, err := client.SeveralArtists(context.Background(), ids); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("maps artists and skips null entries", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("ids"); got != "ar1,ar2" {
				t.Errorf("unexpected ids parameter %q", got)
			}
			w.Write([]byte(`{"artists": [{"id": "ar1", "name": "A", "genres": ["pop"]}, null]}`))
		})

		artists, err := client.SeveralArtists(context.Background(), []string{"ar1", "ar2"})
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if len(artists) != 1 || artists[0].Genres[0] != "pop" {
			t.Errorf("unexpected artists %+v", artists)
		}
	})
}

func TestCreatePlaylist(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.Contains(r.URL.Path, "/users/u1/playlists") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("invalid request body: %v", err)
		}
		if body["name"] != "Mix" || body["public"] != false {
			t.Errorf("unexpected body %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "new-pl", "name": "Mix", "owner": {"display_name": "User"},
			"external_urls": {"spotify": "https://open.spotify.com/playlist/new-pl"}}`))
	})

	playlist, err := client.CreatePlaylist(context.Background(), "u1", "Mix", "desc", false)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if playlist.ID != "new-pl" || playlist.URL != "https://open.spotify.com/playlist/new-pl" {
		t.Errorf("unexpected playlist %+v", playlist)
	}
}

func TestAddPlaylistItems(t *testing.T) {
	t.Run("rejects oversized batches", func(t *testing.T) {
		client := NewSpotifyClient(nil, "http://invalid", "tok")
		uris := make([]string, 101)
		if err := client.AddPlaylistItems(context.Background(), "pl1", uris); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("posts the URI list", func(t *testing.T) {
		var got struct {
			URIs []string `json:"uris"`
		}
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Fatalf("invalid request body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"snapshot_id": "s1"}`))
		})

		err := client.AddPlaylistItems(context.Background(), "pl1", []string{"spotify:track:a"})
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if len(got.URIs) != 1 || got.URIs[0] != "spotify:track:a" {
			t.Errorf("unexpected uris %v", got.URIs)
		}
	})

	t.Run("empty list is a no-op", func(t *testing.T) {
		client := NewSpotifyClient(nil, "http://invalid", "tok")
		if err := client.AddPlaylistItems(context.Background(), "pl1", nil); err != nil {
			t.Errorf("empty add should not call the API, got %v", err)
		}
	})
}

func TestUnfollowPlaylist(t *testing.T) {
	var gotMethod, gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	if err := client.UnfollowPlaylist(context.Background(), "pl1"); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/playlists/pl1/followers" {
		t.Errorf("unexpected request %s %s", gotMethod, gotPath)
	}
}

func TestErrorMapping(t *testing.T) {
	t.Run("401 maps to ErrNotAuthenticated", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := client.CurrentUser(context.Background())
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("5xx maps to ErrAPIRequest", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.CurrentUser(context.Background())
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}
