// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/nkoorts/vibesort/internal/models"
)

// MockProvider is a configurable test double for [services.Provider]. Pages
// are served from the preloaded maps; every call and batch size is recorded
// so tests can assert chunking and pagination behavior.
type MockProvider struct {
	User      *models.User
	Saved     []*models.TrackPage
	Playlists []*models.PlaylistPage
	Items     map[string][]*models.TrackPage
	Artists   map[string]models.Artist

	SavedErr   error
	ItemsErr   map[string]error
	ArtistsErr error
	CreateErr  error
	AddErr     error

	ArtistBatchSizes []int
	AddBatchSizes    []int
	AddedURIs        map[string][]string
	CreatedPlaylists []models.Playlist
	UnfollowedIDs    []string

	savedCalls int
	itemCalls  map[string]int
}

func (m *MockProvider) CurrentUser(ctx context.Context) (*models.User, error) {
	if m.User == nil {
		return nil, errors.New("no user configured")
	}
	return m.User, nil
}

func (m *MockProvider) SavedTracksPage(ctx context.Context, offset int) (*models.TrackPage, error) {
	if m.SavedErr != nil {
		return nil, m.SavedErr
	}
	idx := m.savedCalls
	m.savedCalls++
	if idx >= len(m.Saved) {
		return nil, fmt.Errorf("unexpected saved tracks page request at offset %d", offset)
	}
	return m.Saved[idx], nil
}

func (m *MockProvider) PlaylistsPage(ctx context.Context, offset int) (*models.PlaylistPage, error) {
	page := offset / 50
	if page >= len(m.Playlists) {
		return &models.PlaylistPage{}, nil
	}
	return m.Playlists[page], nil
}

func (m *MockProvider) PlaylistItemsPage(ctx context.Context, playlistID string, offset int) (*models.TrackPage, error) {
	if err := m.ItemsErr[playlistID]; err != nil {
		return nil, err
	}
	if m.itemCalls == nil {
		m.itemCalls = make(map[string]int)
	}
	idx := m.itemCalls[playlistID]
	m.itemCalls[playlistID]++
	pages := m.Items[playlistID]
	if idx >= len(pages) {
		return nil, fmt.Errorf("unexpected page request for playlist %s at offset %d", playlistID, offset)
	}
	return pages[idx], nil
}

func (m *MockProvider) SeveralArtists(ctx context.Context, ids []string) ([]models.Artist, error) {
	m.ArtistBatchSizes = append(m.ArtistBatchSizes, len(ids))
	if m.ArtistsErr != nil {
		return nil, m.ArtistsErr
	}
	artists := make([]models.Artist, 0, len(ids))
	for _, id := range ids {
		if artist, ok := m.Artists[id]; ok {
			artists = append(artists, artist)
		}
	}
	return artists, nil
}

func (m *MockProvider) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*models.Playlist, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	playlist := models.Playlist{
		ID:          fmt.Sprintf("created-%d", len(m.CreatedPlaylists)+1),
		Name:        name,
		Description: description,
		Owner:       userID,
		Public:      public,
		URL:         "https://open.spotify.com/playlist/created",
	}
	m.CreatedPlaylists = append(m.CreatedPlaylists, playlist)
	return &playlist, nil
}

func (m *MockProvider) AddPlaylistItems(ctx context.Context, playlistID string, uris []string) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.AddBatchSizes = append(m.AddBatchSizes, len(uris))
	if m.AddedURIs == nil {
		m.AddedURIs = make(map[string][]string)
	}
	m.AddedURIs[playlistID] = append(m.AddedURIs[playlistID], uris...)
	return nil
}

func (m *MockProvider) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	m.UnfollowedIDs = append(m.UnfollowedIDs, playlistID)
	return nil
}

// MockFeatureSource is a test double for [services.FeatureSource]. Vectors are
// resolved per id; ids absent from the map resolve to nil. Batch sizes are
// recorded for chunking assertions.
type MockFeatureSource struct {
	Vectors    map[string]*models.FeatureVector
	Err        error
	BatchSizes []int
}

func (m *MockFeatureSource) FeaturesBatch(ctx context.Context, ids []string) ([]*models.FeatureVector, error) {
	m.BatchSizes = append(m.BatchSizes, len(ids))
	if m.Err != nil {
		return nil, m.Err
	}
	vectors := make([]*models.FeatureVector, len(ids))
	for i, id := range ids {
		vectors[i] = m.Vectors[id]
	}
	return vectors, nil
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
