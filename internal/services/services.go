// package services implements typed HTTP clients for the external APIs the
// backend consumes: the Spotify Web API and the ReccoBeats audio feature
// service.
package services

import (
	"context"

	"github.com/nkoorts/vibesort/internal/models"
)

// Provider is the surface of the primary music service the pipeline consumes.
//
// Pagination is page-level: callers follow Next until it reports false. Batch
// operations enforce the provider's hard size limits and reject oversized
// inputs as caller errors.
type Provider interface {
	// CurrentUser retrieves the authenticated user's profile.
	CurrentUser(ctx context.Context) (*models.User, error)

	// SavedTracksPage retrieves one page of the user's saved-track library.
	SavedTracksPage(ctx context.Context, offset int) (*models.TrackPage, error)

	// PlaylistsPage retrieves one page of the user's playlists.
	PlaylistsPage(ctx context.Context, offset int) (*models.PlaylistPage, error)

	// PlaylistItemsPage retrieves one page of a playlist's tracks.
	PlaylistItemsPage(ctx context.Context, playlistID string, offset int) (*models.TrackPage, error)

	// SeveralArtists retrieves up to 50 artists by id in one call.
	SeveralArtists(ctx context.Context, ids []string) ([]models.Artist, error)

	// CreatePlaylist creates a playlist owned by the given user.
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*models.Playlist, error)

	// AddPlaylistItems appends up to 100 track URIs to a playlist in one call.
	AddPlaylistItems(ctx context.Context, playlistID string, uris []string) error

	// UnfollowPlaylist removes a playlist from the user's library.
	UnfollowPlaylist(ctx context.Context, playlistID string) error
}

// FeatureSource is the audio feature lookup service.
type FeatureSource interface {
	// FeaturesBatch looks up feature vectors for up to 40 track ids. The
	// result is positional: the i-th entry corresponds to the i-th submitted
	// id, and entries may be nil when the service has no data for that id.
	FeaturesBatch(ctx context.Context, ids []string) ([]*models.FeatureVector, error)
}
