// Spotify Web API client.
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nkoorts/vibesort/internal/models"
	"github.com/nkoorts/vibesort/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// spotifyPageLimit is the page size used for every paginated listing.
	spotifyPageLimit = 50

	// artistBatchLimit is the hard cap on ids per artist lookup call.
	artistBatchLimit = 50

	// addItemsLimit is the hard cap on URIs per playlist-add call.
	addItemsLimit = 100
)

// SpotifyAuth holds the immutable OAuth application configuration. It carries
// no per-user state; request-scoped credentials are threaded through
// explicitly via [SpotifyAuth.Client].
type SpotifyAuth struct {
	config *oauth2.Config
}

// NewSpotifyAuth builds the OAuth configuration for the application.
func NewSpotifyAuth(clientID, clientSecret, redirectURI string) (*SpotifyAuth, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client id and secret are required", shared.ErrMissingCredentials)
	}
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-modify-public",
			"playlist-modify-private",
			"user-library-read",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyAuth{config: config}, nil
}

// AuthURL returns the authorization URL the user is redirected to.
func (a *SpotifyAuth) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token.
func (a *SpotifyAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}

// Refresh obtains a fresh token using the stored refresh token. The refresh
// token is preserved when the token endpoint omits it from the response.
func (a *SpotifyAuth) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", shared.ErrRefreshFailed)
	}

	fresh, err := a.config.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}
	return fresh, nil
}

// Client returns a request-scoped API client authenticated with the given token.
func (a *SpotifyAuth) Client(token *oauth2.Token) *SpotifyClient {
	return NewSpotifyClient(http.DefaultClient, spotifyBaseURL, token.AccessToken)
}

// SpotifyClient is an authenticated, request-scoped Spotify Web API client.
type SpotifyClient struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

// compile-time interface assertion
var _ Provider = (*SpotifyClient)(nil)

// NewSpotifyClient constructs a client against the given base URL. The http
// client defaults to [http.DefaultClient].
func NewSpotifyClient(httpClient *http.Client, baseURL, accessToken string) *SpotifyClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SpotifyClient{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
	}
}

// Wire types

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type spotifyExternalURLs struct {
	Spotify string `json:"spotify"`
}

type spotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

type spotifyAlbum struct {
	Images []spotifyImage `json:"images"`
}

type spotifyTrack struct {
	ID      string          `json:"id"`
	URI     string          `json:"uri"`
	Name    string          `json:"name"`
	Artists []spotifyArtist `json:"artists"`
	Album   spotifyAlbum    `json:"album"`
}

// spotifyTrackItem wraps a track in listing responses. Track is a pointer
// because the provider marks some slots unresolvable with a null payload.
type spotifyTrackItem struct {
	Track *spotifyTrack `json:"track"`
}

type spotifyTrackPage struct {
	Items []spotifyTrackItem `json:"items"`
	Total int                `json:"total"`
	Next  *string            `json:"next"`
}

type spotifyPlaylist struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Owner        spotifyOwner        `json:"owner"`
	Public       bool                `json:"public"`
	Images       []spotifyImage      `json:"images"`
	ExternalURLs spotifyExternalURLs `json:"external_urls"`
	Tracks       struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

type spotifyPlaylistPage struct {
	Items []spotifyPlaylist `json:"items"`
	Total int               `json:"total"`
	Next  *string           `json:"next"`
}

// doRequest performs an authenticated request against the Spotify API.
func (c *SpotifyClient) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	apiURL := c.baseURL + endpoint

	var reqBody *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: spotify returned 401", shared.ErrNotAuthenticated)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: spotify returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// CurrentUser retrieves the authenticated user's profile.
func (c *SpotifyClient) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SavedTracksPage retrieves one page of the user's saved-track library.
func (c *SpotifyClient) SavedTracksPage(ctx context.Context, offset int) (*models.TrackPage, error) {
	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", spotifyPageLimit, offset)

	var page spotifyTrackPage
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	return mapTrackPage(page, offset), nil
}

// PlaylistItemsPage retrieves one page of a playlist's tracks.
func (c *SpotifyClient) PlaylistItemsPage(ctx context.Context, playlistID string, offset int) (*models.TrackPage, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d&additional_types=track",
		url.PathEscape(playlistID), spotifyPageLimit, offset)

	var page spotifyTrackPage
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	return mapTrackPage(page, offset), nil
}

// PlaylistsPage retrieves one page of the user's playlists.
func (c *SpotifyClient) PlaylistsPage(ctx context.Context, offset int) (*models.PlaylistPage, error) {
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", spotifyPageLimit, offset)

	var page spotifyPlaylistPage
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	out := &models.PlaylistPage{Total: page.Total, Next: page.Next != nil, NextOffset: offset + spotifyPageLimit}
	for _, pl := range page.Items {
		out.Playlists = append(out.Playlists, mapPlaylist(pl))
	}
	return out, nil
}

// SeveralArtists retrieves up to 50 artists by id in one call. Submitting more
// ids is a caller error.
func (c *SpotifyClient) SeveralArtists(ctx context.Context, ids []string) ([]models.Artist, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > artistBatchLimit {
		return nil, fmt.Errorf("%w: at most %d artist ids per lookup", shared.ErrInvalidInput, artistBatchLimit)
	}

	endpoint := "/artists?ids=" + url.QueryEscape(strings.Join(ids, ","))

	var response struct {
		Artists []*spotifyArtist `json:"artists"`
	}
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	var artists []models.Artist
	for _, artist := range response.Artists {
		if artist == nil || artist.ID == "" {
			continue
		}
		artists = append(artists, models.Artist{ID: artist.ID, Name: artist.Name, Genres: artist.Genres})
	}
	return artists, nil
}

// CreatePlaylist creates a playlist owned by the given user.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*models.Playlist, error) {
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	body := map[string]any{
		"name":        name,
		"public":      public,
		"description": description,
	}

	var created spotifyPlaylist
	if err := c.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}

	playlist := mapPlaylist(created)
	return &playlist, nil
}

// AddPlaylistItems appends up to 100 track URIs to a playlist in one call.
// Submitting more is a caller error.
func (c *SpotifyClient) AddPlaylistItems(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > addItemsLimit {
		return fmt.Errorf("%w: at most %d uris per add call", shared.ErrInvalidInput, addItemsLimit)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	body := map[string][]string{"uris": uris}

	return c.doRequest(ctx, http.MethodPost, endpoint, body, nil)
}

// UnfollowPlaylist removes a playlist from the user's library. Spotify models
// deletion as unfollowing.
func (c *SpotifyClient) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	endpoint := fmt.Sprintf("/playlists/%s/followers", url.PathEscape(playlistID))
	return c.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}

// mapTrackPage converts a wire track page, skipping unresolvable slots.
func mapTrackPage(page spotifyTrackPage, offset int) *models.TrackPage {
	out := &models.TrackPage{Total: page.Total, Next: page.Next != nil, NextOffset: offset + spotifyPageLimit}
	for _, item := range page.Items {
		if item.Track == nil {
			continue
		}
		track, err := models.NewTrack(item.Track.ID, item.Track.URI, item.Track.Name)
		if err != nil {
			continue
		}
		for _, artist := range item.Track.Artists {
			track.Artists = append(track.Artists, artist.Name)
			if artist.ID != "" {
				track.ArtistIDs = append(track.ArtistIDs, artist.ID)
			}
		}
		if len(item.Track.Album.Images) > 0 {
			track.Image = item.Track.Album.Images[0].URL
		}
		out.Tracks = append(out.Tracks, track)
	}
	return out
}

func mapPlaylist(pl spotifyPlaylist) models.Playlist {
	playlist := models.Playlist{
		ID:          pl.ID,
		Name:        pl.Name,
		Description: pl.Description,
		Owner:       pl.Owner.DisplayName,
		TrackCount:  pl.Tracks.Total,
		Public:      pl.Public,
		URL:         pl.ExternalURLs.Spotify,
	}
	if len(pl.Images) > 0 {
		playlist.Image = pl.Images[0].URL
	}
	return playlist
}
