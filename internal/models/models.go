package models

import "fmt"

// FeatureVector holds the audio descriptor for a single track. All dimensions
// are in [0,1] except Tempo (beats per minute).
type FeatureVector struct {
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Danceability     float64 `json:"danceability"`
	Tempo            float64 `json:"tempo"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
}

// Track represents a track merged from one of the aggregation sources.
//
// Genres and Features start empty and are populated by the join step; the
// identifying fields never change after construction.
type Track struct {
	ID        string         `json:"id"`
	URI       string         `json:"uri"`
	Name      string         `json:"name"`
	Artists   []string       `json:"artists"`
	ArtistIDs []string       `json:"artist_ids"`
	Image     string         `json:"image,omitempty"`
	Genres    []string       `json:"genres"`
	Features  *FeatureVector `json:"audio_features"`
}

// NewTrack constructs a Track and rejects payloads missing the identifiers the
// pipeline depends on.
func NewTrack(id, uri, name string) (Track, error) {
	if uri == "" {
		return Track{}, fmt.Errorf("track %q has no uri", name)
	}
	return Track{ID: id, URI: uri, Name: name, Genres: []string{}}, nil
}

// Artist represents an artist looked up in batch during the join step.
type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

// Playlist represents a playlist owned by or followed by the current user.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
	Image       string `json:"image,omitempty"`
	URL         string `json:"url,omitempty"`
}

// TrackPage is one page of a paginated track listing. Next reports whether the
// provider has more pages after this one; NextOffset is where the following
// page starts.
type TrackPage struct {
	Tracks     []Track
	Total      int
	Next       bool
	NextOffset int
}

// PlaylistPage is one page of a paginated playlist listing.
type PlaylistPage struct {
	Playlists  []Playlist
	Total      int
	Next       bool
	NextOffset int
}

// User is the current user's profile.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// AnalysisMetrics summarizes an aggregated track set. The averages cover only
// tracks that received a feature vector; when no track has one every average
// is zero.
type AnalysisMetrics struct {
	TotalTracks         int     `json:"total_tracks"`
	UniqueArtists       int     `json:"unique_artists"`
	TotalGenres         int     `json:"total_genres"`
	TracksWithFeatures  int     `json:"tracks_with_features"`
	AvgEnergy           float64 `json:"avg_energy"`
	AvgValence          float64 `json:"avg_valence"`
	AvgDanceability     float64 `json:"avg_danceability"`
	AvgTempo            float64 `json:"avg_tempo"`
	AvgAcousticness     float64 `json:"avg_acousticness"`
	AvgInstrumentalness float64 `json:"avg_instrumentalness"`
}

// GenreCount pairs a genre with the number of tracks carrying it.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// AnalysisReport is the payload served by the analyze endpoint.
type AnalysisReport struct {
	Metrics     AnalysisMetrics `json:"metrics"`
	GenreCounts []GenreCount    `json:"genre_counts"`
	Tracks      []Track         `json:"tracks"`
}
