package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/nkoorts/vibesort/internal/models"
	"github.com/nkoorts/vibesort/internal/services"
	"github.com/nkoorts/vibesort/internal/shared"
	"github.com/nkoorts/vibesort/internal/vibes"
)

const (
	// LikedSource is the sentinel source id for the user's saved-track library.
	LikedSource = "liked"

	// Chunk sizes mirror the providers' hard batch limits.
	artistChunkSize  = 50
	featureChunkSize = 40
	addChunkSize     = 100
)

// SourceResult records the outcome of fetching one aggregation source.
type SourceResult struct {
	Source string `json:"source"`
	Tracks int    `json:"tracks"`
	Err    error  `json:"-"`
}

// Skipped reports whether the source was dropped from the aggregation.
func (s SourceResult) Skipped() bool { return s.Err != nil }

// BatchFailure records a feature batch that could not be joined. Every id in
// the batch ends up without a feature vector.
type BatchFailure struct {
	IDs []string
	Err error
}

// MutationResult reports the outcome of a create-or-append operation.
type MutationResult struct {
	PlaylistID string `json:"playlist_id"`
	URL        string `json:"playlist_url"`
	Added      int    `json:"added"`
	Created    bool   `json:"created"`
}

// VibeResult reports the outcome of building a vibe-filtered playlist.
// Mutation is nil when no track matched the vibe.
type VibeResult struct {
	Vibe     string          `json:"vibe"`
	Matched  int             `json:"matched"`
	Mutation *MutationResult `json:"mutation,omitempty"`
}

// VibeEngine runs the aggregation, join, classification, and mutation stages
// for a single authenticated request.
type VibeEngine struct {
	provider services.Provider
	features services.FeatureSource
	logger   *log.Logger
}

// NewVibeEngine creates an engine bound to a request-scoped provider client.
func NewVibeEngine(provider services.Provider, features services.FeatureSource, logger *log.Logger) *VibeEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &VibeEngine{provider: provider, features: features, logger: logger}
}

// Aggregate merges tracks from the given sources into a single deduplicated
// list. Each source is either [LikedSource] or a playlist id; sources are
// fetched in the given order and fully paginated. Tracks are deduplicated by
// URI: the first occurrence wins and the relative order of first occurrences
// is preserved.
//
// A source that fails to fetch is logged and skipped; its outcome is recorded
// in the returned results. Only an authentication failure aborts the whole
// aggregation.
func (e *VibeEngine) Aggregate(ctx context.Context, sources []string) ([]models.Track, []SourceResult, error) {
	var merged []models.Track
	results := make([]SourceResult, 0, len(sources))
	seen := make(map[string]struct{})

	for _, source := range sources {
		tracks, err := e.fetchSource(ctx, source)
		if err != nil {
			if errors.Is(err, shared.ErrNotAuthenticated) {
				return nil, nil, err
			}
			e.logger.Warn("skipping unreachable source", "source", source, "error", err)
			results = append(results, SourceResult{Source: source, Err: err})
			continue
		}

		added := 0
		for _, track := range tracks {
			if _, dup := seen[track.URI]; dup {
				continue
			}
			seen[track.URI] = struct{}{}
			merged = append(merged, track)
			added++
		}
		results = append(results, SourceResult{Source: source, Tracks: added})
	}

	return merged, results, nil
}

// fetchSource retrieves the full track list of one source, following
// pagination until the provider reports no further pages.
func (e *VibeEngine) fetchSource(ctx context.Context, source string) ([]models.Track, error) {
	var tracks []models.Track
	offset := 0

	for {
		var page *models.TrackPage
		var err error
		if source == LikedSource {
			page, err = e.provider.SavedTracksPage(ctx, offset)
		} else {
			page, err = e.provider.PlaylistItemsPage(ctx, source, offset)
		}
		if err != nil {
			return nil, err
		}

		tracks = append(tracks, page.Tracks...)
		if !page.Next {
			return tracks, nil
		}
		offset = page.NextOffset
	}
}

// JoinGenres attaches artist genres to every track. Artists are looked up in
// chunks; each track's genre set is the union of its artists' genres, sorted
// for deterministic output. An artist lookup failure aborts the join.
func (e *VibeEngine) JoinGenres(ctx context.Context, tracks []models.Track) error {
	artistIDs := distinctOrdered(tracks, func(t models.Track) []string { return t.ArtistIDs })

	genresByArtist := make(map[string][]string, len(artistIDs))
	for _, chunk := range chunked(artistIDs, artistChunkSize) {
		artists, err := e.provider.SeveralArtists(ctx, chunk)
		if err != nil {
			return fmt.Errorf("artist lookup failed: %w", err)
		}
		for _, artist := range artists {
			genresByArtist[artist.ID] = artist.Genres
		}
	}

	for i := range tracks {
		genreSet := make(map[string]struct{})
		for _, artistID := range tracks[i].ArtistIDs {
			for _, genre := range genresByArtist[artistID] {
				genreSet[genre] = struct{}{}
			}
		}
		genres := make([]string, 0, len(genreSet))
		for genre := range genreSet {
			genres = append(genres, genre)
		}
		sort.Strings(genres)
		tracks[i].Genres = genres
	}

	return nil
}

// JoinFeatures attaches audio feature vectors to every track that has an id.
// Ids are submitted in chunks whose order is preserved exactly, because the
// feature service's response is positional. A failed chunk leaves its ids
// without vectors and is recorded in the returned failures; joining continues
// for the remaining chunks.
func (e *VibeEngine) JoinFeatures(ctx context.Context, tracks []models.Track) []BatchFailure {
	trackIDs := distinctOrdered(tracks, func(t models.Track) []string {
		if t.ID == "" {
			return nil
		}
		return []string{t.ID}
	})

	var failures []BatchFailure
	vectorsByID := make(map[string]*models.FeatureVector, len(trackIDs))

	for _, chunk := range chunked(trackIDs, featureChunkSize) {
		vectors, err := e.features.FeaturesBatch(ctx, chunk)
		if err != nil {
			e.logger.Warn("feature batch failed", "ids", len(chunk), "error", err)
			failures = append(failures, BatchFailure{IDs: chunk, Err: err})
			continue
		}
		for i, vector := range vectors {
			if vector != nil {
				vectorsByID[chunk[i]] = vector
			}
		}
	}

	for i := range tracks {
		tracks[i].Features = vectorsByID[tracks[i].ID]
	}

	return failures
}

// Analyze runs aggregation and both joins over the given sources and computes
// the summary report.
func (e *VibeEngine) Analyze(ctx context.Context, sources []string) (*models.AnalysisReport, error) {
	tracks, _, err := e.Aggregate(ctx, sources)
	if err != nil {
		return nil, err
	}

	if err := e.JoinGenres(ctx, tracks); err != nil {
		return nil, err
	}
	e.JoinFeatures(ctx, tracks)

	report := &models.AnalysisReport{
		Metrics:     computeMetrics(tracks),
		GenreCounts: countGenres(tracks),
		Tracks:      tracks,
	}
	if report.Tracks == nil {
		report.Tracks = []models.Track{}
	}
	return report, nil
}

// EnsurePlaylist makes sure a playlist with the given name contains all the
// given URIs.
//
// The destination is resolved by exact name match over the user's playlists;
// the first match wins and name collisions are not disambiguated. When no
// playlist matches, a new private one is created. Existing membership is read
// in full before anything is added, so URIs already present are not re-added;
// the remainder is appended in original relative order.
func (e *VibeEngine) EnsurePlaylist(ctx context.Context, name, description string, uris []string) (*MutationResult, error) {
	user, err := e.provider.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	target, err := e.findPlaylistByName(ctx, name)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]struct{})
	created := false

	if target == nil {
		target, err = e.provider.CreatePlaylist(ctx, user.ID, name, description, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create playlist %q: %w", name, err)
		}
		created = true
		e.logger.Info("created playlist", "name", name, "id", target.ID)
	} else {
		e.logger.Info("reusing existing playlist", "name", name, "id", target.ID)
		offset := 0
		for {
			page, err := e.provider.PlaylistItemsPage(ctx, target.ID, offset)
			if err != nil {
				return nil, fmt.Errorf("failed to read playlist %q: %w", name, err)
			}
			for _, track := range page.Tracks {
				existing[track.URI] = struct{}{}
			}
			if !page.Next {
				break
			}
			offset = page.NextOffset
		}
	}

	var toAdd []string
	for _, uri := range uris {
		if _, present := existing[uri]; present {
			continue
		}
		existing[uri] = struct{}{}
		toAdd = append(toAdd, uri)
	}

	for _, chunk := range chunked(toAdd, addChunkSize) {
		if err := e.provider.AddPlaylistItems(ctx, target.ID, chunk); err != nil {
			return nil, fmt.Errorf("failed to add tracks to %q: %w", name, err)
		}
	}

	return &MutationResult{
		PlaylistID: target.ID,
		URL:        target.URL,
		Added:      len(toAdd),
		Created:    created,
	}, nil
}

// CreateVibePlaylist aggregates the given sources, keeps the tracks matching
// the named vibe, and ensures a playlist with the given name contains them.
// The vibe name is validated before any fetch work begins. Zero matches is a
// valid empty result: no playlist is touched and Mutation is nil.
func (e *VibeEngine) CreateVibePlaylist(ctx context.Context, name string, sources []string, vibeName string) (*VibeResult, error) {
	vibe, err := vibes.Lookup(vibeName)
	if err != nil {
		return nil, err
	}

	tracks, _, err := e.Aggregate(ctx, sources)
	if err != nil {
		return nil, err
	}
	e.JoinFeatures(ctx, tracks)

	var uris []string
	for _, track := range tracks {
		if vibe.Matches(track.Features) {
			uris = append(uris, track.URI)
		}
	}

	result := &VibeResult{Vibe: vibe.Name, Matched: len(uris)}
	if len(uris) == 0 {
		return result, nil
	}

	description := fmt.Sprintf("Generated %s playlist by vibesort", vibe.Name)
	mutation, err := e.EnsurePlaylist(ctx, name, description, uris)
	if err != nil {
		return nil, err
	}
	result.Mutation = mutation
	return result, nil
}

// findPlaylistByName paginates the user's playlists and returns the first one
// with the exact name, or nil when none matches.
func (e *VibeEngine) findPlaylistByName(ctx context.Context, name string) (*models.Playlist, error) {
	offset := 0
	for {
		page, err := e.provider.PlaylistsPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		for _, playlist := range page.Playlists {
			if playlist.Name == name {
				return &playlist, nil
			}
		}
		if !page.Next {
			return nil, nil
		}
		offset = page.NextOffset
	}
}

// computeMetrics builds the summary block. Averages cover only tracks with a
// feature vector; with zero such tracks every average is zero.
func computeMetrics(tracks []models.Track) models.AnalysisMetrics {
	metrics := models.AnalysisMetrics{TotalTracks: len(tracks)}

	artistSet := make(map[string]struct{})
	genreSet := make(map[string]struct{})
	var sum models.FeatureVector
	withFeatures := 0

	for _, track := range tracks {
		for _, artistID := range track.ArtistIDs {
			artistSet[artistID] = struct{}{}
		}
		for _, genre := range track.Genres {
			genreSet[genre] = struct{}{}
		}
		if track.Features == nil {
			continue
		}
		sum.Energy += track.Features.Energy
		sum.Valence += track.Features.Valence
		sum.Danceability += track.Features.Danceability
		sum.Tempo += track.Features.Tempo
		sum.Acousticness += track.Features.Acousticness
		sum.Instrumentalness += track.Features.Instrumentalness
		withFeatures++
	}

	metrics.UniqueArtists = len(artistSet)
	metrics.TotalGenres = len(genreSet)
	metrics.TracksWithFeatures = withFeatures

	if withFeatures > 0 {
		n := float64(withFeatures)
		metrics.AvgEnergy = shared.Round(sum.Energy/n, 2)
		metrics.AvgValence = shared.Round(sum.Valence/n, 2)
		metrics.AvgDanceability = shared.Round(sum.Danceability/n, 2)
		metrics.AvgTempo = shared.Round(sum.Tempo/n, 1)
		metrics.AvgAcousticness = shared.Round(sum.Acousticness/n, 2)
		metrics.AvgInstrumentalness = shared.Round(sum.Instrumentalness/n, 2)
	}

	return metrics
}

// countGenres tallies genre frequency across tracks, most frequent first,
// ties broken alphabetically.
func countGenres(tracks []models.Track) []models.GenreCount {
	counts := make(map[string]int)
	for _, track := range tracks {
		for _, genre := range track.Genres {
			counts[genre]++
		}
	}

	out := make([]models.GenreCount, 0, len(counts))
	for genre, count := range counts {
		out = append(out, models.GenreCount{Genre: genre, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Genre < out[j].Genre
	})
	return out
}

// distinctOrdered collects values from tracks preserving first-seen order.
func distinctOrdered(tracks []models.Track, extract func(models.Track) []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, track := range tracks {
		for _, value := range extract(track) {
			if _, dup := seen[value]; dup {
				continue
			}
			seen[value] = struct{}{}
			out = append(out, value)
		}
	}
	return out
}

// chunked splits values into consecutive chunks of at most size elements.
func chunked(values []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := min(start+size, len(values))
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
