// ReccoBeats audio feature client.
//
// The Spotify audio-features endpoint is deprecated; features come from
// https://api.reccobeats.com/v1/audio-features instead.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nkoorts/vibesort/internal/models"
	"github.com/nkoorts/vibesort/internal/shared"
	"golang.org/x/time/rate"
)

const (
	// featureBatchLimit is the service's hard cap on ids per lookup call.
	featureBatchLimit = 40

	// reccoTimeout bounds every feature lookup call.
	reccoTimeout = 10 * time.Second

	defaultReccoRate = 4.0
)

// ReccoBeats looks up audio features in batches. Calls are rate limited
// client-side and bounded by a fixed timeout; failures are reported as errors
// for the caller to absorb, never retried here.
type ReccoBeats struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// compile-time interface assertion
var _ FeatureSource = (*ReccoBeats)(nil)

// NewReccoBeats creates a feature client against the given base URL.
// ratePerSec caps outgoing request frequency; zero or negative values fall
// back to a conservative default.
func NewReccoBeats(baseURL string, ratePerSec float64) *ReccoBeats {
	if baseURL == "" {
		baseURL = "https://api.reccobeats.com/v1/audio-features"
	}
	if ratePerSec <= 0 {
		ratePerSec = defaultReccoRate
	}
	return &ReccoBeats{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: reccoTimeout},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

// reccoFeatures is one entry of the service's response array.
type reccoFeatures struct {
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Danceability     float64 `json:"danceability"`
	Tempo            float64 `json:"tempo"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
}

// FeaturesBatch looks up feature vectors for up to 40 track ids.
//
// The response contract is positional: the service returns its own ids, not
// the submitted ones, so the i-th result entry is matched to the i-th
// submitted id. Submission order is preserved exactly for that reason. Ids the
// service has no data for yield nil entries.
func (r *ReccoBeats) FeaturesBatch(ctx context.Context, ids []string) ([]*models.FeatureVector, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > featureBatchLimit {
		return nil, fmt.Errorf("%w: at most %d track ids per feature lookup", shared.ErrInvalidInput, featureBatchLimit)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	reqURL := r.baseURL + "?ids=" + url.QueryEscape(strings.Join(ids, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feature service returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var body struct {
		Content []*reccoFeatures `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: malformed feature response: %v", shared.ErrAPIRequest, err)
	}

	vectors := make([]*models.FeatureVector, len(ids))
	for i, feat := range body.Content {
		if feat == nil || i >= len(ids) {
			continue
		}
		vectors[i] = &models.FeatureVector{
			Energy:           feat.Energy,
			Valence:          feat.Valence,
			Danceability:     feat.Danceability,
			Tempo:            feat.Tempo,
			Acousticness:     feat.Acousticness,
			Instrumentalness: feat.Instrumentalness,
		}
	}

	return vectors, nil
}
