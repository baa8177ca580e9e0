package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/nkoorts/vibesort/internal/formatter"
	"github.com/nkoorts/vibesort/internal/models"
	"github.com/nkoorts/vibesort/internal/services"
	"github.com/nkoorts/vibesort/internal/shared"
	"github.com/nkoorts/vibesort/internal/tasks"
	"github.com/nkoorts/vibesort/internal/vibes"
)

// likedSongsImage is the cover Spotify renders for the saved-tracks library.
const likedSongsImage = "https://misc.scdn.co/liked-songs/liked-songs-300.png"

// APIHandler serves the JSON API consumed by the frontend.
// Implements the [Handler] interface for registration with a [Router].
type APIHandler struct {
	sessions    Authenticator
	features    services.FeatureSource
	frontendURL string
	logger      *log.Logger
	mux         *http.ServeMux
}

// NewAPIHandler creates the API handler. Requests are resolved to Spotify
// clients per-request through the given session authenticator.
func NewAPIHandler(sessions Authenticator, features services.FeatureSource, frontendURL string, logger *log.Logger) *APIHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	h := &APIHandler{
		sessions:    sessions,
		features:    features,
		frontendURL: frontendURL,
		logger:      logger,
		mux:         http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /{$}", h.handleHealth)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /login", h.handleLogin)
	h.mux.HandleFunc("GET /callback", h.handleCallback)
	h.mux.HandleFunc("GET /api/status", h.handleStatus)
	h.mux.HandleFunc("POST /api/logout", h.handleLogout)
	h.mux.HandleFunc("GET /api/playlists", h.handlePlaylists)
	h.mux.HandleFunc("GET /api/analyze", h.handleAnalyze)
	h.mux.HandleFunc("POST /api/create_playlist", h.handleCreatePlaylist)
	h.mux.HandleFunc("POST /api/create_vibe_playlist", h.handleCreateVibePlaylist)
	h.mux.HandleFunc("DELETE /api/delete_playlist/{id}", h.handleDeletePlaylist)

	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{"/"}
}

// ServeHTTP dispatches to the handler's internal mux.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *APIHandler) engine(provider services.Provider) *tasks.VibeEngine {
	return tasks.NewVibeEngine(provider, h.features, h.logger)
}

func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "vibesort"})
}

func (h *APIHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.sessions.SetState(w, state)
	http.Redirect(w, r, h.sessions.AuthURL(state), http.StatusTemporaryRedirect)
}

func (h *APIHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("authorization denied", "error", errParam)
		writeError(w, http.StatusBadRequest, "authorization failed: "+errParam)
		return
	}

	if err := h.sessions.CheckState(w, r, query.Get("state")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid state parameter")
		return
	}

	code := query.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	if err := h.sessions.Establish(w, r, code); err != nil {
		h.logger.Error("failed to establish session", "error", err)
		writeError(w, http.StatusInternalServerError, "token exchange failed")
		return
	}

	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

// handleStatus reports authentication state. An unauthenticated browser gets
// a 200 with authenticated false, not a 401, so the frontend can poll it.
func (h *APIHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	provider, err := h.sessions.ProviderFor(r)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	user, err := provider.CurrentUser(r.Context())
	if err != nil {
		h.logger.Warn("profile lookup failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": user})
}

func (h *APIHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
}

// handlePlaylists lists the user's playlists with a synthetic "Liked Songs"
// entry prepended so the library can be picked as an aggregation source.
func (h *APIHandler) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	provider, err := h.sessions.ProviderFor(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	saved, err := provider.SavedTracksPage(r.Context(), 0)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	playlists := []models.Playlist{{
		ID:         tasks.LikedSource,
		Name:       "Liked Songs",
		Owner:      "You",
		TrackCount: saved.Total,
		Image:      likedSongsImage,
	}}

	offset := 0
	for {
		page, err := provider.PlaylistsPage(r.Context(), offset)
		if err != nil {
			h.writeFailure(w, err)
			return
		}
		playlists = append(playlists, page.Playlists...)
		if !page.Next {
			break
		}
		offset = page.NextOffset
	}

	writeJSON(w, http.StatusOK, map[string]any{"playlists": playlists})
}

func (h *APIHandler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	provider, err := h.sessions.ProviderFor(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	sources := splitIDs(r.URL.Query().Get("playlist_ids"))
	if len(sources) == 0 {
		sources = []string{tasks.LikedSource}
	}

	report, err := h.engine(provider).Analyze(r.Context(), sources)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		data, err := formatter.ExportTracksToCSV(report.Tracks)
		if err != nil {
			h.writeFailure(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="analysis.csv"`)
		w.Write(data)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type createPlaylistRequest struct {
	Name      string   `json:"name"`
	TrackURIs []string `json:"track_uris"`
}

func (h *APIHandler) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	provider, err := h.sessions.ProviderFor(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	var req createPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	result, err := h.engine(provider).EnsurePlaylist(r.Context(), req.Name, "Created with vibesort", req.TrackURIs)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// idList decodes a playlist id list sent either as a JSON array or as the
// comma-separated string form the frontend uses.
type idList []string

func (l *idList) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*l = splitIDs(raw)
		return nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*l = ids
	return nil
}

type createVibePlaylistRequest struct {
	Name              string `json:"name"`
	SourcePlaylistIDs idList `json:"source_playlist_ids"`
	Vibe              string `json:"vibe"`
}

func (h *APIHandler) handleCreateVibePlaylist(w http.ResponseWriter, r *http.Request) {
	provider, err := h.sessions.ProviderFor(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	var req createVibePlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Vibe == "" {
		writeError(w, http.StatusBadRequest, "name and vibe are required")
		return
	}
	if len(req.SourcePlaylistIDs) == 0 {
		req.SourcePlaylistIDs = []string{tasks.LikedSource}
	}

	result, err := h.engine(provider).CreateVibePlaylist(r.Context(), req.Name, req.SourcePlaylistIDs, req.Vibe)
	if err != nil {
		if errors.Is(err, vibes.ErrUnknownVibe) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	provider, err := h.sessions.ProviderFor(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	id := r.PathValue("id")
	if err := provider.UnfollowPlaylist(r.Context(), id); err != nil {
		h.writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

// writeFailure maps pipeline errors onto the API error surface.
func (h *APIHandler) writeFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrNotAuthenticated) {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	h.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Status is already written; an encode failure here is unrecoverable.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// splitIDs parses a comma-separated id list, dropping empty entries.
func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
