package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"melodex/model"
	"melodex/repository"
)

type playlistRequest struct {
	Name     string  `json:"name"`
	TrackIDs []int64 `json:"trackIds"`
}

type playlistResponse struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	TrackIDs []int64        `json:"trackIds"`
	Tracks   []*model.Track `json:"tracks,omitempty"`
}

// GetPlaylistsHandler lists the user's playlists. Track ids of tracks
// deleted since the playlist was written are filtered out here; the
// stored lists are weak references and never eagerly rewritten by
// bulk cleanup.
func (h *APIHandler) GetPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	playlists, err := h.playlists.FindAllByUserID(r.Context(), userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]*playlistResponse, 0, len(playlists))
	for _, playlist := range playlists {
		live, err := h.liveTrackIDs(r, userID, playlist)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		out = append(out, &playlistResponse{ID: playlist.ID, Name: playlist.Name, TrackIDs: live})
	}
	respondJSON(w, http.StatusOK, out)
}

// GetPlaylistHandler returns one playlist with its surviving tracks.
func (h *APIHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid playlist id", http.StatusBadRequest)
		return
	}

	playlist, err := h.playlists.FindByID(r.Context(), userID, id)
	if err == repository.ErrNotFound {
		http.Error(w, "Playlist not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	tracks, err := h.tracks.FindByIDs(r.Context(), userID, playlist.TrackIDList())
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	byID := make(map[int64]*model.Track, len(tracks))
	for _, track := range tracks {
		byID[track.ID] = track
	}
	// Walk the stored list, not the query result: the playlist order is
	// the user's, and a track listed twice stays listed twice.
	live := make([]int64, 0, len(tracks))
	ordered := make([]*model.Track, 0, len(tracks))
	for _, id := range playlist.TrackIDList() {
		track, ok := byID[id]
		if !ok {
			continue
		}
		live = append(live, id)
		ordered = append(ordered, track)
	}
	respondJSON(w, http.StatusOK, &playlistResponse{
		ID: playlist.ID, Name: playlist.Name, TrackIDs: live, Tracks: ordered,
	})
}

// CreatePlaylistHandler creates a playlist.
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Playlist name is required", http.StatusBadRequest)
		return
	}

	playlist := &model.Playlist{UserID: userID, Name: req.Name}
	playlist.SetTrackIDList(req.TrackIDs)
	if err := h.playlists.Create(r.Context(), playlist); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, &playlistResponse{
		ID: playlist.ID, Name: playlist.Name, TrackIDs: playlist.TrackIDList(),
	})
}

// UpdatePlaylistHandler renames a playlist or replaces its track list.
func (h *APIHandler) UpdatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid playlist id", http.StatusBadRequest)
		return
	}
	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	playlist, err := h.playlists.FindByID(r.Context(), userID, id)
	if err == repository.ErrNotFound {
		http.Error(w, "Playlist not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if req.Name != "" {
		playlist.Name = req.Name
	}
	if req.TrackIDs != nil {
		playlist.SetTrackIDList(req.TrackIDs)
	}
	if err := h.playlists.Update(r.Context(), playlist); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, &playlistResponse{
		ID: playlist.ID, Name: playlist.Name, TrackIDs: playlist.TrackIDList(),
	})
}

// DeletePlaylistHandler removes a playlist. Tracks are untouched.
func (h *APIHandler) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid playlist id", http.StatusBadRequest)
		return
	}
	if err := h.playlists.Delete(r.Context(), userID, id); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// liveTrackIDs filters deleted tracks out of the stored list while
// keeping the stored order and any repeats. The database returns the
// surviving rows in its own order; only membership is taken from it.
func (h *APIHandler) liveTrackIDs(r *http.Request, userID int64, playlist *model.Playlist) ([]int64, error) {
	tracks, err := h.tracks.FindByIDs(r.Context(), userID, playlist.TrackIDList())
	if err != nil {
		return nil, err
	}
	alive := make(map[int64]bool, len(tracks))
	for _, track := range tracks {
		alive[track.ID] = true
	}
	live := make([]int64, 0, len(tracks))
	for _, id := range playlist.TrackIDList() {
		if alive[id] {
			live = append(live, id)
		}
	}
	return live, nil
}
