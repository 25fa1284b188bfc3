package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodex/config"
	"melodex/model"
	"melodex/repository"
)

// stubPlaylistRepo serves a fixed playlist set from memory.
type stubPlaylistRepo struct {
	repository.PlaylistRepository
	playlists map[int64]*model.Playlist
}

func (s *stubPlaylistRepo) FindByID(ctx context.Context, userID, id int64) (*model.Playlist, error) {
	playlist, ok := s.playlists[id]
	if !ok || playlist.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return playlist, nil
}

func (s *stubPlaylistRepo) FindAllByUserID(ctx context.Context, userID int64) ([]*model.Playlist, error) {
	out := make([]*model.Playlist, 0, len(s.playlists))
	for _, playlist := range s.playlists {
		if playlist.UserID == userID {
			out = append(out, playlist)
		}
	}
	return out, nil
}

// stubTrackRepo answers FindByIDs in ascending id order, the way the
// database returns rows regardless of the order the ids were asked in.
type stubTrackRepo struct {
	repository.TrackRepository
	tracks map[int64]*model.Track
}

func (s *stubTrackRepo) FindByIDs(ctx context.Context, userID int64, ids []int64) ([]*model.Track, error) {
	seen := make(map[int64]bool)
	out := make([]*model.Track, 0, len(ids))
	for _, id := range ids {
		track, ok := s.tracks[id]
		if !ok || track.UserID != userID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, track)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func newPlaylistFixture(t *testing.T) (*APIHandler, *stubPlaylistRepo, *stubTrackRepo) {
	t.Helper()
	playlists := &stubPlaylistRepo{playlists: map[int64]*model.Playlist{}}
	tracks := &stubTrackRepo{tracks: map[int64]*model.Track{}}
	cfg := &config.Config{JWTSecret: "test-secret"}
	h := NewAPIHandler(cfg, nil, nil, nil, nil, tracks, playlists,
		nil, nil, nil, nil, nil, nil)
	return h, playlists, tracks
}

func addStubTrack(tracks *stubTrackRepo, userID, id int64, title string) {
	tracks.tracks[id] = &model.Track{ID: id, UserID: userID, Title: title}
}

func TestGetPlaylistKeepsStoredOrder(t *testing.T) {
	h, playlists, tracks := newPlaylistFixture(t)
	addStubTrack(tracks, 7, 2, "Two")
	addStubTrack(tracks, 7, 5, "Five")
	addStubTrack(tracks, 7, 9, "Nine")

	playlist := &model.Playlist{ID: 1, UserID: 7, Name: "road trip"}
	playlist.SetTrackIDList([]int64{9, 2, 5})
	playlists.playlists[1] = playlist

	rec := getPlaylist(t, h, "/api/playlists/1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp playlistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []int64{9, 2, 5}, resp.TrackIDs)
	require.Len(t, resp.Tracks, 3)
	assert.Equal(t, "Nine", resp.Tracks[0].Title)
	assert.Equal(t, "Two", resp.Tracks[1].Title)
	assert.Equal(t, "Five", resp.Tracks[2].Title)
}

func TestGetPlaylistFiltersDeletedKeepsRepeats(t *testing.T) {
	h, playlists, tracks := newPlaylistFixture(t)
	addStubTrack(tracks, 7, 2, "Two")
	addStubTrack(tracks, 7, 9, "Nine")
	// Track 5 was deleted after the playlist was written.

	playlist := &model.Playlist{ID: 1, UserID: 7, Name: "repeats"}
	playlist.SetTrackIDList([]int64{9, 5, 2, 9})
	playlists.playlists[1] = playlist

	rec := getPlaylist(t, h, "/api/playlists/1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp playlistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []int64{9, 2, 9}, resp.TrackIDs,
		"dangling ids are dropped, repeats and order survive")
	require.Len(t, resp.Tracks, 3)
	assert.Equal(t, "Nine", resp.Tracks[2].Title)
}

func TestGetPlaylistsFiltersAtReadTime(t *testing.T) {
	h, playlists, tracks := newPlaylistFixture(t)
	addStubTrack(tracks, 7, 3, "Three")

	playlist := &model.Playlist{ID: 4, UserID: 7, Name: "mostly gone"}
	playlist.SetTrackIDList([]int64{8, 3, 6})
	playlists.playlists[4] = playlist

	rec := getPlaylist(t, h, "/api/playlists")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []playlistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, []int64{3}, resp[0].TrackIDs)
}

func getPlaylist(t *testing.T, h *APIHandler, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", bearer(t, 7, "alice"))
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)
	return rec
}
