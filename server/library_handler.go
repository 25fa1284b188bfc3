package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"melodex/cache"
	"melodex/logger"
	"melodex/model"
	"melodex/repository"
)

const collectionTTL = 24 * time.Hour

// GetCollectionHandler serves the merged artists→albums→tracks tree.
// The serialized form is memoized under a freshness-fingerprint key,
// so a library change simply makes the old entry unreachable instead
// of requiring eager invalidation.
func (h *APIHandler) GetCollectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	latest, err := h.tracks.LatestUpdatedAt(r.Context(), userID)
	if err != nil {
		logger.Error("failed to compute library fingerprint", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	key := cache.CollectionKey(latest.UTC().Format(time.RFC3339Nano))

	if h.cache != nil {
		if data, err := h.cache.Get(r.Context(), userID, key); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(data)
			return
		}
	}

	collection, err := h.buildCollection(r.Context(), userID)
	if err != nil {
		logger.Error("failed to build collection", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	data, err := json.Marshal(collection)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if h.cache != nil {
		if err := h.cache.Put(r.Context(), userID, key, data, collectionTTL); err != nil {
			logger.Warn("failed to cache collection", logger.ErrorField(err))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (h *APIHandler) buildCollection(ctx context.Context, userID int64) (*model.Collection, error) {
	artists, err := h.artists.FindAllByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	albums, err := h.albums.FindAllByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	tracks, err := h.tracks.FindAllByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	tracksByAlbum := make(map[int64][]*model.Track)
	for _, track := range tracks {
		tracksByAlbum[track.AlbumID] = append(tracksByAlbum[track.AlbumID], track)
	}
	albumsByArtist := make(map[int64][]*model.CollectionAlbum)
	for _, album := range albums {
		albumsByArtist[album.AlbumArtistID] = append(albumsByArtist[album.AlbumArtistID], &model.CollectionAlbum{
			ID:     album.ID,
			Name:   album.Name,
			Year:   album.Year,
			Cover:  album.CoverFileID != nil,
			Tracks: tracksByAlbum[album.ID],
		})
	}

	collection := &model.Collection{Artists: make([]*model.CollectionArtist, 0, len(artists))}
	for _, artist := range artists {
		collection.Artists = append(collection.Artists, &model.CollectionArtist{
			ID:     artist.ID,
			Name:   artist.Name,
			Albums: albumsByArtist[artist.ID],
		})
	}
	return collection, nil
}

// GetArtistsHandler lists the user's artists.
func (h *APIHandler) GetArtistsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	artists, err := h.artists.FindAllByUserID(r.Context(), userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, artists)
}

// GetAlbumsHandler lists the user's albums.
func (h *APIHandler) GetAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	albums, err := h.albums.FindAllByUserID(r.Context(), userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, albums)
}

// GetGenresHandler lists the user's genres.
func (h *APIHandler) GetGenresHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	genres, err := h.genres.FindAllByUserID(r.Context(), userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, genres)
}

// GetTracksHandler lists the user's tracks.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	tracks, err := h.tracks.FindAllByUserID(r.Context(), userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, tracks)
}

// StarHandler stars or unstars an artist, album or track.
func (h *APIHandler) StarHandler(starred bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := GetUserIDFromContext(r.Context())
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		kind, id, ok := entityVars(w, r)
		if !ok {
			return
		}

		switch kind {
		case "artists":
			err = h.artists.SetStarred(r.Context(), userID, id, starred)
		case "albums":
			err = h.albums.SetStarred(r.Context(), userID, id, starred)
		case "tracks":
			err = h.tracks.SetStarred(r.Context(), userID, id, starred)
		default:
			http.Error(w, "Unknown entity kind", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

// RatingHandler sets the 0-5 rating of an artist, album or track.
func (h *APIHandler) RatingHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	kind, id, ok := entityVars(w, r)
	if !ok {
		return
	}

	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		http.Error(w, "Rating must be between 0 and 5", http.StatusBadRequest)
		return
	}

	switch kind {
	case "artists":
		err = h.artists.SetRating(r.Context(), userID, id, req.Rating)
	case "albums":
		err = h.albums.SetRating(r.Context(), userID, id, req.Rating)
	case "tracks":
		err = h.tracks.SetRating(r.Context(), userID, id, req.Rating)
	default:
		http.Error(w, "Unknown entity kind", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCoverHandler serves an album's cover image, memoized in the
// cache under the album-scoped cover key.
func (h *APIHandler) GetCoverHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid album id", http.StatusBadRequest)
		return
	}

	album, err := h.albums.FindByID(r.Context(), userID, id)
	if err == repository.ErrNotFound {
		http.Error(w, "Album not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if album.CoverFileID == nil || h.covers == nil {
		http.Error(w, "No cover for album", http.StatusNotFound)
		return
	}

	key := cache.CoverKey(album.ID)
	if h.cache != nil {
		if data, err := h.cache.Get(r.Context(), userID, key); err == nil {
			w.Header().Set("Content-Type", http.DetectContentType(data))
			w.Write(data)
			return
		}
	}

	data, contentType, err := h.covers.Get(r.Context(), userID, album.ID)
	if err != nil {
		logger.Warn("failed to load cover", logger.Int64("albumID", album.ID), logger.ErrorField(err))
		http.Error(w, "No cover for album", http.StatusNotFound)
		return
	}
	if h.cache != nil {
		if err := h.cache.Put(r.Context(), userID, key, data, 0); err != nil {
			logger.Warn("failed to cache cover", logger.ErrorField(err))
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// entityVars parses the {kind} and {id} route variables.
func entityVars(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return "", 0, false
	}
	return vars["kind"], id, true
}
