// Package maintenance sweeps the index for rows no track references
// anymore. Scans only ever delete the parents of the one track they
// just removed; bulk deletions and crashes can leave orphans behind,
// and this package is what eventually collects them.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"melodex/cache"
	"melodex/logger"
	"melodex/model"
	"melodex/repository"
	"melodex/storage"
)

// Maintenance bulk-deletes orphaned entities with set-based SQL and
// owns the per-owner data reset. Covers and cache are optional; nil
// disables that side effect.
type Maintenance struct {
	db        *sql.DB
	tracks    repository.TrackRepository
	albums    repository.AlbumRepository
	artists   repository.ArtistRepository
	genres    repository.GenreRepository
	playlists repository.PlaylistRepository
	covers    storage.CoverStore
	cache     cache.Cache
}

// NewMaintenance wires the sweeper over the shared database handle and
// the entity repositories.
func NewMaintenance(db *sql.DB, tracks repository.TrackRepository, albums repository.AlbumRepository,
	artists repository.ArtistRepository, genres repository.GenreRepository,
	playlists repository.PlaylistRepository, covers storage.CoverStore, c cache.Cache) *Maintenance {
	return &Maintenance{
		db:        db,
		tracks:    tracks,
		albums:    albums,
		artists:   artists,
		genres:    genres,
		playlists: playlists,
		covers:    covers,
		cache:     c,
	}
}

// Orphan sweeps in dependency order: albums hold the reference to
// artists, so they go first; genres are only referenced by tracks.
// Track existence against the file tree is reconciled by full rescans,
// not here, so a per-row file check is never needed.
const (
	orphanAlbumsWhere = `id NOT IN
		(SELECT DISTINCT album_id FROM music_tracks)`
	orphanArtistsWhere = `id NOT IN
		(SELECT DISTINCT artist_id FROM music_tracks) AND id NOT IN
		(SELECT DISTINCT album_artist_id FROM music_albums)`
	orphanGenresWhere = `id NOT IN
		(SELECT DISTINCT genre_id FROM music_tracks WHERE genre_id IS NOT NULL)`
)

// CleanUp deletes every album, artist and genre row with zero
// referencing rows. A nil userID sweeps all owners; an explicit owner
// scopes the sweep to one library.
//
// There is no locking against concurrent scans: a row that gains a
// reference between the count and the delete is simply skipped by the
// NOT IN predicate of this statement or, at worst, recreated by the
// concurrent resolve — either way the next pass converges.
func (m *Maintenance) CleanUp(ctx context.Context, userID *int64) (*model.CleanupReport, error) {
	report := &model.CleanupReport{}
	touched := make(map[int64]bool)

	removedAlbums, err := m.sweep(ctx, "music_albums", orphanAlbumsWhere, userID, touched)
	if err != nil {
		return report, fmt.Errorf("failed to sweep orphan albums: %w", err)
	}
	report.RemovedAlbums = int(removedAlbums)

	removedArtists, err := m.sweep(ctx, "music_artists", orphanArtistsWhere, userID, touched)
	if err != nil {
		return report, fmt.Errorf("failed to sweep orphan artists: %w", err)
	}
	report.RemovedArtists = int(removedArtists)

	removedGenres, err := m.sweep(ctx, "music_genres", orphanGenresWhere, userID, touched)
	if err != nil {
		return report, fmt.Errorf("failed to sweep orphan genres: %w", err)
	}
	report.RemovedGenres = int(removedGenres)

	if userID != nil && report.RemovedAlbums+report.RemovedArtists+report.RemovedGenres > 0 {
		m.invalidateOwner(ctx, *userID)
	}
	// Owners touched by an all-owners sweep collected their ids before
	// each delete; their cached derived views are stale now.
	for owner := range touched {
		m.invalidateOwner(ctx, owner)
	}

	logger.Info("cleanup finished",
		logger.Any("userID", userID),
		logger.Int("removedAlbums", report.RemovedAlbums),
		logger.Int("removedArtists", report.RemovedArtists),
		logger.Int("removedGenres", report.RemovedGenres))
	return report, nil
}

// sweep deletes the orphans of one table. Scoped to an owner it is a
// single statement; sweeping all owners it first records which owners
// hold matching rows, so their caches can be expired afterwards.
func (m *Maintenance) sweep(ctx context.Context, table, where string, userID *int64,
	touched map[int64]bool) (int64, error) {
	if userID != nil {
		res, err := m.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE `+where+` AND user_id = ?`, *userID)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}

	if m.cache != nil {
		rows, err := m.db.QueryContext(ctx,
			`SELECT DISTINCT user_id FROM `+table+` WHERE `+where)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		for rows.Next() {
			var owner int64
			if err := rows.Scan(&owner); err != nil {
				return 0, err
			}
			touched[owner] = true
		}
		if err := rows.Err(); err != nil {
			return 0, err
		}
	}

	res, err := m.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+where)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetAllData wipes one owner's index: tracks, albums, artists and
// genres are deleted, playlists are emptied but kept, covers are
// dropped and the owner's cache is invalidated. Used by the account
// deletion hook and the explicit reset endpoint.
func (m *Maintenance) ResetAllData(ctx context.Context, userID int64) (*model.CleanupReport, error) {
	report := &model.CleanupReport{}

	tracks, err := m.tracks.FindAllByUserID(ctx, userID)
	if err != nil {
		return report, err
	}
	report.RemovedTracks = len(tracks)

	if err := m.tracks.DeleteAllByUserID(ctx, userID); err != nil {
		return report, err
	}
	if err := m.albums.DeleteAllByUserID(ctx, userID); err != nil {
		return report, err
	}
	if err := m.artists.DeleteAllByUserID(ctx, userID); err != nil {
		return report, err
	}
	if err := m.genres.DeleteAllByUserID(ctx, userID); err != nil {
		return report, err
	}
	if err := m.playlists.ClearAllByUserID(ctx, userID); err != nil {
		return report, err
	}

	if m.covers != nil {
		if err := m.covers.RemoveAll(ctx, userID); err != nil {
			logger.Warn("failed to drop covers on reset",
				logger.Int64("userID", userID), logger.ErrorField(err))
		}
	}
	m.invalidateOwner(ctx, userID)

	logger.Info("library reset", logger.Int64("userID", userID),
		logger.Int("removedTracks", report.RemovedTracks))
	return report, nil
}

// RunPeriodic sweeps all owners every interval until ctx is cancelled.
// Meant to run in its own goroutine next to the server.
func (m *Maintenance) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.CleanUp(ctx, nil); err != nil {
				logger.Error("periodic cleanup failed", logger.ErrorField(err))
			}
		}
	}
}

func (m *Maintenance) invalidateOwner(ctx context.Context, userID int64) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Invalidate(ctx, userID); err != nil {
		logger.Warn("failed to invalidate cache",
			logger.Int64("userID", userID), logger.ErrorField(err))
	}
}
