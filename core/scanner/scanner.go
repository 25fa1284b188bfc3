// Package scanner keeps the music index in sync with the file tree.
// It is the single write path for tracks: tree scans, hook-driven
// single-file updates and deletions all funnel through here.
//
// There is no cross-request locking. Concurrent scans and hook
// callbacks stay correct because every track upsert is keyed by the
// stable file id, entity creation recovers from lost insert races,
// and each per-file write is its own atomic unit.
package scanner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"melodex/cache"
	"melodex/core/filetree"
	"melodex/core/metadata"
	"melodex/logger"
	"melodex/model"
	"melodex/repository"
	"melodex/storage"
)

// Progress is one tick of a running tree scan.
type Progress struct {
	FilesScanned int    `json:"filesScanned"`
	CurrentPath  string `json:"currentPath"`
}

// ProgressFunc consumes scan progress ticks. Delivery is best-effort
// and at-least-once; the callback must not block for long.
type ProgressFunc func(Progress)

// Scanner orchestrates walk, extraction, entity resolution and track
// upserts. Covers and cache are optional collaborators; a nil value
// disables that side effect.
type Scanner struct {
	tree      filetree.FileTree
	extractor metadata.Extractor
	resolver  *EntityResolver
	tracks    repository.TrackRepository
	albums    repository.AlbumRepository
	artists   repository.ArtistRepository
	genres    repository.GenreRepository
	playlists repository.PlaylistRepository
	covers    storage.CoverStore
	cache     cache.Cache
}

// NewScanner wires a scanner over its collaborators.
func NewScanner(tree filetree.FileTree, extractor metadata.Extractor, resolver *EntityResolver,
	tracks repository.TrackRepository, albums repository.AlbumRepository,
	artists repository.ArtistRepository, genres repository.GenreRepository,
	playlists repository.PlaylistRepository, covers storage.CoverStore, c cache.Cache) *Scanner {
	return &Scanner{
		tree:      tree,
		extractor: extractor,
		resolver:  resolver,
		tracks:    tracks,
		albums:    albums,
		artists:   artists,
		genres:    genres,
		playlists: playlists,
		covers:    covers,
		cache:     c,
	}
}

// ResolveOwnerFolder maps a user to their library subtree in the file
// tree.
func (s *Scanner) ResolveOwnerFolder(user *model.User) (string, error) {
	return s.tree.ResolveOwnerRoot(user.Username)
}

// ScanTree walks the subtree under root and indexes every audio file.
//
// With full=true every file is re-processed and, afterwards, every
// previously indexed track whose file was not encountered is deleted;
// this reconciles deletions that happened while the engine was not
// watching. With full=false, files whose mtime is not newer than the
// track's last update are skipped.
//
// Cancelling ctx stops the walk between files and returns the context
// error; files already processed keep their rows, so the index is
// valid, just partial.
func (s *Scanner) ScanTree(ctx context.Context, userID int64, root string, full bool,
	progress ProgressFunc) (*model.ScanReport, error) {
	start := time.Now()
	report := &model.ScanReport{}

	existing, err := s.indexedUnder(ctx, userID, root, full)
	if err != nil {
		return report, err
	}

	seen := make(map[int64]bool)
	err = s.tree.Walk(ctx, root, func(ref filetree.FileRef) error {
		report.FilesScanned++
		if progress != nil {
			progress(Progress{FilesScanned: report.FilesScanned, CurrentPath: ref.Path})
		}
		seen[ref.FileID] = true

		if prev, ok := existing[ref.FileID]; ok && !full && !ref.MTime.After(prev.UpdatedAt) {
			report.Skipped++
			return nil
		}

		if err := s.processFile(ctx, userID, ref); err != nil {
			if errors.Is(err, metadata.ErrExtraction) {
				logger.Warn("skipping unreadable file",
					logger.String("path", ref.Path), logger.ErrorField(err))
				report.Failed++
				return nil
			}
			return err
		}
		report.TracksUpdated++
		return nil
	})
	if err != nil {
		report.Duration = time.Since(start)
		return report, err
	}

	if full {
		var staleIDs []int64
		for fileID, track := range existing {
			if !seen[fileID] {
				staleIDs = append(staleIDs, track.ID)
			}
		}
		removed, err := s.tracks.DeleteByIDs(ctx, staleIDs)
		if err != nil {
			return report, err
		}
		report.TracksRemoved = int(removed)
	}

	if report.TracksUpdated > 0 || report.TracksRemoved > 0 {
		s.invalidateOwner(ctx, userID)
	}

	report.Duration = time.Since(start)
	logger.Info("scan finished",
		logger.Int64("userID", userID),
		logger.String("root", root),
		logger.Bool("full", full),
		logger.Int("files", report.FilesScanned),
		logger.Int("updated", report.TracksUpdated),
		logger.Int("removed", report.TracksRemoved),
		logger.Int("skipped", report.Skipped),
		logger.Int("failed", report.Failed),
		logger.Duration("took", report.Duration))
	return report, nil
}

// UpdateOne indexes exactly one file: extraction, entity resolution
// and track upsert, without touching any other row. A file that
// vanished between the triggering event and now is treated as a
// deletion.
func (s *Scanner) UpdateOne(ctx context.Context, userID, fileID int64, path string) error {
	if !metadata.IsAudioPath(path) {
		return nil
	}
	ref, err := s.tree.Stat(path)
	if err != nil {
		if errors.Is(err, filetree.ErrNotFound) {
			return s.DeleteByFileID(ctx, userID, fileID)
		}
		return err
	}
	if err := s.processFile(ctx, userID, ref); err != nil {
		return err
	}
	s.invalidateOwner(ctx, userID)
	return nil
}

// DeleteByFileID removes the track backing a file and, in the same
// call, garbage-collects any album, artist or genre row left without
// references, scrubs the track id from the owner's playlists and
// invalidates the owner's cache. A file that was never indexed is a
// no-op.
func (s *Scanner) DeleteByFileID(ctx context.Context, userID, fileID int64) error {
	track, err := s.tracks.DeleteByFileID(ctx, userID, fileID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil
		}
		return err
	}

	if err := s.collectTrackParents(ctx, userID, track); err != nil {
		return err
	}
	if err := s.playlists.RemoveTrackFromAll(ctx, userID, track.ID); err != nil {
		return err
	}
	s.invalidateOwner(ctx, userID)
	return nil
}

// DeleteByPath removes whatever the index holds for a path that
// disappeared: the single track backing it, or every track nested
// under it when the path was a directory. Used by the watcher, which
// only learns the vanished path, not the file id.
func (s *Scanner) DeleteByPath(ctx context.Context, userID int64, path string) error {
	nested, err := s.tracks.FindUnderPath(ctx, userID, path)
	if err != nil {
		return err
	}
	for _, track := range nested {
		if err := s.DeleteByFileID(ctx, userID, track.FileID); err != nil {
			return err
		}
	}

	siblings, err := s.tracks.FindUnderPath(ctx, userID, filepath.Dir(path))
	if err != nil {
		return err
	}
	for _, track := range siblings {
		if track.FilePath != path {
			continue
		}
		if err := s.DeleteByFileID(ctx, userID, track.FileID); err != nil {
			return err
		}
	}
	return nil
}

// FolderMoved re-resolves every track that was nested under oldPath.
// When the folder landed inside the monitored root, its files are
// re-processed under their new paths; tracks whose files did not
// reappear, and the whole folder when it moved out of the root, are
// deleted with the usual cascade.
func (s *Scanner) FolderMoved(ctx context.Context, userID int64, oldPath, newPath, root string) error {
	stale, err := s.tracks.FindUnderPath(ctx, userID, oldPath)
	if err != nil {
		return err
	}

	seen := make(map[int64]bool)
	if PathIsUnder(newPath, root) {
		err = s.tree.Walk(ctx, newPath, func(ref filetree.FileRef) error {
			seen[ref.FileID] = true
			if err := s.processFile(ctx, userID, ref); err != nil {
				if errors.Is(err, metadata.ErrExtraction) {
					logger.Warn("skipping unreadable file",
						logger.String("path", ref.Path), logger.ErrorField(err))
					return nil
				}
				return err
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	for _, track := range stale {
		if seen[track.FileID] {
			continue
		}
		if err := s.DeleteByFileID(ctx, userID, track.FileID); err != nil {
			return err
		}
	}
	s.invalidateOwner(ctx, userID)
	return nil
}

// processFile is the per-file unit of work shared by all write paths:
// extract, resolve entities, upsert the track, capture the cover.
func (s *Scanner) processFile(ctx context.Context, userID int64, ref filetree.FileRef) error {
	meta, err := s.extractor.Extract(ref.Path)
	if err != nil {
		return err
	}

	artistName := meta.Artist
	if artistName == "" {
		artistName = meta.AlbumArtist
	}
	artist, err := s.resolver.ResolveArtist(ctx, userID, artistName)
	if err != nil {
		return err
	}

	albumArtist := artist
	if albumArtistName := strings.TrimSpace(meta.AlbumArtist); albumArtistName != "" &&
		NameHash(albumArtistName) != artist.Hash {
		albumArtist, err = s.resolver.ResolveArtist(ctx, userID, albumArtistName)
		if err != nil {
			return err
		}
	}

	album, err := s.resolver.ResolveAlbum(ctx, userID, meta.Album, meta.Year, albumArtist.ID)
	if err != nil {
		return err
	}

	genre, err := s.resolver.ResolveGenre(ctx, userID, meta.Genre)
	if err != nil {
		return err
	}

	mimetype := meta.Mimetype
	if mimetype == "" {
		mimetype = ref.Mimetype
	}
	track := &model.Track{
		UserID:      userID,
		FileID:      ref.FileID,
		FilePath:    ref.Path,
		Title:       meta.Title,
		TrackNumber: meta.TrackNumber,
		DiskNumber:  meta.DiskNumber,
		Length:      meta.Length,
		Bitrate:     meta.Bitrate,
		Mimetype:    mimetype,
		ArtistID:    artist.ID,
		AlbumID:     album.ID,
		GenreID:     &genre.ID,
	}
	if _, err := s.tracks.Upsert(ctx, track); err != nil {
		return err
	}

	if len(meta.CoverBytes) > 0 && s.covers != nil {
		if album.CoverFileID == nil || *album.CoverFileID == ref.FileID {
			if err := s.setAlbumCover(ctx, userID, album.ID, ref.FileID, meta.CoverBytes, meta.CoverMime); err != nil {
				// A cover is decoration; its storage failing must not
				// fail the track.
				logger.Warn("failed to store album cover",
					logger.Int64("albumID", album.ID), logger.ErrorField(err))
			}
		}
	}
	return nil
}

func (s *Scanner) setAlbumCover(ctx context.Context, userID, albumID, fileID int64,
	data []byte, contentType string) error {
	if err := s.covers.Put(ctx, userID, albumID, data, contentType); err != nil {
		return err
	}
	if err := s.albums.SetCover(ctx, albumID, &fileID); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID, cache.CoverKey(albumID)); err != nil {
			logger.Warn("failed to invalidate cover cache",
				logger.Int64("albumID", albumID), logger.ErrorField(err))
		}
	}
	return nil
}

// collectTrackParents removes the deleted track's album, artist and
// genre when nothing references them anymore. Album first: it holds
// the reference to the artist.
func (s *Scanner) collectTrackParents(ctx context.Context, userID int64, track *model.Track) error {
	albumRefs, err := s.albums.CountReferences(ctx, userID, track.AlbumID)
	if err != nil {
		return err
	}
	if albumRefs == 0 {
		if err := s.albums.DeleteByIDs(ctx, []int64{track.AlbumID}); err != nil {
			return err
		}
		if s.covers != nil {
			if err := s.covers.Remove(ctx, userID, track.AlbumID); err != nil {
				logger.Warn("failed to remove cover of deleted album",
					logger.Int64("albumID", track.AlbumID), logger.ErrorField(err))
			}
		}
	}

	artistRefs, err := s.artists.CountReferences(ctx, userID, track.ArtistID)
	if err != nil {
		return err
	}
	if artistRefs == 0 {
		if err := s.artists.DeleteByIDs(ctx, []int64{track.ArtistID}); err != nil {
			return err
		}
	}

	if track.GenreID != nil {
		genreRefs, err := s.genres.CountReferences(ctx, userID, *track.GenreID)
		if err != nil {
			return err
		}
		if genreRefs == 0 {
			if err := s.genres.DeleteByIDs(ctx, []int64{*track.GenreID}); err != nil {
				return err
			}
		}
	}
	return nil
}

// indexedUnder loads the tracks a scan may update or reconcile: the
// whole library for a full rescan, the subtree for a partial one.
func (s *Scanner) indexedUnder(ctx context.Context, userID int64, root string, full bool) (map[int64]*model.Track, error) {
	var tracks []*model.Track
	var err error
	if full {
		tracks, err = s.tracks.FindAllByUserID(ctx, userID)
	} else {
		tracks, err = s.tracks.FindUnderPath(ctx, userID, root)
	}
	if err != nil {
		return nil, err
	}
	byFileID := make(map[int64]*model.Track, len(tracks))
	for _, track := range tracks {
		byFileID[track.FileID] = track
	}
	return byFileID, nil
}

func (s *Scanner) invalidateOwner(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		logger.Warn("failed to invalidate cache",
			logger.Int64("userID", userID), logger.ErrorField(err))
	}
}

// PathIsUnder reports whether path is root itself or nested below it.
func PathIsUnder(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}
