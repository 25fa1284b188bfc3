package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"melodex/model"
)

// TrackRepository defines the interface for track data operations.
type TrackRepository interface {
	FindByID(ctx context.Context, userID, id int64) (*model.Track, error)
	FindByFileID(ctx context.Context, userID, fileID int64) (*model.Track, error)
	FindByIDs(ctx context.Context, userID int64, ids []int64) ([]*model.Track, error)
	FindAllByUserID(ctx context.Context, userID int64) ([]*model.Track, error)
	FindUnderPath(ctx context.Context, userID int64, pathPrefix string) ([]*model.Track, error)
	Upsert(ctx context.Context, track *model.Track) (*model.Track, error)
	DeleteByFileID(ctx context.Context, userID, fileID int64) (*model.Track, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	DeleteAllByUserID(ctx context.Context, userID int64) error
	LatestUpdatedAt(ctx context.Context, userID int64) (time.Time, error)
	SetStarred(ctx context.Context, userID, id int64, starred bool) error
	SetRating(ctx context.Context, userID, id int64, rating int) error
}

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	db *sql.DB
}

// NewMySQLTrackRepository creates a new instance of mysqlTrackRepository.
func NewMySQLTrackRepository(db *sql.DB) TrackRepository {
	return &mysqlTrackRepository{db: db}
}

const trackColumns = `id, user_id, file_id, file_path, title, track_number, disk_number, length, bitrate,
	mimetype, artist_id, album_id, genre_id, starred_at, rating, created_at, updated_at`

func scanTrack(row interface{ Scan(...interface{}) error }) (*model.Track, error) {
	track := &model.Track{}
	var genreID sql.NullInt64
	var starredAt sql.NullTime
	err := row.Scan(&track.ID, &track.UserID, &track.FileID, &track.FilePath, &track.Title,
		&track.TrackNumber, &track.DiskNumber, &track.Length, &track.Bitrate, &track.Mimetype,
		&track.ArtistID, &track.AlbumID, &genreID, &starredAt, &track.Rating,
		&track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if genreID.Valid {
		track.GenreID = &genreID.Int64
	}
	if starredAt.Valid {
		track.StarredAt = &starredAt.Time
	}
	return track, nil
}

func (r *mysqlTrackRepository) FindByID(ctx context.Context, userID, id int64) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM music_tracks WHERE user_id = ? AND id = ?`
	track, err := scanTrack(r.db.QueryRowContext(ctx, query, userID, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track by ID %d: %w", id, err)
	}
	return track, nil
}

func (r *mysqlTrackRepository) FindByFileID(ctx context.Context, userID, fileID int64) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM music_tracks WHERE user_id = ? AND file_id = ?`
	track, err := scanTrack(r.db.QueryRowContext(ctx, query, userID, fileID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track by file ID %d: %w", fileID, err)
	}
	return track, nil
}

func (r *mysqlTrackRepository) FindByIDs(ctx context.Context, userID int64, ids []int64) ([]*model.Track, error) {
	if len(ids) == 0 {
		return []*model.Track{}, nil
	}
	query := `SELECT ` + trackColumns + ` FROM music_tracks WHERE user_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := append([]interface{}{userID}, int64Args(ids)...)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks by ids: %w", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

func (r *mysqlTrackRepository) FindAllByUserID(ctx context.Context, userID int64) ([]*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM music_tracks WHERE user_id = ? ORDER BY album_id, disk_number, track_number, title`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks for user ID %d: %w", userID, err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

// FindUnderPath returns the tracks whose file path lives under the
// given directory. Used for folder moves and deletions.
func (r *mysqlTrackRepository) FindUnderPath(ctx context.Context, userID int64, pathPrefix string) ([]*model.Track, error) {
	prefix := strings.TrimSuffix(pathPrefix, "/") + "/"
	query := `SELECT ` + trackColumns + ` FROM music_tracks WHERE user_id = ? AND file_path LIKE ?`
	rows, err := r.db.QueryContext(ctx, query, userID, likeEscape(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks under path %s: %w", pathPrefix, err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

func collectTracks(rows *sql.Rows) ([]*model.Track, error) {
	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during track rows iteration: %w", err)
	}
	return tracks, nil
}

// Upsert inserts the track or, when a row for (user_id, file_id)
// already exists, updates every derived column in place. The row id
// never changes once assigned. Each call is one atomic unit; a scan
// interrupted between files leaves no half-written rows behind. A lost
// insert race on the unique key is recovered by re-querying and
// updating the winner's row.
func (r *mysqlTrackRepository) Upsert(ctx context.Context, track *model.Track) (*model.Track, error) {
	existing, err := r.FindByFileID(ctx, track.UserID, track.FileID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	if err == ErrNotFound {
		id, insertErr := r.insert(ctx, track)
		if insertErr == nil {
			track.ID = id
			return track, nil
		}
		if !IsDuplicateEntry(insertErr) {
			return nil, fmt.Errorf("failed to insert track for file ID %d: %w", track.FileID, insertErr)
		}
		// A concurrent upsert for the same file won the insert; fall
		// through and update its row.
		existing, err = r.FindByFileID(ctx, track.UserID, track.FileID)
		if err != nil {
			return nil, err
		}
	}

	track.ID = existing.ID
	if err := r.update(ctx, track); err != nil {
		return nil, err
	}
	return track, nil
}

func (r *mysqlTrackRepository) insert(ctx context.Context, track *model.Track) (int64, error) {
	query := `INSERT INTO music_tracks (user_id, file_id, file_path, title, track_number, disk_number,
		length, bitrate, mimetype, artist_id, album_id, genre_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	res, err := r.db.ExecContext(ctx, query, track.UserID, track.FileID, track.FilePath, track.Title,
		track.TrackNumber, track.DiskNumber, track.Length, track.Bitrate, track.Mimetype,
		track.ArtistID, track.AlbumID, nullableID(track.GenreID), now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *mysqlTrackRepository) update(ctx context.Context, track *model.Track) error {
	query := `UPDATE music_tracks SET file_path = ?, title = ?, track_number = ?, disk_number = ?,
		length = ?, bitrate = ?, mimetype = ?, artist_id = ?, album_id = ?, genre_id = ?, updated_at = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, track.FilePath, track.Title, track.TrackNumber,
		track.DiskNumber, track.Length, track.Bitrate, track.Mimetype, track.ArtistID,
		track.AlbumID, nullableID(track.GenreID), time.Now(), track.ID)
	if err != nil {
		return fmt.Errorf("failed to update track %d: %w", track.ID, err)
	}
	return nil
}

// DeleteByFileID removes the track backing the given file and returns
// the deleted row so the caller can garbage-collect its parents in the
// same call path. ErrNotFound when nothing was indexed for the file.
func (r *mysqlTrackRepository) DeleteByFileID(ctx context.Context, userID, fileID int64) (*model.Track, error) {
	track, err := r.FindByFileID(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM music_tracks WHERE id = ?`, track.ID); err != nil {
		return nil, fmt.Errorf("failed to delete track %d: %w", track.ID, err)
	}
	return track, nil
}

func (r *mysqlTrackRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM music_tracks WHERE id IN (` + placeholders(len(ids)) + `)`
	res, err := r.db.ExecContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tracks: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (r *mysqlTrackRepository) DeleteAllByUserID(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM music_tracks WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete tracks for user ID %d: %w", userID, err)
	}
	return nil
}

// LatestUpdatedAt returns the most recent updated_at across the user's
// tracks, the freshness fingerprint used in derived-view cache keys.
// The zero time is returned for an empty library.
func (r *mysqlTrackRepository) LatestUpdatedAt(ctx context.Context, userID int64) (time.Time, error) {
	query := `SELECT MAX(updated_at) FROM music_tracks WHERE user_id = ?`
	var latest sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest track update for user ID %d: %w", userID, err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time, nil
}

func (r *mysqlTrackRepository) SetStarred(ctx context.Context, userID, id int64, starred bool) error {
	if starred {
		query := `UPDATE music_tracks SET starred_at = ? WHERE user_id = ? AND id = ?`
		if _, err := r.db.ExecContext(ctx, query, time.Now(), userID, id); err != nil {
			return fmt.Errorf("failed to star track %d: %w", id, err)
		}
		return nil
	}
	query := `UPDATE music_tracks SET starred_at = NULL WHERE user_id = ? AND id = ?`
	if _, err := r.db.ExecContext(ctx, query, userID, id); err != nil {
		return fmt.Errorf("failed to unstar track %d: %w", id, err)
	}
	return nil
}

func (r *mysqlTrackRepository) SetRating(ctx context.Context, userID, id int64, rating int) error {
	query := `UPDATE music_tracks SET rating = ? WHERE user_id = ? AND id = ?`
	if _, err := r.db.ExecContext(ctx, query, rating, userID, id); err != nil {
		return fmt.Errorf("failed to rate track %d: %w", id, err)
	}
	return nil
}

func nullableID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

// likeEscape escapes LIKE wildcards in a literal path prefix.
func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
