package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"melodex/model"
)

// AlbumRepository defines the interface for album data operations.
type AlbumRepository interface {
	FindByID(ctx context.Context, userID, id int64) (*model.Album, error)
	FindByHash(ctx context.Context, userID int64, hash string) (*model.Album, error)
	FindAllByUserID(ctx context.Context, userID int64) ([]*model.Album, error)
	Insert(ctx context.Context, album *model.Album) (int64, error)
	Update(ctx context.Context, album *model.Album) error
	SetCover(ctx context.Context, id int64, coverFileID *int64) error
	CountReferences(ctx context.Context, userID, albumID int64) (int64, error)
	DeleteByIDs(ctx context.Context, ids []int64) error
	DeleteAllByUserID(ctx context.Context, userID int64) error
	SetStarred(ctx context.Context, userID, id int64, starred bool) error
	SetRating(ctx context.Context, userID, id int64, rating int) error
}

// mysqlAlbumRepository implements AlbumRepository for MySQL.
type mysqlAlbumRepository struct {
	db *sql.DB
}

// NewMySQLAlbumRepository creates a new instance of mysqlAlbumRepository.
func NewMySQLAlbumRepository(db *sql.DB) AlbumRepository {
	return &mysqlAlbumRepository{db: db}
}

const albumColumns = `id, user_id, name, year, album_artist_id, hash, cover_file_id, starred_at, rating, created_at, updated_at`

func scanAlbum(row interface{ Scan(...interface{}) error }) (*model.Album, error) {
	album := &model.Album{}
	var coverFileID sql.NullInt64
	var starredAt sql.NullTime
	err := row.Scan(&album.ID, &album.UserID, &album.Name, &album.Year, &album.AlbumArtistID,
		&album.Hash, &coverFileID, &starredAt, &album.Rating, &album.CreatedAt, &album.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if coverFileID.Valid {
		album.CoverFileID = &coverFileID.Int64
	}
	if starredAt.Valid {
		album.StarredAt = &starredAt.Time
	}
	return album, nil
}

func (r *mysqlAlbumRepository) FindByID(ctx context.Context, userID, id int64) (*model.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM music_albums WHERE user_id = ? AND id = ?`
	album, err := scanAlbum(r.db.QueryRowContext(ctx, query, userID, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan album by ID %d: %w", id, err)
	}
	return album, nil
}

func (r *mysqlAlbumRepository) FindByHash(ctx context.Context, userID int64, hash string) (*model.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM music_albums WHERE user_id = ? AND hash = ?`
	album, err := scanAlbum(r.db.QueryRowContext(ctx, query, userID, hash))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan album by hash %s: %w", hash, err)
	}
	return album, nil
}

func (r *mysqlAlbumRepository) FindAllByUserID(ctx context.Context, userID int64) ([]*model.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM music_albums WHERE user_id = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query albums for user ID %d: %w", userID, err)
	}
	defer rows.Close()

	albums := make([]*model.Album, 0)
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan album in FindAllByUserID: %w", err)
		}
		albums = append(albums, album)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in FindAllByUserID: %w", err)
	}
	return albums, nil
}

// Insert adds a new album row. A duplicate-entry error on the
// (user_id, hash) key is returned as-is so the caller can recover.
func (r *mysqlAlbumRepository) Insert(ctx context.Context, album *model.Album) (int64, error) {
	query := `INSERT INTO music_albums (user_id, name, year, album_artist_id, hash, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	res, err := r.db.ExecContext(ctx, query, album.UserID, album.Name, album.Year,
		album.AlbumArtistID, album.Hash, now, now)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for album: %w", err)
	}
	return id, nil
}

func (r *mysqlAlbumRepository) Update(ctx context.Context, album *model.Album) error {
	query := `UPDATE music_albums SET name = ?, year = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, album.Name, album.Year, time.Now(), album.ID); err != nil {
		return fmt.Errorf("failed to update album %d: %w", album.ID, err)
	}
	return nil
}

func (r *mysqlAlbumRepository) SetCover(ctx context.Context, id int64, coverFileID *int64) error {
	query := `UPDATE music_albums SET cover_file_id = ?, updated_at = ? WHERE id = ?`
	var arg interface{}
	if coverFileID != nil {
		arg = *coverFileID
	}
	if _, err := r.db.ExecContext(ctx, query, arg, time.Now(), id); err != nil {
		return fmt.Errorf("failed to set cover for album %d: %w", id, err)
	}
	return nil
}

// CountReferences returns the number of tracks still on the album.
func (r *mysqlAlbumRepository) CountReferences(ctx context.Context, userID, albumID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM music_tracks WHERE user_id = ? AND album_id = ?`
	var count int64
	err := r.db.QueryRowContext(ctx, query, userID, albumID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count album references for ID %d: %w", albumID, err)
	}
	return count, nil
}

func (r *mysqlAlbumRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM music_albums WHERE id IN (` + placeholders(len(ids)) + `)`
	if _, err := r.db.ExecContext(ctx, query, int64Args(ids)...); err != nil {
		return fmt.Errorf("failed to delete albums: %w", err)
	}
	return nil
}

func (r *mysqlAlbumRepository) DeleteAllByUserID(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM music_albums WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete albums for user ID %d: %w", userID, err)
	}
	return nil
}

func (r *mysqlAlbumRepository) SetStarred(ctx context.Context, userID, id int64, starred bool) error {
	if starred {
		query := `UPDATE music_albums SET starred_at = ? WHERE user_id = ? AND id = ?`
		if _, err := r.db.ExecContext(ctx, query, time.Now(), userID, id); err != nil {
			return fmt.Errorf("failed to star album %d: %w", id, err)
		}
		return nil
	}
	query := `UPDATE music_albums SET starred_at = NULL WHERE user_id = ? AND id = ?`
	if _, err := r.db.ExecContext(ctx, query, userID, id); err != nil {
		return fmt.Errorf("failed to unstar album %d: %w", id, err)
	}
	return nil
}

func (r *mysqlAlbumRepository) SetRating(ctx context.Context, userID, id int64, rating int) error {
	query := `UPDATE music_albums SET rating = ? WHERE user_id = ? AND id = ?`
	if _, err := r.db.ExecContext(ctx, query, rating, userID, id); err != nil {
		return fmt.Errorf("failed to rate album %d: %w", id, err)
	}
	return nil
}
