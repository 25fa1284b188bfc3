package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"melodex/model"
)

// ArtistRepository defines the interface for artist data operations.
type ArtistRepository interface {
	FindByID(ctx context.Context, userID, id int64) (*model.Artist, error)
	FindByHash(ctx context.Context, userID int64, hash string) (*model.Artist, error)
	FindAllByUserID(ctx context.Context, userID int64) ([]*model.Artist, error)
	Insert(ctx context.Context, artist *model.Artist) (int64, error)
	UpdateName(ctx context.Context, id int64, name string) error
	CountReferences(ctx context.Context, userID, artistID int64) (int64, error)
	DeleteByIDs(ctx context.Context, ids []int64) error
	DeleteAllByUserID(ctx context.Context, userID int64) error
	SetStarred(ctx context.Context, userID, id int64, starred bool) error
	SetRating(ctx context.Context, userID, id int64, rating int) error
}

// mysqlArtistRepository implements ArtistRepository for MySQL.
type mysqlArtistRepository struct {
	db *sql.DB
}

// NewMySQLArtistRepository creates a new instance of mysqlArtistRepository.
func NewMySQLArtistRepository(db *sql.DB) ArtistRepository {
	return &mysqlArtistRepository{db: db}
}

const artistColumns = `id, user_id, name, hash, starred_at, rating, created_at, updated_at`

func scanArtist(row interface{ Scan(...interface{}) error }) (*model.Artist, error) {
	artist := &model.Artist{}
	var starredAt sql.NullTime
	err := row.Scan(&artist.ID, &artist.UserID, &artist.Name, &artist.Hash,
		&starredAt, &artist.Rating, &artist.CreatedAt, &artist.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if starredAt.Valid {
		artist.StarredAt = &starredAt.Time
	}
	return artist, nil
}

func (r *mysqlArtistRepository) FindByID(ctx context.Context, userID, id int64) (*model.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM music_artists WHERE user_id = ? AND id = ?`
	artist, err := scanArtist(r.db.QueryRowContext(ctx, query, userID, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artist by ID %d: %w", id, err)
	}
	return artist, nil
}

func (r *mysqlArtistRepository) FindByHash(ctx context.Context, userID int64, hash string) (*model.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM music_artists WHERE user_id = ? AND hash = ?`
	artist, err := scanArtist(r.db.QueryRowContext(ctx, query, userID, hash))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artist by hash %s: %w", hash, err)
	}
	return artist, nil
}

func (r *mysqlArtistRepository) FindAllByUserID(ctx context.Context, userID int64) ([]*model.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM music_artists WHERE user_id = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists for user ID %d: %w", userID, err)
	}
	defer rows.Close()

	artists := make([]*model.Artist, 0)
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artist in FindAllByUserID: %w", err)
		}
		artists = append(artists, artist)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in FindAllByUserID: %w", err)
	}
	return artists, nil
}

// Insert adds a new artist row. A duplicate-entry error on the
// (user_id, hash) key is returned as-is so the caller can recover.
func (r *mysqlArtistRepository) Insert(ctx context.Context, artist *model.Artist) (int64, error) {
	query := `INSERT INTO music_artists (user_id, name, hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	res, err := r.db.ExecContext(ctx, query, artist.UserID, artist.Name, artist.Hash, now, now)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for artist: %w", err)
	}
	return id, nil
}

func (r *mysqlArtistRepository) UpdateName(ctx context.Context, id int64, name string) error {
	query := `UPDATE music_artists SET name = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, name, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update artist name for ID %d: %w", id, err)
	}
	return nil
}

// CountReferences returns the number of tracks and albums still
// pointing at the artist. Zero means the artist is an orphan.
func (r *mysqlArtistRepository) CountReferences(ctx context.Context, userID, artistID int64) (int64, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM music_tracks WHERE user_id = ? AND artist_id = ?) +
		(SELECT COUNT(*) FROM music_albums WHERE user_id = ? AND album_artist_id = ?)`
	var count int64
	err := r.db.QueryRowContext(ctx, query, userID, artistID, userID, artistID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count artist references for ID %d: %w", artistID, err)
	}
	return count, nil
}

func (r *mysqlArtistRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM music_artists WHERE id IN (` + placeholders(len(ids)) + `)`
	if _, err := r.db.ExecContext(ctx, query, int64Args(ids)...); err != nil {
		return fmt.Errorf("failed to delete artists: %w", err)
	}
	return nil
}

func (r *mysqlArtistRepository) DeleteAllByUserID(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM music_artists WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete artists for user ID %d: %w", userID, err)
	}
	return nil
}

func (r *mysqlArtistRepository) SetStarred(ctx context.Context, userID, id int64, starred bool) error {
	var query string
	if starred {
		query = `UPDATE music_artists SET starred_at = ? WHERE user_id = ? AND id = ?`
		_, err := r.db.ExecContext(ctx, query, time.Now(), userID, id)
		if err != nil {
			return fmt.Errorf("failed to star artist %d: %w", id, err)
		}
		return nil
	}
	query = `UPDATE music_artists SET starred_at = NULL WHERE user_id = ? AND id = ?`
	if _, err := r.db.ExecContext(ctx, query, userID, id); err != nil {
		return fmt.Errorf("failed to unstar artist %d: %w", id, err)
	}
	return nil
}

func (r *mysqlArtistRepository) SetRating(ctx context.Context, userID, id int64, rating int) error {
	query := `UPDATE music_artists SET rating = ? WHERE user_id = ? AND id = ?`
	if _, err := r.db.ExecContext(ctx, query, rating, userID, id); err != nil {
		return fmt.Errorf("failed to rate artist %d: %w", id, err)
	}
	return nil
}

// placeholders returns n comma separated "?" markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
