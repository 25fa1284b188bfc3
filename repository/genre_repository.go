package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"melodex/model"
)

// GenreRepository defines the interface for genre data operations.
type GenreRepository interface {
	FindByHash(ctx context.Context, userID int64, hash string) (*model.Genre, error)
	FindAllByUserID(ctx context.Context, userID int64) ([]*model.Genre, error)
	Insert(ctx context.Context, genre *model.Genre) (int64, error)
	UpdateName(ctx context.Context, id int64, name string) error
	CountReferences(ctx context.Context, userID, genreID int64) (int64, error)
	DeleteByIDs(ctx context.Context, ids []int64) error
	DeleteAllByUserID(ctx context.Context, userID int64) error
}

// mysqlGenreRepository implements GenreRepository for MySQL.
type mysqlGenreRepository struct {
	db *sql.DB
}

// NewMySQLGenreRepository creates a new instance of mysqlGenreRepository.
func NewMySQLGenreRepository(db *sql.DB) GenreRepository {
	return &mysqlGenreRepository{db: db}
}

const genreColumns = `id, user_id, name, hash, created_at, updated_at`

func scanGenre(row interface{ Scan(...interface{}) error }) (*model.Genre, error) {
	genre := &model.Genre{}
	err := row.Scan(&genre.ID, &genre.UserID, &genre.Name, &genre.Hash,
		&genre.CreatedAt, &genre.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return genre, nil
}

func (r *mysqlGenreRepository) FindByHash(ctx context.Context, userID int64, hash string) (*model.Genre, error) {
	query := `SELECT ` + genreColumns + ` FROM music_genres WHERE user_id = ? AND hash = ?`
	genre, err := scanGenre(r.db.QueryRowContext(ctx, query, userID, hash))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan genre by hash %s: %w", hash, err)
	}
	return genre, nil
}

func (r *mysqlGenreRepository) FindAllByUserID(ctx context.Context, userID int64) ([]*model.Genre, error) {
	query := `SELECT ` + genreColumns + ` FROM music_genres WHERE user_id = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query genres for user ID %d: %w", userID, err)
	}
	defer rows.Close()

	genres := make([]*model.Genre, 0)
	for rows.Next() {
		genre, err := scanGenre(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan genre in FindAllByUserID: %w", err)
		}
		genres = append(genres, genre)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in FindAllByUserID: %w", err)
	}
	return genres, nil
}

// Insert adds a new genre row. A duplicate-entry error on the
// (user_id, hash) key is returned as-is so the caller can recover.
func (r *mysqlGenreRepository) Insert(ctx context.Context, genre *model.Genre) (int64, error) {
	query := `INSERT INTO music_genres (user_id, name, hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	res, err := r.db.ExecContext(ctx, query, genre.UserID, genre.Name, genre.Hash, now, now)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for genre: %w", err)
	}
	return id, nil
}

func (r *mysqlGenreRepository) UpdateName(ctx context.Context, id int64, name string) error {
	query := `UPDATE music_genres SET name = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, name, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update genre name for ID %d: %w", id, err)
	}
	return nil
}

func (r *mysqlGenreRepository) CountReferences(ctx context.Context, userID, genreID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM music_tracks WHERE user_id = ? AND genre_id = ?`
	var count int64
	err := r.db.QueryRowContext(ctx, query, userID, genreID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count genre references for ID %d: %w", genreID, err)
	}
	return count, nil
}

func (r *mysqlGenreRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM music_genres WHERE id IN (` + placeholders(len(ids)) + `)`
	if _, err := r.db.ExecContext(ctx, query, int64Args(ids)...); err != nil {
		return fmt.Errorf("failed to delete genres: %w", err)
	}
	return nil
}

func (r *mysqlGenreRepository) DeleteAllByUserID(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM music_genres WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete genres for user ID %d: %w", userID, err)
	}
	return nil
}
