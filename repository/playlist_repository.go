package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"melodex/model"

	"gorm.io/gorm"
)

// PlaylistRepository defines the interface for playlist data
// operations. Backed by GORM, like the other newer modules.
type PlaylistRepository interface {
	Create(ctx context.Context, playlist *model.Playlist) error
	FindByID(ctx context.Context, userID, id int64) (*model.Playlist, error)
	FindAllByUserID(ctx context.Context, userID int64) ([]*model.Playlist, error)
	Update(ctx context.Context, playlist *model.Playlist) error
	Delete(ctx context.Context, userID, id int64) error
	// RemoveTrackFromAll scrubs the given track id from every playlist
	// of the user. Called on explicit track deletion only; stale ids
	// left by bulk cleanup are filtered at read time instead.
	RemoveTrackFromAll(ctx context.Context, userID, trackID int64) error
	// ClearAllByUserID empties the track lists of all the user's
	// playlists without deleting the playlists themselves.
	ClearAllByUserID(ctx context.Context, userID int64) error
}

// gormPlaylistRepository implements PlaylistRepository with GORM.
type gormPlaylistRepository struct {
	db *gorm.DB
}

// NewGormPlaylistRepository creates a new instance of gormPlaylistRepository.
func NewGormPlaylistRepository(db *gorm.DB) PlaylistRepository {
	return &gormPlaylistRepository{db: db}
}

func (r *gormPlaylistRepository) Create(ctx context.Context, playlist *model.Playlist) error {
	if err := r.db.WithContext(ctx).Create(playlist).Error; err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}
	return nil
}

func (r *gormPlaylistRepository) FindByID(ctx context.Context, userID, id int64) (*model.Playlist, error) {
	var playlist model.Playlist
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&playlist).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find playlist %d: %w", id, err)
	}
	return &playlist, nil
}

func (r *gormPlaylistRepository) FindAllByUserID(ctx context.Context, userID int64) ([]*model.Playlist, error) {
	var playlists []*model.Playlist
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name").Find(&playlists).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find playlists for user ID %d: %w", userID, err)
	}
	return playlists, nil
}

func (r *gormPlaylistRepository) Update(ctx context.Context, playlist *model.Playlist) error {
	err := r.db.WithContext(ctx).
		Model(&model.Playlist{}).
		Where("user_id = ? AND id = ?", playlist.UserID, playlist.ID).
		Updates(map[string]interface{}{"name": playlist.Name, "track_ids": playlist.TrackIDs}).Error
	if err != nil {
		return fmt.Errorf("failed to update playlist %d: %w", playlist.ID, err)
	}
	return nil
}

func (r *gormPlaylistRepository) Delete(ctx context.Context, userID, id int64) error {
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&model.Playlist{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete playlist %d: %w", id, err)
	}
	return nil
}

func (r *gormPlaylistRepository) RemoveTrackFromAll(ctx context.Context, userID, trackID int64) error {
	playlists, err := r.FindAllByUserID(ctx, userID)
	if err != nil {
		return err
	}
	needle := strconv.FormatInt(trackID, 10)
	for _, playlist := range playlists {
		ids := playlist.TrackIDList()
		kept := ids[:0]
		removed := false
		for _, id := range ids {
			if id == trackID {
				removed = true
				continue
			}
			kept = append(kept, id)
		}
		if !removed {
			continue
		}
		playlist.SetTrackIDList(kept)
		if err := r.Update(ctx, playlist); err != nil {
			return fmt.Errorf("failed to scrub track %s from playlist %d: %w", needle, playlist.ID, err)
		}
	}
	return nil
}

func (r *gormPlaylistRepository) ClearAllByUserID(ctx context.Context, userID int64) error {
	err := r.db.WithContext(ctx).
		Model(&model.Playlist{}).
		Where("user_id = ?", userID).
		Update("track_ids", "").Error
	if err != nil {
		return fmt.Errorf("failed to clear playlists for user ID %d: %w", userID, err)
	}
	return nil
}
