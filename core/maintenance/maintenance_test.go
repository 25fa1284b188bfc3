package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodex/cache"
	"melodex/model"
	"melodex/repository"
)

func newMockDB(t *testing.T) (*Maintenance, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := NewMaintenance(db,
		repository.NewMySQLTrackRepository(db),
		repository.NewMySQLAlbumRepository(db),
		repository.NewMySQLArtistRepository(db),
		repository.NewMySQLGenreRepository(db),
		&stubPlaylists{}, nil, nil)
	return m, mock
}

func TestCleanUpAllOwners(t *testing.T) {
	m, mock := newMockDB(t)

	mock.ExpectExec("DELETE FROM music_albums").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM music_artists").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM music_genres").
		WillReturnResult(sqlmock.NewResult(0, 3))

	report, err := m.CleanUp(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.RemovedAlbums)
	assert.Equal(t, 1, report.RemovedArtists)
	assert.Equal(t, 3, report.RemovedGenres)
	assert.Equal(t, 0, report.RemovedTracks, "track reconciliation belongs to full rescans")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanUpScopedToOwner(t *testing.T) {
	m, mock := newMockDB(t)
	userID := int64(7)

	mock.ExpectExec(`(?s)DELETE FROM music_albums.*AND user_id = \?`).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)DELETE FROM music_artists.*AND user_id = \?`).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)DELETE FROM music_genres.*AND user_id = \?`).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	report, err := m.CleanUp(context.Background(), &userID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RemovedAlbums)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanUpAllOwnersExpiresAffectedCaches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := cache.NewMemoryCache()
	m := NewMaintenance(db,
		repository.NewMySQLTrackRepository(db),
		repository.NewMySQLAlbumRepository(db),
		repository.NewMySQLArtistRepository(db),
		repository.NewMySQLGenreRepository(db),
		&stubPlaylists{}, nil, c)

	ctx := context.Background()
	require.NoError(t, c.Put(ctx, 7, "collection:x", []byte("stale"), 0))
	require.NoError(t, c.Put(ctx, 8, "collection:y", []byte("fresh"), 0))

	// Only user 7 holds orphan rows.
	mock.ExpectQuery("SELECT DISTINCT user_id FROM music_albums").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(7))
	mock.ExpectExec("DELETE FROM music_albums").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("SELECT DISTINCT user_id FROM music_artists").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectExec("DELETE FROM music_artists").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT DISTINCT user_id FROM music_genres").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectExec("DELETE FROM music_genres").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = m.CleanUp(ctx, nil)
	require.NoError(t, err)

	_, err = c.Get(ctx, 7, "collection:x")
	assert.ErrorIs(t, err, cache.ErrCacheMiss, "owner that lost rows is expired")
	fresh, err := c.Get(ctx, 8, "collection:y")
	require.NoError(t, err, "untouched owner keeps their cache")
	assert.Equal(t, []byte("fresh"), fresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanUpSurfacesStorageFailure(t *testing.T) {
	m, mock := newMockDB(t)

	mock.ExpectExec("DELETE FROM music_albums").
		WillReturnError(errors.New("connection lost"))

	_, err := m.CleanUp(context.Background(), nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "orphan albums")
}

func TestResetAllData(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	playlists := &stubPlaylists{}
	m := NewMaintenance(db,
		repository.NewMySQLTrackRepository(db),
		repository.NewMySQLAlbumRepository(db),
		repository.NewMySQLArtistRepository(db),
		repository.NewMySQLGenreRepository(db),
		playlists, nil, nil)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "file_id", "file_path", "title", "track_number", "disk_number",
		"length", "bitrate", "mimetype", "artist_id", "album_id", "genre_id",
		"starred_at", "rating", "created_at", "updated_at",
	}).
		AddRow(1, 7, 100, "/lib/a.mp3", "One", 1, 1, 180, 320, "audio/mpeg", 1, 1, nil, nil, 0, now, now).
		AddRow(2, 7, 101, "/lib/b.mp3", "Two", 2, 1, 200, 320, "audio/mpeg", 1, 1, nil, nil, 0, now, now)

	mock.ExpectQuery(`(?s)SELECT.*FROM music_tracks WHERE user_id`).WithArgs(int64(7)).WillReturnRows(rows)
	mock.ExpectExec("DELETE FROM music_tracks WHERE user_id").WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM music_albums WHERE user_id").WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM music_artists WHERE user_id").WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM music_genres WHERE user_id").WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))

	report, err := m.ResetAllData(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, report.RemovedTracks)
	assert.True(t, playlists.cleared, "playlists are emptied, not deleted")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// stubPlaylists only records that the track lists were cleared.
type stubPlaylists struct {
	cleared bool
}

func (s *stubPlaylists) Create(ctx context.Context, playlist *model.Playlist) error { return nil }
func (s *stubPlaylists) FindByID(ctx context.Context, userID, id int64) (*model.Playlist, error) {
	return nil, repository.ErrNotFound
}
func (s *stubPlaylists) FindAllByUserID(ctx context.Context, userID int64) ([]*model.Playlist, error) {
	return nil, nil
}
func (s *stubPlaylists) Update(ctx context.Context, playlist *model.Playlist) error { return nil }
func (s *stubPlaylists) Delete(ctx context.Context, userID, id int64) error         { return nil }
func (s *stubPlaylists) RemoveTrackFromAll(ctx context.Context, userID, trackID int64) error {
	return nil
}
func (s *stubPlaylists) ClearAllByUserID(ctx context.Context, userID int64) error {
	s.cleared = true
	return nil
}
