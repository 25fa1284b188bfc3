package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodex/core/filetree"
	"melodex/model"
	"melodex/repository"
)

type stubUsers struct {
	repository.UserRepository
	user *model.User
}

func (s *stubUsers) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if s.user != nil && s.user.Username == username {
		return s.user, nil
	}
	return nil, repository.ErrNotFound
}

func newWatcherFixture(t *testing.T) (*Watcher, *recordingIndexer, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "alice"), 0o755))

	idx := &recordingIndexer{}
	adapter := NewHookAdapter(idx, &recordingResetter{})
	users := &stubUsers{user: &model.User{ID: 1, Username: "alice"}}
	w := NewWatcher(adapter, filetree.NewLocalTree(root), users, root, time.Millisecond)
	return w, idx, root
}

func writeAudioFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("mpeg bytes"), 0o644))
}

func TestBatchRenamePairsThroughFileID(t *testing.T) {
	w, idx, root := newWatcherFixture(t)
	oldPath := filepath.Join(root, "alice", "old.mp3")
	newPath := filepath.Join(root, "alice", "new.mp3")
	writeAudioFile(t, newPath)

	// A rename debounced into one batch: the old path is gone, the new
	// one exists.
	w.processBatch(context.Background(), nil, map[string]fsnotify.Op{
		oldPath: fsnotify.Rename,
		newPath: fsnotify.Create,
	})

	require.Len(t, idx.calls, 2)
	assert.Equal(t, "updateOne", idx.calls[0].name,
		"the new location is indexed before the old one is removed")
	assert.Equal(t, newPath, idx.calls[0].path)
	assert.Equal(t, "deleteByPath", idx.calls[1].name)
	assert.Equal(t, oldPath, idx.calls[1].path)
}

func TestBatchRecreatedPathIsNotRemoved(t *testing.T) {
	w, idx, root := newWatcherFixture(t)
	path := filepath.Join(root, "alice", "song.mp3")
	writeAudioFile(t, path)

	// Deleted and rewritten within the debounce window; the file is
	// back on disk when the batch fires.
	w.processBatch(context.Background(), nil, map[string]fsnotify.Op{
		path: fsnotify.Remove | fsnotify.Create,
	})

	require.Len(t, idx.calls, 1)
	assert.Equal(t, "updateOne", idx.calls[0].name)
}

func TestBatchVanishedPathIsRemoved(t *testing.T) {
	w, idx, root := newWatcherFixture(t)
	path := filepath.Join(root, "alice", "gone.mp3")

	w.processBatch(context.Background(), nil, map[string]fsnotify.Op{
		path: fsnotify.Create | fsnotify.Rename,
	})

	require.Len(t, idx.calls, 1)
	assert.Equal(t, "deleteByPath", idx.calls[0].name)
	assert.Equal(t, path, idx.calls[0].path)
}

func TestBatchIgnoresForeignPaths(t *testing.T) {
	w, idx, root := newWatcherFixture(t)
	path := filepath.Join(root, "mallory", "x.mp3")

	w.processBatch(context.Background(), nil, map[string]fsnotify.Op{
		path: fsnotify.Remove,
	})

	assert.Empty(t, idx.calls, "paths without a known owner are dropped")
}
