package hooks

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"melodex/core/filetree"
	"melodex/core/metadata"
	"melodex/logger"
	"melodex/model"
	"melodex/repository"
)

// Watcher maps raw filesystem events under the library root onto hook
// callbacks. Events are debounced into batches: editors and sync
// clients fire several events per file, and a copy of a whole album
// fires hundreds, so the watcher waits for a quiet period before
// touching the index.
type Watcher struct {
	adapter  *HookAdapter
	tree     filetree.FileTree
	users    repository.UserRepository
	root     string
	debounce time.Duration
}

// NewWatcher creates a watcher for the library root. Each user's
// library is the top-level directory named after them.
func NewWatcher(adapter *HookAdapter, tree filetree.FileTree, users repository.UserRepository,
	root string, debounce time.Duration) *Watcher {
	return &Watcher{adapter: adapter, tree: tree, users: users, root: root, debounce: debounce}
}

// Watch blocks, feeding filesystem events into the hook adapter until
// ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fs watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := addRecursive(fsWatcher, w.root); err != nil {
		return err
	}
	logger.Info("watching library", logger.String("root", w.root))

	pending := make(map[string]fsnotify.Op)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			pending[event.Name] |= event.Op
			timer.Reset(w.debounce)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("fs watcher error", logger.ErrorField(err))
		case <-timer.C:
			batch := pending
			pending = make(map[string]fsnotify.Op)
			w.processBatch(ctx, fsWatcher, batch)
		}
	}
}

// processBatch applies creates before removals. fsnotify reports a
// rename as an unpaired Rename at the old path and a Create at the
// new one; handling the create first re-homes the track row through
// its stable file id, after which the removal finds nothing left at
// the old path and the row keeps its identity.
func (w *Watcher) processBatch(ctx context.Context, fsWatcher *fsnotify.Watcher, batch map[string]fsnotify.Op) {
	for path, op := range batch {
		if op&(fsnotify.Create|fsnotify.Write) != 0 {
			w.handleCreated(ctx, fsWatcher, path, op)
		}
	}
	for path, op := range batch {
		if op&(fsnotify.Remove|fsnotify.Rename) == 0 {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			// Recreated within the same batch; the create pass above
			// already reindexed it.
			continue
		}
		user, err := w.ownerForPath(ctx, path)
		if err != nil {
			w.logOwnerFailure(path, err)
			continue
		}
		w.adapter.PathRemoved(ctx, user.ID, path)
	}
}

func (w *Watcher) handleCreated(ctx context.Context, fsWatcher *fsnotify.Watcher, path string, op fsnotify.Op) {
	user, err := w.ownerForPath(ctx, path)
	if err != nil {
		w.logOwnerFailure(path, err)
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		// Vanished again before the debounce fired.
		return
	}
	if info.IsDir() {
		if err := addRecursive(fsWatcher, path); err != nil {
			logger.Warn("failed to watch new directory",
				logger.String("path", path), logger.ErrorField(err))
		}
		w.adapter.FolderChanged(ctx, user.ID, path)
		return
	}
	if !metadata.IsAudioPath(path) {
		return
	}
	ref, err := w.tree.Stat(path)
	if err != nil {
		return
	}
	if op&fsnotify.Create != 0 {
		w.adapter.FileCreated(ctx, user.ID, ref.FileID, path)
	} else {
		w.adapter.FileUpdated(ctx, user.ID, ref.FileID, path)
	}
}

func (w *Watcher) logOwnerFailure(path string, err error) {
	if err != repository.ErrNotFound {
		logger.Warn("cannot resolve owner for event",
			logger.String("path", path), logger.ErrorField(err))
	}
}

// ownerForPath resolves the user owning a path from its top-level
// library directory.
func (w *Watcher) ownerForPath(ctx context.Context, path string) (*model.User, error) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, repository.ErrNotFound
	}
	username := strings.Split(filepath.ToSlash(rel), "/")[0]
	if username == "" || username == "." {
		return nil, repository.ErrNotFound
	}
	return w.users.FindByUsername(ctx, username)
}

func addRecursive(fsWatcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if err := fsWatcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
