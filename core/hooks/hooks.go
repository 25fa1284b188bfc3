// Package hooks translates file-system and sharing notifications into
// index operations. Every callback body runs inside a guard: whatever
// goes wrong while indexing — errors and panics alike — is logged and
// swallowed, because the file operation that fired the hook has
// already succeeded and must never be failed retroactively by a
// side effect.
package hooks

import (
	"context"

	"melodex/core/scanner"
	"melodex/logger"
	"melodex/model"
)

// Indexer is the slice of the scanner the hooks drive.
type Indexer interface {
	UpdateOne(ctx context.Context, userID, fileID int64, path string) error
	DeleteByFileID(ctx context.Context, userID, fileID int64) error
	DeleteByPath(ctx context.Context, userID int64, path string) error
	FolderMoved(ctx context.Context, userID int64, oldPath, newPath, root string) error
	ScanTree(ctx context.Context, userID int64, root string, full bool,
		progress scanner.ProgressFunc) (*model.ScanReport, error)
}

// Resetter is the slice of maintenance the hooks drive.
type Resetter interface {
	ResetAllData(ctx context.Context, userID int64) (*model.CleanupReport, error)
}

// HookAdapter holds direct references to the scanner and maintenance
// services; callbacks are plain method calls, no registry lookups.
type HookAdapter struct {
	scanner     Indexer
	maintenance Resetter
}

// NewHookAdapter wires the adapter over its two targets.
func NewHookAdapter(s Indexer, m Resetter) *HookAdapter {
	return &HookAdapter{scanner: s, maintenance: m}
}

// guard runs one callback body, converting every failure mode into a
// log line.
func (h *HookAdapter) guard(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("hook panicked", logger.String("hook", name), logger.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		logger.Error("hook failed", logger.String("hook", name), logger.ErrorField(err))
	}
}

// FileCreated indexes a newly written file.
func (h *HookAdapter) FileCreated(ctx context.Context, userID, fileID int64, path string) {
	h.guard("file_created", func() error {
		return h.scanner.UpdateOne(ctx, userID, fileID, path)
	})
}

// FileUpdated re-indexes a file whose content or tags changed.
func (h *HookAdapter) FileUpdated(ctx context.Context, userID, fileID int64, path string) {
	h.guard("file_updated", func() error {
		return h.scanner.UpdateOne(ctx, userID, fileID, path)
	})
}

// FileDeleted drops the track backing the file, cascading to orphaned
// parents.
func (h *HookAdapter) FileDeleted(ctx context.Context, userID, fileID int64) {
	h.guard("file_deleted", func() error {
		return h.scanner.DeleteByFileID(ctx, userID, fileID)
	})
}

// FileMoved handles a rename or move of a single file: the id is
// unchanged, so inside the library root a re-index of the one file
// suffices. A move out of the root is a deletion.
func (h *HookAdapter) FileMoved(ctx context.Context, userID, fileID int64, newPath, root string) {
	h.guard("file_moved", func() error {
		if !scanner.PathIsUnder(newPath, root) {
			return h.scanner.DeleteByFileID(ctx, userID, fileID)
		}
		return h.scanner.UpdateOne(ctx, userID, fileID, newPath)
	})
}

// FolderMoved re-resolves everything nested under a moved directory.
func (h *HookAdapter) FolderMoved(ctx context.Context, userID int64, oldPath, newPath, root string) {
	h.guard("folder_moved", func() error {
		return h.scanner.FolderMoved(ctx, userID, oldPath, newPath, root)
	})
}

// ItemShared indexes a newly shared file for every gaining owner. A
// shared folder is deliberately left alone: eagerly indexing thousands
// of files inside a notification handler is not acceptable, the
// sharee's next scan picks the folder up instead.
func (h *HookAdapter) ItemShared(ctx context.Context, gainingUserIDs []int64, fileID int64, path string, folder bool) {
	h.guard("item_shared", func() error {
		if folder {
			logger.Info("shared folder left for next scan", logger.String("path", path))
			return nil
		}
		for _, userID := range gainingUserIDs {
			if err := h.scanner.UpdateOne(ctx, userID, fileID, path); err != nil {
				return err
			}
		}
		return nil
	})
}

// ItemUnshared drops the file from each losing owner's index only;
// the sharer's own rows are untouched.
func (h *HookAdapter) ItemUnshared(ctx context.Context, losingUserIDs []int64, fileID int64) {
	h.guard("item_unshared", func() error {
		for _, userID := range losingUserIDs {
			if err := h.scanner.DeleteByFileID(ctx, userID, fileID); err != nil {
				return err
			}
		}
		return nil
	})
}

// UserDeleted wipes the whole library of a removed account.
func (h *HookAdapter) UserDeleted(ctx context.Context, userID int64) {
	h.guard("user_deleted", func() error {
		_, err := h.maintenance.ResetAllData(ctx, userID)
		return err
	})
}

// PathRemoved drops whatever was indexed at a vanished path, file or
// folder. Used by the watcher, which has no file id for deletions.
func (h *HookAdapter) PathRemoved(ctx context.Context, userID int64, path string) {
	h.guard("path_removed", func() error {
		return h.scanner.DeleteByPath(ctx, userID, path)
	})
}

// FolderChanged incrementally rescans a directory that appeared or
// changed under the watcher.
func (h *HookAdapter) FolderChanged(ctx context.Context, userID int64, path string) {
	h.guard("folder_changed", func() error {
		_, err := h.scanner.ScanTree(ctx, userID, path, false, nil)
		return err
	})
}
