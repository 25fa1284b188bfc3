// Package filetree abstracts the externally-owned file storage the
// index mirrors. The engine only ever sees stable file ids and paths;
// how the backing tree assigns them is this package's concern.
package filetree

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced file vanished. Callers
// treat it as a deletion, not a failure.
var ErrNotFound = errors.New("file not found")

// FileRef identifies one audio file in the tree. FileID is stable for
// the lifetime of the file: it survives moves and renames.
type FileRef struct {
	FileID   int64
	Path     string
	Mimetype string
	MTime    time.Time
}

// WalkFunc is called once per audio file. Returning an error stops the
// walk and surfaces the error from Walk; files already visited keep
// whatever side effects the callback produced.
type WalkFunc func(ref FileRef) error

// FileTree is the browsing contract of the external storage.
type FileTree interface {
	// ResolveOwnerRoot maps an owner to their configured library
	// subtree.
	ResolveOwnerRoot(username string) (string, error)
	// Walk lazily yields every audio file under root. Bounded by the
	// actual tree size and restartable per call.
	Walk(ctx context.Context, root string, fn WalkFunc) error
	// Stat resolves a single path to a FileRef, ErrNotFound when the
	// file does not exist (or vanished between the event and now).
	Stat(path string) (FileRef, error)
}
