package filetree

import (
	"context"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"melodex/core/metadata"
)

// localTree serves libraries from a directory on the local filesystem,
// one subtree per user under the configured root. File ids come from
// inode numbers, which stay put across moves and renames on the same
// filesystem.
type localTree struct {
	root string
}

// NewLocalTree creates a FileTree rooted at dir.
func NewLocalTree(dir string) FileTree {
	return &localTree{root: dir}
}

func (t *localTree) ResolveOwnerRoot(username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("empty username")
	}
	path := filepath.Join(t.root, username)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("library folder for %s: %w", username, ErrNotFound)
		}
		return "", fmt.Errorf("failed to stat library folder for %s: %w", username, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("library path for %s is not a directory", username)
	}
	return path, nil
}

func (t *localTree) Walk(ctx context.Context, root string, fn WalkFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A directory that vanished mid-walk is a concurrent
			// deletion, not a failure.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if isIgnoredName(d.Name()) && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if isIgnoredName(d.Name()) || !metadata.IsAudioPath(path) {
			return nil
		}

		ref, err := t.Stat(path)
		if err != nil {
			if err == ErrNotFound {
				return nil
			}
			return err
		}
		return fn(ref)
	})
}

func (t *localTree) Stat(path string) (FileRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileRef{}, ErrNotFound
		}
		return FileRef{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return FileRef{
		FileID:   fileID(path, info),
		Path:     path,
		Mimetype: metadata.MimetypeForPath(path),
		MTime:    info.ModTime(),
	}, nil
}

// fileID derives the stable identifier for a file: the inode number
// where available, otherwise a hash of the path.
func fileID(path string, info os.FileInfo) int64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return int64(stat.Ino)
	}
	h := fnv.New64a()
	h.Write([]byte(path))
	return int64(h.Sum64() & (1<<63 - 1))
}

// isIgnoredName filters dotfiles and the temp/partial files some
// writers leave behind while data is still being committed.
func isIgnoredName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".part", ".tmp", ".crdownload":
		return true
	}
	return false
}
