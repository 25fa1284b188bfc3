// Package metadata turns audio file bytes into tag fields. The
// extractor is a pure function of the file contents; it keeps no
// state between calls.
package metadata

import (
	"errors"
	"fmt"
)

// ErrExtraction marks unreadable or unsupported input. Scans treat it
// as a per-file skip, never as an abort.
var ErrExtraction = errors.New("metadata extraction failed")

// Meta holds the tag fields read from one audio file.
type Meta struct {
	Title       string
	TrackNumber int
	DiskNumber  int
	Artist      string
	AlbumArtist string
	Album       string
	Genre       string
	Year        int
	Length      int // seconds, 0 when unknown
	Bitrate     int // kbps, 0 when unknown
	Mimetype    string
	CoverBytes  []byte // embedded picture, nil when absent
	CoverMime   string
}

// Extractor reads tag metadata from a file on disk.
type Extractor interface {
	Extract(path string) (*Meta, error)
}

// extractionError wraps cause so callers can match ErrExtraction while
// keeping the underlying reason in the message.
func extractionError(path string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrExtraction, path, cause)
}
