package metadata

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

var audioMimetypes = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".aiff": "audio/aiff",
	".wma":  "audio/x-ms-wma",
}

// IsAudioPath reports whether the path has a supported audio extension.
func IsAudioPath(path string) bool {
	_, ok := audioMimetypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// MimetypeForPath returns the mimetype for a supported audio path, or
// an empty string.
func MimetypeForPath(path string) string {
	return audioMimetypes[strings.ToLower(filepath.Ext(path))]
}

// tagExtractor implements Extractor with dhowden/tag.
type tagExtractor struct{}

// NewTagExtractor creates the default tag-based extractor.
func NewTagExtractor() Extractor {
	return &tagExtractor{}
}

func (e *tagExtractor) Extract(path string) (*Meta, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, extractionError(path, err)
	}
	defer file.Close()

	meta := &Meta{Mimetype: MimetypeForPath(path)}
	meta.Length, meta.Bitrate = readAudioInfo(path)

	tags, err := tag.ReadFrom(file)
	if err != nil {
		// A file with no readable tag block is still indexable from
		// its filename; only a hard read failure is an extraction
		// error.
		if err == tag.ErrNoTagsFound {
			meta.Title = TitleFromPath(path)
			return meta, nil
		}
		return nil, extractionError(path, err)
	}

	meta.Title = strings.TrimSpace(tags.Title())
	if meta.Title == "" {
		meta.Title = TitleFromPath(path)
	}
	meta.Artist = strings.TrimSpace(tags.Artist())
	meta.AlbumArtist = strings.TrimSpace(tags.AlbumArtist())
	meta.Album = strings.TrimSpace(tags.Album())
	meta.Genre = strings.TrimSpace(tags.Genre())
	meta.Year = tags.Year()
	meta.TrackNumber, _ = tags.Track()
	meta.DiskNumber, _ = tags.Disc()

	if pic := tags.Picture(); pic != nil && len(pic.Data) > 0 {
		meta.CoverBytes = pic.Data
		meta.CoverMime = pic.MIMEType
	}

	return meta, nil
}

// TitleFromPath derives a display title from the file name, used when
// the tags carry no title. A filename-derived title changes when the
// file is renamed, which is why moves re-extract instead of patching
// paths.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
