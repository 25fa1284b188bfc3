package scanner

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"melodex/model"
	"melodex/repository"
)

// Sentinel names assigned when a file's tags carry no value. They go
// through the same hashing as real names, so all untagged files of an
// owner collapse onto one sentinel row each.
const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
	UnknownGenre  = "Unknown Genre"
)

// EntityResolver turns raw tag names into entity rows, deduplicating
// on a normalized hash. Creation is race-safe without locks: an insert
// that loses the unique-key race re-queries the winner's row instead
// of failing.
type EntityResolver struct {
	artists repository.ArtistRepository
	albums  repository.AlbumRepository
	genres  repository.GenreRepository
}

// NewEntityResolver creates a resolver over the entity repositories.
func NewEntityResolver(artists repository.ArtistRepository, albums repository.AlbumRepository,
	genres repository.GenreRepository) *EntityResolver {
	return &EntityResolver{artists: artists, albums: albums, genres: genres}
}

// NameHash is the dedup key for a name: md5 of the trimmed, lowercased
// form. "Queen", "queen" and " QUEEN " all map to the same key.
func NameHash(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// albumHash scopes the album dedup key to its album artist, so two
// artists can each have an album of the same name.
func albumHash(name string, albumArtistID int64) string {
	normalized := strings.ToLower(strings.TrimSpace(name)) + "|" + strconv.FormatInt(albumArtistID, 10)
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// ResolveArtist finds or creates the artist row for a raw tag name.
// A row found under the hash with a cosmetically different spelling
// (casing, whitespace) is renamed to the latest spelling.
func (r *EntityResolver) ResolveArtist(ctx context.Context, userID int64, name string) (*model.Artist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = UnknownArtist
	}
	hash := NameHash(name)

	artist, err := r.artists.FindByHash(ctx, userID, hash)
	if err == nil {
		if artist.Name != name {
			if err := r.artists.UpdateName(ctx, artist.ID, name); err != nil {
				return nil, err
			}
			artist.Name = name
		}
		return artist, nil
	}
	if err != repository.ErrNotFound {
		return nil, err
	}

	artist = &model.Artist{UserID: userID, Name: name, Hash: hash}
	id, err := r.artists.Insert(ctx, artist)
	if err == nil {
		artist.ID = id
		return artist, nil
	}
	if !repository.IsDuplicateEntry(err) {
		return nil, fmt.Errorf("failed to insert artist %q: %w", name, err)
	}
	// A concurrent resolve for the same name won the insert; adopt its
	// row.
	return r.artists.FindByHash(ctx, userID, hash)
}

// ResolveAlbum finds or creates the album row for a raw tag name under
// the given album artist. Name and year updates on an existing row are
// cosmetic and follow the latest file seen.
func (r *EntityResolver) ResolveAlbum(ctx context.Context, userID int64, name string, year int,
	albumArtistID int64) (*model.Album, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = UnknownAlbum
	}
	hash := albumHash(name, albumArtistID)

	album, err := r.albums.FindByHash(ctx, userID, hash)
	if err == nil {
		if album.Name != name || (year != 0 && album.Year != year) {
			album.Name = name
			if year != 0 {
				album.Year = year
			}
			if err := r.albums.Update(ctx, album); err != nil {
				return nil, err
			}
		}
		return album, nil
	}
	if err != repository.ErrNotFound {
		return nil, err
	}

	album = &model.Album{UserID: userID, Name: name, Year: year, AlbumArtistID: albumArtistID, Hash: hash}
	id, err := r.albums.Insert(ctx, album)
	if err == nil {
		album.ID = id
		return album, nil
	}
	if !repository.IsDuplicateEntry(err) {
		return nil, fmt.Errorf("failed to insert album %q: %w", name, err)
	}
	return r.albums.FindByHash(ctx, userID, hash)
}

// ResolveGenre finds or creates the genre row for a raw tag name.
func (r *EntityResolver) ResolveGenre(ctx context.Context, userID int64, name string) (*model.Genre, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = UnknownGenre
	}
	hash := NameHash(name)

	genre, err := r.genres.FindByHash(ctx, userID, hash)
	if err == nil {
		if genre.Name != name {
			if err := r.genres.UpdateName(ctx, genre.ID, name); err != nil {
				return nil, err
			}
			genre.Name = name
		}
		return genre, nil
	}
	if err != repository.ErrNotFound {
		return nil, err
	}

	genre = &model.Genre{UserID: userID, Name: name, Hash: hash}
	id, err := r.genres.Insert(ctx, genre)
	if err == nil {
		genre.ID = id
		return genre, nil
	}
	if !repository.IsDuplicateEntry(err) {
		return nil, fmt.Errorf("failed to insert genre %q: %w", name, err)
	}
	return r.genres.FindByHash(ctx, userID, hash)
}
