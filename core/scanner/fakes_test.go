package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"melodex/core/filetree"
	"melodex/core/metadata"
	"melodex/model"
	"melodex/repository"
)

// memDB is a mutex-guarded in-memory stand-in for the MySQL tables,
// shared by the per-entity repository fakes below. Insert enforces the
// same unique keys as the schema and loses races with the same
// duplicate-entry error, so the insert-or-recover path is exercised
// for real.
type memDB struct {
	mu        sync.Mutex
	nextID    int64
	artists   map[int64]*model.Artist
	albums    map[int64]*model.Album
	genres    map[int64]*model.Genre
	tracks    map[int64]*model.Track
	playlists map[int64]*model.Playlist
}

func newMemDB() *memDB {
	return &memDB{
		artists:   make(map[int64]*model.Artist),
		albums:    make(map[int64]*model.Album),
		genres:    make(map[int64]*model.Genre),
		tracks:    make(map[int64]*model.Track),
		playlists: make(map[int64]*model.Playlist),
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func dupErr() error {
	return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
}

type memArtists struct{ db *memDB }

func (r *memArtists) FindByID(ctx context.Context, userID, id int64) (*model.Artist, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a, ok := r.db.artists[id]; ok && a.UserID == userID {
		copied := *a
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memArtists) FindByHash(ctx context.Context, userID int64, hash string) (*model.Artist, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.artists {
		if a.UserID == userID && a.Hash == hash {
			copied := *a
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memArtists) FindAllByUserID(ctx context.Context, userID int64) ([]*model.Artist, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*model.Artist{}
	for _, a := range r.db.artists {
		if a.UserID == userID {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memArtists) Insert(ctx context.Context, artist *model.Artist) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.artists {
		if a.UserID == artist.UserID && a.Hash == artist.Hash {
			return 0, dupErr()
		}
	}
	copied := *artist
	copied.ID = r.db.id()
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	r.db.artists[copied.ID] = &copied
	return copied.ID, nil
}

func (r *memArtists) UpdateName(ctx context.Context, id int64, name string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a, ok := r.db.artists[id]; ok {
		a.Name = name
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memArtists) CountReferences(ctx context.Context, userID, artistID int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var count int64
	for _, t := range r.db.tracks {
		if t.UserID == userID && t.ArtistID == artistID {
			count++
		}
	}
	for _, a := range r.db.albums {
		if a.UserID == userID && a.AlbumArtistID == artistID {
			count++
		}
	}
	return count, nil
}

func (r *memArtists) DeleteByIDs(ctx context.Context, ids []int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, id := range ids {
		delete(r.db.artists, id)
	}
	return nil
}

func (r *memArtists) DeleteAllByUserID(ctx context.Context, userID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, a := range r.db.artists {
		if a.UserID == userID {
			delete(r.db.artists, id)
		}
	}
	return nil
}

func (r *memArtists) SetStarred(ctx context.Context, userID, id int64, starred bool) error {
	return nil
}

func (r *memArtists) SetRating(ctx context.Context, userID, id int64, rating int) error {
	return nil
}

type memAlbums struct{ db *memDB }

func (r *memAlbums) FindByID(ctx context.Context, userID, id int64) (*model.Album, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a, ok := r.db.albums[id]; ok && a.UserID == userID {
		copied := *a
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memAlbums) FindByHash(ctx context.Context, userID int64, hash string) (*model.Album, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.albums {
		if a.UserID == userID && a.Hash == hash {
			copied := *a
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memAlbums) FindAllByUserID(ctx context.Context, userID int64) ([]*model.Album, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*model.Album{}
	for _, a := range r.db.albums {
		if a.UserID == userID {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memAlbums) Insert(ctx context.Context, album *model.Album) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.albums {
		if a.UserID == album.UserID && a.Hash == album.Hash {
			return 0, dupErr()
		}
	}
	copied := *album
	copied.ID = r.db.id()
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	r.db.albums[copied.ID] = &copied
	return copied.ID, nil
}

func (r *memAlbums) Update(ctx context.Context, album *model.Album) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a, ok := r.db.albums[album.ID]; ok {
		a.Name = album.Name
		a.Year = album.Year
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memAlbums) SetCover(ctx context.Context, id int64, coverFileID *int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a, ok := r.db.albums[id]; ok {
		a.CoverFileID = coverFileID
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memAlbums) CountReferences(ctx context.Context, userID, albumID int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var count int64
	for _, t := range r.db.tracks {
		if t.UserID == userID && t.AlbumID == albumID {
			count++
		}
	}
	return count, nil
}

func (r *memAlbums) DeleteByIDs(ctx context.Context, ids []int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, id := range ids {
		delete(r.db.albums, id)
	}
	return nil
}

func (r *memAlbums) DeleteAllByUserID(ctx context.Context, userID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, a := range r.db.albums {
		if a.UserID == userID {
			delete(r.db.albums, id)
		}
	}
	return nil
}

func (r *memAlbums) SetStarred(ctx context.Context, userID, id int64, starred bool) error {
	return nil
}

func (r *memAlbums) SetRating(ctx context.Context, userID, id int64, rating int) error {
	return nil
}

type memGenres struct{ db *memDB }

func (r *memGenres) FindByHash(ctx context.Context, userID int64, hash string) (*model.Genre, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, g := range r.db.genres {
		if g.UserID == userID && g.Hash == hash {
			copied := *g
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memGenres) FindAllByUserID(ctx context.Context, userID int64) ([]*model.Genre, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*model.Genre{}
	for _, g := range r.db.genres {
		if g.UserID == userID {
			copied := *g
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memGenres) Insert(ctx context.Context, genre *model.Genre) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, g := range r.db.genres {
		if g.UserID == genre.UserID && g.Hash == genre.Hash {
			return 0, dupErr()
		}
	}
	copied := *genre
	copied.ID = r.db.id()
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	r.db.genres[copied.ID] = &copied
	return copied.ID, nil
}

func (r *memGenres) UpdateName(ctx context.Context, id int64, name string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if g, ok := r.db.genres[id]; ok {
		g.Name = name
		g.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memGenres) CountReferences(ctx context.Context, userID, genreID int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var count int64
	for _, t := range r.db.tracks {
		if t.UserID == userID && t.GenreID != nil && *t.GenreID == genreID {
			count++
		}
	}
	return count, nil
}

func (r *memGenres) DeleteByIDs(ctx context.Context, ids []int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, id := range ids {
		delete(r.db.genres, id)
	}
	return nil
}

func (r *memGenres) DeleteAllByUserID(ctx context.Context, userID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, g := range r.db.genres {
		if g.UserID == userID {
			delete(r.db.genres, id)
		}
	}
	return nil
}

type memTracks struct{ db *memDB }

func (r *memTracks) FindByID(ctx context.Context, userID, id int64) (*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if t, ok := r.db.tracks[id]; ok && t.UserID == userID {
		copied := *t
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memTracks) FindByFileID(ctx context.Context, userID, fileID int64) (*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t := r.findByFileIDLocked(userID, fileID)
	if t == nil {
		return nil, repository.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *memTracks) findByFileIDLocked(userID, fileID int64) *model.Track {
	for _, t := range r.db.tracks {
		if t.UserID == userID && t.FileID == fileID {
			return t
		}
	}
	return nil
}

func (r *memTracks) FindByIDs(ctx context.Context, userID int64, ids []int64) ([]*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*model.Track{}
	for _, id := range ids {
		if t, ok := r.db.tracks[id]; ok && t.UserID == userID {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memTracks) FindAllByUserID(ctx context.Context, userID int64) ([]*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*model.Track{}
	for _, t := range r.db.tracks {
		if t.UserID == userID {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTracks) FindUnderPath(ctx context.Context, userID int64, pathPrefix string) ([]*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	prefix := strings.TrimSuffix(pathPrefix, "/") + "/"
	out := []*model.Track{}
	for _, t := range r.db.tracks {
		if t.UserID == userID && strings.HasPrefix(t.FilePath, prefix) {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTracks) Upsert(ctx context.Context, track *model.Track) (*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	if existing := r.findByFileIDLocked(track.UserID, track.FileID); existing != nil {
		track.ID = existing.ID
		track.CreatedAt = existing.CreatedAt
		track.StarredAt = existing.StarredAt
		track.Rating = existing.Rating
		track.UpdatedAt = now
		copied := *track
		r.db.tracks[copied.ID] = &copied
		return track, nil
	}
	track.ID = r.db.id()
	track.CreatedAt = now
	track.UpdatedAt = now
	copied := *track
	r.db.tracks[copied.ID] = &copied
	return track, nil
}

func (r *memTracks) DeleteByFileID(ctx context.Context, userID, fileID int64) (*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t := r.findByFileIDLocked(userID, fileID)
	if t == nil {
		return nil, repository.ErrNotFound
	}
	delete(r.db.tracks, t.ID)
	copied := *t
	return &copied, nil
}

func (r *memTracks) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var removed int64
	for _, id := range ids {
		if _, ok := r.db.tracks[id]; ok {
			delete(r.db.tracks, id)
			removed++
		}
	}
	return removed, nil
}

func (r *memTracks) DeleteAllByUserID(ctx context.Context, userID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, t := range r.db.tracks {
		if t.UserID == userID {
			delete(r.db.tracks, id)
		}
	}
	return nil
}

func (r *memTracks) LatestUpdatedAt(ctx context.Context, userID int64) (time.Time, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var latest time.Time
	for _, t := range r.db.tracks {
		if t.UserID == userID && t.UpdatedAt.After(latest) {
			latest = t.UpdatedAt
		}
	}
	return latest, nil
}

func (r *memTracks) SetStarred(ctx context.Context, userID, id int64, starred bool) error {
	return nil
}

func (r *memTracks) SetRating(ctx context.Context, userID, id int64, rating int) error {
	return nil
}

type memPlaylists struct{ db *memDB }

func (r *memPlaylists) Create(ctx context.Context, playlist *model.Playlist) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	playlist.ID = r.db.id()
	copied := *playlist
	r.db.playlists[copied.ID] = &copied
	return nil
}

func (r *memPlaylists) FindByID(ctx context.Context, userID, id int64) (*model.Playlist, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.playlists[id]; ok && p.UserID == userID {
		copied := *p
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memPlaylists) FindAllByUserID(ctx context.Context, userID int64) ([]*model.Playlist, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*model.Playlist{}
	for _, p := range r.db.playlists {
		if p.UserID == userID {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memPlaylists) Update(ctx context.Context, playlist *model.Playlist) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.playlists[playlist.ID]; ok && p.UserID == playlist.UserID {
		p.Name = playlist.Name
		p.TrackIDs = playlist.TrackIDs
	}
	return nil
}

func (r *memPlaylists) Delete(ctx context.Context, userID, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.playlists[id]; ok && p.UserID == userID {
		delete(r.db.playlists, id)
	}
	return nil
}

func (r *memPlaylists) RemoveTrackFromAll(ctx context.Context, userID, trackID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.playlists {
		if p.UserID != userID {
			continue
		}
		ids := p.TrackIDList()
		kept := ids[:0]
		for _, id := range ids {
			if id != trackID {
				kept = append(kept, id)
			}
		}
		p.SetTrackIDList(kept)
	}
	return nil
}

func (r *memPlaylists) ClearAllByUserID(ctx context.Context, userID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.playlists {
		if p.UserID == userID {
			p.TrackIDs = ""
		}
	}
	return nil
}

// memTree is an in-memory FileTree keyed by path.
type memTree struct {
	mu    sync.Mutex
	files map[string]filetree.FileRef
}

func newMemTree() *memTree {
	return &memTree{files: make(map[string]filetree.FileRef)}
}

func (t *memTree) add(path string, fileID int64, mtime time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[path] = filetree.FileRef{
		FileID:   fileID,
		Path:     path,
		Mimetype: metadata.MimetypeForPath(path),
		MTime:    mtime,
	}
}

func (t *memTree) remove(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, path)
}

func (t *memTree) rename(oldPath, newPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ref := t.files[oldPath]
	delete(t.files, oldPath)
	ref.Path = newPath
	t.files[newPath] = ref
}

func (t *memTree) ResolveOwnerRoot(username string) (string, error) {
	return "/lib/" + username, nil
}

func (t *memTree) Walk(ctx context.Context, root string, fn filetree.WalkFunc) error {
	t.mu.Lock()
	var refs []filetree.FileRef
	for path, ref := range t.files {
		if PathIsUnder(path, root) {
			refs = append(refs, ref)
		}
	}
	t.mu.Unlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ref); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTree) Stat(path string) (filetree.FileRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ref, ok := t.files[path]; ok {
		return ref, nil
	}
	return filetree.FileRef{}, filetree.ErrNotFound
}

// memExtractor serves canned metadata per path.
type memExtractor struct {
	mu    sync.Mutex
	metas map[string]*metadata.Meta
	bad   map[string]bool
}

func newMemExtractor() *memExtractor {
	return &memExtractor{metas: make(map[string]*metadata.Meta), bad: make(map[string]bool)}
}

func (e *memExtractor) tag(path string, meta *metadata.Meta) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metas[path] = meta
}

// retag carries a file's canned tags over to its new path after a
// simulated move.
func (e *memExtractor) retag(oldPath, newPath string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if meta, ok := e.metas[oldPath]; ok {
		e.metas[newPath] = meta
	}
}

func (e *memExtractor) breakFile(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bad[path] = true
}

func (e *memExtractor) Extract(path string) (*metadata.Meta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bad[path] {
		return nil, fmt.Errorf("%w: %s: corrupt", metadata.ErrExtraction, path)
	}
	if meta, ok := e.metas[path]; ok {
		copied := *meta
		return &copied, nil
	}
	// Untagged file: same shape the real extractor produces.
	return &metadata.Meta{
		Title:    metadata.TitleFromPath(path),
		Mimetype: metadata.MimetypeForPath(path),
	}, nil
}

// fixture bundles a scanner over the in-memory fakes.
type fixture struct {
	db        *memDB
	tree      *memTree
	extractor *memExtractor
	artists   repository.ArtistRepository
	albums    repository.AlbumRepository
	genres    repository.GenreRepository
	tracks    repository.TrackRepository
	playlists repository.PlaylistRepository
	scanner   *Scanner
}

func newFixture() *fixture {
	db := newMemDB()
	f := &fixture{
		db:        db,
		tree:      newMemTree(),
		extractor: newMemExtractor(),
		artists:   &memArtists{db: db},
		albums:    &memAlbums{db: db},
		genres:    &memGenres{db: db},
		tracks:    &memTracks{db: db},
		playlists: &memPlaylists{db: db},
	}
	resolver := NewEntityResolver(f.artists, f.albums, f.genres)
	f.scanner = NewScanner(f.tree, f.extractor, resolver,
		f.tracks, f.albums, f.artists, f.genres, f.playlists, nil, nil)
	return f
}

// addSong registers a file in the tree with canned tags.
func (f *fixture) addSong(path string, fileID int64, artist, album, title string, trackNo int) {
	f.tree.add(path, fileID, time.Now())
	f.extractor.tag(path, &metadata.Meta{
		Title:       title,
		TrackNumber: trackNo,
		Artist:      artist,
		Album:       album,
		Genre:       "Rock",
		Mimetype:    metadata.MimetypeForPath(path),
	})
}
