package model

// Collection is the merged artists/albums/tracks tree served to
// clients in one response. Building it touches every table, so the
// serialized form is memoized in the cache under a freshness
// fingerprint key.
type Collection struct {
	Artists []*CollectionArtist `json:"artists"`
}

type CollectionArtist struct {
	ID     int64              `json:"id"`
	Name   string             `json:"name"`
	Albums []*CollectionAlbum `json:"albums"`
}

type CollectionAlbum struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Year   int      `json:"year"`
	Cover  bool     `json:"cover"`
	Tracks []*Track `json:"tracks"`
}
