package model

import "time"

// Track is one indexed audio file. FileID is the stable identifier
// assigned by the external file tree and is unique per user; it never
// changes on moves or renames, which is what lets the index follow a
// file around without rescanning the whole tree.
type Track struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	FileID      int64      `json:"fileId"`
	FilePath    string     `json:"-"`
	Title       string     `json:"title"`
	TrackNumber int        `json:"trackNumber"`
	DiskNumber  int        `json:"diskNumber"`
	Length      int        `json:"length"`  // seconds
	Bitrate     int        `json:"bitrate"` // kbps
	Mimetype    string     `json:"mimetype"`
	ArtistID    int64      `json:"artistId"`
	AlbumID     int64      `json:"albumId"`
	GenreID     *int64     `json:"genreId,omitempty"`
	StarredAt   *time.Time `json:"starredAt,omitempty"`
	Rating      int        `json:"rating"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
