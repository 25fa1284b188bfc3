package model

import "time"

// Album belongs to an album artist. The Hash column is the dedup key:
// md5 of the trimmed, lowercased name joined with the album artist id,
// unique per user.
//
// CoverFileID points at the library file whose embedded picture was
// stored as this album's cover, nil when no cover is known.
type Album struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"userId"`
	Name          string     `json:"name"`
	Year          int        `json:"year"`
	AlbumArtistID int64      `json:"albumArtistId"`
	Hash          string     `json:"-"`
	CoverFileID   *int64     `json:"coverFileId,omitempty"`
	StarredAt     *time.Time `json:"starredAt,omitempty"`
	Rating        int        `json:"rating"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}
