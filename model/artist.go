package model

import "time"

// Artist is a performer or album artist. The Hash column is the dedup
// key: md5 of the trimmed, lowercased name. For a given user at most
// one row per hash exists, enforced by a unique key in the database.
type Artist struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	Name      string     `json:"name"`
	Hash      string     `json:"-"`
	StarredAt *time.Time `json:"starredAt,omitempty"`
	Rating    int        `json:"rating"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
