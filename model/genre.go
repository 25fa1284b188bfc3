package model

import "time"

// Genre has the same shape as Artist: a display name plus the
// lowercased dedup hash, unique per user.
type Genre struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Name      string    `json:"name"`
	Hash      string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
