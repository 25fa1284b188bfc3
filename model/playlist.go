package model

import (
	"strconv"
	"strings"
	"time"
)

// Playlist holds an ordered list of track ids, stored as a comma
// separated string. The references are weak: ids of tracks deleted
// later may linger and are filtered out at read time. Only an explicit
// per-track deletion scrubs the id from every playlist eagerly.
type Playlist struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"userId" gorm:"index:idx_playlist_user"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	TrackIDs  string    `json:"-" gorm:"column:track_ids;type:text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName keeps the GORM-managed table in the music_ namespace used
// by the raw-SQL schema.
func (Playlist) TableName() string {
	return "music_playlists"
}

// TrackIDList parses the stored CSV into track ids, skipping blanks
// and garbage.
func (p *Playlist) TrackIDList() []int64 {
	if p.TrackIDs == "" {
		return nil
	}
	parts := strings.Split(p.TrackIDs, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// SetTrackIDList stores the given ids as CSV.
func (p *Playlist) SetTrackIDList(ids []int64) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	p.TrackIDs = strings.Join(parts, ",")
}
