package model

import "time"

// Scan job states.
const (
	ScanStatusRunning   = "running"
	ScanStatusCompleted = "completed"
	ScanStatusFailed    = "failed"
	ScanStatusCancelled = "cancelled"
)

// ScanJob records one tree scan for status reporting. Managed through
// GORM, like the other newer modules.
type ScanJob struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	UserID       int64     `json:"userId" gorm:"index:idx_scanjob_user"`
	Path         string    `json:"path" gorm:"size:767"`
	Full         bool      `json:"full"`
	FilesScanned int       `json:"filesScanned"`
	Status       string    `json:"status" gorm:"size:16"`
	Error        string    `json:"error,omitempty" gorm:"type:text"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (ScanJob) TableName() string {
	return "music_scan_jobs"
}

// ScanReport summarizes one completed tree scan.
type ScanReport struct {
	FilesScanned  int           `json:"filesScanned"`
	TracksUpdated int           `json:"tracksUpdated"`
	TracksRemoved int           `json:"tracksRemoved"`
	Skipped       int           `json:"skipped"`
	Failed        int           `json:"failed"`
	Duration      time.Duration `json:"duration"`
}

// CleanupReport summarizes one orphan-cleanup pass.
type CleanupReport struct {
	RemovedTracks  int `json:"removedTracks"`
	RemovedAlbums  int `json:"removedAlbums"`
	RemovedArtists int `json:"removedArtists"`
	RemovedGenres  int `json:"removedGenres"`
}
