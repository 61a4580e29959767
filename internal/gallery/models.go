// Package gallery is the asset source for the editor: a catalog of video
// files discovered under user-added folders, with per-video metadata probed
// through the media backend and a provider contract the editing session
// consumes.
package gallery

import (
	"path/filepath"
	"strings"
	"time"
)

type Source struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Path        string    `json:"path"`
	DisplayName string    `json:"display_name"`
	Present     bool      `json:"present"`
	CreatedAt   time.Time `json:"created_at"`
}

type Video struct {
	ID          string        `json:"id"`
	SourceID    string        `json:"source_id"`
	Path        string        `json:"path"`
	Filename    string        `json:"filename"`
	Size        int64         `json:"size"`
	Mtime       time.Time     `json:"mtime"`
	Fingerprint string        `json:"fingerprint"`
	Duration    time.Duration `json:"duration_ms"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Rotation    int           `json:"rotation"`
	HasAudio    bool          `json:"has_audio"`
	Probed      bool          `json:"probed"`
	CreatedAt   time.Time     `json:"created_at"`
}

const (
	JobTypeScan  = "scan"
	JobTypeProbe = "probe"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	SourceID  string    `json:"source_id,omitempty"`
	VideoID   string    `json:"video_id,omitempty"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".m4v":  true,
	".webm": true,
}

func IsVideoFile(filename string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(filename))]
}
