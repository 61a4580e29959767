package api

import (
	"time"

	"github.com/reelcut/reelcut-agent/internal/composer"
	"github.com/reelcut/reelcut-agent/internal/gallery"
	"github.com/reelcut/reelcut-agent/internal/session"
	"github.com/reelcut/reelcut-agent/internal/timeline"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State       string         `json:"state"`
	LastError   string         `json:"last_error,omitempty"`
	SourceCount int            `json:"source_count"`
	VideoCount  int            `json:"video_count"`
	JobsRunning int            `json:"jobs_running"`
	ActiveJob   *JobResponse   `json:"active_job,omitempty"`
	Tools       *ToolsResponse `json:"tools,omitempty"`
}

type ToolsResponse struct {
	HasFFmpeg     bool   `json:"has_ffmpeg"`
	HasFFprobe    bool   `json:"has_ffprobe"`
	FFmpegVersion string `json:"ffmpeg_version,omitempty"`
	LastProbeAt   string `json:"last_probe_at,omitempty"`
}

type AddFolderRequest struct {
	Path        string `json:"path"`
	DisplayName string `json:"display_name,omitempty"`
}

type AddFolderResponse struct {
	SourceID string `json:"source_id"`
}

type SourceResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
	Present     bool   `json:"present"`
	CreatedAt   string `json:"created_at"`
}

type SourcesResponse struct {
	Sources []SourceResponse `json:"sources"`
}

type ScanRequest struct {
	SourceID string `json:"source_id,omitempty"`
}

type ScanResponse struct {
	JobID string `json:"job_id"`
}

type JobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	SourceID  string `json:"source_id,omitempty"`
	VideoID   string `json:"video_id,omitempty"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type VideoResponse struct {
	ID         string `json:"id"`
	SourceID   string `json:"source_id"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	DurationMS int64  `json:"duration_ms"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Rotation   int    `json:"rotation"`
	HasAudio   bool   `json:"has_audio"`
	Probed     bool   `json:"probed"`
	CreatedAt  string `json:"created_at"`
}

type VideosResponse struct {
	Videos []VideoResponse `json:"videos"`
}

type AddClipRequest struct {
	VideoID string `json:"video_id"`
	At      *int   `json:"at,omitempty"`
}

type MoveClipRequest struct {
	To int `json:"to"`
}

type TrimClipRequest struct {
	StartMS    int64 `json:"start_ms"`
	DurationMS int64 `json:"duration_ms"`
}

type SeekRequest struct {
	PositionMS int64 `json:"position_ms"`
}

type PlaybackResponse struct {
	PositionMS int64   `json:"position_ms"`
	DurationMS int64   `json:"duration_ms"`
	Rate       float64 `json:"rate"`
}

type ClipResponse struct {
	ID           string `json:"id"`
	AssetID      string `json:"asset_id"`
	SourceMS     int64  `json:"source_ms"`
	TrimStartMS  int64  `json:"trim_start_ms"`
	TrimLengthMS int64  `json:"trim_length_ms"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	HasAudio     bool   `json:"has_audio"`
}

type CompositionResponse struct {
	State           string   `json:"state"`
	DurationMS      int64    `json:"duration_ms"`
	TrackAssignment []int    `json:"track_assignment"`
	CumulativeMS    []int64  `json:"cumulative_ms"`
	SkippedClips    []string `json:"skipped_clips,omitempty"`
}

type SessionResponse struct {
	ID          string               `json:"id"`
	Clips       []ClipResponse       `json:"clips"`
	Selected    int                  `json:"selected"`
	DurationMS  int64                `json:"duration_ms"`
	Composition *CompositionResponse `json:"composition,omitempty"`
	Playback    PlaybackResponse     `json:"playback"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SourceToResponse(s *gallery.Source) SourceResponse {
	return SourceResponse{
		ID:          s.ID,
		Type:        s.Type,
		Path:        s.Path,
		DisplayName: s.DisplayName,
		Present:     s.Present,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *gallery.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		SourceID:  j.SourceID,
		VideoID:   j.VideoID,
		Progress:  j.Progress,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}

func VideoToResponse(v *gallery.Video) VideoResponse {
	return VideoResponse{
		ID:         v.ID,
		SourceID:   v.SourceID,
		Filename:   v.Filename,
		Size:       v.Size,
		DurationMS: v.Duration.Milliseconds(),
		Width:      v.Width,
		Height:     v.Height,
		Rotation:   v.Rotation,
		HasAudio:   v.HasAudio,
		Probed:     v.Probed,
		CreatedAt:  v.CreatedAt.Format(time.RFC3339),
	}
}

func ClipToResponse(c timeline.Clip) ClipResponse {
	return ClipResponse{
		ID:           c.ID,
		AssetID:      c.Asset.ID,
		SourceMS:     c.SourceRange.Duration.Milliseconds(),
		TrimStartMS:  c.TrimmedRange.Start.Milliseconds(),
		TrimLengthMS: c.TrimmedRange.Duration.Milliseconds(),
		Width:        c.NaturalSize.Width,
		Height:       c.NaturalSize.Height,
		HasAudio:     c.HasAudio,
	}
}

func SessionToResponse(s *session.Session) SessionResponse {
	clips := s.Timeline.Clips()
	resp := SessionResponse{
		ID:         s.ID,
		Clips:      make([]ClipResponse, len(clips)),
		Selected:   s.Selected(),
		DurationMS: s.Timeline.TotalDuration().Milliseconds(),
	}
	for i, c := range clips {
		resp.Clips[i] = ClipToResponse(c)
	}

	player := s.Engine.Player()
	resp.Playback = PlaybackResponse{
		PositionMS: player.Position().Milliseconds(),
		Rate:       player.Rate(),
	}
	if item := player.Item(); item != nil {
		resp.Playback.DurationMS = item.Duration.Milliseconds()
	}

	if composed := s.Engine.Current(); composed != nil {
		resp.Composition = ComposedToResponse(s.Engine.State(), composed)
	} else {
		resp.Composition = &CompositionResponse{State: string(s.Engine.State())}
	}
	return resp
}

func ComposedToResponse(state composer.State, cm *composer.ComposedMedia) *CompositionResponse {
	resp := &CompositionResponse{
		State:           string(state),
		DurationMS:      cm.TotalDuration.Milliseconds(),
		TrackAssignment: cm.TrackAssignment,
		SkippedClips:    cm.SkippedClips,
		CumulativeMS:    make([]int64, len(cm.CumulativeTimes)),
	}
	for i, t := range cm.CumulativeTimes {
		resp.CumulativeMS[i] = t.Milliseconds()
	}
	return resp
}
