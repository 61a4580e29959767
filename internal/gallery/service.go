package gallery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reelcut/reelcut-agent/internal/media"
)

const fingerprintSize = 64 * 1024

type Service struct {
	repo    Repository
	backend media.Backend
	logger  *slog.Logger
}

func NewService(repo Repository, backend media.Backend, logger *slog.Logger) *Service {
	return &Service{repo: repo, backend: backend, logger: logger}
}

func (s *Service) AddFolder(ctx context.Context, path, displayName string) (*Source, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory")
	}

	existing, err := s.repo.GetSourceByPath(ctx, absPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if displayName == "" {
		displayName = filepath.Base(absPath)
	}

	source := &Source{
		ID:          uuid.NewString(),
		Type:        "folder",
		Path:        absPath,
		DisplayName: displayName,
		Present:     true,
		CreatedAt:   time.Now(),
	}

	if err := s.repo.CreateSource(ctx, source); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("folder added", "source_id", source.ID, "path", absPath)
	}
	return source, nil
}

func (s *Service) RemoveSource(ctx context.Context, id string) error {
	if err := s.repo.DeleteVideosBySource(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteSource(ctx, id)
}

func (s *Service) Sources(ctx context.Context) ([]*Source, error) {
	return s.repo.ListSources(ctx)
}

func (s *Service) Source(ctx context.Context, id string) (*Source, error) {
	return s.repo.GetSource(ctx, id)
}

func (s *Service) SourceByPath(ctx context.Context, path string) (*Source, error) {
	return s.repo.GetSourceByPath(ctx, path)
}

func (s *Service) Videos(ctx context.Context) ([]*Video, error) {
	return s.repo.ListVideos(ctx)
}

func (s *Service) Video(ctx context.Context, id string) (*Video, error) {
	return s.repo.GetVideo(ctx, id)
}

func (s *Service) CountVideos(ctx context.Context) (int, error) {
	return s.repo.CountVideos(ctx)
}

// ScanSource queues a scan job for a source. The runner picks it up.
func (s *Service) ScanSource(ctx context.Context, sourceID string) (*Job, error) {
	source, err := s.repo.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("source not found")
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Type:      JobTypeScan,
		Status:    JobStatusPending,
		SourceID:  sourceID,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("scan job created", "job_id", job.ID, "source_id", sourceID)
	}
	return job, nil
}

// ExecuteScan walks a source folder, upserts every video file found, and
// queues probe jobs for videos without metadata.
func (s *Service) ExecuteScan(ctx context.Context, jobID, sourceID, path string) error {
	s.repo.UpdateJobStatus(ctx, jobID, JobStatusRunning, "")
	if s.logger != nil {
		s.logger.Info("starting scan", "job_id", jobID, "path", path)
	}

	var files []string
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if !d.IsDir() && IsVideoFile(d.Name()) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		s.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, err.Error())
		return err
	}

	total := len(files)
	if s.logger != nil {
		s.logger.Info("found video files", "count", total)
	}

	for i, filePath := range files {
		select {
		case <-ctx.Done():
			s.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, "cancelled")
			return ctx.Err()
		default:
		}

		if err := s.processVideoFile(ctx, sourceID, filePath); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to process file", "path", filePath, "error", err)
			}
		}

		progress := 0
		if total > 0 {
			progress = (i + 1) * 100 / total
		}
		s.repo.UpdateJobProgress(ctx, jobID, progress)
	}

	s.repo.UpdateJobStatus(ctx, jobID, JobStatusCompleted, "")
	if s.logger != nil {
		s.logger.Info("scan completed", "job_id", jobID, "files_processed", total)
	}

	s.createProbeJobs(ctx, sourceID)
	return nil
}

// createProbeJobs queues a probe job for every unprobed video of a source
// that does not already have one pending or running.
func (s *Service) createProbeJobs(ctx context.Context, sourceID string) {
	videos, err := s.repo.GetVideosBySource(ctx, sourceID)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to list videos for probe job creation", "source_id", sourceID, "error", err)
		}
		return
	}

	existingJobs, err := s.repo.ListJobs(ctx, 10000)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to list existing jobs", "error", err)
		}
		return
	}

	queued := make(map[string]bool)
	for _, j := range existingJobs {
		if j.Type == JobTypeProbe && j.VideoID != "" &&
			(j.Status == JobStatusPending || j.Status == JobStatusRunning) {
			queued[j.VideoID] = true
		}
	}

	created := 0
	for _, v := range videos {
		if v.Probed || queued[v.ID] {
			continue
		}
		now := time.Now()
		job := &Job{
			ID:        uuid.NewString(),
			Type:      JobTypeProbe,
			Status:    JobStatusPending,
			SourceID:  sourceID,
			VideoID:   v.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateJob(ctx, job); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to create probe job", "video_id", v.ID, "error", err)
			}
			continue
		}
		created++
	}

	if s.logger != nil {
		s.logger.Info("created probe jobs", "source_id", sourceID, "count", created)
	}
}

// ExecuteProbe loads track metadata for one video through the media backend
// and persists it.
func (s *Service) ExecuteProbe(ctx context.Context, jobID, videoID string) error {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		s.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, err.Error())
		return err
	}
	if video == nil {
		s.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, "video not found")
		return fmt.Errorf("video not found: %s", videoID)
	}

	s.repo.UpdateJobStatus(ctx, jobID, JobStatusRunning, "")

	asset := &media.Asset{ID: video.ID, Path: video.Path}
	tracks, err := s.backend.LoadTracks(ctx, asset, media.TypeVideo)
	if err != nil {
		s.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, err.Error())
		return err
	}
	if len(tracks) == 0 {
		s.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, "no video track")
		return fmt.Errorf("no video track in %s", video.Path)
	}

	props, err := s.backend.LoadTrackProperties(ctx, tracks[0])
	if err != nil {
		s.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, err.Error())
		return err
	}

	video.Duration = props.TimeRange.Duration
	video.Width = props.NaturalSize.Width
	video.Height = props.NaturalSize.Height
	video.Rotation = rotationFromTransform(props.PreferredTransform)
	video.Probed = true

	audioTracks, err := s.backend.LoadTracks(ctx, asset, media.TypeAudio)
	video.HasAudio = err == nil && len(audioTracks) > 0

	if err := s.repo.UpdateVideoProbe(ctx, video); err != nil {
		s.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, err.Error())
		return err
	}

	s.repo.UpdateJobStatus(ctx, jobID, JobStatusCompleted, "")
	if s.logger != nil {
		s.logger.Info("probe completed", "job_id", jobID, "video_id", videoID,
			"duration", video.Duration, "size", fmt.Sprintf("%dx%d", video.Width, video.Height))
	}
	return nil
}

func rotationFromTransform(t media.Transform) int {
	switch {
	case t == media.RotationTransform(90):
		return 90
	case t == media.RotationTransform(180):
		return 180
	case t == media.RotationTransform(270):
		return 270
	default:
		return 0
	}
}

func (s *Service) processVideoFile(ctx context.Context, sourceID, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	fingerprint, err := computeFingerprint(path)
	if err != nil {
		return err
	}

	video := &Video{
		ID:          uuid.NewString(),
		SourceID:    sourceID,
		Path:        path,
		Filename:    filepath.Base(path),
		Size:        info.Size(),
		Mtime:       info.ModTime(),
		Fingerprint: fingerprint,
		CreatedAt:   time.Now(),
	}

	return s.repo.UpsertVideo(ctx, video)
}

func computeFingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	lr := io.LimitReader(f, fingerprintSize)
	if _, err := io.Copy(h, lr); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
