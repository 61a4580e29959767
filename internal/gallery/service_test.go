package gallery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reelcut/reelcut-agent/internal/db"
	"github.com/reelcut/reelcut-agent/internal/media"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	repo := NewRepository(database.Conn())
	return database, repo
}

func TestService_AddFolder(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, media.NewStubBackend(), nil)

	tmpDir := t.TempDir()

	source, err := svc.AddFolder(context.Background(), tmpDir, "Camera Roll")
	if err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}

	if source.ID == "" {
		t.Error("source.ID is empty")
	}
	if source.Path != tmpDir {
		t.Errorf("source.Path = %s, want %s", source.Path, tmpDir)
	}
	if source.DisplayName != "Camera Roll" {
		t.Errorf("source.DisplayName = %s, want Camera Roll", source.DisplayName)
	}
}

func TestService_AddFolder_Idempotent(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, media.NewStubBackend(), nil)
	ctx := context.Background()
	tmpDir := t.TempDir()

	first, err := svc.AddFolder(ctx, tmpDir, "Camera Roll")
	if err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}
	second, err := svc.AddFolder(ctx, tmpDir, "Camera Roll Again")
	if err != nil {
		t.Fatalf("AddFolder() second call error = %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("second AddFolder() returned a new source %s, want existing %s", second.ID, first.ID)
	}
}

func TestService_AddFolder_InvalidPath(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, media.NewStubBackend(), nil)

	_, err := svc.AddFolder(context.Background(), "/nonexistent/path", "Test")
	if err == nil {
		t.Error("AddFolder() should return error for nonexistent path")
	}
}

func TestService_AddFolder_NotDirectory(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, media.NewStubBackend(), nil)

	tmpFile := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(tmpFile, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	_, err := svc.AddFolder(context.Background(), tmpFile, "Test")
	if err == nil {
		t.Error("AddFolder() should return error for file path")
	}
}

func TestService_ExecuteScan(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, media.NewStubBackend(), nil)
	ctx := context.Background()

	tmpDir := t.TempDir()
	testVideo := filepath.Join(tmpDir, "beach.mp4")
	if err := os.WriteFile(testVideo, []byte("fake video content for testing"), 0644); err != nil {
		t.Fatalf("failed to create test video: %v", err)
	}

	source, err := svc.AddFolder(ctx, tmpDir, "Test")
	if err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}

	job, err := svc.ScanSource(ctx, source.ID)
	if err != nil {
		t.Fatalf("ScanSource() error = %v", err)
	}

	if err := svc.ExecuteScan(ctx, job.ID, source.ID, source.Path); err != nil {
		t.Fatalf("ExecuteScan() error = %v", err)
	}

	videos, err := repo.GetVideosBySource(ctx, source.ID)
	if err != nil {
		t.Fatalf("GetVideosBySource() error = %v", err)
	}

	if len(videos) != 1 {
		t.Fatalf("found %d videos, want 1", len(videos))
	}
	if videos[0].Filename != "beach.mp4" {
		t.Errorf("video.Filename = %s, want beach.mp4", videos[0].Filename)
	}
	if videos[0].Probed {
		t.Error("freshly scanned video should not be marked probed")
	}

	// A probe job should have been queued for the new video.
	pending, err := repo.ListPendingJobs(ctx)
	if err != nil {
		t.Fatalf("ListPendingJobs() error = %v", err)
	}
	found := false
	for _, j := range pending {
		if j.Type == JobTypeProbe && j.VideoID == videos[0].ID {
			found = true
		}
	}
	if !found {
		t.Error("no probe job queued for scanned video")
	}
}

func TestService_ExecuteScan_SkipsHiddenDirs(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, media.NewStubBackend(), nil)
	ctx := context.Background()

	tmpDir := t.TempDir()

	os.WriteFile(filepath.Join(tmpDir, "visible.mp4"), []byte("visible"), 0644)

	hiddenDir := filepath.Join(tmpDir, ".hidden")
	os.Mkdir(hiddenDir, 0755)
	os.WriteFile(filepath.Join(hiddenDir, "hidden.mp4"), []byte("hidden"), 0644)

	source, _ := svc.AddFolder(ctx, tmpDir, "Test")
	job, _ := svc.ScanSource(ctx, source.ID)
	svc.ExecuteScan(ctx, job.ID, source.ID, source.Path)

	videos, _ := repo.GetVideosBySource(ctx, source.ID)

	if len(videos) != 1 {
		t.Errorf("found %d videos, want 1 (should skip hidden)", len(videos))
	}
}

func TestService_ExecuteProbe(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	backend := media.NewStubBackend()
	svc := NewService(repo, backend, nil)
	ctx := context.Background()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "portrait.mov"), []byte("portrait clip"), 0644)

	source, _ := svc.AddFolder(ctx, tmpDir, "Test")
	job, _ := svc.ScanSource(ctx, source.ID)
	svc.ExecuteScan(ctx, job.ID, source.ID, source.Path)

	videos, _ := repo.GetVideosBySource(ctx, source.ID)
	if len(videos) != 1 {
		t.Fatalf("found %d videos, want 1", len(videos))
	}
	video := videos[0]

	backend.SetAsset(video.ID, media.StubAsset{
		Duration: 12 * time.Second,
		Size:     media.Size{Width: 1920, Height: 1080},
		Rotation: 90,
		HasAudio: true,
	})

	probeJobs, _ := repo.ListPendingJobs(ctx)
	var probeJob *Job
	for _, j := range probeJobs {
		if j.Type == JobTypeProbe && j.VideoID == video.ID {
			probeJob = j
		}
	}
	if probeJob == nil {
		t.Fatal("no probe job queued")
	}

	if err := svc.ExecuteProbe(ctx, probeJob.ID, video.ID); err != nil {
		t.Fatalf("ExecuteProbe() error = %v", err)
	}

	probed, _ := repo.GetVideo(ctx, video.ID)
	if !probed.Probed {
		t.Error("video should be marked probed")
	}
	if probed.Duration != 12*time.Second {
		t.Errorf("Duration = %v, want 12s", probed.Duration)
	}
	if probed.Width != 1920 || probed.Height != 1080 {
		t.Errorf("size = %dx%d, want 1920x1080", probed.Width, probed.Height)
	}
	if probed.Rotation != 90 {
		t.Errorf("Rotation = %d, want 90", probed.Rotation)
	}
	if !probed.HasAudio {
		t.Error("HasAudio should be true")
	}

	done, _ := repo.GetJob(ctx, probeJob.ID)
	if done.Status != JobStatusCompleted {
		t.Errorf("job status = %s, want completed", done.Status)
	}
}

func TestService_ExecuteProbe_MissingVideo(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, media.NewStubBackend(), nil)
	ctx := context.Background()

	now := time.Now()
	job := &Job{ID: "j1", Type: JobTypeProbe, Status: JobStatusPending, VideoID: "nope", CreatedAt: now, UpdatedAt: now}
	repo.CreateJob(ctx, job)

	if err := svc.ExecuteProbe(ctx, job.ID, "nope"); err == nil {
		t.Error("ExecuteProbe() should fail for unknown video")
	}

	failed, _ := repo.GetJob(ctx, job.ID)
	if failed.Status != JobStatusFailed {
		t.Errorf("job status = %s, want failed", failed.Status)
	}
}

func TestIsVideoFile(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"video.mp4", true},
		{"video.MP4", true},
		{"video.mov", true},
		{"video.mkv", true},
		{"video.webm", true},
		{"video.avi", false},
		{"document.pdf", false},
		{"image.jpg", false},
		{"noextension", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := IsVideoFile(tt.filename); got != tt.want {
				t.Errorf("IsVideoFile(%s) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}
