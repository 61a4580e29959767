package gallery

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/reelcut/reelcut-agent/internal/media"
)

func seedVideo(t *testing.T, repo Repository, id string) {
	t.Helper()
	now := time.Now()
	v := &Video{
		ID:          id,
		SourceID:    "src",
		Path:        "/videos/" + id + ".mp4",
		Filename:    id + ".mp4",
		Size:        1024,
		Mtime:       now,
		Fingerprint: "fp-" + id,
		CreatedAt:   now,
	}
	if err := repo.UpsertVideo(context.Background(), v); err != nil {
		t.Fatalf("failed to seed video %s: %v", id, err)
	}
}

func setupProvider(t *testing.T, backend *media.StubBackend, ids ...string) *LibraryProvider {
	t.Helper()
	database, repo := setupTestDB(t)
	t.Cleanup(func() { database.Close() })

	now := time.Now()
	src := &Source{ID: "src", Type: "folder", Path: t.TempDir(), DisplayName: "Test", Present: true, CreatedAt: now}
	if err := repo.CreateSource(context.Background(), src); err != nil {
		t.Fatalf("failed to seed source: %v", err)
	}
	for _, id := range ids {
		seedVideo(t, repo, id)
		backend.SetAsset(id, media.StubAsset{Duration: 10 * time.Second, Size: media.Size{Width: 1920, Height: 1080}})
	}

	p := NewLibraryProvider(repo, backend, 20, nil)
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	return p
}

func TestLibraryProvider_RequestThumbnail(t *testing.T) {
	backend := media.NewStubBackend()
	p := setupProvider(t, backend, "a")

	got := make(chan image.Image, 1)
	id, ok := p.RequestThumbnail(0, media.Size{Width: 160, Height: 90}, func(img image.Image) {
		got <- img
	})
	if !ok {
		t.Fatal("RequestThumbnail() did not start a request")
	}
	if id == 0 {
		t.Error("RequestThumbnail() returned zero request id")
	}

	select {
	case img := <-got:
		if img == nil {
			t.Fatal("callback received nil image")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("thumbnail callback never fired")
	}
}

func TestLibraryProvider_CachedThumbnailIsSynchronous(t *testing.T) {
	backend := media.NewStubBackend()
	p := setupProvider(t, backend, "a")
	target := media.Size{Width: 160, Height: 90}

	first := make(chan image.Image, 1)
	p.RequestThumbnail(0, target, func(img image.Image) { first <- img })
	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("first thumbnail never arrived")
	}

	// The second request is served from cache on the calling goroutine.
	var cached image.Image
	id, ok := p.RequestThumbnail(0, target, func(img image.Image) { cached = img })
	if ok || id != 0 {
		t.Errorf("cached request returned handle (%d, %v), want (0, false)", id, ok)
	}
	if cached == nil {
		t.Error("cached thumbnail was not delivered synchronously")
	}
	if backend.FramePasses() != 1 {
		t.Errorf("frame passes = %d, want 1", backend.FramePasses())
	}
}

func TestLibraryProvider_CancelRequest(t *testing.T) {
	backend := media.NewStubBackend()
	backend.SetFrameDelay(50 * time.Millisecond)
	p := setupProvider(t, backend, "a")

	fired := make(chan struct{}, 1)
	id, ok := p.RequestThumbnail(0, media.Size{Width: 160, Height: 90}, func(img image.Image) {
		fired <- struct{}{}
	})
	if !ok {
		t.Fatal("RequestThumbnail() did not start a request")
	}

	p.CancelRequest(id)

	select {
	case <-fired:
		t.Error("callback fired for a cancelled request")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestLibraryProvider_OutOfRangeIndex(t *testing.T) {
	backend := media.NewStubBackend()
	p := setupProvider(t, backend, "a")

	if _, ok := p.RequestThumbnail(5, media.Size{Width: 160, Height: 90}, func(image.Image) {}); ok {
		t.Error("RequestThumbnail() accepted out-of-range index")
	}
	if _, ok := p.FullAsset(-1); ok {
		t.Error("FullAsset() accepted negative index")
	}
	if v := p.Video(99); v != nil {
		t.Error("Video() returned a video for out-of-range index")
	}
}

func TestLibraryProvider_FullAsset(t *testing.T) {
	backend := media.NewStubBackend()
	p := setupProvider(t, backend, "a")

	asset, ok := p.FullAsset(0)
	if !ok {
		t.Fatal("FullAsset() returned no asset")
	}
	if asset.ID != "a" {
		t.Errorf("asset.ID = %s, want a", asset.ID)
	}
	if asset.Path != "/videos/a.mp4" {
		t.Errorf("asset.Path = %s, want /videos/a.mp4", asset.Path)
	}
}

func TestLibraryProvider_RefreshNotifies(t *testing.T) {
	backend := media.NewStubBackend()
	p := setupProvider(t, backend, "a", "b")

	notified := 0
	p.SetUpdateCallback(func() { notified++ })

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if notified != 1 {
		t.Errorf("update callback fired %d times, want 1", notified)
	}
	if p.Count() != 2 {
		t.Errorf("Count() = %d, want 2", p.Count())
	}
}
