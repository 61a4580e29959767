package strip

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/reelcut/reelcut-agent/internal/media"
	"github.com/reelcut/reelcut-agent/internal/timeline"
)

func newTestClip(t *testing.T, backend *media.StubBackend, id string, spec media.StubAsset) timeline.Clip {
	t.Helper()
	backend.SetAsset(id, spec)
	tl := timeline.New(backend, nil)
	clip, err := tl.Append(context.Background(), &media.Asset{ID: id, Path: "/videos/" + id + ".mp4"})
	if err != nil {
		t.Fatalf("failed to build test clip: %v", err)
	}
	return clip
}

func landscapeSpec() media.StubAsset {
	return media.StubAsset{Duration: 6 * time.Second, Size: media.Size{Width: 1920, Height: 1080}}
}

func TestGenerator_RendersStrip(t *testing.T) {
	backend := media.NewStubBackend()
	clip := newTestClip(t, backend, "a", landscapeSpec())
	g := NewGenerator(backend, 10, nil)

	img, err := g.Strip(context.Background(), clip, media.Size{Width: 300, Height: 60})
	if err != nil {
		t.Fatalf("Strip() error = %v", err)
	}
	if img == nil {
		t.Fatal("Strip() returned nil image")
	}

	bounds := img.Bounds()
	if bounds.Dx() != 300 || bounds.Dy() != 60 {
		t.Errorf("strip bounds = %dx%d, want 300x60", bounds.Dx(), bounds.Dy())
	}
}

func TestGenerator_CachesResult(t *testing.T) {
	backend := media.NewStubBackend()
	clip := newTestClip(t, backend, "a", landscapeSpec())
	g := NewGenerator(backend, 10, nil)
	ctx := context.Background()
	target := media.Size{Width: 300, Height: 60}

	first, _ := g.Strip(ctx, clip, target)
	second, _ := g.Strip(ctx, clip, target)

	if backend.FramePasses() != 1 {
		t.Errorf("frame passes = %d, want 1 (second request should hit cache)", backend.FramePasses())
	}
	if first != second {
		t.Error("cached request returned a different image")
	}
}

func TestGenerator_CoalescesConcurrentRequests(t *testing.T) {
	backend := media.NewStubBackend()
	clip := newTestClip(t, backend, "a", landscapeSpec())
	backend.SetFrameDelay(30 * time.Millisecond)
	g := NewGenerator(backend, 10, nil)
	target := media.Size{Width: 300, Height: 60}

	var wg sync.WaitGroup
	images := make([]image.Image, 4)
	for i := range images {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img, err := g.Strip(context.Background(), clip, target)
			if err != nil {
				t.Errorf("Strip() error = %v", err)
			}
			images[i] = img
		}(i)
	}
	wg.Wait()

	if passes := backend.FramePasses(); passes != 1 {
		t.Errorf("frame passes = %d, want 1 (concurrent requests must coalesce)", passes)
	}
	for i := 1; i < len(images); i++ {
		if images[i] != images[0] {
			t.Errorf("caller %d received a different image", i)
		}
	}
}

func TestGenerator_DistinctSizesRenderSeparately(t *testing.T) {
	backend := media.NewStubBackend()
	clip := newTestClip(t, backend, "a", landscapeSpec())
	g := NewGenerator(backend, 10, nil)
	ctx := context.Background()

	g.Strip(ctx, clip, media.Size{Width: 300, Height: 60})
	g.Strip(ctx, clip, media.Size{Width: 150, Height: 40})

	if backend.FramePasses() != 2 {
		t.Errorf("frame passes = %d, want 2", backend.FramePasses())
	}
}

func TestGenerator_DegenerateGeometryReturnsEmpty(t *testing.T) {
	backend := media.NewStubBackend()
	clip := newTestClip(t, backend, "a", landscapeSpec())
	g := NewGenerator(backend, 10, nil)
	ctx := context.Background()

	for _, target := range []media.Size{
		{Width: 0, Height: 60},
		{Width: 300, Height: 0},
	} {
		img, err := g.Strip(ctx, clip, target)
		if err != nil {
			t.Errorf("Strip(%v) error = %v, want nil", target, err)
		}
		if img != nil {
			t.Errorf("Strip(%v) = image, want nil", target)
		}
	}

	// Degenerate natural size would divide by zero in the aspect math.
	zeroClip := clip
	zeroClip.NaturalSize = media.Size{}
	if img, err := g.Strip(ctx, zeroClip, media.Size{Width: 300, Height: 60}); img != nil || err != nil {
		t.Errorf("Strip() with zero natural size = %v, %v, want nil, nil", img, err)
	}

	if backend.FramePasses() != 0 {
		t.Errorf("frame passes = %d, want 0 (no decode for degenerate input)", backend.FramePasses())
	}
}

func TestGenerator_PartialStripOnFrameFailure(t *testing.T) {
	backend := media.NewStubBackend()
	spec := landscapeSpec()
	// 300x60 over 16:9 frames yields 3 slots with a 2s gap; fail the
	// middle one.
	spec.FailFrames = map[time.Duration]bool{2 * time.Second: true}
	clip := newTestClip(t, backend, "a", spec)
	g := NewGenerator(backend, 10, nil)

	img, err := g.Strip(context.Background(), clip, media.Size{Width: 300, Height: 60})
	if err != nil {
		t.Fatalf("Strip() error = %v", err)
	}
	if img == nil {
		t.Fatal("partial strip should still be returned")
	}

	// The partial strip is cached like a full one.
	g.Strip(context.Background(), clip, media.Size{Width: 300, Height: 60})
	if backend.FramePasses() != 1 {
		t.Errorf("frame passes = %d, want 1 (partial strip cached)", backend.FramePasses())
	}
}

func TestGenerator_AllFramesFailedStillReturnsCanvas(t *testing.T) {
	backend := media.NewStubBackend()
	clip := newTestClip(t, backend, "a", landscapeSpec())
	g := NewGenerator(backend, 10, nil)

	// The asset vanishes between clip creation and the strip request.
	ghost := clip
	ghost.Asset = &media.Asset{ID: "gone", Path: "/videos/gone.mp4"}

	img, err := g.Strip(context.Background(), ghost, media.Size{Width: 300, Height: 60})
	if err != nil {
		t.Fatalf("Strip() error = %v", err)
	}
	if img == nil {
		t.Fatal("strip canvas should be returned even when every frame fails")
	}
}
