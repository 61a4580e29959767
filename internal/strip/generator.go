// Package strip renders horizontal thumbnail strips for timeline clips: a
// row of evenly spaced frame captures composited into one image. Repeated
// requests for the same clip and size are served from a bounded cache, and
// concurrent requests for the same key are coalesced onto a single render.
package strip

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/reelcut/reelcut-agent/internal/cache"
	"github.com/reelcut/reelcut-agent/internal/media"
	"github.com/reelcut/reelcut-agent/internal/timeline"
)

// Key identifies one strip render: clip identity plus requested pixel size.
type Key struct {
	ClipID string
	Width  int
	Height int
}

func KeyFor(clip timeline.Clip, target media.Size) Key {
	return Key{ClipID: clip.ID, Width: target.Width, Height: target.Height}
}

type inflight struct {
	done chan struct{}
	img  image.Image
}

// Generator renders and caches thumbnail strips. Cache and in-flight map
// mutations are serialized on one mutex, so a concurrent caller observes
// either a cached strip, an in-flight render to join, or starts the only
// new render for its key.
type Generator struct {
	backend media.Backend
	logger  *slog.Logger

	mu     sync.Mutex
	cache  *cache.Cache[Key, image.Image]
	active map[Key]*inflight
}

func NewGenerator(backend media.Backend, cacheCapacity int, logger *slog.Logger) *Generator {
	return &Generator{
		backend: backend,
		logger:  logger,
		cache:   cache.New[Key, image.Image](cacheCapacity),
		active:  make(map[Key]*inflight),
	}
}

// Strip returns the composited strip for clip at the target size. A nil
// image with nil error means the strip cannot be rendered (degenerate
// geometry or unloadable source); failed renders are not cached so a later
// request may retry.
func (g *Generator) Strip(ctx context.Context, clip timeline.Clip, target media.Size) (image.Image, error) {
	key := KeyFor(clip, target)

	g.mu.Lock()
	if img, ok := g.cache.Get(key); ok {
		g.mu.Unlock()
		return img, nil
	}
	if call, ok := g.active[key]; ok {
		g.mu.Unlock()
		select {
		case <-call.done:
			return call.img, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &inflight{done: make(chan struct{})}
	g.active[key] = call
	g.mu.Unlock()

	img := g.render(ctx, clip, target)

	g.mu.Lock()
	delete(g.active, key)
	if img != nil {
		g.cache.Set(key, img)
	}
	g.mu.Unlock()

	call.img = img
	close(call.done)
	return img, nil
}

// Invalidate drops the cached strip for a key, if any. Used when a clip's
// trim changes and its strip no longer reflects the playable range.
func (g *Generator) Invalidate(key Key) {
	g.mu.Lock()
	g.cache.Remove(key)
	g.mu.Unlock()
}

// InvalidateClip drops every cached strip size for a clip.
func (g *Generator) InvalidateClip(clipID string) {
	g.mu.Lock()
	for _, key := range g.cache.Keys() {
		if key.ClipID == clipID {
			g.cache.Remove(key)
		}
	}
	g.mu.Unlock()
}

func (g *Generator) render(ctx context.Context, clip timeline.Clip, target media.Size) image.Image {
	if target.IsZero() {
		return nil
	}

	display := clip.DisplaySize()
	if display.IsZero() {
		return nil
	}

	frameWidth := float64(target.Height) * float64(display.Width) / float64(display.Height)
	if frameWidth <= 0 || math.IsNaN(frameWidth) || math.IsInf(frameWidth, 0) {
		return nil
	}

	frameCount := int(math.Ceil(float64(target.Width) / frameWidth))
	if frameCount < 1 {
		return nil
	}

	gap := clip.TrimmedRange.Duration / time.Duration(frameCount)
	if gap <= 0 {
		return nil
	}

	timestamps := make([]time.Duration, frameCount)
	for i := range timestamps {
		timestamps[i] = clip.TrimmedRange.Start + gap*time.Duration(i)
	}

	frameW := int(math.Round(frameWidth))
	results := g.backend.GenerateFrames(ctx, clip.Asset, timestamps, frameW, target.Height)

	canvas := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.RGBA{R: 24, G: 24, B: 24, A: 255}), image.Point{}, draw.Src)

	// Frames complete out of order; each is placed by the slot its
	// requested timestamp belongs to. A failed frame leaves its slot
	// showing the background.
	for res := range results {
		if res.Err != nil {
			if g.logger != nil {
				g.logger.Warn("frame decode failed, leaving blank slot",
					"clip_id", clip.ID, "timestamp", res.Timestamp, "error", res.Err)
			}
			continue
		}

		slot := int(math.Round(float64(res.Timestamp-clip.TrimmedRange.Start) / float64(gap)))
		if slot < 0 || slot >= frameCount {
			continue
		}

		x := int(math.Round(float64(slot) * frameWidth))
		rect := image.Rect(x, 0, x+res.Image.Bounds().Dx(), target.Height)
		draw.Draw(canvas, rect, res.Image, res.Image.Bounds().Min, draw.Src)
	}

	if err := ctx.Err(); err != nil {
		return nil
	}
	return canvas
}
