package gallery

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reelcut/reelcut-agent/internal/cache"
	"github.com/reelcut/reelcut-agent/internal/media"
)

// RequestID identifies one in-flight thumbnail request. The zero value
// means no request was started.
type RequestID int64

// Provider is the read side of the gallery consumed by the editing session:
// an ordered list of videos, async thumbnails for grid cells, and full
// assets for videos picked into the timeline.
type Provider interface {
	// Count returns how many videos the gallery currently holds.
	Count() int

	// Video returns the video at index, or nil if out of range.
	Video(index int) *Video

	// RequestThumbnail starts an async thumbnail render for the video at
	// index. onImage is invoked at most once, from another goroutine,
	// unless the thumbnail is already cached, in which case it is invoked
	// synchronously and no request handle is returned.
	RequestThumbnail(index int, target media.Size, onImage func(image.Image)) (RequestID, bool)

	// CancelRequest abandons an in-flight thumbnail request. The callback
	// for a cancelled request is never invoked.
	CancelRequest(id RequestID)

	// FullAsset returns the playable asset for the video at index.
	FullAsset(index int) (*media.Asset, bool)

	// SetUpdateCallback registers a function invoked whenever the video
	// list changes. Replaces any previous callback.
	SetUpdateCallback(fn func())
}

// LibraryProvider serves the Provider contract from the sqlite catalog,
// rendering thumbnails through the media backend with a bounded cache.
type LibraryProvider struct {
	repo    Repository
	backend media.Backend
	logger  *slog.Logger

	mu       sync.Mutex
	videos   []*Video
	thumbs   *cache.Cache[thumbKey, image.Image]
	active   map[RequestID]context.CancelFunc
	onUpdate func()

	nextID atomic.Int64
}

type thumbKey struct {
	videoID string
	width   int
	height  int
}

func NewLibraryProvider(repo Repository, backend media.Backend, cacheCapacity int, logger *slog.Logger) *LibraryProvider {
	return &LibraryProvider{
		repo:    repo,
		backend: backend,
		logger:  logger,
		thumbs:  cache.New[thumbKey, image.Image](cacheCapacity),
		active:  make(map[RequestID]context.CancelFunc),
	}
}

// Refresh reloads the video list from the catalog and notifies the update
// callback when one is registered.
func (p *LibraryProvider) Refresh(ctx context.Context) error {
	videos, err := p.repo.ListVideos(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.videos = videos
	fn := p.onUpdate
	p.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

func (p *LibraryProvider) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.videos)
}

func (p *LibraryProvider) Video(index int) *Video {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.videos) {
		return nil
	}
	return p.videos[index]
}

// IndexOf returns the current position of a video id, or -1 when absent.
func (p *LibraryProvider) IndexOf(videoID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, v := range p.videos {
		if v.ID == videoID {
			return i
		}
	}
	return -1
}

func (p *LibraryProvider) FullAsset(index int) (*media.Asset, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.videos) {
		return nil, false
	}
	v := p.videos[index]
	return &media.Asset{ID: v.ID, Path: v.Path}, true
}

func (p *LibraryProvider) SetUpdateCallback(fn func()) {
	p.mu.Lock()
	p.onUpdate = fn
	p.mu.Unlock()
}

func (p *LibraryProvider) RequestThumbnail(index int, target media.Size, onImage func(image.Image)) (RequestID, bool) {
	if target.IsZero() || onImage == nil {
		return 0, false
	}

	p.mu.Lock()
	if index < 0 || index >= len(p.videos) {
		p.mu.Unlock()
		return 0, false
	}
	video := p.videos[index]
	key := thumbKey{videoID: video.ID, width: target.Width, height: target.Height}

	if img, ok := p.thumbs.Get(key); ok {
		p.mu.Unlock()
		onImage(img)
		return 0, false
	}

	id := RequestID(p.nextID.Add(1))
	ctx, cancel := context.WithCancel(context.Background())
	p.active[id] = cancel
	p.mu.Unlock()

	go p.renderThumbnail(ctx, id, key, video, target, onImage)
	return id, true
}

func (p *LibraryProvider) CancelRequest(id RequestID) {
	p.mu.Lock()
	cancel, ok := p.active[id]
	delete(p.active, id)
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

func (p *LibraryProvider) renderThumbnail(ctx context.Context, id RequestID, key thumbKey, video *Video, target media.Size, onImage func(image.Image)) {
	// Grab a frame a bit into the video; frame zero is often black.
	ts := video.Duration / 10
	if ts == 0 {
		ts = time.Second
	}

	asset := &media.Asset{ID: video.ID, Path: video.Path}
	results := p.backend.GenerateFrames(ctx, asset, []time.Duration{ts}, target.Width, target.Height)

	var img image.Image
	for res := range results {
		if res.Err != nil {
			if p.logger != nil {
				p.logger.Warn("thumbnail render failed", "video_id", video.ID, "error", res.Err)
			}
			continue
		}
		img = res.Image
	}

	// Claim the request under the lock. A cancelled request is already
	// gone from the active map, so its callback never fires.
	p.mu.Lock()
	cancel, ok := p.active[id]
	delete(p.active, id)
	if ok && img != nil {
		p.thumbs.Set(key, img)
	}
	p.mu.Unlock()

	if !ok {
		return
	}
	cancel()
	if img != nil {
		onImage(img)
	}
}
