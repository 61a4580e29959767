package media

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StubAsset describes one synthetic asset served by the StubBackend.
type StubAsset struct {
	Duration   time.Duration
	Size       Size
	Rotation   int
	HasAudio   bool
	FailLoad   bool
	FailFrames map[time.Duration]bool
}

// StubBackend is an in-memory Backend used in tests and on hosts without
// ffmpeg. Frames are solid-color images delivered in reverse request order
// to exercise out-of-order completion handling.
type StubBackend struct {
	mu          sync.Mutex
	assets      map[string]StubAsset
	builds      []*Graph
	buildDelay  time.Duration
	frameDelay  time.Duration
	failBuild   bool
	framePasses int
}

func NewStubBackend() *StubBackend {
	return &StubBackend{assets: make(map[string]StubAsset)}
}

// SetAsset registers or replaces a synthetic asset by id.
func (b *StubBackend) SetAsset(id string, spec StubAsset) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assets[id] = spec
}

// SetBuildDelay makes BuildItem block for d before completing.
func (b *StubBackend) SetBuildDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buildDelay = d
}

// SetFrameDelay makes each GenerateFrames batch pause for d before
// delivering its first frame.
func (b *StubBackend) SetFrameDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frameDelay = d
}

// SetFailBuild makes subsequent BuildItem calls fail.
func (b *StubBackend) SetFailBuild(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failBuild = fail
}

// Builds returns the graphs handed to BuildItem, in call order.
func (b *StubBackend) Builds() []*Graph {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Graph, len(b.builds))
	copy(out, b.builds)
	return out
}

// FramePasses returns how many GenerateFrames batches have been started.
func (b *StubBackend) FramePasses() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.framePasses
}

func (b *StubBackend) lookup(asset *Asset) (StubAsset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	spec, ok := b.assets[asset.ID]
	if !ok {
		return StubAsset{}, fmt.Errorf("stub: unknown asset %s", asset.ID)
	}
	if spec.FailLoad {
		return StubAsset{}, fmt.Errorf("stub: load failure for asset %s", asset.ID)
	}
	return spec, nil
}

func (b *StubBackend) LoadTracks(ctx context.Context, asset *Asset, kind Type) ([]Track, error) {
	spec, err := b.lookup(asset)
	if err != nil {
		return nil, err
	}

	var tracks []Track
	switch kind {
	case TypeVideo:
		tracks = append(tracks, Track{Asset: asset, Kind: TypeVideo, Index: 0})
	case TypeAudio:
		if spec.HasAudio {
			tracks = append(tracks, Track{Asset: asset, Kind: TypeAudio, Index: 1})
		}
	}
	return tracks, nil
}

func (b *StubBackend) LoadTrackProperties(ctx context.Context, track Track) (TrackProperties, error) {
	spec, err := b.lookup(track.Asset)
	if err != nil {
		return TrackProperties{}, err
	}

	props := TrackProperties{
		TimeRange:          TimeRange{Start: 0, Duration: spec.Duration},
		PreferredTransform: Identity,
	}
	if track.Kind == TypeVideo {
		props.NaturalSize = spec.Size
		props.PreferredTransform = RotationTransform(spec.Rotation)
	}
	return props, nil
}

func (b *StubBackend) GenerateFrames(ctx context.Context, asset *Asset, timestamps []time.Duration, width, height int) <-chan FrameResult {
	ch := make(chan FrameResult, len(timestamps))

	b.mu.Lock()
	b.framePasses++
	spec, known := b.assets[asset.ID]
	delay := b.frameDelay
	b.mu.Unlock()

	go func() {
		defer close(ch)

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}

		for i := len(timestamps) - 1; i >= 0; i-- {
			ts := timestamps[i]

			var res FrameResult
			switch {
			case !known:
				res = FrameResult{Timestamp: ts, Err: fmt.Errorf("stub: unknown asset %s", asset.ID)}
			case spec.FailFrames[ts]:
				res = FrameResult{Timestamp: ts, Err: fmt.Errorf("stub: decode failure at %s", ts)}
			default:
				res = FrameResult{Timestamp: ts, Image: solidFrame(width, height, i)}
			}

			select {
			case ch <- res:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

func (b *StubBackend) BuildItem(ctx context.Context, graph *Graph) (*Item, error) {
	b.mu.Lock()
	delay := b.buildDelay
	fail := b.failBuild
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, fmt.Errorf("stub: build failure")
	}

	b.mu.Lock()
	b.builds = append(b.builds, graph)
	b.mu.Unlock()

	return &Item{ID: uuid.NewString(), Duration: graph.Duration}, nil
}

func solidFrame(width, height, seed int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	c := color.RGBA{R: uint8(37 * seed), G: uint8(91 * seed), B: uint8(173 * seed), A: 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
