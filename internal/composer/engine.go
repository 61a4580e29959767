// Package composer turns timeline snapshots into a composed, playable
// media item. Every timeline change triggers a full rebuild; only the build
// matching the latest snapshot is ever applied, and the player's item is
// swapped in place with position and rate preserved.
package composer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/reelcut/reelcut-agent/internal/media"
	"github.com/reelcut/reelcut-agent/internal/timeline"
)

type State string

const (
	StateIdle     State = "idle"
	StateBuilding State = "building"
	StateReady    State = "ready"
)

const minTrackPairs = 2

// ComposedMedia is the derived playable artifact for one timeline snapshot.
type ComposedMedia struct {
	// ClipIDs in composed order, mirroring the snapshot.
	ClipIDs []string
	// TrackAssignment maps each clip position to its physical track pair,
	// or -1 for clips whose media could not be inserted.
	TrackAssignment []int
	// CumulativeTimes holds each clip's start offset in the composed
	// timeline (prefix sum of inserted durations).
	CumulativeTimes []time.Duration
	// SkippedClips lists clips logically present in the timeline whose
	// video is missing from this composition. Surfaced so callers can see
	// the divergence instead of hiding it.
	SkippedClips []string

	TotalDuration time.Duration
	Graph         *media.Graph
	Item          *media.Item
}

// EngineConfig configures a composition engine.
type EngineConfig struct {
	Backend    media.Backend
	Timeline   *timeline.Timeline
	TrackPairs int
	RenderSize media.Size
	FrameRate  int
	Logger     *slog.Logger
}

// Engine watches a timeline and maintains the player for its composition.
// Builds run asynchronously; a timeline change while building supersedes
// the in-flight build, whose result is discarded on completion.
type Engine struct {
	backend    media.Backend
	tl         *timeline.Timeline
	trackPairs int
	renderSize media.Size
	frameRate  int
	logger     *slog.Logger
	player     *Player

	mu       sync.Mutex
	state    State
	buildGen uint64
	current  *ComposedMedia
	onReady  func(*ComposedMedia)
}

func NewEngine(cfg EngineConfig) *Engine {
	pairs := cfg.TrackPairs
	if pairs < minTrackPairs {
		pairs = minTrackPairs
	}
	return &Engine{
		backend:    cfg.Backend,
		tl:         cfg.Timeline,
		trackPairs: pairs,
		renderSize: cfg.RenderSize,
		frameRate:  cfg.FrameRate,
		logger:     cfg.Logger,
		player:     NewPlayer(),
		state:      StateIdle,
	}
}

func (e *Engine) Player() *Player {
	return e.player
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the most recently applied composition, or nil.
func (e *Engine) Current() *ComposedMedia {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// SetOnReady registers a callback invoked after each applied build.
func (e *Engine) SetOnReady(fn func(*ComposedMedia)) {
	e.mu.Lock()
	e.onReady = fn
	e.mu.Unlock()
}

// TimelineChanged starts a new build pass over the latest timeline
// snapshot, superseding any build still in flight. Registered as the
// timeline's change notification.
func (e *Engine) TimelineChanged() {
	e.mu.Lock()
	e.buildGen++
	gen := e.buildGen
	e.state = StateBuilding
	e.mu.Unlock()

	go e.build(context.Background(), gen)
}

func (e *Engine) build(ctx context.Context, gen uint64) {
	clips := e.tl.Clips()
	composed := e.compose(ctx, clips)

	var item *media.Item
	if composed.TotalDuration > 0 {
		built, err := e.backend.BuildItem(ctx, composed.Graph)
		if err != nil {
			if e.logger != nil {
				e.logger.Error("composed item build failed", "error", err, "clips", len(clips))
			}
			e.mu.Lock()
			if gen == e.buildGen {
				if e.current != nil {
					e.state = StateReady
				} else {
					e.state = StateIdle
				}
			}
			e.mu.Unlock()
			return
		}
		item = built
	}
	composed.Item = item

	e.mu.Lock()
	if gen != e.buildGen {
		e.mu.Unlock()
		if e.logger != nil {
			e.logger.Debug("discarding superseded build", "gen", gen)
		}
		return
	}
	e.current = composed
	e.state = StateReady
	ready := e.onReady
	// The swap happens under the engine lock so a superseding build
	// applied later can never be overwritten by this one.
	e.player.ReplaceItem(item)
	e.mu.Unlock()

	if ready != nil {
		ready(composed)
	}
}

// compose assigns clips round-robin to physical track pairs and lays their
// trimmed ranges end to end. A clip whose tracks cannot be loaded is
// skipped (best effort) and recorded; the build continues.
func (e *Engine) compose(ctx context.Context, clips []timeline.Clip) *ComposedMedia {
	videoTracks := make([]media.GraphTrack, e.trackPairs)
	audioTracks := make([]media.GraphTrack, e.trackPairs)
	for i := range videoTracks {
		videoTracks[i].Kind = media.TypeVideo
		audioTracks[i].Kind = media.TypeAudio
	}

	composed := &ComposedMedia{
		ClipIDs:         make([]string, 0, len(clips)),
		TrackAssignment: make([]int, 0, len(clips)),
		CumulativeTimes: make([]time.Duration, 0, len(clips)),
	}

	var instructions []media.LayerInstruction
	var insertion time.Duration
	inserted := 0

	for _, clip := range clips {
		composed.ClipIDs = append(composed.ClipIDs, clip.ID)

		videoSources, err := e.backend.LoadTracks(ctx, clip.Asset, media.TypeVideo)
		if err != nil || len(videoSources) == 0 {
			if e.logger != nil {
				e.logger.Warn("skipping clip, video track unavailable",
					"clip_id", clip.ID, "asset_id", clip.Asset.ID, "error", err)
			}
			composed.TrackAssignment = append(composed.TrackAssignment, -1)
			composed.CumulativeTimes = append(composed.CumulativeTimes, insertion)
			composed.SkippedClips = append(composed.SkippedClips, clip.ID)
			continue
		}

		// Alternate over the inserted count, not the raw position, so a
		// clip never shares a physical track with its predecessor even
		// when earlier clips were skipped.
		slot := inserted % e.trackPairs

		videoTracks[slot].Segments = append(videoTracks[slot].Segments, media.Segment{
			Source: videoSources[0],
			Range:  clip.TrimmedRange,
			At:     insertion,
		})

		if clip.HasAudio {
			audioSources, err := e.backend.LoadTracks(ctx, clip.Asset, media.TypeAudio)
			if err == nil && len(audioSources) > 0 {
				audioTracks[slot].Segments = append(audioTracks[slot].Segments, media.Segment{
					Source: audioSources[0],
					Range:  clip.TrimmedRange,
					At:     insertion,
				})
			} else if e.logger != nil {
				e.logger.Warn("clip audio unavailable, composing video only",
					"clip_id", clip.ID, "error", err)
			}
		}

		composed.TrackAssignment = append(composed.TrackAssignment, slot)
		composed.CumulativeTimes = append(composed.CumulativeTimes, insertion)

		insertion += clip.Duration()
		instructions = append(instructions, media.LayerInstruction{
			TrackIndex: slot,
			Transform:  clip.Transform,
			HideAt:     insertion,
		})
		inserted++
	}

	composed.TotalDuration = insertion
	composed.Graph = &media.Graph{
		Tracks:       append(videoTracks, audioTracks...),
		Instructions: instructions,
		Duration:     insertion,
		RenderSize:   e.renderSize,
		FrameRate:    e.frameRate,
	}
	return composed
}
