// Package timeline holds the ordered edit list for a session: which clips,
// in what order, trimmed how. It is the single source of truth the
// composition engine derives its player from.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reelcut/reelcut-agent/internal/media"
)

var (
	ErrIndexOutOfRange = errors.New("timeline: clip index out of range")
	ErrInvalidTrim     = errors.New("timeline: trim range outside source bounds")
)

// Clip is one source video contributed to the timeline. The asset handle is
// owned externally; the clip owns only its trim and display metadata.
type Clip struct {
	ID           string
	Asset        *media.Asset
	SourceRange  media.TimeRange
	TrimmedRange media.TimeRange
	Transform    media.Transform
	NaturalSize  media.Size
	HasAudio     bool
}

// Duration returns the clip's contribution to the composed timeline.
func (c Clip) Duration() time.Duration {
	return c.TrimmedRange.Duration
}

// DisplaySize returns the orientation-corrected pixel size.
func (c Clip) DisplaySize() media.Size {
	return c.Transform.DisplaySize(c.NaturalSize)
}

// Timeline is the mutable ordered clip list plus its derived total
// duration. Mutations are serialized on one mutex, held across the
// asynchronous metadata load so edits apply in the order they were issued.
// The total is recomputed inside the same critical section that changes
// membership.
type Timeline struct {
	backend media.Backend
	logger  *slog.Logger

	mu       sync.Mutex
	clips    []Clip
	total    time.Duration
	onChange func()
}

func New(backend media.Backend, logger *slog.Logger) *Timeline {
	return &Timeline{backend: backend, logger: logger}
}

// SetOnChange registers the change notification consumed by the
// composition engine. The callback runs outside the timeline lock.
func (t *Timeline) SetOnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Append adds a clip for asset at the end of the timeline.
func (t *Timeline) Append(ctx context.Context, asset *media.Asset) (Clip, error) {
	t.mu.Lock()
	return t.insertLocked(ctx, asset, len(t.clips))
}

// Insert adds a clip for asset at the given position (clamped to the valid
// range). If the asset's metadata cannot be loaded the candidate is dropped
// and the timeline is left unchanged.
func (t *Timeline) Insert(ctx context.Context, asset *media.Asset, at int) (Clip, error) {
	t.mu.Lock()
	return t.insertLocked(ctx, asset, at)
}

// insertLocked is entered holding t.mu and releases it before notifying.
func (t *Timeline) insertLocked(ctx context.Context, asset *media.Asset, at int) (Clip, error) {
	clip, err := t.loadClip(ctx, asset)
	if err != nil {
		t.mu.Unlock()
		if t.logger != nil {
			t.logger.Warn("dropping candidate clip, asset load failed",
				"asset_id", asset.ID, "error", err)
		}
		return Clip{}, err
	}

	if at < 0 {
		at = 0
	}
	if at > len(t.clips) {
		at = len(t.clips)
	}
	t.clips = append(t.clips, Clip{})
	copy(t.clips[at+1:], t.clips[at:])
	t.clips[at] = clip
	t.recomputeTotal()
	t.mu.Unlock()

	t.notify()
	return clip, nil
}

// Remove deletes the clip at index. Removing from an empty timeline or an
// invalid index is a boundary error, never a panic.
func (t *Timeline) Remove(at int) error {
	t.mu.Lock()
	if at < 0 || at >= len(t.clips) {
		t.mu.Unlock()
		return ErrIndexOutOfRange
	}
	t.clips = append(t.clips[:at], t.clips[at+1:]...)
	t.recomputeTotal()
	t.mu.Unlock()

	t.notify()
	return nil
}

// Move reorders the clip at from to position to.
func (t *Timeline) Move(from, to int) error {
	t.mu.Lock()
	if from < 0 || from >= len(t.clips) || to < 0 || to >= len(t.clips) {
		t.mu.Unlock()
		return ErrIndexOutOfRange
	}
	if from == to {
		t.mu.Unlock()
		return nil
	}
	clip := t.clips[from]
	t.clips = append(t.clips[:from], t.clips[from+1:]...)
	t.clips = append(t.clips, Clip{})
	copy(t.clips[to+1:], t.clips[to:])
	t.clips[to] = clip
	// Total is unchanged by reordering but boundaries moved.
	t.mu.Unlock()

	t.notify()
	return nil
}

// SetTrim adjusts the clip's trimmed range. The range is clamped to the
// source track's native bounds; a range that leaves no playable duration is
// rejected and the timeline is unchanged.
func (t *Timeline) SetTrim(at int, r media.TimeRange) error {
	t.mu.Lock()
	if at < 0 || at >= len(t.clips) {
		t.mu.Unlock()
		return ErrIndexOutOfRange
	}

	clamped := r.Clamp(t.clips[at].SourceRange.End())
	if !clamped.IsValid() {
		t.mu.Unlock()
		return ErrInvalidTrim
	}

	t.clips[at].TrimmedRange = clamped
	t.recomputeTotal()
	t.mu.Unlock()

	t.notify()
	return nil
}

// Clips returns a snapshot copy of the ordered clip list.
func (t *Timeline) Clips() []Clip {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Clip, len(t.clips))
	copy(out, t.clips)
	return out
}

// Clip returns the clip at index, if present.
func (t *Timeline) Clip(at int) (Clip, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if at < 0 || at >= len(t.clips) {
		return Clip{}, false
	}
	return t.clips[at], true
}

// Len returns the clip count.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clips)
}

// TotalDuration returns the derived aggregate duration.
func (t *Timeline) TotalDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

func (t *Timeline) recomputeTotal() {
	var total time.Duration
	for _, c := range t.clips {
		total += c.TrimmedRange.Duration
	}
	t.total = total
}

func (t *Timeline) notify() {
	t.mu.Lock()
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// loadClip extracts the candidate clip's derived fields from the source
// asset. Any failure drops the candidate.
func (t *Timeline) loadClip(ctx context.Context, asset *media.Asset) (Clip, error) {
	videoTracks, err := t.backend.LoadTracks(ctx, asset, media.TypeVideo)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to load video tracks: %w", err)
	}
	if len(videoTracks) == 0 {
		return Clip{}, fmt.Errorf("asset %s has no video track", asset.ID)
	}

	props, err := t.backend.LoadTrackProperties(ctx, videoTracks[0])
	if err != nil {
		return Clip{}, fmt.Errorf("failed to load track properties: %w", err)
	}
	if !props.TimeRange.IsValid() {
		return Clip{}, fmt.Errorf("asset %s has empty native time range", asset.ID)
	}

	hasAudio := false
	if audioTracks, err := t.backend.LoadTracks(ctx, asset, media.TypeAudio); err == nil && len(audioTracks) > 0 {
		hasAudio = true
	}

	return Clip{
		ID:           uuid.NewString(),
		Asset:        asset,
		SourceRange:  props.TimeRange,
		TrimmedRange: props.TimeRange,
		Transform:    props.PreferredTransform,
		NaturalSize:  props.NaturalSize,
		HasAudio:     hasAudio,
	}, nil
}
