// Package media defines the opaque media backend capability consumed by the
// timeline, composition, and thumbnail components: track/metadata loading,
// frame decoding, and composed item construction.
package media

import (
	"image"
	"math"
	"time"
)

type Type string

const (
	TypeVideo Type = "video"
	TypeAudio Type = "audio"
)

// Asset is an opaque handle to decodable media. It is owned by whoever
// discovered it (the gallery); other components hold references only.
type Asset struct {
	ID   string
	Path string
}

// TimeRange is a span within an asset's native timeline.
type TimeRange struct {
	Start    time.Duration
	Duration time.Duration
}

func (r TimeRange) End() time.Duration {
	return r.Start + r.Duration
}

// IsValid reports whether the range is non-negative with positive length.
func (r TimeRange) IsValid() bool {
	return r.Start >= 0 && r.Duration > 0
}

// Clamp constrains the range to fit within [0, limit].
func (r TimeRange) Clamp(limit time.Duration) TimeRange {
	if r.Start < 0 {
		r.Start = 0
	}
	if r.Start > limit {
		r.Start = limit
	}
	if r.End() > limit {
		r.Duration = limit - r.Start
	}
	return r
}

// Size is a pixel dimension pair.
type Size struct {
	Width  int
	Height int
}

func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Transform is a 2D affine transform in the usual [a b; c d] + [tx ty]
// layout, used to normalize display orientation.
type Transform struct {
	A, B, C, D, Tx, Ty float64
}

// Identity is the no-op transform.
var Identity = Transform{A: 1, D: 1}

// RotationTransform returns the transform for a clockwise rotation in
// degrees as reported by container metadata. Unknown angles map to Identity.
func RotationTransform(degrees int) Transform {
	switch ((degrees % 360) + 360) % 360 {
	case 90:
		return Transform{B: 1, C: -1}
	case 180:
		return Transform{A: -1, D: -1}
	case 270:
		return Transform{B: -1, C: 1}
	default:
		return Identity
	}
}

// Apply maps a point through the transform.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return t.A*x + t.C*y + t.Tx, t.B*x + t.D*y + t.Ty
}

// DisplaySize returns the orientation-corrected size of s under t, with
// negative extents folded to positive.
func (t Transform) DisplaySize(s Size) Size {
	w, h := t.Apply(float64(s.Width), float64(s.Height))
	return Size{
		Width:  int(math.Round(math.Abs(w))),
		Height: int(math.Round(math.Abs(h))),
	}
}

// Track is an opaque handle to one stream within an asset.
type Track struct {
	Asset *Asset
	Kind  Type
	Index int
}

// TrackProperties are the loadable per-track attributes.
type TrackProperties struct {
	TimeRange          TimeRange
	NaturalSize        Size
	PreferredTransform Transform
}

// FrameResult is one decoded frame, tagged with the timestamp it was
// requested at. Results may arrive out of order.
type FrameResult struct {
	Timestamp time.Duration
	Image     image.Image
	Err       error
}
