package media

import (
	"context"
	"time"
)

// Segment places a trimmed span of a source track at an offset in the
// composed timeline.
type Segment struct {
	Source Track
	Range  TimeRange
	At     time.Duration
}

// GraphTrack is one physical track of the composed graph. Clips are spread
// across a small fixed number of these so no two adjacent clips share one.
type GraphTrack struct {
	Kind     Type
	Segments []Segment
}

// LayerInstruction is a visual instruction scoped to one physical track:
// the orientation transform applies from time zero of the segment's span
// and the layer is hidden from HideAt onward so only one clip renders at
// any instant.
type LayerInstruction struct {
	TrackIndex int
	Transform  Transform
	HideAt     time.Duration
}

// Graph is the full composed track graph handed to the backend.
type Graph struct {
	Tracks       []GraphTrack
	Instructions []LayerInstruction
	Duration     time.Duration
	RenderSize   Size
	FrameRate    int
}

// Item is an opaque playable item built from a Graph.
type Item struct {
	ID       string
	Duration time.Duration

	// FilterGraph is the backend's render recipe for the item, kept for
	// diagnostics and future export.
	FilterGraph string
}

// Backend is the media decode/compose capability. Implementations must
// tolerate concurrent calls.
type Backend interface {
	// LoadTracks returns the asset's tracks of the given kind, in stream
	// order. An asset with no such tracks yields an empty slice.
	LoadTracks(ctx context.Context, asset *Asset, kind Type) ([]Track, error)

	// LoadTrackProperties loads the track's native time range, natural
	// size, and preferred display transform.
	LoadTrackProperties(ctx context.Context, track Track) (TrackProperties, error)

	// GenerateFrames decodes one frame per requested timestamp, scaled to
	// width x height, and delivers results on the returned channel as they
	// complete — possibly out of request order, each tagged with its
	// timestamp. The channel is closed once all requests finish or ctx is
	// cancelled.
	GenerateFrames(ctx context.Context, asset *Asset, timestamps []time.Duration, width, height int) <-chan FrameResult

	// BuildItem constructs a playable item from a composed graph.
	BuildItem(ctx context.Context, graph *Graph) (*Item, error)
}
