package session

import (
	"sync"
	"time"
)

// Event is one message on the session event stream, fanned out to
// websocket subscribers.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

const (
	EventTimelineChanged  = "timeline_changed"
	EventCompositionReady = "composition_ready"
	EventGalleryUpdated   = "gallery_updated"
	EventSessionReset     = "session_reset"
)

// Typed payloads, one per event type. In-process subscribers assert on
// these instead of digging through decoded JSON maps.

// TimelinePayload accompanies timeline_changed events.
type TimelinePayload struct {
	SessionID  string `json:"session_id"`
	ClipCount  int    `json:"clip_count"`
	DurationMS int64  `json:"duration_ms"`
}

// CompositionPayload accompanies composition_ready events.
type CompositionPayload struct {
	SessionID    string   `json:"session_id"`
	DurationMS   int64    `json:"duration_ms"`
	SkippedClips []string `json:"skipped_clips,omitempty"`
}

// GalleryPayload accompanies gallery_updated events.
type GalleryPayload struct {
	VideoCount int `json:"video_count"`
}

// ResetPayload accompanies session_reset events.
type ResetPayload struct {
	SessionID string `json:"session_id"`
}

// Bus is a fan-out event bus. Publish never blocks: a subscriber that
// cannot keep up drops events rather than stalling the publisher.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel and a cancel function. The channel is
// closed on cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 32)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *Bus) Publish(eventType string, payload any) {
	event := Event{Type: eventType, Timestamp: time.Now(), Payload: payload}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
