package composer

import (
	"sync"
	"time"

	"github.com/reelcut/reelcut-agent/internal/media"
)

// Player owns the playable item derived from the current composition and
// the transient playback state tied to it. The item is replaced, never
// mutated, on structural changes; position and rate carry over so playback
// appears continuous.
type Player struct {
	mu       sync.Mutex
	item     *media.Item
	duration time.Duration
	position time.Duration // at anchor
	rate     float64
	anchor   time.Time

	now func() time.Time
}

func NewPlayer() *Player {
	return &Player{now: time.Now}
}

// Position returns the current playback offset, advancing with wall time
// while the rate is nonzero, clamped to the item's duration.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() time.Duration {
	pos := p.position
	if p.rate != 0 && p.item != nil {
		pos += time.Duration(float64(p.now().Sub(p.anchor)) * p.rate)
	}
	if pos < 0 {
		pos = 0
	}
	if pos > p.duration {
		pos = p.duration
	}
	return pos
}

// Rate returns the playback rate; zero means paused.
func (p *Player) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Item returns the current playable item, or nil before the first build.
func (p *Player) Item() *media.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.item
}

// Seek moves playback to the given offset, clamped to the item bounds.
func (p *Player) Seek(to time.Duration) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if to < 0 {
		to = 0
	}
	if to > p.duration {
		to = p.duration
	}
	p.position = to
	p.anchor = p.now()
	return to
}

// SetRate changes the playback rate, pinning the current position first so
// elapsed time under the old rate is not lost.
func (p *Player) SetRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.position = p.positionLocked()
	p.anchor = p.now()
	p.rate = rate
}

// Toggle flips between paused and playing at 1x, returning the new rate.
func (p *Player) Toggle() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.position = p.positionLocked()
	p.anchor = p.now()
	if p.rate == 0 {
		p.rate = 1
	} else {
		p.rate = 0
	}
	return p.rate
}

// ReplaceItem atomically swaps in a newly built item, carrying the current
// position (clamped to the new duration) and rate forward. The old item is
// only released after the new one is installed.
func (p *Player) ReplaceItem(item *media.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos := p.positionLocked()

	var duration time.Duration
	if item != nil {
		duration = item.Duration
	}
	if pos > duration {
		pos = duration
	}

	p.item = item
	p.duration = duration
	p.position = pos
	p.anchor = p.now()
}
