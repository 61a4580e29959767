// Package session owns the live editing state: one timeline, the engine
// composing it, the strip generator for its clips, and the event bus that
// tells connected clients what changed.
package session

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/reelcut/reelcut-agent/internal/composer"
	"github.com/reelcut/reelcut-agent/internal/media"
	"github.com/reelcut/reelcut-agent/internal/strip"
	"github.com/reelcut/reelcut-agent/internal/timeline"
)

// Session is one editing session. All fields are wired at construction and
// never change; selection state is guarded by mu.
type Session struct {
	ID       string
	Timeline *timeline.Timeline
	Engine   *composer.Engine
	Strips   *strip.Generator

	mu       sync.Mutex
	selected int
}

// Select marks the clip at index as selected, or clears the selection when
// index is negative. Out-of-range indexes are clamped to none.
func (s *Session) Select(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= s.Timeline.Len() {
		s.selected = -1
		return
	}
	s.selected = index
}

// Selected returns the selected clip index, or -1 when nothing is selected.
func (s *Session) Selected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected >= s.Timeline.Len() {
		return -1
	}
	return s.selected
}

// RemoveClip removes the clip at index and keeps the selection pointing at
// the same clip: removing the selected clip clears the selection, removing
// an earlier clip shifts it down.
func (s *Session) RemoveClip(index int) error {
	if err := s.Timeline.Remove(index); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.selected == index:
		s.selected = -1
	case s.selected > index:
		s.selected--
	}
	return nil
}

// Config carries the composition parameters sessions are built with.
type Config struct {
	Backend       media.Backend
	TrackPairs    int
	RenderSize    media.Size
	FrameRate     int
	StripCacheCap int
	Logger        *slog.Logger
}

// Manager creates and replaces the current session. There is exactly one
// live session at a time; Reset discards it and starts fresh.
type Manager struct {
	cfg Config
	bus *Bus

	mu      sync.Mutex
	current *Session
}

func NewManager(cfg Config, bus *Bus) *Manager {
	return &Manager{cfg: cfg, bus: bus}
}

// Current returns the live session, creating one on first use.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		m.current = m.newSession()
	}
	return m.current
}

// Reset discards the live session and starts an empty one.
func (m *Manager) Reset() *Session {
	m.mu.Lock()
	m.current = m.newSession()
	s := m.current
	m.mu.Unlock()

	m.bus.Publish(EventSessionReset, ResetPayload{SessionID: s.ID})
	return s
}

func (m *Manager) Bus() *Bus {
	return m.bus
}

func (m *Manager) newSession() *Session {
	tl := timeline.New(m.cfg.Backend, m.cfg.Logger)
	engine := composer.NewEngine(composer.EngineConfig{
		Backend:    m.cfg.Backend,
		Timeline:   tl,
		TrackPairs: m.cfg.TrackPairs,
		RenderSize: m.cfg.RenderSize,
		FrameRate:  m.cfg.FrameRate,
		Logger:     m.cfg.Logger,
	})

	s := &Session{
		ID:       uuid.NewString(),
		Timeline: tl,
		Engine:   engine,
		Strips:   strip.NewGenerator(m.cfg.Backend, m.cfg.StripCacheCap, m.cfg.Logger),
		selected: -1,
	}

	tl.SetOnChange(func() {
		engine.TimelineChanged()
		m.bus.Publish(EventTimelineChanged, TimelinePayload{
			SessionID:  s.ID,
			ClipCount:  tl.Len(),
			DurationMS: tl.TotalDuration().Milliseconds(),
		})
	})
	engine.SetOnReady(func(cm *composer.ComposedMedia) {
		m.bus.Publish(EventCompositionReady, CompositionPayload{
			SessionID:    s.ID,
			DurationMS:   cm.TotalDuration.Milliseconds(),
			SkippedClips: cm.SkippedClips,
		})
	})

	return s
}
