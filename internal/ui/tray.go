// Package ui provides the system tray presence for the agent.
package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/reelcut/reelcut-agent/internal/gallery"
	"github.com/reelcut/reelcut-agent/internal/session"
)

type Tray struct {
	runner   *gallery.Runner
	sessions *session.Manager
	logger   *slog.Logger

	statusItem *systray.MenuItem
	videosItem *systray.MenuItem
	pauseItem  *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Runner   *gallery.Runner
	Sessions *session.Manager
	Logger   *slog.Logger
	OnQuit   func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		runner:   cfg.Runner,
		sessions: cfg.Sessions,
		logger:   cfg.Logger,
		onQuit:   cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Reelcut")
	systray.SetTooltip("Reelcut Agent")

	t.statusItem = systray.AddMenuItem("Session: empty", "Current editing session")
	t.statusItem.Disable()

	t.videosItem = systray.AddMenuItem("Videos: 0", "Videos in the gallery")
	t.videosItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause scanning", "Pause gallery scan jobs")
	resetItem := systray.AddMenuItem("Reset Session", "Discard the current cut")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Reelcut Agent")

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-resetItem.ClickedCh:
				t.logger.Info("session reset requested from tray")
				t.sessions.Reset()
				t.UpdateSession(0, "0s")
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause scanning")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume scanning")
	}
}

// UpdateSession refreshes the session line in the menu.
func (t *Tray) UpdateSession(clipCount int, duration string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}
	if clipCount == 0 {
		t.statusItem.SetTitle("Session: empty")
		return
	}
	t.statusItem.SetTitle(fmt.Sprintf("Session: %d clips, %s", clipCount, duration))
}

func (t *Tray) UpdateVideoCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.videosItem == nil {
		return
	}
	t.videosItem.SetTitle(fmt.Sprintf("Videos: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
