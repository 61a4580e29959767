package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/reelcut/reelcut-agent/internal/api"
	"github.com/reelcut/reelcut-agent/internal/config"
	"github.com/reelcut/reelcut-agent/internal/db"
	"github.com/reelcut/reelcut-agent/internal/export"
	"github.com/reelcut/reelcut-agent/internal/gallery"
	"github.com/reelcut/reelcut-agent/internal/logging"
	"github.com/reelcut/reelcut-agent/internal/media"
	"github.com/reelcut/reelcut-agent/internal/playback"
	"github.com/reelcut/reelcut-agent/internal/session"
	"github.com/reelcut/reelcut-agent/internal/ui"
	"github.com/reelcut/reelcut-agent/internal/watcher"
)

var Version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting reelcut agent", "version", Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := gallery.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                    REELCUT AGENT v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doctor := media.NewCachedDoctor(media.NewToolProber(cfg.FFmpegPath(), cfg.FFprobePath(), logger), logger)

	probeCtx, probeCancel := context.WithTimeout(ctx, 10*time.Second)
	caps, err := doctor.Refresh(probeCtx)
	probeCancel()
	if err != nil {
		logger.Warn("initial tool probe failed", "error", err)
	}

	var backend media.Backend
	if caps != nil && caps.Ready() {
		ffmpeg, err := media.NewFFmpegBackend(cfg.FFmpegPath(), cfg.FFprobePath(), logger)
		if err != nil {
			logger.Warn("ffmpeg backend unavailable, using stub backend", "error", err)
			backend = media.NewStubBackend()
		} else {
			logger.Info("ffmpeg backend ready", "version", caps.FFmpegVersion)
			backend = ffmpeg
		}
	} else {
		logger.Warn("ffmpeg/ffprobe not found, probing and thumbnails disabled")
		backend = media.NewStubBackend()
	}

	gallerySvc := gallery.NewService(repo, backend, logger)
	provider := gallery.NewLibraryProvider(repo, backend, cfg.ThumbnailCacheCap(), logger)
	if err := provider.Refresh(ctx); err != nil {
		logger.Warn("initial gallery load failed", "error", err)
	}

	runner := gallery.NewRunner(gallerySvc, repo, logger)
	go runner.Start(ctx)

	bus := session.NewBus()
	sessions := session.NewManager(session.Config{
		Backend:       backend,
		TrackPairs:    cfg.VideoTrackPairs(),
		RenderSize:    media.Size{Width: cfg.RenderWidth(), Height: cfg.RenderHeight()},
		FrameRate:     cfg.CompositionFPS(),
		StripCacheCap: cfg.StripCacheCap(),
		Logger:        logger,
	}, bus)

	provider.SetUpdateCallback(func() {
		bus.Publish(session.EventGalleryUpdated, session.GalleryPayload{VideoCount: provider.Count()})
	})

	fsw, err := watcher.NewFSWatcher(logger)
	if err != nil {
		logger.Warn("filesystem watcher unavailable", "error", err)
	} else {
		defer fsw.Stop()
		fsw.OnChange(func(path string, event watcher.EventType) {
			logger.Debug("source change detected", "path", logging.SanitizePath(path), "event", event.String())
			rescanChangedSource(ctx, gallerySvc, provider, path, logger)
		})
		watchSources(ctx, fsw, gallerySvc, logger)
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Gallery:    gallerySvc,
		Provider:   provider,
		Repository: repo,
		Runner:     runner,
		Sessions:   sessions,
		Streamer:   playback.NewStreamer(logger),
		Exporter:   export.NewExporter(logger),
		Doctor:     doctor,
		Logger:     logger,
		StartTime:  startTime,
		DeviceID:   deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Runner:   runner,
			Sessions: sessions,
			Logger:   logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go forwardEventsToTray(ctx, bus, tray, gallerySvc, logger)
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// watchSources puts every registered source folder under the filesystem
// watcher. Folders added later are picked up through the scan endpoint
// rather than here.
func watchSources(ctx context.Context, fsw *watcher.FSWatcher, svc *gallery.Service, logger *slog.Logger) {
	sources, err := svc.Sources(ctx)
	if err != nil {
		logger.Warn("failed to list sources for watching", "error", err)
		return
	}
	for _, src := range sources {
		if err := fsw.Watch(ctx, src.Path); err != nil {
			logger.Warn("failed to watch source", "path", logging.SanitizePath(src.Path), "error", err)
		}
	}
}

// rescanChangedSource queues a scan for the source containing the changed
// path, then refreshes the in-memory gallery view.
func rescanChangedSource(ctx context.Context, svc *gallery.Service, provider *gallery.LibraryProvider, path string, logger *slog.Logger) {
	sources, err := svc.Sources(ctx)
	if err != nil {
		return
	}
	for _, src := range sources {
		if !strings.HasPrefix(path, src.Path) {
			continue
		}
		if _, err := svc.ScanSource(ctx, src.ID); err != nil {
			logger.Warn("failed to queue rescan", "source_id", src.ID, "error", err)
		}
		break
	}
	if err := provider.Refresh(ctx); err != nil {
		logger.Warn("gallery refresh failed", "error", err)
	}
}

// forwardEventsToTray keeps the tray menu lines in sync with the session
// and gallery state.
func forwardEventsToTray(ctx context.Context, bus *session.Bus, tray *ui.Tray, svc *gallery.Service, logger *slog.Logger) {
	events, cancel := bus.Subscribe()
	defer cancel()

	if count, err := svc.CountVideos(ctx); err == nil {
		tray.UpdateVideoCount(count)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			switch event.Type {
			case session.EventTimelineChanged:
				payload, ok := event.Payload.(session.TimelinePayload)
				if !ok {
					continue
				}
				duration := (time.Duration(payload.DurationMS) * time.Millisecond).Round(100 * time.Millisecond)
				tray.UpdateSession(payload.ClipCount, duration.String())
			case session.EventGalleryUpdated:
				if count, err := svc.CountVideos(ctx); err == nil {
					tray.UpdateVideoCount(count)
				}
			}
		}
	}
}

func ensureDeviceID(repo gallery.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo gallery.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
