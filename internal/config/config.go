// Package config provides configuration management for the Reelcut Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// Default values
	DefaultPort     = 8791
	DefaultLogLevel = "info"
	DefaultDataDir  = ".reelcut"

	// Environment variable names
	EnvPort     = "REELCUT_PORT"
	EnvLogLevel = "REELCUT_LOG_LEVEL"
	EnvDataDir  = "REELCUT_DATA_DIR"
	EnvHeadless = "REELCUT_HEADLESS"

	// Media backend environment variable names
	EnvFFmpegPath  = "REELCUT_FFMPEG"
	EnvFFprobePath = "REELCUT_FFPROBE"

	// Cache environment variable names
	EnvThumbnailCacheCap = "REELCUT_THUMBNAIL_CACHE_CAP"
	EnvStripCacheCap     = "REELCUT_STRIP_CACHE_CAP"

	// Database filename
	DBFilename = "reelcut.db"

	// Cache defaults, in entries
	DefaultThumbnailCacheCap = 100
	DefaultStripCacheCap     = 100

	// Composition defaults. Two physical track pairs are the minimum
	// needed to keep adjacent clips off the same decoder track.
	DefaultVideoTrackPairs = 2
	DefaultRenderWidth     = 1080
	DefaultRenderHeight    = 1920
	DefaultCompositionFPS  = 30
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	Headless() bool
	FFmpegPath() string
	FFprobePath() string
	ThumbnailCacheCap() int
	StripCacheCap() int
	VideoTrackPairs() int
	RenderWidth() int
	RenderHeight() int
	CompositionFPS() int
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	ffmpegPath  string
	ffprobePath string

	thumbnailCacheCap int
	stripCacheCap     int
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:              DefaultPort,
		logLevel:          DefaultLogLevel,
		dataDir:           defaultDataDir(),
		thumbnailCacheCap: DefaultThumbnailCacheCap,
		stripCacheCap:     DefaultStripCacheCap,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if h := os.Getenv(EnvHeadless); h == "1" || h == "true" {
		cfg.headless = true
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)
	cfg.ffprobePath = os.Getenv(EnvFFprobePath)

	if c := os.Getenv(EnvThumbnailCacheCap); c != "" {
		cap, err := strconv.Atoi(c)
		if err != nil || cap < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvThumbnailCacheCap)
		}
		cfg.thumbnailCacheCap = cap
	}

	if c := os.Getenv(EnvStripCacheCap); c != "" {
		cap, err := strconv.Atoi(c)
		if err != nil || cap < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvStripCacheCap)
		}
		cfg.stripCacheCap = cap
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// Headless reports whether the system tray should be skipped
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// FFmpegPath returns an explicit ffmpeg binary path, or empty for PATH lookup
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

// FFprobePath returns an explicit ffprobe binary path, or empty for PATH lookup
func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

// ThumbnailCacheCap returns the gallery thumbnail cache capacity in entries
func (c *EnvConfig) ThumbnailCacheCap() int {
	return c.thumbnailCacheCap
}

// StripCacheCap returns the timeline strip cache capacity in entries
func (c *EnvConfig) StripCacheCap() int {
	return c.stripCacheCap
}

func (c *EnvConfig) VideoTrackPairs() int {
	return DefaultVideoTrackPairs
}

func (c *EnvConfig) RenderWidth() int {
	return DefaultRenderWidth
}

func (c *EnvConfig) RenderHeight() int {
	return DefaultRenderHeight
}

func (c *EnvConfig) CompositionFPS() int {
	return DefaultCompositionFPS
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
