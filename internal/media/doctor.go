package media

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultDoctorTTL = 5 * time.Minute

// Capabilities reports which media tools are available on the host.
type Capabilities struct {
	HasFFmpeg     bool
	HasFFprobe    bool
	FFmpegVersion string
	ProbedAt      time.Time
}

// Ready reports whether the full backend capability is usable.
func (c *Capabilities) Ready() bool {
	return c.HasFFmpeg && c.HasFFprobe
}

// Prober performs one capability probe.
type Prober interface {
	Probe(ctx context.Context) (*Capabilities, error)
}

// ToolProber checks for the ffmpeg/ffprobe binaries. A missing tool is not
// an error; it is reported through the capability flags.
type ToolProber struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger
}

func NewToolProber(ffmpegPath, ffprobePath string, logger *slog.Logger) *ToolProber {
	return &ToolProber{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

func (p *ToolProber) Probe(ctx context.Context) (*Capabilities, error) {
	caps := &Capabilities{ProbedAt: time.Now()}

	ffmpeg := p.ffmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if path, err := exec.LookPath(ffmpeg); err == nil {
		caps.HasFFmpeg = true
		caps.FFmpegVersion = toolVersion(ctx, path)
	}

	ffprobe := p.ffprobePath
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	if _, err := exec.LookPath(ffprobe); err == nil {
		caps.HasFFprobe = true
	}

	return caps, nil
}

func toolVersion(ctx context.Context, path string) string {
	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}

// CachedDoctor wraps a Prober to cache probe results with a TTL, so the
// status path does not spawn a process on every request.
type CachedDoctor struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

// NewCachedDoctor creates a caching wrapper around capability probes.
func NewCachedDoctor(prober Prober, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		prober: prober,
		ttl:    defaultDoctorTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Peek returns the cached capabilities without probing, or nil.
func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new probe regardless of cache freshness.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.prober.Probe(ctx)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("capability probe failed", "error", err)
		}
		// Return stale cache if available
		if d.cached != nil {
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}

// Invalidate clears the cached capabilities.
func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
