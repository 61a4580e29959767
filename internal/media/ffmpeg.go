package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxConcurrentDecodes bounds the ffmpeg processes spawned per frame batch.
const maxConcurrentDecodes = 4

// FFmpegBackend implements Backend by shelling out to ffprobe for metadata
// and ffmpeg for frame decoding. Probe results are cached per asset path.
type FFmpegBackend struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger

	mu     sync.Mutex
	probes map[string]*probeInfo
}

type probeInfo struct {
	duration time.Duration
	size     Size
	rotation int
	hasVideo bool
	hasAudio bool
}

// NewFFmpegBackend resolves the ffmpeg/ffprobe binaries. Empty paths fall
// back to PATH lookup.
func NewFFmpegBackend(ffmpegPath, ffprobePath string, logger *slog.Logger) (*FFmpegBackend, error) {
	if ffmpegPath == "" {
		p, err := exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
		ffmpegPath = p
	}
	if ffprobePath == "" {
		p, err := exec.LookPath("ffprobe")
		if err != nil {
			return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
		}
		ffprobePath = p
	}

	return &FFmpegBackend{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger,
		probes:      make(map[string]*probeInfo),
	}, nil
}

func (b *FFmpegBackend) LoadTracks(ctx context.Context, asset *Asset, kind Type) ([]Track, error) {
	info, err := b.probe(ctx, asset.Path)
	if err != nil {
		return nil, err
	}

	var tracks []Track
	switch kind {
	case TypeVideo:
		if info.hasVideo {
			tracks = append(tracks, Track{Asset: asset, Kind: TypeVideo, Index: 0})
		}
	case TypeAudio:
		if info.hasAudio {
			tracks = append(tracks, Track{Asset: asset, Kind: TypeAudio, Index: 0})
		}
	}
	return tracks, nil
}

func (b *FFmpegBackend) LoadTrackProperties(ctx context.Context, track Track) (TrackProperties, error) {
	info, err := b.probe(ctx, track.Asset.Path)
	if err != nil {
		return TrackProperties{}, err
	}

	props := TrackProperties{
		TimeRange:          TimeRange{Start: 0, Duration: info.duration},
		PreferredTransform: Identity,
	}
	if track.Kind == TypeVideo {
		props.NaturalSize = info.size
		props.PreferredTransform = RotationTransform(info.rotation)
	}
	return props, nil
}

func (b *FFmpegBackend) GenerateFrames(ctx context.Context, asset *Asset, timestamps []time.Duration, width, height int) <-chan FrameResult {
	ch := make(chan FrameResult, len(timestamps))

	go func() {
		sem := make(chan struct{}, maxConcurrentDecodes)
		var wg sync.WaitGroup
		// In-flight workers hold a send case on ch; it must stay open
		// until every one of them has returned.
		defer func() {
			wg.Wait()
			close(ch)
		}()

		for _, ts := range timestamps {
			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
			}

			wg.Add(1)
			go func(ts time.Duration) {
				defer wg.Done()
				defer func() { <-sem }()

				img, err := b.decodeFrame(ctx, asset.Path, ts, width, height)
				select {
				case ch <- FrameResult{Timestamp: ts, Image: img, Err: err}:
				case <-ctx.Done():
				}
			}(ts)
		}
	}()

	return ch
}

func (b *FFmpegBackend) decodeFrame(ctx context.Context, path string, at time.Duration, width, height int) (image.Image, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(at),
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, b.ffmpegPath, args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame decode failed: %w: %s", err, strings.TrimSpace(errBuf.String()))
	}

	img, err := png.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame image: %w", err)
	}
	return img, nil
}

func (b *FFmpegBackend) BuildItem(ctx context.Context, graph *Graph) (*Item, error) {
	if graph == nil || graph.Duration <= 0 {
		return nil, fmt.Errorf("empty composition graph")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Item{
		ID:          uuid.NewString(),
		Duration:    graph.Duration,
		FilterGraph: BuildFilterGraph(graph),
	}, nil
}

// BuildFilterGraph renders the graph as an ffmpeg filter_complex recipe:
// one trim/setpts chain per video segment in composed-time order, then a
// concat. Kept on the item for diagnostics and future file export.
func BuildFilterGraph(graph *Graph) string {
	var segments []Segment
	for _, track := range graph.Tracks {
		if track.Kind != TypeVideo {
			continue
		}
		segments = append(segments, track.Segments...)
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].At < segments[j].At })

	var sb strings.Builder
	labels := make([]string, 0, len(segments))
	for i, seg := range segments {
		label := fmt.Sprintf("[v%d]", i)
		fmt.Fprintf(&sb, "[%d:v]trim=start=%s:duration=%s,setpts=PTS-STARTPTS,scale=%d:%d%s;",
			i,
			formatSeconds(seg.Range.Start),
			formatSeconds(seg.Range.Duration),
			graph.RenderSize.Width,
			graph.RenderSize.Height,
			label,
		)
		labels = append(labels, label)
	}
	if len(labels) == 0 {
		return ""
	}
	fmt.Fprintf(&sb, "%sconcat=n=%d:v=1:a=0[out]", strings.Join(labels, ""), len(labels))
	return sb.String()
}

func (b *FFmpegBackend) probe(ctx context.Context, path string) (*probeInfo, error) {
	b.mu.Lock()
	if info, ok := b.probes[path]; ok {
		b.mu.Unlock()
		return info, nil
	}
	b.mu.Unlock()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, b.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	info, err := parseProbeOutput(output)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.probes[path] = info
	b.mu.Unlock()
	return info, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Tags      struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []struct {
			Rotation int `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
}

func parseProbeOutput(output []byte) (*probeInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &probeInfo{}

	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.duration = time.Duration(dur * float64(time.Second))
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if info.hasVideo {
				continue
			}
			info.hasVideo = true
			info.size = Size{Width: stream.Width, Height: stream.Height}
			if r, err := strconv.Atoi(stream.Tags.Rotate); err == nil {
				info.rotation = r
			}
			// Newer ffprobe reports rotation as display matrix side data
			// with the opposite sign.
			for _, sd := range stream.SideDataList {
				if sd.Rotation != 0 {
					info.rotation = -sd.Rotation
				}
			}
		case "audio":
			info.hasAudio = true
		}
	}

	return info, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
