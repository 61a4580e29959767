package playback

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/reelcut/reelcut-agent/internal/gallery"
)

// Streamer serves catalog videos over HTTP. Responses carry an ETag derived
// from the catalog fingerprint so a client can revalidate after a rescan.
type Streamer struct {
	logger *slog.Logger
}

func NewStreamer(logger *slog.Logger) *Streamer {
	return &Streamer{logger: logger}
}

func (s *Streamer) ServeVideo(w http.ResponseWriter, r *http.Request, video *gallery.Video) error {
	file, err := os.Open(video.Path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open video: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat video: %w", err)
	}
	size := stat.Size()

	contentType := mime.TypeByExtension(filepath.Ext(video.Path))
	if contentType == "" {
		contentType = "video/mp4"
	}

	etag := fmt.Sprintf("%q", video.Fingerprint)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)
	if video.Fingerprint != "" {
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return nil
		}
	}

	byteRange, err := ParseRange(r.Header.Get("Range"), size)
	if err == ErrUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	// A malformed Range header degrades to serving the whole file.
	if err != nil && err != ErrInvalidRange {
		return err
	}

	if byteRange == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return nil
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", byteRange.Length()))
	w.Header().Set("Content-Range", byteRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(byteRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	io.CopyN(w, file, byteRange.Length())

	if s.logger != nil {
		s.logger.Debug("served range", "video_id", video.ID,
			"start", byteRange.Start, "end", byteRange.End, "total", size)
	}
	return nil
}
