package playback

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/reelcut/reelcut-agent/internal/gallery"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		size      int64
		wantStart int64
		wantEnd   int64
		wantNil   bool
		wantErr   error
	}{
		{"empty header", "", 1000, 0, 0, true, nil},
		{"full range", "bytes=0-999", 1000, 0, 999, false, nil},
		{"partial start", "bytes=500-", 1000, 500, 999, false, nil},
		{"suffix range", "bytes=-500", 1000, 500, 999, false, nil},
		{"single byte", "bytes=0-0", 1000, 0, 0, false, nil},
		{"middle range", "bytes=100-199", 1000, 100, 199, false, nil},
		{"beyond size clamped", "bytes=0-2000", 1000, 0, 999, false, nil},
		{"suffix larger than file", "bytes=-2000", 500, 0, 499, false, nil},
		{"last byte", "bytes=999-", 1000, 999, 999, false, nil},
		{"multi range takes first", "bytes=0-99, 200-299", 1000, 0, 99, false, nil},

		{"unsatisfiable start", "bytes=1000-", 1000, 0, 0, false, ErrUnsatisfiable},
		{"unsatisfiable beyond", "bytes=1500-2000", 1000, 0, 0, false, ErrUnsatisfiable},
		{"invalid format no bytes", "invalid", 1000, 0, 0, false, ErrInvalidRange},
		{"wrong unit", "chars=0-100", 1000, 0, 0, false, ErrInvalidRange},
		{"invalid start", "bytes=abc-100", 1000, 0, 0, false, ErrInvalidRange},
		{"invalid end", "bytes=0-abc", 1000, 0, 0, false, ErrInvalidRange},
		{"negative suffix", "bytes=-0", 1000, 0, 0, false, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.header, tt.size)

			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("ParseRange() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("ParseRange() unexpected error: %v", err)
				return
			}

			if tt.wantNil {
				if got != nil {
					t.Errorf("ParseRange() = %v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Errorf("ParseRange() = nil, want non-nil")
				return
			}

			if got.Start != tt.wantStart || got.End != tt.wantEnd {
				t.Errorf("ParseRange() = {%d, %d}, want {%d, %d}", got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestByteRange_Length(t *testing.T) {
	tests := []struct {
		start int64
		end   int64
		want  int64
	}{
		{0, 99, 100},
		{0, 0, 1},
		{500, 999, 500},
	}

	for _, tt := range tests {
		r := ByteRange{Start: tt.start, End: tt.end}
		if got := r.Length(); got != tt.want {
			t.Errorf("Length() = %d, want %d", got, tt.want)
		}
	}
}

func testVideoFile(t *testing.T, content string) *gallery.Video {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test video: %v", err)
	}
	return &gallery.Video{ID: "v1", Path: path, Fingerprint: "abc123"}
}

func TestStreamer_FullFile(t *testing.T) {
	s := NewStreamer(nil)
	video := testVideoFile(t, "0123456789")

	req := httptest.NewRequest("GET", "/videos/v1/file", nil)
	rec := httptest.NewRecorder()

	if err := s.ServeVideo(rec, req, video); err != nil {
		t.Fatalf("ServeVideo() error = %v", err)
	}

	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "0123456789" {
		t.Errorf("body = %q, want full content", body)
	}
	if rec.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("missing Accept-Ranges header")
	}
	if rec.Header().Get("ETag") != `"abc123"` {
		t.Errorf("ETag = %s, want \"abc123\"", rec.Header().Get("ETag"))
	}
}

func TestStreamer_PartialContent(t *testing.T) {
	s := NewStreamer(nil)
	video := testVideoFile(t, "0123456789")

	req := httptest.NewRequest("GET", "/videos/v1/file", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()

	if err := s.ServeVideo(rec, req, video); err != nil {
		t.Fatalf("ServeVideo() error = %v", err)
	}

	if rec.Code != 206 {
		t.Errorf("status = %d, want 206", rec.Code)
	}
	if body := rec.Body.String(); body != "2345" {
		t.Errorf("body = %q, want 2345", body)
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes 2-5/10" {
		t.Errorf("Content-Range = %s, want bytes 2-5/10", cr)
	}
}

func TestStreamer_UnsatisfiableRange(t *testing.T) {
	s := NewStreamer(nil)
	video := testVideoFile(t, "0123456789")

	req := httptest.NewRequest("GET", "/videos/v1/file", nil)
	req.Header.Set("Range", "bytes=100-")
	rec := httptest.NewRecorder()

	if err := s.ServeVideo(rec, req, video); err != nil {
		t.Fatalf("ServeVideo() error = %v", err)
	}

	if rec.Code != 416 {
		t.Errorf("status = %d, want 416", rec.Code)
	}
}

func TestStreamer_NotModified(t *testing.T) {
	s := NewStreamer(nil)
	video := testVideoFile(t, "0123456789")

	req := httptest.NewRequest("GET", "/videos/v1/file", nil)
	req.Header.Set("If-None-Match", `"abc123"`)
	rec := httptest.NewRecorder()

	if err := s.ServeVideo(rec, req, video); err != nil {
		t.Fatalf("ServeVideo() error = %v", err)
	}

	if rec.Code != 304 {
		t.Errorf("status = %d, want 304", rec.Code)
	}
}

func TestStreamer_MissingFile(t *testing.T) {
	s := NewStreamer(nil)
	video := &gallery.Video{ID: "v1", Path: "/nonexistent/clip.mp4"}

	req := httptest.NewRequest("GET", "/videos/v1/file", nil)
	rec := httptest.NewRecorder()

	if err := s.ServeVideo(rec, req, video); err != nil {
		t.Fatalf("ServeVideo() error = %v", err)
	}

	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
