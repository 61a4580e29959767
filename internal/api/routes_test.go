package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/reelcut/reelcut-agent/internal/db"
	"github.com/reelcut/reelcut-agent/internal/export"
	"github.com/reelcut/reelcut-agent/internal/gallery"
	"github.com/reelcut/reelcut-agent/internal/media"
	"github.com/reelcut/reelcut-agent/internal/playback"
	"github.com/reelcut/reelcut-agent/internal/session"
)

const testToken = "test-token"

func testConfig(t *testing.T) (ServerConfig, *media.StubBackend) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := gallery.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), "auth_token", testToken); err != nil {
		t.Fatalf("failed to set auth token: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := media.NewStubBackend()

	sessions := session.NewManager(session.Config{
		Backend:       backend,
		TrackPairs:    2,
		RenderSize:    media.Size{Width: 1080, Height: 1920},
		FrameRate:     30,
		StripCacheCap: 10,
		Logger:        logger,
	}, session.NewBus())

	cfg := ServerConfig{
		Port:       0,
		Gallery:    gallery.NewService(repo, backend, logger),
		Provider:   gallery.NewLibraryProvider(repo, backend, 10, logger),
		Repository: repo,
		Sessions:   sessions,
		Streamer:   playback.NewStreamer(logger),
		Exporter:   export.NewExporter(logger),
		Logger:     logger,
		StartTime:  time.Now(),
		DeviceID:   "device-test",
	}
	return cfg, backend
}

// seedVideo puts one probed video in the catalog and registers its stub
// media.
func seedVideo(t *testing.T, cfg ServerConfig, backend *media.StubBackend, id string) {
	t.Helper()
	ctx := context.Background()

	now := time.Now()
	src := &gallery.Source{ID: "src-" + id, Type: "folder", Path: "/videos/" + id, DisplayName: id, Present: true, CreatedAt: now}
	cfg.Repository.CreateSource(ctx, src)

	v := &gallery.Video{
		ID:          id,
		SourceID:    src.ID,
		Path:        "/videos/" + id + ".mp4",
		Filename:    id + ".mp4",
		Size:        2048,
		Mtime:       now,
		Fingerprint: "fp-" + id,
		CreatedAt:   now,
	}
	if err := cfg.Repository.UpsertVideo(ctx, v); err != nil {
		t.Fatalf("failed to seed video: %v", err)
	}

	backend.SetAsset(id, media.StubAsset{
		Duration: 4 * time.Second,
		Size:     media.Size{Width: 1920, Height: 1080},
		HasAudio: true,
	})
	if err := cfg.Provider.Refresh(ctx); err != nil {
		t.Fatalf("failed to refresh provider: %v", err)
	}
}

func doRequest(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestHealthHandler_NoAuthRequired(t *testing.T) {
	cfg, _ := testConfig(t)
	router := NewRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["device_id"] != "device-test" {
		t.Errorf("device_id = %v, want device-test", body["device_id"])
	}
}

func TestStatusHandler(t *testing.T) {
	cfg, backend := testConfig(t)
	seedVideo(t, cfg, backend, "a")
	router := NewRouter(cfg)

	rr := doRequest(router, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	body := decodeJSONBody(t, rr)
	if body["state"] != "idle" {
		t.Errorf("state = %v, want idle", body["state"])
	}
	if body["video_count"] != float64(1) {
		t.Errorf("video_count = %v, want 1", body["video_count"])
	}
	if _, ok := body["tools"]; ok {
		t.Error("tools should be omitted when doctor is nil")
	}
}

func TestListVideosHandler(t *testing.T) {
	cfg, backend := testConfig(t)
	seedVideo(t, cfg, backend, "a")
	router := NewRouter(cfg)

	rr := doRequest(router, http.MethodGet, "/videos", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp VideosResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(resp.Videos) != 1 || resp.Videos[0].ID != "a" {
		t.Errorf("videos = %+v, want one video with id a", resp.Videos)
	}
}

func TestAddFolderHandler_Validation(t *testing.T) {
	cfg, _ := testConfig(t)
	router := NewRouter(cfg)

	rr := doRequest(router, http.MethodPost, "/sources/folders", AddFolderRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing path", rr.Code)
	}

	rr = doRequest(router, http.MethodPost, "/sources/folders", AddFolderRequest{Path: t.TempDir()})
	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rr.Code)
	}
}

func TestScanHandler_NoSources(t *testing.T) {
	cfg, _ := testConfig(t)
	router := NewRouter(cfg)

	rr := doRequest(router, http.MethodPost, "/scan", ScanRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 when no sources exist", rr.Code)
	}
}

func TestGetJobHandler_NotFound(t *testing.T) {
	cfg, _ := testConfig(t)
	router := NewRouter(cfg)

	rr := doRequest(router, http.MethodGet, "/jobs/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestThumbnailHandler(t *testing.T) {
	cfg, backend := testConfig(t)
	seedVideo(t, cfg, backend, "a")
	router := NewRouter(cfg)

	rr := doRequest(router, http.MethodGet, "/videos/a/thumbnail?w=160&h=90", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/webp" {
		t.Errorf("Content-Type = %s, want image/webp", ct)
	}
	if rr.Body.Len() == 0 {
		t.Error("empty thumbnail body")
	}
}

func TestThumbnailHandler_UnknownVideo(t *testing.T) {
	cfg, _ := testConfig(t)
	router := NewRouter(cfg)

	rr := doRequest(router, http.MethodGet, "/videos/nope/thumbnail", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}
