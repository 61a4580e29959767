package api

import (
	"bytes"
	"image"
	"net/http"
	"strconv"
	"time"

	"github.com/chai2010/webp"
	"github.com/go-chi/chi/v5"

	"github.com/reelcut/reelcut-agent/internal/media"
)

const (
	defaultThumbWidth  = 320
	defaultThumbHeight = 180
	defaultStripWidth  = 600
	defaultStripHeight = 60
	webpQuality        = 80

	thumbnailTimeout = 10 * time.Second
)

func sizeFromQuery(r *http.Request, defaultW, defaultH int) media.Size {
	size := media.Size{Width: defaultW, Height: defaultH}
	if w, err := strconv.Atoi(r.URL.Query().Get("w")); err == nil && w > 0 {
		size.Width = w
	}
	if h, err := strconv.Atoi(r.URL.Query().Get("h")); err == nil && h > 0 {
		size.Height = h
	}
	return size
}

func writeWebP(w http.ResponseWriter, img image.Image) error {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: webpQuality}); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "private, max-age=60")
	_, err := buf.WriteTo(w)
	return err
}

func thumbnailHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		index := cfg.Provider.IndexOf(id)
		if index < 0 {
			WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}

		target := sizeFromQuery(r, defaultThumbWidth, defaultThumbHeight)

		done := make(chan image.Image, 1)
		reqID, started := cfg.Provider.RequestThumbnail(index, target, func(img image.Image) {
			done <- img
		})

		if started {
			// A failed render never invokes the callback, so bound the wait.
			select {
			case <-r.Context().Done():
				cfg.Provider.CancelRequest(reqID)
				return
			case <-time.After(thumbnailTimeout):
				cfg.Provider.CancelRequest(reqID)
				WriteError(w, http.StatusUnprocessableEntity, "thumbnail unavailable", "RENDER_FAILED")
				return
			case img := <-done:
				if err := writeWebP(w, img); err != nil {
					cfg.Logger.Error("thumbnail encode failed", "error", err, "video_id", id)
				}
			}
			return
		}

		// A cached thumbnail was delivered synchronously; anything else
		// means the request never started.
		select {
		case img := <-done:
			if err := writeWebP(w, img); err != nil {
				cfg.Logger.Error("thumbnail encode failed", "error", err, "video_id", id)
			}
		default:
			WriteError(w, http.StatusUnprocessableEntity, "thumbnail unavailable", "RENDER_FAILED")
		}
	}
}

func stripHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := cfg.Sessions.Current()

		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid clip index", "BAD_REQUEST")
			return
		}
		clip, ok := s.Timeline.Clip(index)
		if !ok {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}

		target := sizeFromQuery(r, defaultStripWidth, defaultStripHeight)

		img, err := s.Strips.Strip(r.Context(), clip, target)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if img == nil {
			WriteError(w, http.StatusUnprocessableEntity, "strip unavailable", "RENDER_FAILED")
			return
		}

		if err := writeWebP(w, img); err != nil {
			cfg.Logger.Error("strip encode failed", "error", err, "clip_id", clip.ID)
		}
	}
}
