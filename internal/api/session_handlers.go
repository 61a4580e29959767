package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reelcut/reelcut-agent/internal/export"
	"github.com/reelcut/reelcut-agent/internal/media"
	"github.com/reelcut/reelcut-agent/internal/timeline"
)

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, SessionToResponse(cfg.Sessions.Current()))
	}
}

func resetSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := cfg.Sessions.Reset()
		WriteJSON(w, http.StatusOK, SessionToResponse(s))
	}
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.VideoID == "" {
			WriteError(w, http.StatusBadRequest, "video_id is required", "BAD_REQUEST")
			return
		}

		video, err := cfg.Gallery.Video(r.Context(), req.VideoID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if video == nil {
			WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}

		s := cfg.Sessions.Current()
		asset := &media.Asset{ID: video.ID, Path: video.Path}

		var clip timeline.Clip
		if req.At != nil {
			clip, err = s.Timeline.Insert(r.Context(), asset, *req.At)
		} else {
			clip, err = s.Timeline.Append(r.Context(), asset)
		}
		if err != nil {
			if errors.Is(err, timeline.ErrIndexOutOfRange) {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "CLIP_REJECTED")
			return
		}

		WriteJSON(w, http.StatusCreated, ClipToResponse(clip))
	}
}

func clipIndex(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "index"))
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := clipIndex(r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid clip index", "BAD_REQUEST")
			return
		}

		if err := cfg.Sessions.Current().RemoveClip(index); err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func moveClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := clipIndex(r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid clip index", "BAD_REQUEST")
			return
		}

		var req MoveClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		s := cfg.Sessions.Current()
		if err := s.Timeline.Move(index, req.To); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(s))
	}
}

func trimClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := clipIndex(r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid clip index", "BAD_REQUEST")
			return
		}

		var req TrimClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		s := cfg.Sessions.Current()
		trim := media.TimeRange{
			Start:    time.Duration(req.StartMS) * time.Millisecond,
			Duration: time.Duration(req.DurationMS) * time.Millisecond,
		}
		if err := s.Timeline.SetTrim(index, trim); err != nil {
			if errors.Is(err, timeline.ErrIndexOutOfRange) {
				WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
				return
			}
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		// The trimmed clip's cached strip no longer matches its range.
		if clip, ok := s.Timeline.Clip(index); ok {
			s.Strips.InvalidateClip(clip.ID)
		}

		WriteJSON(w, http.StatusOK, SessionToResponse(s))
	}
}

func selectClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := clipIndex(r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid clip index", "BAD_REQUEST")
			return
		}

		s := cfg.Sessions.Current()
		if index >= s.Timeline.Len() {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}
		s.Select(index)
		WriteJSON(w, http.StatusOK, map[string]int{"selected": s.Selected()})
	}
}

func toggleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := cfg.Sessions.Current()
		player := s.Engine.Player()
		player.Toggle()

		resp := PlaybackResponse{
			PositionMS: player.Position().Milliseconds(),
			Rate:       player.Rate(),
		}
		if item := player.Item(); item != nil {
			resp.DurationMS = item.Duration.Milliseconds()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SeekRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		s := cfg.Sessions.Current()
		player := s.Engine.Player()
		applied := player.Seek(time.Duration(req.PositionMS) * time.Millisecond)

		resp := PlaybackResponse{
			PositionMS: applied.Milliseconds(),
			Rate:       player.Rate(),
		}
		if item := player.Item(); item != nil {
			resp.DurationMS = item.Duration.Milliseconds()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		clips := cfg.Sessions.Current().Timeline.Clips()
		resp, err := cfg.Exporter.Export(clips, req)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "EXPORT_FAILED")
			return
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}
