package apihttp

import (
	"net/http"
	"strings"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/orchestrator"
	"torrentplayer/internal/services/session/playback"
)

func (s *Server) handleOpenPlayer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key       string `json:"key"`
		FileIndex *int   `json:"fileIndex,omitempty"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	key := strings.TrimSpace(body.Key)
	if key == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "key is required")
		return
	}
	if body.FileIndex != nil && *body.FileIndex < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid fileIndex")
		return
	}
	s.send(w, r, orchestrator.OpenPlayer{Key: domain.TorrentKey(key), FileIndex: body.FileIndex})
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Seconds float64 `json:"seconds"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	s.send(w, r, orchestrator.Seek{Seconds: body.Seconds})
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delta float64 `json:"delta"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	s.send(w, r, orchestrator.Skip{Delta: body.Delta})
}

// handleVolume sets an absolute volume or nudges it by delta.
func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Volume *float64 `json:"volume,omitempty"`
		Delta  *float64 `json:"delta,omitempty"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	switch {
	case body.Volume != nil && body.Delta == nil:
		s.send(w, r, orchestrator.SetVolume{Volume: *body.Volume})
	case body.Delta != nil && body.Volume == nil:
		s.send(w, r, orchestrator.ChangeVolume{Delta: *body.Delta})
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "exactly one of volume or delta is required")
	}
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Direction int `json:"direction"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Direction != 1 && body.Direction != -1 {
		writeError(w, http.StatusBadRequest, "invalid_request", "direction must be 1 or -1")
		return
	}
	s.send(w, r, orchestrator.ChangeRate{Direction: body.Direction})
}

func (s *Server) handleAddSubtitles(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Paths []string `json:"paths"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	paths := make([]string, 0, len(body.Paths))
	for _, p := range body.Paths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "paths are required")
		return
	}
	s.send(w, r, orchestrator.AddSubtitles{Paths: paths})
}

func (s *Server) handleSelectSubtitle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index int `json:"index"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	s.send(w, r, orchestrator.SelectSubtitle{Index: body.Index})
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Location domain.OutputLocation `json:"location"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if !body.Location.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown output location")
		return
	}
	s.send(w, r, orchestrator.SetOutput{Location: body.Location})
}

func (s *Server) handleMediaEvent(w http.ResponseWriter, r *http.Request) {
	var ev playback.MediaEvent
	if !decodeJSON(w, r, &ev) {
		return
	}
	if ev.Kind == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "kind is required")
		return
	}
	s.send(w, r, orchestrator.ReportMediaEvent{Event: ev})
}

func (s *Server) handleWindowFocus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Focused bool `json:"focused"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	s.send(w, r, orchestrator.WindowFocus{Focused: body.Focused})
}
