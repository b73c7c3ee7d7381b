package apihttp

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"torrentplayer/internal/domain"
	"torrentplayer/internal/orchestrator"
)

const maxUploadBytes = 10 << 20

type addTorrentRequest struct {
	Key         string `json:"key,omitempty"`
	Magnet      string `json:"magnet,omitempty"`
	Torrent     string `json:"torrent,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleOutputs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"outputs": s.ctrl.Outputs()})
}

// handleAddTorrent accepts a JSON body with a magnet link or a path, or a
// multipart upload with the .torrent file in the "torrent" field.
func (s *Server) handleAddTorrent(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var msg orchestrator.AddTorrent
	switch mediaType {
	case "application/json", "":
		var req addTorrentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg = orchestrator.AddTorrent{
			Key:         domain.TorrentKey(strings.TrimSpace(req.Key)),
			Source:      domain.TorrentSource{Magnet: strings.TrimSpace(req.Magnet), Torrent: strings.TrimSpace(req.Torrent)},
			DisplayName: strings.TrimSpace(req.DisplayName),
		}
	case "multipart/form-data":
		path, name, ok := s.receiveUpload(w, r)
		if !ok {
			return
		}
		msg = orchestrator.AddTorrent{
			Key:         domain.TorrentKey(strings.TrimSpace(r.FormValue("key"))),
			Source:      domain.TorrentSource{Torrent: path},
			DisplayName: name,
		}
	default:
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "use application/json or multipart/form-data")
		return
	}

	if msg.Source.Empty() {
		writeError(w, http.StatusBadRequest, "invalid_request", "magnet or torrent is required")
		return
	}
	if msg.Key == "" {
		msg.Key = domain.TorrentKey(uuid.NewString())
	}
	if err := s.ctrl.Send(r.Context(), msg); err != nil {
		writeCommandError(w, err)
		return
	}

	if snap := s.ctrl.Snapshot(); snap != nil {
		if t := snap.Summary(string(msg.Key)); t != nil {
			writeJSON(w, http.StatusAccepted, t)
			return
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"key": string(msg.Key)})
}

func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
		return "", "", false
	}
	file, header, err := r.FormFile("torrent")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "torrent file is required")
		return "", "", false
	}
	defer file.Close()

	path, err := saveUploadedFile(s.uploadDir, file, header.Filename)
	if err != nil {
		s.logger.Error("torrent upload failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to store torrent file")
		return "", "", false
	}
	name := strings.TrimSpace(r.FormValue("displayName"))
	return path, name, true
}

func (s *Server) handleToggleTorrent(w http.ResponseWriter, r *http.Request) {
	key := domain.TorrentKey(r.PathValue("key"))
	s.send(w, r, orchestrator.ToggleTorrent{Key: key})
}

func (s *Server) handleRemoveTorrent(w http.ResponseWriter, r *http.Request) {
	key := domain.TorrentKey(r.PathValue("key"))
	s.send(w, r, orchestrator.RemoveTorrent{Key: key})
}

// send delivers msg and answers 204 or the mapped error.
func (s *Server) send(w http.ResponseWriter, r *http.Request, msg orchestrator.Message) {
	if err := s.ctrl.Send(r.Context(), msg); err != nil {
		if !errors.Is(err, domain.ErrInvalidCommand) && !errors.Is(err, domain.ErrInvalidTransition) && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("command failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()))
		}
		writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCommand serves bodiless commands.
func (s *Server) handleCommand(msg orchestrator.Message) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.send(w, r, msg)
	}
}
