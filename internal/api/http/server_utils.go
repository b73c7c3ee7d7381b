package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/orchestrator"
)

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// maxBodyBytes bounds JSON command bodies.
const maxBodyBytes = 1 << 20

// writeCommandError maps orchestrator failures onto HTTP statuses.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidCommand):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrDuplicateSession):
		writeError(w, http.StatusConflict, "duplicate", domain.UserMessage(err))
	case errors.Is(err, domain.ErrUnplayable):
		writeError(w, http.StatusUnprocessableEntity, "unplayable", domain.UserMessage(err))
	case errors.Is(err, domain.ErrOutputUnavailable):
		writeError(w, http.StatusServiceUnavailable, "output_unavailable", err.Error())
	case errors.Is(err, domain.ErrEngine):
		writeError(w, http.StatusInternalServerError, "engine_error", err.Error())
	case errors.Is(err, orchestrator.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "player is shutting down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "timeout", "request cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a bounded JSON body into dst and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return false
	}
	return true
}

func saveUploadedFile(dir string, src io.Reader, filename string) (string, error) {
	base := strings.TrimSpace(filepath.Base(filename))
	if base == "" || base == "." || base == string(os.PathSeparator) {
		base = "torrent"
	}
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".torrent"
	}
	prefix := strings.TrimSuffix(base, filepath.Ext(base))
	pattern := prefix + "-*" + ext

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	out, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		_ = os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

func parseLimit(value string, defaultValue, maxValue int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid limit")
	}
	if n > maxValue {
		n = maxValue
	}
	return n, nil
}
