package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

func (s *Server) handleWatchHistory(w http.ResponseWriter, r *http.Request) {
	if s.watchHistory == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "watch history not configured")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"), 20, 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}

	positions, err := s.watchHistory.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list watch history failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list watch history")
		return
	}

	writeJSON(w, http.StatusOK, positions)
}

type healthResponse struct {
	Status    string            `json:"status"`
	WSClients int               `json:"wsClients"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// handleHealth reports 503 when any dependency check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.hub != nil {
		resp.WSClients = s.hub.clientCount()
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	if len(names) > 0 {
		resp.Checks = make(map[string]string, len(names))
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, name := range names {
			if err := s.checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}
	writeJSON(w, status, resp)
}
