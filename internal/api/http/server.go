package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/orchestrator"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Controller is the orchestrator surface the API drives.
type Controller interface {
	Send(ctx context.Context, msg orchestrator.Message) error
	Snapshot() *domain.AppState
	Outputs() []domain.OutputLocation
}

type WatchHistoryStore interface {
	ListRecent(ctx context.Context, limit int) ([]domain.WatchPosition, error)
}

// HealthCheck probes one dependency for /healthz.
type HealthCheck func(ctx context.Context) error

type Server struct {
	ctrl           Controller
	hub            *Hub
	watchHistory   WatchHistoryStore
	checks         map[string]HealthCheck
	uploadDir      string
	allowedOrigins []string
	rateRPS        float64
	rateBurst      int
	logger         *slog.Logger
	handler        http.Handler
}

type ServerOption func(*Server)

func WithWatchHistory(store WatchHistoryStore) ServerOption {
	return func(s *Server) {
		s.watchHistory = store
	}
}

func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(s *Server) {
		if check != nil {
			s.checks[name] = check
		}
	}
}

// WithUploadDir sets where uploaded .torrent files are kept. They must
// outlive the request because restored sessions re-read them.
func WithUploadDir(dir string) ServerOption {
	return func(s *Server) {
		s.uploadDir = dir
	}
}

func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.rateRPS = rps
			s.rateBurst = burst
		}
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer builds the HTTP API. The hub must already be running; the
// caller owns its lifetime together with the orchestrator that publishes
// into it.
func NewServer(ctrl Controller, hub *Hub, opts ...ServerOption) *Server {
	s := &Server{
		ctrl:      ctrl,
		hub:       hub,
		checks:    make(map[string]HealthCheck),
		uploadDir: os.TempDir(),
		rateRPS:   100,
		rateBurst: 200,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /outputs", s.handleOutputs)
	mux.HandleFunc("POST /torrents", s.handleAddTorrent)
	mux.HandleFunc("POST /torrents/{key}/toggle", s.handleToggleTorrent)
	mux.HandleFunc("DELETE /torrents/{key}", s.handleRemoveTorrent)
	mux.HandleFunc("POST /player/open", s.handleOpenPlayer)
	mux.HandleFunc("POST /player/close", s.handleCommand(orchestrator.ClosePlayer{}))
	mux.HandleFunc("POST /player/play", s.handleCommand(orchestrator.Play{}))
	mux.HandleFunc("POST /player/pause", s.handleCommand(orchestrator.Pause{}))
	mux.HandleFunc("POST /player/toggle", s.handleCommand(orchestrator.PlayPause{}))
	mux.HandleFunc("POST /player/seek", s.handleSeek)
	mux.HandleFunc("POST /player/skip", s.handleSkip)
	mux.HandleFunc("POST /player/volume", s.handleVolume)
	mux.HandleFunc("POST /player/rate", s.handleRate)
	mux.HandleFunc("POST /player/subtitles", s.handleAddSubtitles)
	mux.HandleFunc("POST /player/subtitles/select", s.handleSelectSubtitle)
	mux.HandleFunc("POST /player/subtitles/menu", s.handleCommand(orchestrator.ToggleSubtitlesMenu{}))
	mux.HandleFunc("POST /player/output", s.handleOutput)
	mux.HandleFunc("POST /player/media-event", s.handleMediaEvent)
	mux.HandleFunc("POST /window/focus", s.handleWindowFocus)
	mux.HandleFunc("DELETE /errors", s.handleCommand(orchestrator.ClearErrors{}))
	mux.HandleFunc("GET /watch-history", s.handleWatchHistory)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.ServeWS)
	}

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "torrent-player",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz" && p != "/player/media-event"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close disconnects all WebSocket clients.
func (s *Server) Close() {
	if s.hub != nil {
		s.hub.Close()
	}
}
