package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "player",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "player",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"method", "path"})

	PlayAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "player",
		Name:      "play_attempts_total",
		Help:      "Finished play attempts by result.",
	}, []string{"result"})

	PlaybackTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "player",
		Name:      "playback_transitions_total",
		Help:      "Playback state machine transitions.",
	}, []string{"from", "to"})

	SubtitleTracksAdded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "player",
		Name:      "subtitle_tracks_added_total",
		Help:      "Subtitle tracks added to playing sessions.",
	})

	SubtitleIngestFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "player",
		Name:      "subtitle_ingest_failures_total",
		Help:      "Subtitle ingest batches that failed to parse.",
	})

	EngineEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "player",
		Name:      "engine_events_total",
		Help:      "Engine events processed by type.",
	}, []string{"type"})

	ErrorsReported = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "player",
		Name:      "errors_reported_total",
		Help:      "User-visible errors by kind.",
	}, []string{"kind"})

	ActiveTorrents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "player",
		Name:      "active_torrents",
		Help:      "Number of torrents the engine reports as active.",
	})

	OverallProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "player",
		Name:      "overall_progress_ratio",
		Help:      "Aggregate download progress across active torrents, -1 when idle.",
	})

	DownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "player",
		Name:      "download_speed_bytes",
		Help:      "Current aggregate download speed in bytes per second.",
	})

	UploadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "player",
		Name:      "upload_speed_bytes",
		Help:      "Current aggregate upload speed in bytes per second.",
	})

	PeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "player",
		Name:      "peers_connected",
		Help:      "Total number of peers connected across all sessions.",
	})

	TelemetryEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "player",
		Name:      "telemetry_events_total",
		Help:      "Telemetry events emitted by name.",
	}, []string{"event"})

	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "player",
		Name:      "ws_clients",
		Help:      "Connected WebSocket clients.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PlayAttemptsTotal,
		PlaybackTransitionsTotal,
		SubtitleTracksAdded,
		SubtitleIngestFailures,
		EngineEventsTotal,
		ErrorsReported,
		ActiveTorrents,
		OverallProgress,
		DownloadSpeedBytes,
		UploadSpeedBytes,
		PeersConnected,
		TelemetryEventsTotal,
		WSClients,
	)
}
