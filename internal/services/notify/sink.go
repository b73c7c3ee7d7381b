// Package notify delivers sounds, notifications and telemetry produced by
// the playback core.
package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"torrentplayer/internal/domain/ports"
	"torrentplayer/internal/metrics"
)

// Broadcaster pushes a typed message to connected UI clients without
// blocking.
type Broadcaster interface {
	Broadcast(msgType string, data any)
}

type soundMessage struct {
	Sound ports.Sound `json:"sound"`
}

// Sink implements ports.Effects. All methods return immediately; webhook
// delivery happens in the background.
type Sink struct {
	out     Broadcaster
	webhook *Webhook
	logger  *slog.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewSink(out Broadcaster, webhook *Webhook, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{out: out, webhook: webhook, logger: logger, now: time.Now}
}

func (s *Sink) PlaySound(sound ports.Sound) {
	if s.out != nil {
		s.out.Broadcast("sound", soundMessage{Sound: sound})
	}
}

func (s *Sink) ShowNotification(title, body string) {
	n := Notification{Title: title, Body: body, At: s.now().UTC()}
	if s.out != nil {
		s.out.Broadcast("notification", n)
	}
	if s.webhook == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.webhook.Send(ctx, n); err != nil {
			s.logger.Warn("notification webhook failed", slog.String("error", err.Error()))
		}
	}()
}

func (s *Sink) LogTelemetry(event string, attrs map[string]string) {
	metrics.TelemetryEventsTotal.WithLabelValues(event).Inc()

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)+1)
	args = append(args, slog.String("event", event))
	for _, k := range keys {
		args = append(args, slog.String(k, attrs[k]))
	}
	s.logger.Info("telemetry", args...)
}

// Wait blocks until pending webhook deliveries finish.
func (s *Sink) Wait() {
	s.wg.Wait()
}
