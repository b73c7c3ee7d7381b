// Package aggregator folds torrent engine events into the torrent summaries
// of the application state.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/domain/ports"
	"torrentplayer/internal/metrics"
)

type Aggregator struct {
	Engine  ports.Engine
	Effects ports.Effects
	Logger  *slog.Logger
	Now     func() time.Time
}

// Apply folds one engine event into st. The returned error is meant for
// the user-visible error queue. ServerReadyEvent belongs to the playback
// machine and is ignored here.
func (a Aggregator) Apply(ctx context.Context, st *domain.AppState, ev domain.EngineEvent) error {
	metrics.EngineEventsTotal.WithLabelValues(domain.EventName(ev)).Inc()
	switch ev := ev.(type) {
	case domain.IdentityEvent:
		return a.identity(ctx, st, ev)
	case domain.MetadataEvent:
		a.metadata(ctx, st, ev)
	case domain.ProgressEvent:
		a.progress(st, ev)
	case domain.DoneEvent:
		a.done(st, ev)
	case domain.WarningEvent:
		a.logger().Warn("torrent warning",
			slog.String("torrentKey", string(ev.Key)),
			slog.String("message", ev.Message))
	case domain.ErrorEvent:
		return a.torrentError(st, ev)
	case domain.DescriptorSavedEvent:
		if s := a.summary(st, ev.Key); s != nil {
			s.TorrentFileName = ev.FileName
		}
	case domain.PosterSavedEvent:
		if s := a.summary(st, ev.Key); s != nil {
			s.PosterFileName = ev.FileName
		}
	case domain.AudioMetadataEvent:
		a.audioMetadata(st, ev)
	case domain.ServerReadyEvent:
	}
	return nil
}

func (a Aggregator) identity(ctx context.Context, st *domain.AppState, ev domain.IdentityEvent) error {
	if dup := st.SummaryByHash(ev.InfoHash); dup != nil && dup.Key != ev.Key {
		a.logger().Warn("duplicate torrent rejected",
			slog.String("torrentKey", string(ev.Key)),
			slog.String("existingKey", string(dup.Key)),
			slog.String("infoHash", string(ev.InfoHash)))
		if err := a.Engine.StopSession(ctx, ev.InfoHash); err != nil {
			a.logger().Warn("stop duplicate failed", slog.String("error", err.Error()))
		}
		if s := a.summary(st, ev.Key); s != nil && s.InfoHash == "" {
			st.RemoveSummary(s.Key)
		}
		a.effects().PlaySound(ports.SoundError)
		return fmt.Errorf("%w: %s", domain.ErrDuplicateSession, ev.InfoHash)
	}

	s := st.Summary(string(ev.Key))
	if s == nil {
		s = &domain.TorrentSummary{Key: ev.Key, Status: domain.TorrentNew, CreatedAt: a.now()}
		st.AddSummary(s)
		a.effects().PlaySound(ports.SoundAdd)
	}
	s.InfoHash = ev.InfoHash
	return nil
}

func (a Aggregator) metadata(ctx context.Context, st *domain.AppState, ev domain.MetadataEvent) {
	s := a.summary(st, ev.Key)
	if s == nil {
		return
	}
	if s.InfoHash == "" {
		s.InfoHash = ev.Info.InfoHash
	}
	s.Status = domain.TorrentDownloading
	s.Name = s.DisplayName
	if s.Name == "" {
		s.Name = ev.Info.Name
	}
	s.Path = ev.Info.Path
	if !s.HasDetailedFileInfo() {
		s.Files = append([]domain.FileSummary(nil), ev.Info.Files...)
	}
	if len(s.Selections) != len(s.Files) {
		s.Selections = make([]bool, len(s.Files))
		for i := range s.Selections {
			s.Selections[i] = true
		}
	}
	s.DefaultPlayFileIndex = domain.PickFileToPlay(s.Files)

	if s.TorrentFileName == "" && !s.DescriptorRequested {
		s.DescriptorRequested = true
		if err := a.Engine.SaveDescriptor(ctx, s.Key); err != nil {
			a.logger().Warn("save descriptor failed", slog.String("error", err.Error()))
		}
	}
	if s.PosterFileName == "" && !s.PosterRequested {
		s.PosterRequested = true
		if err := a.Engine.GeneratePoster(ctx, s.Key); err != nil {
			a.logger().Warn("generate poster failed", slog.String("error", err.Error()))
		}
	}
	a.logger().Info("torrent metadata",
		slog.String("torrentKey", string(s.Key)),
		slog.String("name", s.Name),
		slog.Int("files", len(s.Files)))
}

func (a Aggregator) progress(st *domain.AppState, ev domain.ProgressEvent) {
	info := ev.Info
	if !info.HasActiveTorrents || info.Progress == 1 {
		st.Dock.Progress = -1
	} else {
		st.Dock.Progress = info.Progress
	}

	var down, up int64
	var peers int
	for _, p := range info.Torrents {
		down += p.DownloadSpeed
		up += p.UploadSpeed
		peers += p.NumPeers
		s := st.Summary(string(p.Key))
		if s == nil {
			continue
		}
		c := p.Clone()
		s.Progress = &c
	}
	metrics.ActiveTorrents.Set(float64(len(info.Torrents)))
	metrics.OverallProgress.Set(st.Dock.Progress)
	metrics.DownloadSpeedBytes.Set(float64(down))
	metrics.UploadSpeedBytes.Set(float64(up))
	metrics.PeersConnected.Set(float64(peers))
}

func (a Aggregator) done(st *domain.AppState, ev domain.DoneEvent) {
	s := a.summary(st, ev.Key)
	if s == nil {
		return
	}
	wasSeeding := s.Status == domain.TorrentSeeding
	s.Status = domain.TorrentSeeding
	if wasSeeding || ev.Info.BytesReceived <= 0 {
		return
	}
	if !st.WindowFocused {
		st.Dock.Badge++
	}
	a.effects().ShowNotification("Download Complete", s.Title())
	a.effects().PlaySound(ports.SoundDone)
	a.effects().LogTelemetry("torrent_done", map[string]string{"torrentKey": string(s.Key)})
	a.logger().Info("torrent done",
		slog.String("torrentKey", string(s.Key)),
		slog.Int64("bytesReceived", ev.Info.BytesReceived))
}

func (a Aggregator) torrentError(st *domain.AppState, ev domain.ErrorEvent) error {
	msg := ev.Message
	if strings.HasPrefix(msg, "Cannot add duplicate torrent") || strings.Contains(msg, "already exists") {
		msg = "Cannot add duplicate torrent"
	}
	if s := a.summary(st, ev.Key); s != nil {
		s.Status = domain.TorrentPaused
	}
	a.logger().Error("torrent error",
		slog.String("torrentKey", string(ev.Key)),
		slog.String("error", ev.Message))
	return fmt.Errorf("%w: %s", domain.ErrEngine, msg)
}

func (a Aggregator) audioMetadata(st *domain.AppState, ev domain.AudioMetadataEvent) {
	s := st.SummaryByHash(ev.InfoHash)
	if s == nil {
		return
	}
	f, ok := s.File(ev.FileIndex)
	if !ok {
		return
	}
	info := ev.Info
	f.AudioInfo = &info
}

func (a Aggregator) summary(st *domain.AppState, key domain.TorrentKey) *domain.TorrentSummary {
	s := st.Summary(string(key))
	if s == nil {
		a.logger().Debug("event for unknown torrent", slog.String("torrentKey", string(key)))
	}
	return s
}

func (a Aggregator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a Aggregator) effects() ports.Effects {
	if a.Effects != nil {
		return a.Effects
	}
	return nopEffects{}
}

func (a Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}

type nopEffects struct{}

func (nopEffects) PlaySound(ports.Sound)                  {}
func (nopEffects) ShowNotification(string, string)        {}
func (nopEffects) LogTelemetry(string, map[string]string) {}

// Toggle flips a torrent between paused and running.
func (a Aggregator) Toggle(ctx context.Context, st *domain.AppState, key domain.TorrentKey) error {
	s := st.Summary(string(key))
	if s == nil {
		return fmt.Errorf("%w: torrent %s", domain.ErrNotFound, key)
	}
	if s.Status == domain.TorrentPaused {
		s.Status = domain.TorrentNew
		if err := a.Engine.StartSession(ctx, *s); err != nil {
			s.Status = domain.TorrentPaused
			return fmt.Errorf("%w: %v", domain.ErrEngine, err)
		}
		return nil
	}
	s.Status = domain.TorrentPaused
	s.Progress = nil
	if s.InfoHash == "" {
		return nil
	}
	if err := a.Engine.StopSession(ctx, s.InfoHash); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEngine, err)
	}
	return nil
}
