package usecase

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/domain/ports"
)

// SyncState periodically persists the torrent list and watch positions
// from the published state snapshot. Only changed entries are written.
type SyncState struct {
	Snapshot func() *domain.AppState
	Repo     ports.SummaryRepository
	History  ports.WatchHistoryStore
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	saved   map[domain.TorrentKey]domain.TorrentSummary
	watched map[watchKey]float64
}

type watchKey struct {
	key   domain.TorrentKey
	index int
}

// Run flushes every Interval and once more after ctx is cancelled.
func (s *SyncState) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Flush writes the entries that changed since the previous flush.
func (s *SyncState) Flush(ctx context.Context) {
	st := s.Snapshot()
	if st == nil {
		return
	}
	if s.saved == nil {
		s.saved = make(map[domain.TorrentKey]domain.TorrentSummary)
		s.watched = make(map[watchKey]float64)
	}

	seen := make(map[domain.TorrentKey]bool, len(st.Torrents))
	for _, t := range st.Torrents {
		seen[t.Key] = true
		current := persisted(t)
		if prev, ok := s.saved[t.Key]; ok && reflect.DeepEqual(prev, current) {
			continue
		}
		if err := s.Repo.Save(ctx, current); err != nil {
			s.logger().Warn("sync: save summary failed",
				slog.String("torrentKey", string(t.Key)),
				slog.String("error", err.Error()))
			continue
		}
		s.saved[t.Key] = current
	}

	for key := range s.saved {
		if seen[key] {
			continue
		}
		if err := s.Repo.Delete(ctx, key); err != nil {
			s.logger().Warn("sync: delete summary failed",
				slog.String("torrentKey", string(key)),
				slog.String("error", err.Error()))
			continue
		}
		delete(s.saved, key)
	}

	if s.History != nil {
		s.syncHistory(ctx, st)
	}
}

func (s *SyncState) syncHistory(ctx context.Context, st *domain.AppState) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	for _, t := range st.Torrents {
		for i, f := range t.Files {
			if f.CurrentTime <= 0 {
				continue
			}
			wk := watchKey{key: t.Key, index: i}
			if s.watched[wk] == f.CurrentTime {
				continue
			}
			wp := domain.WatchPosition{
				Key:         t.Key,
				InfoHash:    t.InfoHash,
				FileIndex:   i,
				Position:    f.CurrentTime,
				Duration:    f.Duration,
				TorrentName: t.Title(),
				FilePath:    f.Path,
				UpdatedAt:   now,
			}
			if err := s.History.Upsert(ctx, wp); err != nil {
				s.logger().Warn("sync: upsert watch position failed",
					slog.String("torrentKey", string(t.Key)),
					slog.Int("fileIndex", i),
					slog.String("error", err.Error()))
				continue
			}
			s.watched[wk] = f.CurrentTime
		}
	}
}

func (s *SyncState) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// persisted drops the fields that only make sense while running.
func persisted(t *domain.TorrentSummary) domain.TorrentSummary {
	c := t.Clone()
	c.Progress = nil
	c.PlayStatus = domain.PlayStatusNone
	return *c
}
