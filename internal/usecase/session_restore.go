package usecase

import (
	"context"
	"log/slog"
	"strings"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/domain/ports"
)

// RestoreSummaries loads the persisted torrent list at startup.
type RestoreSummaries struct {
	Repo   ports.SummaryRepository
	Logger *slog.Logger
}

// Load returns the summaries that can be reopened. Entries without a
// magnet or descriptor, or that fail validation, are skipped and logged.
func (r RestoreSummaries) Load(ctx context.Context) ([]domain.TorrentSummary, error) {
	list, err := r.Repo.List(ctx)
	if err != nil {
		return nil, wrapRepo(err)
	}

	out := make([]domain.TorrentSummary, 0, len(list))
	for _, s := range list {
		if !hasSource(s.Source) {
			r.logger().Warn("restore: skipping torrent",
				slog.String("torrentKey", string(s.Key)),
				slog.String("error", errMissingSource.Error()))
			continue
		}
		if err := s.Validate(); err != nil {
			r.logger().Warn("restore: skipping torrent",
				slog.String("torrentKey", string(s.Key)),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, s)
	}
	r.logger().Info("restored torrents", slog.Int("count", len(out)), slog.Int("skipped", len(list)-len(out)))
	return out, nil
}

func (r RestoreSummaries) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func hasSource(src domain.TorrentSource) bool {
	return strings.TrimSpace(src.Magnet) != "" || strings.TrimSpace(src.Torrent) != ""
}
