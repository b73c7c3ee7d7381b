package ports

import (
	"context"

	"torrentplayer/internal/domain"
)

type SummaryRepository interface {
	Save(ctx context.Context, s domain.TorrentSummary) error
	List(ctx context.Context) ([]domain.TorrentSummary, error)
	Delete(ctx context.Context, key domain.TorrentKey) error
}

type WatchHistoryStore interface {
	Upsert(ctx context.Context, wp domain.WatchPosition) error
	ListRecent(ctx context.Context, limit int) ([]domain.WatchPosition, error)
}

// LanguageCache memoizes subtitle language detection.
type LanguageCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, language string) error
}
