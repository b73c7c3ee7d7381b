package ports

import (
	"context"

	"torrentplayer/internal/domain"
)

// Engine is the torrent engine as seen by the orchestrator. Every method
// returns promptly; outcomes arrive later as domain.EngineEvent values.
type Engine interface {
	StartSession(ctx context.Context, summary domain.TorrentSummary) error
	StopSession(ctx context.Context, hash domain.InfoHash) error
	StartContentServer(ctx context.Context, hash domain.InfoHash, fileIndex int) error
	StopContentServer(ctx context.Context) error
	SaveDescriptor(ctx context.Context, key domain.TorrentKey) error
	GeneratePoster(ctx context.Context, key domain.TorrentKey) error
	GetAudioMetadata(ctx context.Context, hash domain.InfoHash, fileIndex int) error
}

// EventSink receives engine events for re-entry into the orchestrator.
type EventSink func(domain.EngineEvent)
