package ports

import (
	"context"

	"torrentplayer/internal/domain"
)

// RemoteTarget is a cast receiver. SetRate reports whether the receiver
// accepted the rate.
type RemoteTarget interface {
	Load(ctx context.Context, mediaURL, title string, startAt float64) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, seconds float64) error
	SetVolume(ctx context.Context, volume float64) error
	SetRate(ctx context.Context, rate float64) bool
	Stop(ctx context.Context) error
}

// ExternalPlayer launches a separate player process. The returned channel
// receives the process exit status once.
type ExternalPlayer interface {
	Open(ctx context.Context, mediaURL, title string) (<-chan error, error)
	Quit() error
}

// MediaHost is the local playback surface.
type MediaHost interface {
	Load(mediaURL string, kind domain.MediaKind, startAt float64)
	Play()
	Pause()
	Seek(seconds float64)
	SetVolume(volume float64)
	SetRate(rate float64)
	Unload()
	Accommodate(title string, kind domain.MediaKind)
	RestoreWindow()
}
