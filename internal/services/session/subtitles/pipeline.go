package subtitles

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"torrentplayer/internal/domain"
)

// Loaded is the outcome of one ingest batch, delivered back to the owner of
// the playing state.
type Loaded struct {
	Session    uint64
	Paths      []string
	Tracks     []domain.SubtitleTrack
	AutoSelect bool
	Err        error
}

// Pipeline runs ingest batches off the caller's goroutine and folds their
// results into the playing state when they come back.
type Pipeline struct {
	loader  *Loader
	matcher LocaleMatcher
	notify  func(Loaded)
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewPipeline(loader *Loader, matcher LocaleMatcher, notify func(Loaded), logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		loader:  loader,
		matcher: matcher,
		notify:  notify,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// Ingest starts loading paths for the current session. Subtitles apply to
// video only; other sessions and empty batches are ignored.
func (p *Pipeline) Ingest(ctx context.Context, playing *domain.PlayingState, paths []string, autoSelect bool) bool {
	if playing.Kind != domain.MediaVideo || len(paths) == 0 {
		return false
	}
	session := playing.Session
	batch := append([]string(nil), paths...)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		loadCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		tracks, err := p.loader.Load(loadCtx, batch)
		p.notify(Loaded{
			Session:    session,
			Paths:      batch,
			Tracks:     tracks,
			AutoSelect: autoSelect,
			Err:        err,
		})
	}()
	return true
}

// Apply merges a finished batch. Results for a session that has since
// ended are dropped. A failed batch adds nothing and returns its error.
func (p *Pipeline) Apply(playing *domain.PlayingState, res Loaded) error {
	if res.Session != playing.Session || playing.Kind != domain.MediaVideo {
		p.logger.Debug("subtitles: discarding stale batch",
			slog.Uint64("session", res.Session),
			slog.Int("files", len(res.Paths)))
		return nil
	}
	if res.Err != nil {
		return res.Err
	}
	Merge(&playing.Subtitles, res.Tracks, res.AutoSelect, p.matcher)
	p.logger.Info("subtitles added",
		slog.Int("files", len(res.Paths)),
		slog.Int("tracks", len(playing.Subtitles.Tracks)),
		slog.Int("selected", playing.Subtitles.SelectedIndex))
	return nil
}

// Wait blocks until in-flight batches have reported.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
