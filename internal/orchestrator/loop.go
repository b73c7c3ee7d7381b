// Package orchestrator owns the application state and serializes every
// command and asynchronous event through a single goroutine.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/domain/ports"
	"torrentplayer/internal/metrics"
	"torrentplayer/internal/services/session/cast"
	"torrentplayer/internal/services/session/playback"
	"torrentplayer/internal/services/session/subtitles"
	"torrentplayer/internal/services/torrent/aggregator"
)

var ErrStopped = errors.New("orchestrator stopped")

var tracer = otel.Tracer("torrentplayer/orchestrator")

// Publisher receives a private copy of the state after every message.
type Publisher interface {
	Publish(st *domain.AppState)
}

type Deps struct {
	Engine   ports.Engine
	Effects  ports.Effects
	Host     ports.MediaHost
	External ports.ExternalPlayer
	Targets  map[domain.OutputLocation]ports.RemoteTarget
	Loader   *subtitles.Loader
	Matcher  subtitles.LocaleMatcher
	Publish  Publisher
	Clock    playback.Clock
	Logger   *slog.Logger
	Playback playback.Config
}

type envelope struct {
	ctx   context.Context
	msg   Message
	reply chan error
}

type Loop struct {
	state      *domain.AppState
	inbox      chan envelope
	done       chan struct{}
	machine    *playback.Machine
	aggregator aggregator.Aggregator
	output     *cast.Redirector
	subs       *subtitles.Pipeline
	engine     ports.Engine
	effects    ports.Effects
	publisher  Publisher
	clock      playback.Clock
	logger     *slog.Logger
	snapshot   atomic.Pointer[domain.AppState]
	restored   []domain.TorrentKey
}

func New(deps Deps) *Loop {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Effects == nil {
		deps.Effects = nopEffects{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = playback.SystemClock()
	}
	l := &Loop{
		state:     domain.NewAppState(),
		inbox:     make(chan envelope, 256),
		done:      make(chan struct{}),
		engine:    deps.Engine,
		effects:   deps.Effects,
		publisher: deps.Publish,
		clock:     clock,
		logger:    logger,
	}
	l.output = cast.NewRedirector(deps.Host, deps.External, deps.Targets,
		func(res cast.Result) { l.Post(outputResult{res: res}) },
		logger.With(slog.String("component", "output")))
	l.subs = subtitles.NewPipeline(deps.Loader, deps.Matcher,
		func(res subtitles.Loaded) { l.Post(subtitlesLoaded{res: res}) },
		logger.With(slog.String("component", "subtitles")))
	l.machine = playback.NewMachine(deps.Engine, l.output, l.subs, deps.Effects, clock,
		func(ev playback.TimeoutFired) { l.Post(timeoutFired{ev: ev}) },
		logger.With(slog.String("component", "playback")), deps.Playback)
	l.aggregator = aggregator.Aggregator{
		Engine:  deps.Engine,
		Effects: deps.Effects,
		Logger:  logger.With(slog.String("component", "aggregator")),
		Now:     clock.Now,
	}
	l.snapshot.Store(l.state.Clone())
	return l
}

// Restore seeds the state with persisted summaries. It must be called
// before Run. Torrents that were not paused are restarted when Run begins.
func (l *Loop) Restore(summaries []domain.TorrentSummary) {
	for i := len(summaries) - 1; i >= 0; i-- {
		s := summaries[i]
		if l.state.Summary(string(s.Key)) != nil {
			continue
		}
		s.PlayStatus = domain.PlayStatusNone
		s.Progress = nil
		if s.Status != domain.TorrentPaused {
			s.Status = domain.TorrentNew
			l.restored = append(l.restored, s.Key)
		}
		l.state.AddSummary(&s)
	}
	l.snapshot.Store(l.state.Clone())
}

// EngineSink returns the callback the engine uses to deliver events.
func (l *Loop) EngineSink() ports.EventSink {
	return func(ev domain.EngineEvent) { l.Post(engineEvent{ev: ev}) }
}

// Snapshot returns the most recently published state. Callers must not
// modify it.
func (l *Loop) Snapshot() *domain.AppState {
	return l.snapshot.Load()
}

// Outputs lists the output locations that can be engaged.
func (l *Loop) Outputs() []domain.OutputLocation {
	return l.output.Available()
}

// Send delivers a command and waits for it to be processed.
func (l *Loop) Send(ctx context.Context, msg Message) error {
	reply := make(chan error, 1)
	select {
	case l.inbox <- envelope{ctx: ctx, msg: msg, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// Post enqueues a message without waiting for it to be processed.
func (l *Loop) Post(msg Message) {
	select {
	case l.inbox <- envelope{msg: msg}:
	case <-l.done:
	}
}

// Run processes messages until ctx is cancelled, then closes any open
// session.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	for _, key := range l.restored {
		if s := l.state.Summary(string(key)); s != nil {
			if err := l.engine.StartSession(ctx, *s); err != nil {
				l.report(fmt.Errorf("%w: restore %s: %v", domain.ErrEngine, key, err), false)
			}
		}
	}
	l.restored = nil
	l.publish()

	for {
		select {
		case <-ctx.Done():
			if err := l.machine.Close(context.Background(), l.state); err != nil {
				l.logger.Warn("close on shutdown failed", slog.String("error", err.Error()))
			}
			l.publish()
			return nil
		case env := <-l.inbox:
			err := l.traced(ctx, env)
			if err != nil {
				l.report(err, env.reply != nil)
			}
			l.publish()
			if env.reply != nil {
				env.reply <- err
			}
		}
	}
}

// traced handles env inside a span parented on the sender's request, so
// API traces show the command that ran on the loop.
func (l *Loop) traced(ctx context.Context, env envelope) error {
	if env.ctx == nil {
		return l.handle(ctx, env.msg)
	}
	_, span := tracer.Start(env.ctx, fmt.Sprintf("%T", env.msg))
	defer span.End()
	err := l.handle(ctx, env.msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
	}
	return err
}

func (l *Loop) handle(ctx context.Context, msg Message) error {
	st := l.state
	switch m := msg.(type) {
	case AddTorrent:
		return l.addTorrent(ctx, m)
	case ToggleTorrent:
		return l.aggregator.Toggle(ctx, st, m.Key)
	case RemoveTorrent:
		return l.removeTorrent(ctx, m.Key)
	case OpenPlayer:
		return l.machine.Open(ctx, st, m.Key, m.FileIndex)
	case ClosePlayer:
		return l.machine.Close(ctx, st)
	case PlayPause:
		return l.machine.PlayPause(st)
	case Play:
		return l.machine.Play(st)
	case Pause:
		return l.machine.Pause(st)
	case Seek:
		return l.machine.Seek(st, m.Seconds)
	case Skip:
		return l.machine.Skip(st, m.Delta)
	case SetVolume:
		return l.machine.SetVolume(st, m.Volume)
	case ChangeVolume:
		return l.machine.ChangeVolume(st, m.Delta)
	case ChangeRate:
		return l.machine.ChangeRate(st, m.Direction)
	case AddSubtitles:
		return l.machine.AddSubtitles(ctx, st, m.Paths)
	case SelectSubtitle:
		return l.machine.SelectSubtitle(st, m.Index)
	case ToggleSubtitlesMenu:
		return l.machine.ToggleSubtitlesMenu(st)
	case SetOutput:
		return l.machine.SetOutput(st, m.Location)
	case ReportMediaEvent:
		return l.machine.OnMediaEvent(st, m.Event)
	case WindowFocus:
		st.WindowFocused = m.Focused
		if m.Focused {
			st.Dock.Badge = 0
		}
		return nil
	case ClearErrors:
		st.Errors = nil
		return nil
	case engineEvent:
		return l.onEngineEvent(ctx, m.ev)
	case timeoutFired:
		return l.machine.OnTimeout(st, m.ev)
	case subtitlesLoaded:
		return l.onSubtitlesLoaded(m.res)
	case outputResult:
		return l.machine.OnOutputResult(ctx, st, m.res)
	default:
		return fmt.Errorf("%w: unknown message %T", domain.ErrInvalidCommand, msg)
	}
}

func (l *Loop) onEngineEvent(ctx context.Context, ev domain.EngineEvent) error {
	switch ev := ev.(type) {
	case domain.ServerReadyEvent:
		metrics.EngineEventsTotal.WithLabelValues(domain.EventName(ev)).Inc()
		return l.machine.OnServerReady(ctx, l.state, ev.Info)
	case domain.MetadataEvent:
		err := l.aggregator.Apply(ctx, l.state, ev)
		return errors.Join(err, l.machine.OnEngineReady(ctx, l.state, ev.Key))
	default:
		return l.aggregator.Apply(ctx, l.state, ev)
	}
}

func (l *Loop) onSubtitlesLoaded(res subtitles.Loaded) error {
	before := len(l.state.Playing.Subtitles.Tracks)
	if err := l.subs.Apply(&l.state.Playing, res); err != nil {
		metrics.SubtitleIngestFailures.Inc()
		return err
	}
	if added := len(l.state.Playing.Subtitles.Tracks) - before; added > 0 {
		metrics.SubtitleTracksAdded.Add(float64(added))
	}
	return nil
}

func (l *Loop) addTorrent(ctx context.Context, m AddTorrent) error {
	if m.Source.Empty() {
		return fmt.Errorf("%w: magnet or torrent file required", domain.ErrInvalidCommand)
	}
	key := m.Key
	if key == "" {
		key = domain.TorrentKey(uuid.NewString())
	}
	if l.state.Summary(string(key)) != nil {
		return fmt.Errorf("%w: torrent key %s already exists", domain.ErrInvalidCommand, key)
	}
	s := &domain.TorrentSummary{
		Key:         key,
		Source:      m.Source,
		DisplayName: m.DisplayName,
		Status:      domain.TorrentNew,
		CreatedAt:   l.clock.Now().UTC(),
	}
	l.state.AddSummary(s)
	l.effects.PlaySound(ports.SoundAdd)
	l.logger.Info("torrent added", slog.String("torrentKey", string(key)))

	if err := l.engine.StartSession(ctx, *s); err != nil {
		s.Status = domain.TorrentPaused
		return fmt.Errorf("%w: %v", domain.ErrEngine, err)
	}
	return nil
}

func (l *Loop) removeTorrent(ctx context.Context, key domain.TorrentKey) error {
	s := l.state.Summary(string(key))
	if s == nil {
		return fmt.Errorf("%w: torrent %s", domain.ErrNotFound, key)
	}
	if l.state.Playing.Key == s.Key {
		if err := l.machine.Close(ctx, l.state); err != nil {
			return err
		}
	}
	if s.InfoHash != "" && s.Status != domain.TorrentPaused {
		if err := l.engine.StopSession(ctx, s.InfoHash); err != nil {
			l.logger.Warn("stop session on remove failed", slog.String("error", err.Error()))
		}
	}
	l.state.RemoveSummary(s.Key)
	l.effects.PlaySound(ports.SoundDelete)
	l.logger.Info("torrent removed", slog.String("torrentKey", string(key)))
	return nil
}

// report queues err for the user. Invalid requests are only returned to
// the caller that sent them.
func (l *Loop) report(err error, hasCaller bool) {
	kind := domain.KindOf(err)
	if hasCaller && kind == domain.ErrorKindInvalid {
		return
	}
	l.state.ReportError(err, domain.UserMessage(err), l.clock.Now().UTC())
	metrics.ErrorsReported.WithLabelValues(string(kind)).Inc()
	l.logger.Warn("error reported",
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()))
}

func (l *Loop) publish() {
	snap := l.state.Clone()
	l.snapshot.Store(snap)
	if l.publisher != nil {
		l.publisher.Publish(l.state.Clone())
	}
}

// Wait blocks until asynchronous subtitle and output work has finished.
func (l *Loop) Wait() {
	l.subs.Wait()
	l.output.Wait()
}

type nopEffects struct{}

func (nopEffects) PlaySound(ports.Sound)                  {}
func (nopEffects) ShowNotification(string, string)        {}
func (nopEffects) LogTelemetry(string, map[string]string) {}
