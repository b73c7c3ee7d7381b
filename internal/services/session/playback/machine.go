// Package playback implements the playback session state machine: opening a
// file, waiting for the engine and its content server, the open timeout,
// transport commands, and closing.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/domain/ports"
	"torrentplayer/internal/metrics"
	"torrentplayer/internal/services/session/cast"
	"torrentplayer/internal/services/session/subtitles"
)

const DefaultTimeout = 10 * time.Second

// Output routes media commands to the session's current output.
type Output interface {
	Start(p *domain.PlayingState, mediaURL, title string, startAt float64)
	Engage(p *domain.PlayingState, loc domain.OutputLocation) error
	Stop(p *domain.PlayingState)
	Play(p *domain.PlayingState)
	Pause(p *domain.PlayingState)
	Seek(p *domain.PlayingState, seconds float64)
	SetVolume(p *domain.PlayingState, volume float64)
	SetRate(p *domain.PlayingState, rate float64)
	Apply(p *domain.PlayingState, res cast.Result) error
}

// Subtitles starts asynchronous subtitle ingestion for the session.
type Subtitles interface {
	Ingest(ctx context.Context, p *domain.PlayingState, paths []string, autoSelect bool) bool
}

// TimeoutFired is delivered when the open timeout of a session expires.
type TimeoutFired struct {
	Session uint64
}

type Config struct {
	Timeout time.Duration
	// OpenExternalByDefault sends new sessions to the external player.
	OpenExternalByDefault bool
}

// Machine drives AppState.Playing. It is not safe for concurrent use; all
// methods must be called from the goroutine that owns the state.
type Machine struct {
	engine    ports.Engine
	output    Output
	subtitles Subtitles
	effects   ports.Effects
	clock     Clock
	notify    func(TimeoutFired)
	logger    *slog.Logger
	cfg       Config

	session uint64
	timer   Timer
}

func NewMachine(
	engine ports.Engine,
	output Output,
	subs Subtitles,
	effects ports.Effects,
	clock Clock,
	notify func(TimeoutFired),
	logger *slog.Logger,
	cfg Config,
) *Machine {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Machine{
		engine:    engine,
		output:    output,
		subtitles: subs,
		effects:   effects,
		clock:     clock,
		notify:    notify,
		logger:    logger,
		cfg:       cfg,
	}
}

// Open starts a session for the torrent identified by key. fileIndex nil
// picks the default playable file. Opening the session that is already
// running is a no-op; a timed-out session is torn down first.
func (m *Machine) Open(ctx context.Context, st *domain.AppState, key domain.TorrentKey, fileIndex *int) error {
	summary := st.Summary(string(key))
	if summary == nil {
		return fmt.Errorf("%w: torrent %s", domain.ErrNotFound, key)
	}

	p := &st.Playing
	switch p.Phase {
	case domain.PhaseIdle:
	case domain.PhaseTimedOut:
		if err := m.Close(ctx, st); err != nil {
			return err
		}
	default:
		if p.Key == summary.Key && (fileIndex == nil || *fileIndex == p.FileIndex) {
			if p.Phase != domain.PhaseActive {
				summary.PlayStatus = domain.PlayStatusRequested
			}
			return nil
		}
		return fmt.Errorf("%w: cannot open %s while %s", domain.ErrInvalidTransition, key, p.Phase)
	}

	index, err := resolveFile(summary, fileIndex)
	if err != nil {
		return err
	}

	m.session++
	*p = domain.DefaultPlayingState()
	p.Session = m.session
	p.Key = summary.Key
	p.InfoHash = summary.InfoHash
	p.FileIndex = index
	p.Kind = domain.KindOfFile(summary.Files[index].Name)
	p.Volume = st.PreviousVolume
	m.transition(p, domain.PhaseRequested)

	summary.PlayStatus = domain.PlayStatusRequested
	m.effects.PlaySound(ports.SoundPlay)
	m.logger.Info("play requested",
		slog.String("torrentKey", string(summary.Key)),
		slog.Int("fileIndex", index),
		slog.String("type", string(p.Kind)),
		slog.Uint64("session", p.Session))

	// A new torrent has no metadata yet; its metadata event resumes the open.
	if summary.Status == domain.TorrentPaused || summary.Status == domain.TorrentNew || summary.InfoHash == "" {
		if summary.Status == domain.TorrentPaused {
			summary.Status = domain.TorrentNew
			if err := m.engine.StartSession(ctx, *summary); err != nil {
				summary.Status = domain.TorrentPaused
				m.abort(st)
				return fmt.Errorf("%w: resume: %v", domain.ErrEngine, err)
			}
		}
		m.transition(p, domain.PhaseWaitingForEngineReady)
		return nil
	}
	return m.requestServer(ctx, st, summary)
}

func resolveFile(summary *domain.TorrentSummary, fileIndex *int) (int, error) {
	if fileIndex != nil {
		f, ok := summary.File(*fileIndex)
		if !ok {
			return 0, fmt.Errorf("%w: file index %d", domain.ErrInvalidCommand, *fileIndex)
		}
		if !domain.IsPlayable(f.Name) {
			return 0, fmt.Errorf("%w: %s", domain.ErrUnplayable, f.Name)
		}
		return *fileIndex, nil
	}
	if idx := summary.DefaultPlayFileIndex; idx != nil && *idx >= 0 && *idx < len(summary.Files) {
		return *idx, nil
	}
	if idx := domain.PickFileToPlay(summary.Files); idx != nil {
		return *idx, nil
	}
	return 0, fmt.Errorf("%w: %s", domain.ErrUnplayable, summary.Title())
}

// OnEngineReady continues a session that was waiting for its torrent to be
// resumed or identified.
func (m *Machine) OnEngineReady(ctx context.Context, st *domain.AppState, key domain.TorrentKey) error {
	p := &st.Playing
	if p.Phase != domain.PhaseWaitingForEngineReady || p.Key != key {
		return nil
	}
	summary := st.PlayingSummary()
	if summary == nil || summary.InfoHash == "" {
		return nil
	}
	p.InfoHash = summary.InfoHash
	return m.requestServer(ctx, st, summary)
}

func (m *Machine) requestServer(ctx context.Context, st *domain.AppState, summary *domain.TorrentSummary) error {
	p := &st.Playing
	m.transition(p, domain.PhaseWaitingForServer)
	m.armTimeout(p.Session)
	if err := m.engine.StartContentServer(ctx, p.InfoHash, p.FileIndex); err != nil {
		m.abort(st)
		return fmt.Errorf("%w: start server: %v", domain.ErrEngine, err)
	}
	return nil
}

func (m *Machine) armTimeout(session uint64) {
	m.cancelTimer()
	m.timer = m.clock.AfterFunc(m.cfg.Timeout, func() {
		m.notify(TimeoutFired{Session: session})
	})
}

func (m *Machine) cancelTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// OnTimeout marks a session whose server never became ready. The session
// stays TimedOut until the late server-ready event or a close.
func (m *Machine) OnTimeout(st *domain.AppState, ev TimeoutFired) error {
	p := &st.Playing
	if ev.Session != p.Session || p.Phase != domain.PhaseWaitingForServer {
		return nil
	}
	m.timer = nil
	m.transition(p, domain.PhaseTimedOut)
	if summary := st.PlayingSummary(); summary != nil {
		summary.PlayStatus = domain.PlayStatusTimeout
	}
	m.effects.PlaySound(ports.SoundError)
	m.effects.LogTelemetry("play_attempt", map[string]string{"result": "timeout"})
	metrics.PlayAttemptsTotal.WithLabelValues("timeout").Inc()
	m.logger.Warn("playback timed out",
		slog.String("torrentKey", string(p.Key)),
		slog.Uint64("session", p.Session),
		slog.Duration("timeout", m.cfg.Timeout))
	return fmt.Errorf("%w after %s", domain.ErrPlaybackTimeout, m.cfg.Timeout)
}

// OnServerReady activates the waiting session. A confirmation that arrives
// after the timeout, or when nothing is waiting, tears the server down.
func (m *Machine) OnServerReady(ctx context.Context, st *domain.AppState, info domain.ServerInfo) error {
	p := &st.Playing
	switch {
	case p.Phase == domain.PhaseTimedOut && info.InfoHash == p.InfoHash:
		m.logger.Info("discarding server ready after timeout",
			slog.String("infoHash", string(info.InfoHash)),
			slog.Uint64("session", p.Session))
		m.stopServer(ctx, st)
		if summary := st.PlayingSummary(); summary != nil {
			summary.PlayStatus = domain.PlayStatusNone
		}
		m.reset(st)
		return nil
	case p.Phase == domain.PhaseIdle:
		m.logger.Debug("stopping unrequested content server", slog.String("infoHash", string(info.InfoHash)))
		m.stopServer(ctx, st)
		return nil
	case p.Phase != domain.PhaseWaitingForServer || info.InfoHash != p.InfoHash:
		m.logger.Debug("ignoring server ready",
			slog.String("infoHash", string(info.InfoHash)),
			slog.String("phase", string(p.Phase)))
		return nil
	}

	m.cancelTimer()
	summary := st.PlayingSummary()
	if summary == nil {
		m.stopServer(ctx, st)
		m.reset(st)
		return fmt.Errorf("%w: torrent %s", domain.ErrNotFound, p.Key)
	}
	summary.PlayStatus = domain.PlayStatusNone
	st.Server = &info

	m.transition(p, domain.PhaseActive)
	if p.Location == domain.OutputLocal && m.cfg.OpenExternalByDefault {
		p.Location = domain.OutputExternal
	}
	file := &summary.Files[p.FileIndex]
	p.JumpToTime = resumePoint(*file)
	p.IsPaused = false

	start := 0.0
	if p.JumpToTime != nil {
		start = *p.JumpToTime
		p.CurrentTime = start
	}
	m.output.Start(p, info.URL, mediaTitle(summary, file), start)

	switch p.Kind {
	case domain.MediaAudio:
		if file.AudioInfo == nil {
			if err := m.engine.GetAudioMetadata(ctx, p.InfoHash, p.FileIndex); err != nil {
				m.logger.Warn("audio metadata request failed", slog.String("error", err.Error()))
			}
		}
	case domain.MediaVideo:
		m.discoverSubtitles(ctx, st, summary, file.SelectedSubtitle)
	}

	m.logger.Info("playback started",
		slog.String("torrentKey", string(p.Key)),
		slog.String("location", string(p.Location)),
		slog.Float64("startAt", start))
	return nil
}

func (m *Machine) discoverSubtitles(ctx context.Context, st *domain.AppState, summary *domain.TorrentSummary, selected string) {
	var found []string
	for _, path := range subtitles.Candidates(summary) {
		if path != selected {
			found = append(found, path)
		}
	}
	m.subtitles.Ingest(ctx, &st.Playing, found, false)
	if selected != "" {
		m.subtitles.Ingest(ctx, &st.Playing, []string{selected}, true)
	}
}

// resumePoint returns the saved position when less than 90% of the file
// has been watched and more than 10 seconds remain.
func resumePoint(f domain.FileSummary) *float64 {
	if f.CurrentTime <= 0 || f.Duration <= 0 {
		return nil
	}
	fraction := f.CurrentTime / f.Duration
	remaining := f.Duration - f.CurrentTime
	if fraction < 0.9 && remaining > 10 {
		t := f.CurrentTime
		return &t
	}
	return nil
}

func mediaTitle(summary *domain.TorrentSummary, file *domain.FileSummary) string {
	if file.AudioInfo != nil && file.AudioInfo.Title != "" {
		return file.AudioInfo.Title
	}
	if len(summary.Files) == 1 {
		return summary.Title()
	}
	return file.Name
}

// Close ends the current session from any phase. Closing while idle is a
// no-op.
func (m *Machine) Close(ctx context.Context, st *domain.AppState) error {
	p := &st.Playing
	if p.Phase == domain.PhaseIdle || p.Phase == domain.PhaseClosing {
		return nil
	}
	from := p.Phase
	m.transition(p, domain.PhaseClosing)
	m.cancelTimer()

	if from == domain.PhaseActive {
		m.output.Stop(p)
	}
	st.PreviousVolume = p.Volume

	if from != domain.PhaseTimedOut {
		result := "abandoned"
		switch p.Result {
		case domain.PlayResultSuccess:
			result = "success"
		case domain.PlayResultError:
			result = "error"
		}
		m.effects.LogTelemetry("play_attempt", map[string]string{"result": result})
		metrics.PlayAttemptsTotal.WithLabelValues(result).Inc()
	}

	if summary := st.PlayingSummary(); summary != nil {
		summary.PlayStatus = domain.PlayStatusNone
		if f, ok := summary.File(p.FileIndex); ok && from == domain.PhaseActive && p.CurrentTime > 0 {
			f.CurrentTime = p.CurrentTime
			if p.Duration > 0 {
				f.Duration = p.Duration
			}
		}
	}

	if from == domain.PhaseWaitingForServer || from == domain.PhaseActive || from == domain.PhaseTimedOut {
		m.stopServer(ctx, st)
	}
	m.logger.Info("playback closed",
		slog.String("torrentKey", string(p.Key)),
		slog.String("from", string(from)),
		slog.Uint64("session", p.Session))
	m.reset(st)
	return nil
}

func (m *Machine) stopServer(ctx context.Context, st *domain.AppState) {
	st.Server = nil
	if err := m.engine.StopContentServer(ctx); err != nil {
		m.logger.Warn("stop content server failed", slog.String("error", err.Error()))
	}
}

// abort returns a session that failed before reaching the server to Idle.
func (m *Machine) abort(st *domain.AppState) {
	m.cancelTimer()
	if summary := st.PlayingSummary(); summary != nil {
		summary.PlayStatus = domain.PlayStatusNone
	}
	m.reset(st)
}

func (m *Machine) reset(st *domain.AppState) {
	from := st.Playing.Phase
	st.Playing = domain.DefaultPlayingState()
	st.Playing.Volume = st.PreviousVolume
	if from != domain.PhaseIdle {
		metrics.PlaybackTransitionsTotal.WithLabelValues(string(from), string(domain.PhaseIdle)).Inc()
	}
}

func (m *Machine) transition(p *domain.PlayingState, to domain.PlaybackPhase) {
	from := p.Phase
	p.Phase = to
	metrics.PlaybackTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	m.logger.Debug("playback transition",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.Uint64("session", p.Session))
}
