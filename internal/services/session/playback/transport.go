package playback

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/services/session/cast"
	"torrentplayer/internal/services/session/subtitles"
)

func requireActive(p *domain.PlayingState) error {
	if p.Phase != domain.PhaseActive {
		return fmt.Errorf("%w: no active playback (%s)", domain.ErrInvalidTransition, p.Phase)
	}
	return nil
}

func (m *Machine) PlayPause(st *domain.AppState) error {
	if st.Playing.IsPaused {
		return m.Play(st)
	}
	return m.Pause(st)
}

func (m *Machine) Play(st *domain.AppState) error {
	if err := requireActive(&st.Playing); err != nil {
		return err
	}
	m.output.Play(&st.Playing)
	return nil
}

func (m *Machine) Pause(st *domain.AppState) error {
	if err := requireActive(&st.Playing); err != nil {
		return err
	}
	m.output.Pause(&st.Playing)
	return nil
}

// Seek moves to seconds, clamped to the known duration.
func (m *Machine) Seek(st *domain.AppState, seconds float64) error {
	p := &st.Playing
	if err := requireActive(p); err != nil {
		return err
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("%w: seek target %v", domain.ErrInvalidCommand, seconds)
	}
	seconds = math.Max(0, seconds)
	if p.Duration > 0 {
		seconds = math.Min(seconds, p.Duration)
	}
	m.output.Seek(p, seconds)
	return nil
}

func (m *Machine) Skip(st *domain.AppState, delta float64) error {
	return m.Seek(st, st.Playing.CurrentTime+delta)
}

// SetVolume sets the volume, clamped to [0, 1].
func (m *Machine) SetVolume(st *domain.AppState, volume float64) error {
	p := &st.Playing
	if err := requireActive(p); err != nil {
		return err
	}
	if math.IsNaN(volume) {
		return fmt.Errorf("%w: volume %v", domain.ErrInvalidCommand, volume)
	}
	m.output.SetVolume(p, math.Min(1, math.Max(0, volume)))
	return nil
}

func (m *Machine) ChangeVolume(st *domain.AppState, delta float64) error {
	return m.SetVolume(st, st.Playing.Volume+delta)
}

// ChangeRate steps the playback rate up (direction > 0) or down.
func (m *Machine) ChangeRate(st *domain.AppState, direction int) error {
	p := &st.Playing
	if err := requireActive(p); err != nil {
		return err
	}
	next := NextRate(p.PlaybackRate, direction)
	if next == p.PlaybackRate {
		return nil
	}
	m.output.SetRate(p, next)
	return nil
}

// SetOutput switches where the session renders. Before the session is
// active it only records the choice.
func (m *Machine) SetOutput(st *domain.AppState, loc domain.OutputLocation) error {
	p := &st.Playing
	if p.Phase == domain.PhaseIdle || p.Phase == domain.PhaseClosing {
		return fmt.Errorf("%w: no session to redirect", domain.ErrInvalidTransition)
	}
	return m.output.Engage(p, loc)
}

// OnOutputResult applies an output acknowledgement. The external player
// exiting ends the session it was opened for.
func (m *Machine) OnOutputResult(ctx context.Context, st *domain.AppState, res cast.Result) error {
	p := &st.Playing
	if res.Op == cast.OpExternalExit {
		if res.Session == p.Session && p.Location == domain.OutputExternal && p.Phase == domain.PhaseActive {
			m.logger.Info("external player exited", slog.Uint64("session", p.Session))
			return m.Close(ctx, st)
		}
		return nil
	}
	return m.output.Apply(p, res)
}

type MediaEventKind string

const (
	MediaReady      MediaEventKind = "ready"
	MediaError      MediaEventKind = "error"
	MediaTimeUpdate MediaEventKind = "timeupdate"
	MediaStalled    MediaEventKind = "stalled"
	MediaPlaying    MediaEventKind = "playing"
	MediaPaused     MediaEventKind = "paused"
	MediaEnded      MediaEventKind = "ended"
	MediaMouseMove  MediaEventKind = "mousemove"
)

// MediaEvent is reported by the local media host.
type MediaEvent struct {
	Kind        MediaEventKind `json:"kind"`
	CurrentTime float64        `json:"currentTime,omitempty"`
	Duration    float64        `json:"duration,omitempty"`
	Message     string         `json:"message,omitempty"`
}

func (m *Machine) OnMediaEvent(st *domain.AppState, ev MediaEvent) error {
	p := &st.Playing
	if p.Phase != domain.PhaseActive {
		return nil
	}
	now := m.clock.Now()
	switch ev.Kind {
	case MediaReady:
		p.IsReady = true
		if p.Result == domain.PlayResultNone {
			p.Result = domain.PlayResultSuccess
		}
		if ev.Duration > 0 {
			p.Duration = ev.Duration
		}
	case MediaError:
		p.Result = domain.PlayResultError
		msg := ev.Message
		if msg == "" {
			msg = "media could not be played"
		}
		return fmt.Errorf("%w: %s", domain.ErrPlaybackFailed, msg)
	case MediaTimeUpdate:
		p.CurrentTime = ev.CurrentTime
		if ev.Duration > 0 {
			p.Duration = ev.Duration
		}
		p.LastTimeUpdate = now
		p.IsStalled = false
		if summary := st.PlayingSummary(); summary != nil {
			if f, ok := summary.File(p.FileIndex); ok {
				f.CurrentTime = p.CurrentTime
				f.Duration = p.Duration
			}
		}
	case MediaStalled:
		p.IsStalled = true
	case MediaPlaying:
		p.IsPaused = false
		p.IsStalled = false
	case MediaPaused, MediaEnded:
		p.IsPaused = true
	case MediaMouseMove:
		p.MouseStationarySince = now
	default:
		return fmt.Errorf("%w: media event %q", domain.ErrInvalidCommand, ev.Kind)
	}
	return nil
}

// AddSubtitles ingests user-chosen subtitle files and selects the best one.
func (m *Machine) AddSubtitles(ctx context.Context, st *domain.AppState, paths []string) error {
	p := &st.Playing
	if p.Phase == domain.PhaseIdle || p.Phase == domain.PhaseClosing {
		return fmt.Errorf("%w: no session for subtitles", domain.ErrInvalidTransition)
	}
	if p.Kind != domain.MediaVideo {
		return fmt.Errorf("%w: subtitles need a video session", domain.ErrInvalidCommand)
	}
	for _, path := range paths {
		if !domain.IsSubtitle(path) {
			return fmt.Errorf("%w: %s is not a subtitle file", domain.ErrInvalidCommand, path)
		}
	}
	m.subtitles.Ingest(ctx, p, paths, true)
	return nil
}

// SelectSubtitle chooses a track, or turns subtitles off with -1, and
// remembers the choice on the file.
func (m *Machine) SelectSubtitle(st *domain.AppState, index int) error {
	p := &st.Playing
	if p.Phase == domain.PhaseIdle {
		return fmt.Errorf("%w: no session", domain.ErrInvalidTransition)
	}
	if err := subtitles.Select(&p.Subtitles, index); err != nil {
		return err
	}
	p.Subtitles.ShowMenu = false
	if summary := st.PlayingSummary(); summary != nil {
		if f, ok := summary.File(p.FileIndex); ok {
			f.SelectedSubtitle = ""
			if track, ok := p.Subtitles.Selected(); ok {
				f.SelectedSubtitle = track.FilePath
			}
		}
	}
	return nil
}

func (m *Machine) ToggleSubtitlesMenu(st *domain.AppState) error {
	p := &st.Playing
	if p.Phase == domain.PhaseIdle {
		return fmt.Errorf("%w: no session", domain.ErrInvalidTransition)
	}
	p.Subtitles.ShowMenu = !p.Subtitles.ShowMenu
	return nil
}
