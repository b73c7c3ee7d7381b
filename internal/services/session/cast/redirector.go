// Package cast routes media commands to the active output: the local host,
// a remote cast receiver, or an external player process.
package cast

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/domain/ports"
)

type Op string

const (
	OpLoad         Op = "load"
	OpPlay         Op = "play"
	OpPause        Op = "pause"
	OpSeek         Op = "seek"
	OpVolume       Op = "volume"
	OpRate         Op = "rate"
	OpStop         Op = "stop"
	OpExternalExit Op = "external_exit"
)

// Result acknowledges an asynchronous output command.
type Result struct {
	Session  uint64
	Location domain.OutputLocation
	Op       Op
	Value    float64
	Accepted bool
	Err      error
}

type Redirector struct {
	host     ports.MediaHost
	external ports.ExternalPlayer
	targets  map[domain.OutputLocation]ports.RemoteTarget
	notify   func(Result)
	logger   *slog.Logger
	timeout  time.Duration
	wg       sync.WaitGroup

	// Media of the running session, reused when the output changes.
	mediaURL string
	title    string
}

func NewRedirector(
	host ports.MediaHost,
	external ports.ExternalPlayer,
	targets map[domain.OutputLocation]ports.RemoteTarget,
	notify func(Result),
	logger *slog.Logger,
) *Redirector {
	if logger == nil {
		logger = slog.Default()
	}
	if targets == nil {
		targets = map[domain.OutputLocation]ports.RemoteTarget{}
	}
	return &Redirector{
		host:     host,
		external: external,
		targets:  targets,
		notify:   notify,
		logger:   logger,
		timeout:  5 * time.Second,
	}
}

// Available lists the outputs that can be engaged.
func (r *Redirector) Available() []domain.OutputLocation {
	out := []domain.OutputLocation{domain.OutputLocal}
	if r.external != nil {
		out = append(out, domain.OutputExternal)
	}
	remote := make([]domain.OutputLocation, 0, len(r.targets))
	for loc := range r.targets {
		remote = append(remote, loc)
	}
	sort.Slice(remote, func(i, j int) bool { return remote[i] < remote[j] })
	return append(out, remote...)
}

// Start begins playback on the session's current output.
func (r *Redirector) Start(p *domain.PlayingState, mediaURL, title string, startAt float64) {
	r.mediaURL, r.title = mediaURL, title
	switch {
	case p.Location.IsRemote():
		target := r.targets[p.Location]
		r.remote(p, OpLoad, startAt, func(ctx context.Context) error {
			return target.Load(ctx, mediaURL, title, startAt)
		})
	case p.Location == domain.OutputExternal:
		r.openExternal(p, mediaURL, title)
	default:
		r.host.Accommodate(title, p.Kind)
		r.host.Load(mediaURL, p.Kind, startAt)
		if !p.IsPaused {
			r.host.Play()
		}
	}
}

// Engage moves an active session to another output.
func (r *Redirector) Engage(p *domain.PlayingState, loc domain.OutputLocation) error {
	if !loc.Valid() {
		return fmt.Errorf("%w: unknown output %q", domain.ErrInvalidCommand, loc)
	}
	if loc == p.Location {
		return nil
	}
	if loc.IsRemote() && r.targets[loc] == nil {
		return fmt.Errorf("%w: no %s receiver configured", domain.ErrOutputUnavailable, loc)
	}
	if loc == domain.OutputExternal && r.external == nil {
		return fmt.Errorf("%w: no external player configured", domain.ErrOutputUnavailable)
	}

	if p.Phase == domain.PhaseActive {
		r.release(p)
	}
	r.logger.Info("output engaged",
		slog.String("from", string(p.Location)),
		slog.String("to", string(loc)))
	p.Location = loc
	if p.Phase == domain.PhaseActive {
		r.Start(p, r.mediaURL, r.title, p.CurrentTime)
	}
	return nil
}

// Stop releases whatever output the session holds and restores the local
// window.
func (r *Redirector) Stop(p *domain.PlayingState) {
	r.release(p)
	r.host.RestoreWindow()
	r.mediaURL, r.title = "", ""
}

func (r *Redirector) release(p *domain.PlayingState) {
	switch {
	case p.Location.IsRemote():
		target := r.targets[p.Location]
		if target == nil {
			return
		}
		session, loc := p.Session, p.Location
		r.async(func(ctx context.Context) {
			if err := target.Stop(ctx); err != nil {
				r.logger.Warn("cast stop failed",
					slog.String("location", string(loc)),
					slog.Uint64("session", session),
					slog.String("error", err.Error()))
			}
		})
	case p.Location == domain.OutputExternal:
		if r.external == nil {
			return
		}
		if err := r.external.Quit(); err != nil {
			r.logger.Warn("external player quit failed", slog.String("error", err.Error()))
		}
	default:
		r.host.Unload()
	}
}

func (r *Redirector) Play(p *domain.PlayingState) {
	switch {
	case p.Location.IsRemote():
		target := r.targets[p.Location]
		r.remote(p, OpPlay, 0, target.Play)
	case p.Location == domain.OutputExternal:
		p.IsPaused = false
	default:
		p.IsPaused = false
		r.host.Play()
	}
}

func (r *Redirector) Pause(p *domain.PlayingState) {
	switch {
	case p.Location.IsRemote():
		target := r.targets[p.Location]
		r.remote(p, OpPause, 0, target.Pause)
	case p.Location == domain.OutputExternal:
		p.IsPaused = true
	default:
		p.IsPaused = true
		r.host.Pause()
	}
}

func (r *Redirector) Seek(p *domain.PlayingState, seconds float64) {
	switch {
	case p.Location.IsRemote():
		target := r.targets[p.Location]
		r.remote(p, OpSeek, seconds, func(ctx context.Context) error {
			return target.Seek(ctx, seconds)
		})
	case p.Location == domain.OutputExternal:
		p.CurrentTime = seconds
	default:
		p.CurrentTime = seconds
		r.host.Seek(seconds)
	}
}

func (r *Redirector) SetVolume(p *domain.PlayingState, volume float64) {
	switch {
	case p.Location.IsRemote():
		target := r.targets[p.Location]
		r.remote(p, OpVolume, volume, func(ctx context.Context) error {
			return target.SetVolume(ctx, volume)
		})
	case p.Location == domain.OutputExternal:
		p.Volume = volume
	default:
		p.Volume = volume
		r.host.SetVolume(volume)
	}
}

// SetRate applies the rate immediately. A remote receiver that rejects it
// resets the session to normal speed when the result comes back.
func (r *Redirector) SetRate(p *domain.PlayingState, rate float64) {
	p.PlaybackRate = rate
	switch {
	case p.Location.IsRemote():
		target := r.targets[p.Location]
		session, loc := p.Session, p.Location
		r.async(func(ctx context.Context) {
			accepted := target.SetRate(ctx, rate)
			r.notify(Result{Session: session, Location: loc, Op: OpRate, Value: rate, Accepted: accepted})
		})
	case p.Location == domain.OutputExternal:
	default:
		r.host.SetRate(rate)
	}
}

// Apply folds an acknowledgement into the session. Results for another
// session or output are ignored.
func (r *Redirector) Apply(p *domain.PlayingState, res Result) error {
	if res.Session != p.Session || res.Location != p.Location {
		return nil
	}
	if res.Err != nil {
		r.logger.Warn("output command failed",
			slog.String("location", string(res.Location)),
			slog.String("op", string(res.Op)),
			slog.String("error", res.Err.Error()))
		if res.Op == OpLoad {
			p.Location = domain.OutputLocal
			r.Start(p, r.mediaURL, r.title, p.CurrentTime)
		}
		return fmt.Errorf("%w: %s %s: %v", domain.ErrOutputUnavailable, res.Location, res.Op, res.Err)
	}
	switch res.Op {
	case OpLoad:
		p.IsPaused = false
	case OpPlay:
		p.IsPaused = false
	case OpPause:
		p.IsPaused = true
	case OpSeek:
		p.CurrentTime = res.Value
	case OpVolume:
		p.Volume = res.Value
	case OpRate:
		if !res.Accepted {
			p.PlaybackRate = 1
		}
	}
	return nil
}

func (r *Redirector) remote(p *domain.PlayingState, op Op, value float64, call func(ctx context.Context) error) {
	session, loc := p.Session, p.Location
	r.async(func(ctx context.Context) {
		err := call(ctx)
		r.notify(Result{Session: session, Location: loc, Op: op, Value: value, Accepted: err == nil, Err: err})
	})
}

func (r *Redirector) openExternal(p *domain.PlayingState, mediaURL, title string) {
	session := p.Session
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		exited, err := r.external.Open(context.Background(), mediaURL, title)
		r.notify(Result{Session: session, Location: domain.OutputExternal, Op: OpLoad, Err: err})
		if err != nil {
			return
		}
		exitErr := <-exited
		r.notify(Result{Session: session, Location: domain.OutputExternal, Op: OpExternalExit, Err: exitErr})
	}()
}

func (r *Redirector) async(fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until in-flight output commands have reported.
func (r *Redirector) Wait() {
	r.wg.Wait()
}
