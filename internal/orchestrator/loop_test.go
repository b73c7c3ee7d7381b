package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/domain/ports"
	"torrentplayer/internal/services/session/playback"
	"torrentplayer/internal/services/session/subtitles"
)

type fakeEngine struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeEngine) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeEngine) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeEngine) StartSession(_ context.Context, s domain.TorrentSummary) error {
	f.record("start-session:" + string(s.Key))
	return nil
}
func (f *fakeEngine) StopSession(_ context.Context, h domain.InfoHash) error {
	f.record("stop-session:" + string(h))
	return nil
}
func (f *fakeEngine) StartContentServer(_ context.Context, h domain.InfoHash, _ int) error {
	f.record("start-server:" + string(h))
	return nil
}
func (f *fakeEngine) StopContentServer(context.Context) error {
	f.record("stop-server")
	return nil
}
func (f *fakeEngine) SaveDescriptor(context.Context, domain.TorrentKey) error { return nil }
func (f *fakeEngine) GeneratePoster(context.Context, domain.TorrentKey) error { return nil }
func (f *fakeEngine) GetAudioMetadata(context.Context, domain.InfoHash, int) error {
	return nil
}

type fakeHost struct {
	mu     sync.Mutex
	loaded []string
}

func (h *fakeHost) Load(url string, _ domain.MediaKind, _ float64) {
	h.mu.Lock()
	h.loaded = append(h.loaded, url)
	h.mu.Unlock()
}
func (h *fakeHost) Play()                                {}
func (h *fakeHost) Pause()                               {}
func (h *fakeHost) Seek(float64)                         {}
func (h *fakeHost) SetVolume(float64)                    {}
func (h *fakeHost) SetRate(float64)                      {}
func (h *fakeHost) Unload()                              {}
func (h *fakeHost) Accommodate(string, domain.MediaKind) {}
func (h *fakeHost) RestoreWindow()                       {}

type fakeEffects struct {
	mu     sync.Mutex
	sounds []ports.Sound
}

func (f *fakeEffects) PlaySound(s ports.Sound) {
	f.mu.Lock()
	f.sounds = append(f.sounds, s)
	f.mu.Unlock()
}
func (f *fakeEffects) ShowNotification(string, string)        {}
func (f *fakeEffects) LogTelemetry(string, map[string]string) {}

type fakeTimer struct{}

func (fakeTimer) Stop() bool { return true }

type fakeClock struct {
	mu      sync.Mutex
	pending func()
}

func (c *fakeClock) Now() time.Time { return time.Unix(1700000000, 0) }
func (c *fakeClock) AfterFunc(_ time.Duration, f func()) playback.Timer {
	c.mu.Lock()
	c.pending = f
	c.mu.Unlock()
	return fakeTimer{}
}
func (c *fakeClock) fire() {
	c.mu.Lock()
	f := c.pending
	c.mu.Unlock()
	if f != nil {
		f()
	}
}

type harness struct {
	t      *testing.T
	loop   *Loop
	engine *fakeEngine
	host   *fakeHost
	clock  *fakeClock
	cancel context.CancelFunc
	done   chan error
}

func newHarness(t *testing.T, restore ...domain.TorrentSummary) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		engine: &fakeEngine{},
		host:   &fakeHost{},
		clock:  &fakeClock{},
		done:   make(chan error, 1),
	}
	h.loop = New(Deps{
		Engine:  h.engine,
		Effects: &fakeEffects{},
		Host:    h.host,
		Loader:  &subtitles.Loader{},
		Clock:   h.clock,
	})
	if len(restore) > 0 {
		h.loop.Restore(restore)
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.loop.Run(ctx) }()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		h.t.Fatalf("loop did not stop")
	}
}

func (h *harness) send(msg Message) error {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return h.loop.Send(ctx, msg)
}

// flush waits until everything posted so far has been processed.
func (h *harness) flush() {
	h.t.Helper()
	if err := h.send(WindowFocus{Focused: false}); err != nil {
		h.t.Fatalf("flush: %v", err)
	}
}

func (h *harness) addReady(key domain.TorrentKey, hash domain.InfoHash) {
	h.t.Helper()
	if err := h.send(AddTorrent{Key: key, Source: domain.TorrentSource{Magnet: "magnet:?xt=urn:btih:" + string(hash)}}); err != nil {
		h.t.Fatalf("AddTorrent: %v", err)
	}
	sink := h.loop.EngineSink()
	sink(domain.IdentityEvent{Key: key, InfoHash: hash})
	sink(domain.MetadataEvent{Key: key, Info: domain.TorrentInfo{
		InfoHash: hash,
		Name:     "Movie",
		Path:     "/downloads",
		Files: []domain.FileSummary{
			{Name: "movie.mkv", Path: "Movie/movie.mkv", Length: 1000},
			{Name: "readme.txt", Path: "Movie/readme.txt", Length: 10},
		},
	}})
	h.flush()
}

func TestAddTorrentStartsEngineSession(t *testing.T) {
	h := newHarness(t)
	h.addReady("k1", "h1")

	snap := h.loop.Snapshot()
	s := snap.Summary("k1")
	if s == nil {
		t.Fatalf("summary missing from snapshot")
	}
	if s.InfoHash != "h1" || s.Status != domain.TorrentDownloading {
		t.Fatalf("summary = %+v", s)
	}
	if s.DefaultPlayFileIndex == nil || *s.DefaultPlayFileIndex != 0 {
		t.Fatalf("default play file = %v", s.DefaultPlayFileIndex)
	}
	if h.engine.count("start-session:k1") != 1 {
		t.Fatalf("calls = %v", h.engine.calls)
	}
}

func TestAddTorrentRequiresSource(t *testing.T) {
	h := newHarness(t)
	err := h.send(AddTorrent{Key: "k1"})
	if !errors.Is(err, domain.ErrInvalidCommand) {
		t.Fatalf("err = %v", err)
	}
	if len(h.loop.Snapshot().Errors) != 0 {
		t.Fatalf("invalid command was queued: %+v", h.loop.Snapshot().Errors)
	}
}

func TestOpenPlayerReachesActive(t *testing.T) {
	h := newHarness(t)
	h.addReady("k1", "h1")

	if err := h.send(OpenPlayer{Key: "k1"}); err != nil {
		t.Fatalf("OpenPlayer: %v", err)
	}
	if got := h.loop.Snapshot().Playing.Phase; got != domain.PhaseWaitingForServer {
		t.Fatalf("phase = %s", got)
	}
	h.loop.EngineSink()(domain.ServerReadyEvent{Info: domain.ServerInfo{InfoHash: "h1", FileIndex: 0, URL: "http://127.0.0.1:9000/h1/0"}})
	h.flush()

	snap := h.loop.Snapshot()
	if snap.Playing.Phase != domain.PhaseActive {
		t.Fatalf("phase = %s", snap.Playing.Phase)
	}
	if snap.Summary("k1").PlayStatus != domain.PlayStatusNone {
		t.Fatalf("play status = %q", snap.Summary("k1").PlayStatus)
	}
	h.host.mu.Lock()
	loaded := append([]string(nil), h.host.loaded...)
	h.host.mu.Unlock()
	if len(loaded) != 1 || loaded[0] != "http://127.0.0.1:9000/h1/0" {
		t.Fatalf("host loaded = %v", loaded)
	}

	if err := h.send(ClosePlayer{}); err != nil {
		t.Fatalf("ClosePlayer: %v", err)
	}
	if h.loop.Snapshot().Playing.Phase != domain.PhaseIdle {
		t.Fatalf("phase after close = %s", h.loop.Snapshot().Playing.Phase)
	}
	if h.engine.count("stop-server") != 1 {
		t.Fatalf("calls = %v", h.engine.calls)
	}
}

func TestTimeoutThenLateServerReportsOnce(t *testing.T) {
	h := newHarness(t)
	h.addReady("k1", "h1")
	if err := h.send(OpenPlayer{Key: "k1"}); err != nil {
		t.Fatalf("OpenPlayer: %v", err)
	}

	h.clock.fire()
	h.flush()
	snap := h.loop.Snapshot()
	if snap.Playing.Phase != domain.PhaseTimedOut {
		t.Fatalf("phase = %s", snap.Playing.Phase)
	}
	if len(snap.Errors) != 1 || snap.Errors[0].Message != "Playback timed out. Try again." {
		t.Fatalf("errors = %+v", snap.Errors)
	}
	if snap.Summary("k1").PlayStatus != domain.PlayStatusTimeout {
		t.Fatalf("play status = %q", snap.Summary("k1").PlayStatus)
	}

	h.loop.EngineSink()(domain.ServerReadyEvent{Info: domain.ServerInfo{InfoHash: "h1", URL: "http://x/h1/0"}})
	h.flush()
	snap = h.loop.Snapshot()
	if snap.Playing.Phase != domain.PhaseIdle {
		t.Fatalf("phase = %s", snap.Playing.Phase)
	}
	if len(snap.Errors) != 1 {
		t.Fatalf("errors = %+v", snap.Errors)
	}
	if h.engine.count("stop-server") != 1 {
		t.Fatalf("calls = %v", h.engine.calls)
	}
}

func TestDuplicateTorrentIsQueued(t *testing.T) {
	h := newHarness(t)
	h.addReady("k1", "h1")
	if err := h.send(AddTorrent{Key: "k2", Source: domain.TorrentSource{Magnet: "magnet:?xt=urn:btih:h1"}}); err != nil {
		t.Fatalf("AddTorrent: %v", err)
	}
	h.loop.EngineSink()(domain.IdentityEvent{Key: "k2", InfoHash: "h1"})
	h.flush()

	snap := h.loop.Snapshot()
	if snap.Summary("k2") != nil {
		t.Fatalf("duplicate summary kept")
	}
	if len(snap.Errors) != 1 || snap.Errors[0].Message != "Cannot add duplicate torrent" {
		t.Fatalf("errors = %+v", snap.Errors)
	}
	if err := h.send(ClearErrors{}); err != nil {
		t.Fatalf("ClearErrors: %v", err)
	}
	if len(h.loop.Snapshot().Errors) != 0 {
		t.Fatalf("errors not cleared")
	}
}

func TestRemoveTorrentClosesSession(t *testing.T) {
	h := newHarness(t)
	h.addReady("k1", "h1")
	if err := h.send(OpenPlayer{Key: "k1"}); err != nil {
		t.Fatalf("OpenPlayer: %v", err)
	}
	if err := h.send(RemoveTorrent{Key: "k1"}); err != nil {
		t.Fatalf("RemoveTorrent: %v", err)
	}
	snap := h.loop.Snapshot()
	if snap.Summary("k1") != nil || snap.Playing.Phase != domain.PhaseIdle {
		t.Fatalf("torrent not removed: %+v", snap.Playing)
	}
	if h.engine.count("stop-session:h1") != 1 {
		t.Fatalf("calls = %v", h.engine.calls)
	}
	if err := h.send(RemoveTorrent{Key: "k1"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second remove err = %v", err)
	}
}

func TestWindowFocusClearsBadge(t *testing.T) {
	h := newHarness(t)
	h.addReady("k1", "h1")
	h.loop.EngineSink()(domain.DoneEvent{Key: "k1", Info: domain.TorrentInfo{InfoHash: "h1", BytesReceived: 10}})
	h.flush()
	if got := h.loop.Snapshot().Dock.Badge; got != 1 {
		t.Fatalf("badge = %d", got)
	}
	if err := h.send(WindowFocus{Focused: true}); err != nil {
		t.Fatalf("WindowFocus: %v", err)
	}
	if got := h.loop.Snapshot().Dock.Badge; got != 0 {
		t.Fatalf("badge after focus = %d", got)
	}
}

func TestRestoreRestartsActiveTorrents(t *testing.T) {
	h := newHarness(t,
		domain.TorrentSummary{Key: "k1", InfoHash: "h1", Status: domain.TorrentSeeding, Source: domain.TorrentSource{Magnet: "m1"}},
		domain.TorrentSummary{Key: "k2", InfoHash: "h2", Status: domain.TorrentPaused, Source: domain.TorrentSource{Magnet: "m2"}},
	)
	h.flush()

	if h.engine.count("start-session:k1") != 1 || h.engine.count("start-session:k2") != 0 {
		t.Fatalf("calls = %v", h.engine.calls)
	}
	snap := h.loop.Snapshot()
	if len(snap.Torrents) != 2 || snap.Torrents[0].Key != "k1" {
		t.Fatalf("restored order = %+v", snap.Torrents)
	}
	if snap.Summary("k1").Status != domain.TorrentNew {
		t.Fatalf("status = %s", snap.Summary("k1").Status)
	}
}

func TestSendAfterStop(t *testing.T) {
	h := newHarness(t)
	h.stop()
	h.done <- nil
	if err := h.send(ClearErrors{}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v", err)
	}
}
