package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/domain/ports"
)

type fakeEngine struct {
	calls []string
}

func (f *fakeEngine) StartSession(_ context.Context, s domain.TorrentSummary) error {
	f.calls = append(f.calls, "start-session:"+string(s.Key))
	return nil
}
func (f *fakeEngine) StopSession(_ context.Context, h domain.InfoHash) error {
	f.calls = append(f.calls, "stop-session:"+string(h))
	return nil
}
func (f *fakeEngine) StartContentServer(context.Context, domain.InfoHash, int) error { return nil }
func (f *fakeEngine) StopContentServer(context.Context) error                        { return nil }
func (f *fakeEngine) SaveDescriptor(_ context.Context, k domain.TorrentKey) error {
	f.calls = append(f.calls, "save-descriptor:"+string(k))
	return nil
}
func (f *fakeEngine) GeneratePoster(_ context.Context, k domain.TorrentKey) error {
	f.calls = append(f.calls, "generate-poster:"+string(k))
	return nil
}
func (f *fakeEngine) GetAudioMetadata(context.Context, domain.InfoHash, int) error { return nil }

type fakeEffects struct {
	sounds        []ports.Sound
	notifications []string
}

func (f *fakeEffects) PlaySound(s ports.Sound) { f.sounds = append(f.sounds, s) }
func (f *fakeEffects) ShowNotification(title, body string) {
	f.notifications = append(f.notifications, title+": "+body)
}
func (f *fakeEffects) LogTelemetry(string, map[string]string) {}

func newAggregator() (Aggregator, *fakeEngine, *fakeEffects) {
	eng := &fakeEngine{}
	eff := &fakeEffects{}
	return Aggregator{
		Engine:  eng,
		Effects: eff,
		Now:     func() time.Time { return time.Unix(1700000000, 0) },
	}, eng, eff
}

func TestIdentityCreatesOrAttaches(t *testing.T) {
	a, _, eff := newAggregator()
	st := domain.NewAppState()
	st.AddSummary(&domain.TorrentSummary{Key: "k1", Status: domain.TorrentNew})
	ctx := context.Background()

	if err := a.Apply(ctx, st, domain.IdentityEvent{Key: "k1", InfoHash: "h1"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if st.Summary("k1").InfoHash != "h1" || len(st.Torrents) != 1 {
		t.Fatalf("hash not attached: %+v", st.Torrents)
	}
	if len(eff.sounds) != 0 {
		t.Fatalf("attach played sound: %v", eff.sounds)
	}

	if err := a.Apply(ctx, st, domain.IdentityEvent{Key: "k2", InfoHash: "h2"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if st.Torrents[0].Key != "k2" || st.Torrents[0].Status != domain.TorrentNew {
		t.Fatalf("new summary not prepended: %+v", st.Torrents[0])
	}
	if len(eff.sounds) != 1 || eff.sounds[0] != ports.SoundAdd {
		t.Fatalf("sounds = %v", eff.sounds)
	}
}

func TestIdentityRejectsDuplicate(t *testing.T) {
	a, eng, _ := newAggregator()
	st := domain.NewAppState()
	st.AddSummary(&domain.TorrentSummary{Key: "k1", InfoHash: "h1", Status: domain.TorrentSeeding})
	st.AddSummary(&domain.TorrentSummary{Key: "k2", Status: domain.TorrentNew})

	err := a.Apply(context.Background(), st, domain.IdentityEvent{Key: "k2", InfoHash: "h1"})
	if !errors.Is(err, domain.ErrDuplicateSession) {
		t.Fatalf("Apply = %v, want ErrDuplicateSession", err)
	}
	if domain.UserMessage(err) != "Cannot add duplicate torrent" {
		t.Fatalf("message = %q", domain.UserMessage(err))
	}
	if len(eng.calls) != 1 || eng.calls[0] != "stop-session:h1" {
		t.Fatalf("calls = %v", eng.calls)
	}
	if st.Summary("k2") != nil || st.Summary("k1") == nil {
		t.Fatalf("torrents = %+v", st.Torrents)
	}
}

func TestMetadataFillsSummaryOnce(t *testing.T) {
	a, eng, _ := newAggregator()
	st := domain.NewAppState()
	st.AddSummary(&domain.TorrentSummary{Key: "k", InfoHash: "h", Status: domain.TorrentNew})
	ev := domain.MetadataEvent{Key: "k", Info: domain.TorrentInfo{
		InfoHash: "h",
		Name:     "Show",
		Path:     "/data",
		Files: []domain.FileSummary{
			{Name: "e01.mkv", Path: "Show/e01.mkv", Length: 100},
			{Name: "e02.mkv", Path: "Show/e02.mkv", Length: 300},
		},
	}}
	ctx := context.Background()
	_ = a.Apply(ctx, st, ev)

	s := st.Summary("k")
	if s.Status != domain.TorrentDownloading || s.Name != "Show" || s.Path != "/data" {
		t.Fatalf("summary = %+v", s)
	}
	if len(s.Selections) != 2 || !s.Selections[0] || !s.Selections[1] {
		t.Fatalf("selections = %v", s.Selections)
	}
	if s.DefaultPlayFileIndex == nil || *s.DefaultPlayFileIndex != 1 {
		t.Fatalf("default index = %v", s.DefaultPlayFileIndex)
	}

	s.Files[0].CurrentTime = 42
	_ = a.Apply(ctx, st, ev)
	if s.Files[0].CurrentTime != 42 {
		t.Fatalf("detailed file info overwritten")
	}

	want := []string{"save-descriptor:k", "generate-poster:k"}
	if len(eng.calls) != len(want) {
		t.Fatalf("side effects = %v, want once each", eng.calls)
	}
}

func TestMetadataPrefersDisplayName(t *testing.T) {
	a, eng, _ := newAggregator()
	st := domain.NewAppState()
	st.AddSummary(&domain.TorrentSummary{
		Key: "k", InfoHash: "h", DisplayName: "My Movie",
		TorrentFileName: "h.torrent", PosterFileName: "h.jpg",
	})
	_ = a.Apply(context.Background(), st, domain.MetadataEvent{Key: "k", Info: domain.TorrentInfo{Name: "movie.2020"}})
	if st.Summary("k").Name != "My Movie" {
		t.Fatalf("name = %q", st.Summary("k").Name)
	}
	if len(eng.calls) != 0 {
		t.Fatalf("artifacts already present, calls = %v", eng.calls)
	}
}

func TestProgressDockValue(t *testing.T) {
	a, _, _ := newAggregator()
	st := domain.NewAppState()
	st.AddSummary(&domain.TorrentSummary{Key: "k"})

	_ = a.Apply(context.Background(), st, domain.ProgressEvent{Info: domain.ProgressInfo{
		HasActiveTorrents: true,
		Progress:          0.5,
		Torrents:          []domain.TorrentProgress{{Key: "k", Progress: 0.5, NumPeers: 3}},
	}})
	if st.Dock.Progress != 0.5 {
		t.Fatalf("dock = %v", st.Dock.Progress)
	}
	if p := st.Summary("k").Progress; p == nil || p.NumPeers != 3 {
		t.Fatalf("progress = %+v", p)
	}

	_ = a.Apply(context.Background(), st, domain.ProgressEvent{Info: domain.ProgressInfo{HasActiveTorrents: true, Progress: 1}})
	if st.Dock.Progress != -1 {
		t.Fatalf("dock at completion = %v", st.Dock.Progress)
	}
	_ = a.Apply(context.Background(), st, domain.ProgressEvent{Info: domain.ProgressInfo{HasActiveTorrents: false, Progress: 0.3}})
	if st.Dock.Progress != -1 {
		t.Fatalf("dock without active torrents = %v", st.Dock.Progress)
	}
}

func TestDoneNotifiesOnlyForReceivedBytes(t *testing.T) {
	a, _, eff := newAggregator()
	st := domain.NewAppState()
	st.WindowFocused = false
	st.AddSummary(&domain.TorrentSummary{Key: "zero", Status: domain.TorrentDownloading})
	st.AddSummary(&domain.TorrentSummary{Key: "real", Name: "Real", Status: domain.TorrentDownloading})
	ctx := context.Background()

	_ = a.Apply(ctx, st, domain.DoneEvent{Key: "zero", Info: domain.TorrentInfo{BytesReceived: 0}})
	if len(eff.notifications) != 0 || st.Dock.Badge != 0 {
		t.Fatalf("zero-byte done notified: %v badge=%d", eff.notifications, st.Dock.Badge)
	}
	if st.Summary("zero").Status != domain.TorrentSeeding {
		t.Fatalf("status = %s", st.Summary("zero").Status)
	}

	_ = a.Apply(ctx, st, domain.DoneEvent{Key: "real", Info: domain.TorrentInfo{BytesReceived: 1}})
	_ = a.Apply(ctx, st, domain.DoneEvent{Key: "real", Info: domain.TorrentInfo{BytesReceived: 1}})
	if len(eff.notifications) != 1 {
		t.Fatalf("notifications = %v, want exactly one", eff.notifications)
	}
	if st.Dock.Badge != 1 {
		t.Fatalf("badge = %d", st.Dock.Badge)
	}
	if eff.sounds[len(eff.sounds)-1] != ports.SoundDone {
		t.Fatalf("sounds = %v", eff.sounds)
	}
}

func TestDoneWhileFocusedSkipsBadge(t *testing.T) {
	a, _, eff := newAggregator()
	st := domain.NewAppState()
	st.AddSummary(&domain.TorrentSummary{Key: "k", Status: domain.TorrentDownloading})
	_ = a.Apply(context.Background(), st, domain.DoneEvent{Key: "k", Info: domain.TorrentInfo{BytesReceived: 10}})
	if st.Dock.Badge != 0 || len(eff.notifications) != 1 {
		t.Fatalf("badge=%d notifications=%v", st.Dock.Badge, eff.notifications)
	}
}

func TestErrorPausesTorrent(t *testing.T) {
	a, _, _ := newAggregator()
	st := domain.NewAppState()
	st.AddSummary(&domain.TorrentSummary{Key: "k", Status: domain.TorrentDownloading})
	err := a.Apply(context.Background(), st, domain.ErrorEvent{Key: "k", Message: "disk full"})
	if !errors.Is(err, domain.ErrEngine) {
		t.Fatalf("Apply = %v", err)
	}
	if st.Summary("k").Status != domain.TorrentPaused {
		t.Fatalf("status = %s", st.Summary("k").Status)
	}
}

func TestArtifactsAndAudioMetadata(t *testing.T) {
	a, _, _ := newAggregator()
	st := domain.NewAppState()
	st.AddSummary(&domain.TorrentSummary{Key: "k", InfoHash: "h", Files: []domain.FileSummary{{Name: "a.mp3"}}})
	ctx := context.Background()
	_ = a.Apply(ctx, st, domain.DescriptorSavedEvent{Key: "k", FileName: "h.torrent"})
	_ = a.Apply(ctx, st, domain.PosterSavedEvent{Key: "k", FileName: "h.jpg"})
	_ = a.Apply(ctx, st, domain.AudioMetadataEvent{InfoHash: "h", FileIndex: 0, Info: domain.AudioInfo{Artist: "Band"}})

	s := st.Summary("k")
	if s.TorrentFileName != "h.torrent" || s.PosterFileName != "h.jpg" {
		t.Fatalf("artifacts = %q %q", s.TorrentFileName, s.PosterFileName)
	}
	if s.Files[0].AudioInfo == nil || s.Files[0].AudioInfo.Artist != "Band" {
		t.Fatalf("audio info = %+v", s.Files[0].AudioInfo)
	}
}

func TestToggle(t *testing.T) {
	a, eng, _ := newAggregator()
	st := domain.NewAppState()
	st.AddSummary(&domain.TorrentSummary{Key: "k", InfoHash: "h", Status: domain.TorrentDownloading})
	ctx := context.Background()

	if err := a.Toggle(ctx, st, "k"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if st.Summary("k").Status != domain.TorrentPaused || eng.calls[0] != "stop-session:h" {
		t.Fatalf("pause: status=%s calls=%v", st.Summary("k").Status, eng.calls)
	}
	if err := a.Toggle(ctx, st, "k"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if st.Summary("k").Status != domain.TorrentNew || eng.calls[1] != "start-session:k" {
		t.Fatalf("resume: status=%s calls=%v", st.Summary("k").Status, eng.calls)
	}
	if err := a.Toggle(ctx, st, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Toggle(missing) = %v", err)
	}
}
