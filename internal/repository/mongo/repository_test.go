package mongo

import (
	"reflect"
	"testing"
	"time"

	"torrentplayer/internal/domain"
)

func TestToDocFromDocRoundtrip(t *testing.T) {
	now := time.Date(2026, 2, 19, 10, 0, 0, 0, time.UTC)
	idx := 0
	summary := domain.TorrentSummary{
		Key:         "k1",
		InfoHash:    "d2354e",
		Source:      domain.TorrentSource{Magnet: "magnet:?xt=urn:btih:d2354e"},
		DisplayName: "Bunny",
		Name:        "Big Buck Bunny",
		Path:        "/downloads",
		Status:      domain.TorrentSeeding,
		Files: []domain.FileSummary{
			{Name: "video.mkv", Path: "Bunny/video.mkv", Length: 1024, CurrentTime: 12.5, Duration: 600, SelectedSubtitle: "/downloads/Bunny/en.srt"},
			{Name: "theme.mp3", Path: "Bunny/theme.mp3", Length: 64, AudioInfo: &domain.AudioInfo{Title: "Theme", Artist: "Blender", Year: "2008"}},
		},
		Selections:           []bool{true, true},
		DefaultPlayFileIndex: &idx,
		TorrentFileName:      "d2354e.torrent",
		CreatedAt:            now,
		Progress:             &domain.TorrentProgress{Progress: 0.5},
		PlayStatus:           domain.PlayStatusRequested,
	}

	doc := toDoc(summary, now.Add(time.Minute))
	if doc.UpdatedAt != now.Add(time.Minute).Unix() {
		t.Fatalf("UpdatedAt = %d", doc.UpdatedAt)
	}
	got := fromDoc(doc)

	if got.Key != summary.Key || got.InfoHash != summary.InfoHash || got.Source != summary.Source {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if got.DisplayName != summary.DisplayName || got.Name != summary.Name || got.Path != summary.Path {
		t.Fatalf("names mismatch: %+v", got)
	}
	if got.Status != summary.Status {
		t.Fatalf("Status: got %q, want %q", got.Status, summary.Status)
	}
	if !reflect.DeepEqual(got.Files, summary.Files) {
		t.Fatalf("Files: got %+v, want %+v", got.Files, summary.Files)
	}
	if !reflect.DeepEqual(got.Selections, summary.Selections) {
		t.Fatalf("Selections: got %v", got.Selections)
	}
	if got.DefaultPlayFileIndex == nil || *got.DefaultPlayFileIndex != 0 {
		t.Fatalf("DefaultPlayFileIndex: got %v", got.DefaultPlayFileIndex)
	}
	if got.CreatedAt.Unix() != now.Unix() {
		t.Fatalf("CreatedAt: got %v", got.CreatedAt)
	}
	if got.Progress != nil || got.PlayStatus != domain.PlayStatusNone {
		t.Fatalf("runtime fields restored: %+v", got)
	}
	if !got.DescriptorRequested || got.PosterRequested {
		t.Fatalf("artifact flags: descriptor=%v poster=%v", got.DescriptorRequested, got.PosterRequested)
	}
}

func TestFromDocsEmpty(t *testing.T) {
	got := fromDocs(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestWatchDocID(t *testing.T) {
	tests := []struct {
		name      string
		key       domain.TorrentKey
		fileIndex int
		want      string
	}{
		{"basic", "abc123", 0, "abc123:0"},
		{"non-zero index", "abc123", 5, "abc123:5"},
		{"empty key", "", 0, ":0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := watchDocID(tc.key, tc.fileIndex); got != tc.want {
				t.Errorf("watchDocID(%q, %d) = %q, want %q", tc.key, tc.fileIndex, got, tc.want)
			}
		})
	}
}

func TestWatchDocToPosition(t *testing.T) {
	now := time.Now().UTC()
	doc := watchPositionDoc{
		ID:          "abc:1",
		TorrentKey:  "abc",
		InfoHash:    "h1",
		FileIndex:   1,
		Position:    120.5,
		Duration:    3600.0,
		TorrentName: "Test Movie",
		FilePath:    "movie.mp4",
		UpdatedAt:   now.Unix(),
	}

	pos := watchDocToPosition(doc)
	if pos.Key != "abc" || pos.InfoHash != "h1" || pos.FileIndex != 1 {
		t.Errorf("identity: got %+v", pos)
	}
	if pos.Position != 120.5 || pos.Duration != 3600.0 {
		t.Errorf("position: got %f/%f", pos.Position, pos.Duration)
	}
	if pos.TorrentName != "Test Movie" || pos.FilePath != "movie.mp4" {
		t.Errorf("names: got %+v", pos)
	}
	if pos.UpdatedAt.Unix() != now.Unix() {
		t.Errorf("UpdatedAt: got %v", pos.UpdatedAt)
	}
}
