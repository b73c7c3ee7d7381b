package domain

import (
	"errors"
	"path/filepath"
	"time"
)

type TorrentKey string

type InfoHash string

type TorrentSource struct {
	Magnet  string `json:"magnet,omitempty"`
	Torrent string `json:"torrent,omitempty"`
}

func (s TorrentSource) Empty() bool { return s.Magnet == "" && s.Torrent == "" }

type AudioInfo struct {
	Title       string  `json:"title,omitempty"`
	Artist      string  `json:"artist,omitempty"`
	Album       string  `json:"album,omitempty"`
	Genre       string  `json:"genre,omitempty"`
	Year        string  `json:"year,omitempty"`
	TrackNumber string  `json:"trackNumber,omitempty"`
	Codec       string  `json:"codec,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	Bitrate     int64   `json:"bitrate,omitempty"`
}

type FileSummary struct {
	Name             string     `json:"name"`
	Path             string     `json:"path"`
	Length           int64      `json:"length"`
	CurrentTime      float64    `json:"currentTime,omitempty"`
	Duration         float64    `json:"duration,omitempty"`
	AudioInfo        *AudioInfo `json:"audioInfo,omitempty"`
	SelectedSubtitle string     `json:"selectedSubtitle,omitempty"`
}

// TorrentSummary is the persistent record of one torrent in the list.
type TorrentSummary struct {
	Key                  TorrentKey       `json:"torrentKey"`
	InfoHash             InfoHash         `json:"infoHash,omitempty"`
	Source               TorrentSource    `json:"-"`
	DisplayName          string           `json:"displayName,omitempty"`
	Name                 string           `json:"name,omitempty"`
	Path                 string           `json:"path,omitempty"`
	Files                []FileSummary    `json:"files,omitempty"`
	Selections           []bool           `json:"selections,omitempty"`
	Status               TorrentStatus    `json:"status"`
	Progress             *TorrentProgress `json:"progress,omitempty"`
	DefaultPlayFileIndex *int             `json:"defaultPlayFileIndex,omitempty"`
	TorrentFileName      string           `json:"torrentFileName,omitempty"`
	PosterFileName       string           `json:"posterFileName,omitempty"`
	PlayStatus           PlayStatus       `json:"playStatus,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`

	// Set once the engine has been asked for a descriptor or poster so the
	// request is not repeated while the first one is in flight.
	DescriptorRequested bool `json:"-"`
	PosterRequested     bool `json:"-"`
}

// Validate checks domain invariants for TorrentSummary.
func (s TorrentSummary) Validate() error {
	if s.Key == "" {
		return errors.New("torrent key is required")
	}
	if !s.Status.Valid() {
		return errors.New("invalid status: " + string(s.Status))
	}
	if len(s.Selections) > 0 && len(s.Selections) != len(s.Files) {
		return errors.New("selections must match files")
	}
	if s.DefaultPlayFileIndex != nil && (*s.DefaultPlayFileIndex < 0 || *s.DefaultPlayFileIndex >= len(s.Files)) {
		return errors.New("default play file index out of range")
	}
	return nil
}

// HasDetailedFileInfo reports whether Files already carries per-file paths,
// in which case engine metadata must not overwrite them.
func (s *TorrentSummary) HasDetailedFileInfo() bool {
	return len(s.Files) > 0 && s.Files[0].Path != ""
}

func (s *TorrentSummary) File(index int) (*FileSummary, bool) {
	if index < 0 || index >= len(s.Files) {
		return nil, false
	}
	return &s.Files[index], true
}

// FilePath returns the on-disk location of the file at index.
func (s *TorrentSummary) FilePath(index int) (string, bool) {
	f, ok := s.File(index)
	if !ok {
		return "", false
	}
	return filepath.Join(s.Path, filepath.FromSlash(f.Path)), true
}

// Title is the name shown to the user.
func (s *TorrentSummary) Title() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	if s.Name != "" {
		return s.Name
	}
	return string(s.InfoHash)
}

func (s *TorrentSummary) Clone() *TorrentSummary {
	c := *s
	if s.Files != nil {
		c.Files = make([]FileSummary, len(s.Files))
		copy(c.Files, s.Files)
		for i := range c.Files {
			if a := c.Files[i].AudioInfo; a != nil {
				ac := *a
				c.Files[i].AudioInfo = &ac
			}
		}
	}
	if s.Selections != nil {
		c.Selections = append([]bool(nil), s.Selections...)
	}
	if s.Progress != nil {
		p := s.Progress.Clone()
		c.Progress = &p
	}
	if s.DefaultPlayFileIndex != nil {
		idx := *s.DefaultPlayFileIndex
		c.DefaultPlayFileIndex = &idx
	}
	return &c
}
