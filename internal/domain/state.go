package domain

import "time"

type Dock struct {
	Badge    int     `json:"badge"`
	Progress float64 `json:"progress"`
}

type ServerInfo struct {
	InfoHash  InfoHash `json:"infoHash"`
	FileIndex int      `json:"fileIndex"`
	URL       string   `json:"url"`
}

// AppState is the whole application model. It is owned by a single goroutine;
// everything else sees clones.
type AppState struct {
	Torrents       []*TorrentSummary `json:"torrents"`
	Playing        PlayingState      `json:"playing"`
	Errors         []ErrorEntry      `json:"errors"`
	Dock           Dock              `json:"dock"`
	WindowFocused  bool              `json:"windowFocused"`
	PreviousVolume float64           `json:"previousVolume"`
	Server         *ServerInfo       `json:"server,omitempty"`
}

func NewAppState() *AppState {
	return &AppState{
		Playing:        DefaultPlayingState(),
		Dock:           Dock{Progress: -1},
		WindowFocused:  true,
		PreviousVolume: 1,
	}
}

// Summary finds a torrent by key, or by info hash when key is a hash.
func (s *AppState) Summary(keyOrHash string) *TorrentSummary {
	if keyOrHash == "" {
		return nil
	}
	for _, t := range s.Torrents {
		if string(t.Key) == keyOrHash || string(t.InfoHash) == keyOrHash {
			return t
		}
	}
	return nil
}

func (s *AppState) SummaryByHash(hash InfoHash) *TorrentSummary {
	if hash == "" {
		return nil
	}
	for _, t := range s.Torrents {
		if t.InfoHash == hash {
			return t
		}
	}
	return nil
}

func (s *AppState) PlayingSummary() *TorrentSummary {
	if s.Playing.Key == "" {
		return nil
	}
	return s.Summary(string(s.Playing.Key))
}

func (s *AppState) AddSummary(t *TorrentSummary) {
	s.Torrents = append([]*TorrentSummary{t}, s.Torrents...)
}

func (s *AppState) RemoveSummary(key TorrentKey) bool {
	for i, t := range s.Torrents {
		if t.Key == key {
			s.Torrents = append(s.Torrents[:i], s.Torrents[i+1:]...)
			return true
		}
	}
	return false
}

// ReportError appends to the error queue, dropping the oldest entries past
// MaxErrors.
func (s *AppState) ReportError(err error, message string, at time.Time) {
	if message == "" {
		message = err.Error()
	}
	s.Errors = append(s.Errors, ErrorEntry{Kind: KindOf(err), Message: message, At: at})
	if over := len(s.Errors) - MaxErrors; over > 0 {
		s.Errors = append([]ErrorEntry(nil), s.Errors[over:]...)
	}
}

func (s *AppState) Clone() *AppState {
	c := *s
	c.Torrents = make([]*TorrentSummary, len(s.Torrents))
	for i, t := range s.Torrents {
		c.Torrents[i] = t.Clone()
	}
	c.Playing = s.Playing.Clone()
	c.Errors = append([]ErrorEntry(nil), s.Errors...)
	if s.Server != nil {
		srv := *s.Server
		c.Server = &srv
	}
	return &c
}
