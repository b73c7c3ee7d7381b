package domain

import "time"

type OutputLocation string

const (
	OutputLocal      OutputLocation = "local"
	OutputChromecast OutputLocation = "chromecast"
	OutputAirPlay    OutputLocation = "airplay"
	OutputDLNA       OutputLocation = "dlna"
	OutputExternal   OutputLocation = "external"
)

// IsRemote reports whether media commands for this location go to a cast
// target instead of the local host.
func (l OutputLocation) IsRemote() bool {
	switch l {
	case OutputChromecast, OutputAirPlay, OutputDLNA:
		return true
	}
	return false
}

func (l OutputLocation) Valid() bool {
	switch l {
	case OutputLocal, OutputExternal:
		return true
	}
	return l.IsRemote()
}

type PlaybackPhase string

const (
	PhaseIdle                  PlaybackPhase = "idle"
	PhaseRequested             PlaybackPhase = "requested"
	PhaseWaitingForEngineReady PlaybackPhase = "waiting_for_engine_ready"
	PhaseWaitingForServer      PlaybackPhase = "waiting_for_server"
	PhaseActive                PlaybackPhase = "active"
	PhaseTimedOut              PlaybackPhase = "timed_out"
	PhaseClosing               PlaybackPhase = "closing"
)

type PlayResult string

const (
	PlayResultNone    PlayResult = ""
	PlayResultSuccess PlayResult = "success"
	PlayResultError   PlayResult = "error"
)

type SubtitleTrack struct {
	Language string `json:"language"`
	Label    string `json:"label"`
	FilePath string `json:"filePath"`
	// Buffer is the WebVTT body as a data URI.
	Buffer string `json:"buffer"`
}

type SubtitleState struct {
	Tracks        []SubtitleTrack `json:"tracks"`
	SelectedIndex int             `json:"selectedIndex"`
	ShowMenu      bool            `json:"showMenu"`
}

// NoSubtitle is the SelectedIndex value when subtitles are off.
const NoSubtitle = -1

func (s SubtitleState) Selected() (SubtitleTrack, bool) {
	if s.SelectedIndex < 0 || s.SelectedIndex >= len(s.Tracks) {
		return SubtitleTrack{}, false
	}
	return s.Tracks[s.SelectedIndex], true
}

type PlayingState struct {
	Phase     PlaybackPhase  `json:"phase"`
	Session   uint64         `json:"session"`
	Key       TorrentKey     `json:"torrentKey,omitempty"`
	InfoHash  InfoHash       `json:"infoHash,omitempty"`
	FileIndex int            `json:"fileIndex"`
	Kind      MediaKind      `json:"type,omitempty"`
	Location  OutputLocation `json:"location"`

	IsReady              bool      `json:"isReady"`
	IsPaused             bool      `json:"isPaused"`
	IsStalled            bool      `json:"isStalled"`
	LastTimeUpdate       time.Time `json:"lastTimeUpdate"`
	MouseStationarySince time.Time `json:"mouseStationarySince"`
	CurrentTime          float64   `json:"currentTime"`
	Duration             float64   `json:"duration"`
	JumpToTime           *float64  `json:"jumpToTime,omitempty"`
	PlaybackRate         float64   `json:"playbackRate"`
	Volume               float64   `json:"volume"`

	Subtitles SubtitleState `json:"subtitles"`
	Result    PlayResult    `json:"result,omitempty"`
}

func DefaultPlayingState() PlayingState {
	return PlayingState{
		Phase:        PhaseIdle,
		FileIndex:    -1,
		Location:     OutputLocal,
		IsPaused:     true,
		PlaybackRate: 1,
		Volume:       1,
		Subtitles:    SubtitleState{SelectedIndex: NoSubtitle},
	}
}

func (p PlayingState) Clone() PlayingState {
	c := p
	if p.JumpToTime != nil {
		t := *p.JumpToTime
		c.JumpToTime = &t
	}
	if p.Subtitles.Tracks != nil {
		c.Subtitles.Tracks = append([]SubtitleTrack(nil), p.Subtitles.Tracks...)
	}
	return c
}
