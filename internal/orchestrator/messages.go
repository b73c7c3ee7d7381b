package orchestrator

import (
	"torrentplayer/internal/domain"
	"torrentplayer/internal/services/session/cast"
	"torrentplayer/internal/services/session/playback"
	"torrentplayer/internal/services/session/subtitles"
)

// Message is anything the loop can process. The set is closed: commands
// below, plus internal events posted back by asynchronous work.
type Message interface {
	message()
}

type AddTorrent struct {
	Key         domain.TorrentKey
	Source      domain.TorrentSource
	DisplayName string
}

type ToggleTorrent struct {
	Key domain.TorrentKey
}

type RemoveTorrent struct {
	Key domain.TorrentKey
}

type OpenPlayer struct {
	Key       domain.TorrentKey
	FileIndex *int
}

type ClosePlayer struct{}

type PlayPause struct{}

type Play struct{}

type Pause struct{}

type Seek struct {
	Seconds float64
}

type Skip struct {
	Delta float64
}

type SetVolume struct {
	Volume float64
}

type ChangeVolume struct {
	Delta float64
}

type ChangeRate struct {
	Direction int
}

type AddSubtitles struct {
	Paths []string
}

type SelectSubtitle struct {
	Index int
}

type ToggleSubtitlesMenu struct{}

type SetOutput struct {
	Location domain.OutputLocation
}

type ReportMediaEvent struct {
	Event playback.MediaEvent
}

type WindowFocus struct {
	Focused bool
}

type ClearErrors struct{}

type engineEvent struct {
	ev domain.EngineEvent
}

type timeoutFired struct {
	ev playback.TimeoutFired
}

type subtitlesLoaded struct {
	res subtitles.Loaded
}

type outputResult struct {
	res cast.Result
}

func (AddTorrent) message()          {}
func (ToggleTorrent) message()       {}
func (RemoveTorrent) message()       {}
func (OpenPlayer) message()          {}
func (ClosePlayer) message()         {}
func (PlayPause) message()           {}
func (Play) message()                {}
func (Pause) message()               {}
func (Seek) message()                {}
func (Skip) message()                {}
func (SetVolume) message()           {}
func (ChangeVolume) message()        {}
func (ChangeRate) message()          {}
func (AddSubtitles) message()        {}
func (SelectSubtitle) message()      {}
func (ToggleSubtitlesMenu) message() {}
func (SetOutput) message()           {}
func (ReportMediaEvent) message()    {}
func (WindowFocus) message()         {}
func (ClearErrors) message()         {}
func (engineEvent) message()         {}
func (timeoutFired) message()        {}
func (subtitlesLoaded) message()     {}
func (outputResult) message()        {}
