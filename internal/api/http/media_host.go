package apihttp

import (
	"torrentplayer/internal/domain"
)

// mediaCommand is what the UI player receives for each host primitive.
type mediaCommand struct {
	Action  string           `json:"action"`
	URL     string           `json:"url,omitempty"`
	Kind    domain.MediaKind `json:"kind,omitempty"`
	StartAt float64          `json:"startAt,omitempty"`
	Value   *float64         `json:"value,omitempty"`
	Title   string           `json:"title,omitempty"`
}

func (h *Hub) media(cmd mediaCommand) {
	h.Broadcast("media", cmd)
}

func (h *Hub) Load(mediaURL string, kind domain.MediaKind, startAt float64) {
	h.media(mediaCommand{Action: "load", URL: mediaURL, Kind: kind, StartAt: startAt})
}

func (h *Hub) Play()  { h.media(mediaCommand{Action: "play"}) }
func (h *Hub) Pause() { h.media(mediaCommand{Action: "pause"}) }

func (h *Hub) Seek(seconds float64) {
	h.media(mediaCommand{Action: "seek", Value: &seconds})
}

func (h *Hub) SetVolume(volume float64) {
	h.media(mediaCommand{Action: "volume", Value: &volume})
}

func (h *Hub) SetRate(rate float64) {
	h.media(mediaCommand{Action: "rate", Value: &rate})
}

func (h *Hub) Unload() { h.media(mediaCommand{Action: "unload"}) }

// Accommodate asks the window to fit the media, e.g. a video aspect.
func (h *Hub) Accommodate(title string, kind domain.MediaKind) {
	h.media(mediaCommand{Action: "accommodate", Title: title, Kind: kind})
}

func (h *Hub) RestoreWindow() { h.media(mediaCommand{Action: "restore"}) }
