package domain

import (
	"path/filepath"
	"strings"
)

type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaOther MediaKind = "other"
)

var videoExtensions = map[string]struct{}{
	".avi": {}, ".m4v": {}, ".mkv": {}, ".mov": {}, ".mp4": {}, ".mpg": {},
	".mpeg": {}, ".ogv": {}, ".webm": {}, ".wmv": {}, ".ts": {}, ".m2ts": {},
}

var audioExtensions = map[string]struct{}{
	".aac": {}, ".aif": {}, ".aiff": {}, ".ac3": {}, ".flac": {}, ".m4a": {},
	".m4b": {}, ".mp2": {}, ".mp3": {}, ".oga": {}, ".ogg": {}, ".opus": {},
	".wav": {}, ".wma": {},
}

var subtitleExtensions = map[string]struct{}{
	".srt": {}, ".vtt": {},
}

func ext(name string) string { return strings.ToLower(filepath.Ext(name)) }

func IsVideo(name string) bool {
	_, ok := videoExtensions[ext(name)]
	return ok
}

func IsAudio(name string) bool {
	_, ok := audioExtensions[ext(name)]
	return ok
}

func IsSubtitle(name string) bool {
	_, ok := subtitleExtensions[ext(name)]
	return ok
}

func IsPlayable(name string) bool { return IsVideo(name) || IsAudio(name) }

func KindOfFile(name string) MediaKind {
	switch {
	case IsVideo(name):
		return MediaVideo
	case IsAudio(name):
		return MediaAudio
	default:
		return MediaOther
	}
}

// PickFileToPlay returns the largest video file, else the first audio file,
// else nil.
func PickFileToPlay(files []FileSummary) *int {
	best := -1
	for i, f := range files {
		if IsVideo(f.Name) && (best < 0 || f.Length > files[best].Length) {
			best = i
		}
	}
	if best < 0 {
		for i, f := range files {
			if IsAudio(f.Name) {
				best = i
				break
			}
		}
	}
	if best < 0 {
		return nil
	}
	return &best
}
