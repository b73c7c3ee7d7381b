package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnplayable        = errors.New("can't play any files in torrent")
	ErrSubtitleParse     = errors.New("can't parse subtitles file")
	ErrDuplicateSession  = errors.New("cannot add duplicate torrent")
	ErrPlaybackTimeout   = errors.New("playback timed out")
	ErrPlaybackFailed    = errors.New("playback failed")
	ErrEngine            = errors.New("engine error")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidCommand    = errors.New("invalid command")
	ErrOutputUnavailable = errors.New("output unavailable")
)

// MaxErrors bounds the user-visible error queue.
const MaxErrors = 50

type ErrorKind string

const (
	ErrorKindUnplayable        ErrorKind = "unplayable"
	ErrorKindSubtitleParse     ErrorKind = "subtitle_parse"
	ErrorKindDuplicateSession  ErrorKind = "duplicate_session"
	ErrorKindPlaybackTimeout   ErrorKind = "playback_timeout"
	ErrorKindPlaybackFailed    ErrorKind = "playback_failed"
	ErrorKindEngine            ErrorKind = "engine"
	ErrorKindOutputUnavailable ErrorKind = "output_unavailable"
	ErrorKindInvalid           ErrorKind = "invalid"
	ErrorKindInternal          ErrorKind = "internal"
)

type ErrorEntry struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUnplayable):
		return ErrorKindUnplayable
	case errors.Is(err, ErrSubtitleParse):
		return ErrorKindSubtitleParse
	case errors.Is(err, ErrDuplicateSession):
		return ErrorKindDuplicateSession
	case errors.Is(err, ErrPlaybackTimeout):
		return ErrorKindPlaybackTimeout
	case errors.Is(err, ErrPlaybackFailed):
		return ErrorKindPlaybackFailed
	case errors.Is(err, ErrEngine):
		return ErrorKindEngine
	case errors.Is(err, ErrOutputUnavailable):
		return ErrorKindOutputUnavailable
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInvalidCommand), errors.Is(err, ErrNotFound):
		return ErrorKindInvalid
	default:
		return ErrorKindInternal
	}
}

// UserMessage renders err for the error queue.
func UserMessage(err error) string {
	switch KindOf(err) {
	case ErrorKindPlaybackTimeout:
		return "Playback timed out. Try again."
	case ErrorKindDuplicateSession:
		return "Cannot add duplicate torrent"
	case ErrorKindUnplayable:
		return "Can't play any files in torrent"
	default:
		return err.Error()
	}
}
