package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// NewLogger builds the process logger. Format "auto" uses colored tint
// output on a terminal and JSON otherwise.
func NewLogger(w io.Writer, levelRaw, formatRaw string) *slog.Logger {
	level := ParseLogLevel(levelRaw)
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "auto" || format == "" {
		format = "json"
		if isTerminal(w) {
			format = "tint"
		}
	}

	options := &slog.HandlerOptions{Level: level}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, options))
	case "tint":
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
			NoColor:    !isTerminal(w),
		}))
	default:
		return slog.New(slog.NewTextHandler(w, options))
	}
}

func ParseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
