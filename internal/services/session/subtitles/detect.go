package subtitles

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log/slog"

	"github.com/abadojack/whatlanggo"

	"torrentplayer/internal/domain/ports"
)

// Detector guesses the language of a block of text and returns its English
// name, or "" when no language can be determined.
type Detector interface {
	Detect(ctx context.Context, text string) string
}

// WhatlangDetector detects languages with trigram statistics.
type WhatlangDetector struct{}

func (WhatlangDetector) Detect(_ context.Context, text string) string {
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if info.Lang < 0 || info.Script == nil {
		return ""
	}
	return info.Lang.String()
}

// CachedDetector memoizes detection results keyed by a digest of the text.
type CachedDetector struct {
	Next   Detector
	Cache  ports.LanguageCache
	Logger *slog.Logger
}

func (d CachedDetector) Detect(ctx context.Context, text string) string {
	if d.Cache == nil {
		return d.Next.Detect(ctx, text)
	}
	sum := sha1.Sum([]byte(text))
	key := hex.EncodeToString(sum[:])

	if lang, ok, err := d.Cache.Get(ctx, key); err == nil && ok {
		return lang
	} else if err != nil {
		d.logger().Warn("language cache get failed", slog.String("error", err.Error()))
	}

	lang := d.Next.Detect(ctx, text)
	if err := d.Cache.Set(ctx, key, lang); err != nil {
		d.logger().Warn("language cache set failed", slog.String("error", err.Error()))
	}
	return lang
}

func (d CachedDetector) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
