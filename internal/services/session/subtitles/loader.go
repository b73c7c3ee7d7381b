// Package subtitles loads subtitle files into WebVTT tracks and merges them
// into the playing session.
package subtitles

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/asticode/go-astisub"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"torrentplayer/internal/domain"
)

// FallbackLanguage labels tracks whose language could not be detected.
const FallbackLanguage = "Subtitle"

type Loader struct {
	Detector Detector
	// ReadFile defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

// Load reads and converts every path concurrently. The result preserves
// input order. The first failure cancels the rest and fails the batch.
func (l *Loader) Load(ctx context.Context, paths []string) ([]domain.SubtitleTrack, error) {
	tracks := make([]domain.SubtitleTrack, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			track, err := l.loadOne(gctx, path)
			if err != nil {
				return err
			}
			tracks[i] = track
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (l *Loader) loadOne(ctx context.Context, path string) (domain.SubtitleTrack, error) {
	if err := ctx.Err(); err != nil {
		return domain.SubtitleTrack{}, err
	}
	read := l.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(path)
	if err != nil {
		return domain.SubtitleTrack{}, parseError(path, err)
	}
	vtt, err := ToWebVTT(path, data)
	if err != nil {
		return domain.SubtitleTrack{}, parseError(path, err)
	}

	lang := ""
	if l.Detector != nil {
		lang = l.Detector.Detect(ctx, CueText(vtt))
	}
	lang = LanguageLabel(lang)

	return domain.SubtitleTrack{
		Language: lang,
		Label:    lang,
		FilePath: path,
		Buffer:   "data:text/vtt;base64," + base64.StdEncoding.EncodeToString(vtt),
	}, nil
}

func parseError(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrSubtitleParse, filepath.Base(path), err)
}

// ToWebVTT converts a subtitle file body to WebVTT. SRT input is converted;
// WebVTT input is validated and re-serialized.
func ToWebVTT(path string, data []byte) ([]byte, error) {
	var (
		subs *astisub.Subtitles
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt":
		subs, err = astisub.ReadFromSRT(bytes.NewReader(data))
	case ".vtt":
		subs, err = astisub.ReadFromWebVTT(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported subtitle format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(subs.Items) == 0 {
		return nil, fmt.Errorf("no cues")
	}
	var buf bytes.Buffer
	if err := subs.WriteToWebVTT(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CueText strips timing lines from a WebVTT body so only dialogue remains.
func CueText(vtt []byte) string {
	lines := strings.Split(string(vtt), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(line, "-->") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// LanguageLabel capitalizes a detected language name, falling back to
// FallbackLanguage.
func LanguageLabel(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return FallbackLanguage
	}
	return cases.Title(language.Und).String(lang)
}
