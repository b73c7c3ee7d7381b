// Package ffprobe extracts audio tags and poster frames with the ffmpeg
// command line tools.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"torrentplayer/internal/domain"
)

type Prober struct {
	binary string
	ffmpeg string
}

func New(binary, ffmpeg string) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	ff := strings.TrimSpace(ffmpeg)
	if ff == "" {
		ff = "ffmpeg"
	}
	return &Prober{binary: bin, ffmpeg: ff}
}

const (
	maxProbeTimeout  = 30 * time.Second
	maxPosterTimeout = 2 * time.Minute
	posterOffset     = "00:00:05"
)

// AudioMetadata reads the container tags of an audio file or URL.
func (p *Prober) AudioMetadata(ctx context.Context, input string) (domain.AudioInfo, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return domain.AudioInfo{}, errors.New("input is required")
	}
	ctx, cancel := withDefaultTimeout(ctx, maxProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		input,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	info, parseErr := parseProbeOutput(stdout.Bytes())
	if parseErr != nil {
		if runErr != nil {
			return domain.AudioInfo{}, commandError("ffprobe", runErr, stderr.String())
		}
		return domain.AudioInfo{}, fmt.Errorf("ffprobe output parse failed: %w", parseErr)
	}
	// Partially downloaded files can make ffprobe exit non-zero while still
	// printing usable tags.
	if runErr != nil && info.Codec == "" && info.Duration == 0 {
		return domain.AudioInfo{}, commandError("ffprobe", runErr, stderr.String())
	}
	return info, nil
}

// Poster writes a single JPEG frame taken a few seconds into input.
func (p *Prober) Poster(ctx context.Context, input, outPath string) error {
	if strings.TrimSpace(input) == "" || strings.TrimSpace(outPath) == "" {
		return errors.New("input and output are required")
	}
	ctx, cancel := withDefaultTimeout(ctx, maxPosterTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffmpeg,
		"-v", "error",
		"-y",
		"-ss", posterOffset,
		"-i", input,
		"-frames:v", "1",
		"-vf", "scale=640:-2",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return commandError("ffmpeg", err, stderr.String())
	}
	return nil
}

func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func commandError(tool string, err error, stderr string) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		return fmt.Errorf("%s failed: %w", tool, err)
	}
	return fmt.Errorf("%s failed: %w: %s", tool, err, msg)
}

// probePayload is the subset of ffprobe JSON output we parse.
type probePayload struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string            `json:"codec_type"`
	CodecName string            `json:"codec_name"`
	Tags      map[string]string `json:"tags"`
}

type probeFormat struct {
	Duration string            `json:"duration"`
	BitRate  string            `json:"bit_rate"`
	Tags     map[string]string `json:"tags"`
}

func parseProbeOutput(data []byte) (domain.AudioInfo, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.AudioInfo{}, err
	}

	var info domain.AudioInfo
	tags := payload.Format.Tags
	for _, stream := range payload.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		info.Codec = stream.CodecName
		// Ogg and FLAC keep their tags on the stream.
		if len(tags) == 0 {
			tags = stream.Tags
		}
		break
	}

	info.Title = strings.TrimSpace(getTag(tags, "title"))
	info.Artist = strings.TrimSpace(getTag(tags, "artist"))
	info.Album = strings.TrimSpace(getTag(tags, "album"))
	info.Genre = strings.TrimSpace(getTag(tags, "genre"))
	info.Year = strings.TrimSpace(getTag(tags, "date"))
	info.TrackNumber = strings.TrimSpace(getTag(tags, "track"))

	if d, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil && d > 0 {
		info.Duration = d
	}
	if b, err := strconv.ParseInt(payload.Format.BitRate, 10, 64); err == nil && b > 0 {
		info.Bitrate = b
	}
	return info, nil
}

func getTag(tags map[string]string, key string) string {
	if len(tags) == 0 {
		return ""
	}
	if value, ok := tags[key]; ok {
		return value
	}
	upper := strings.ToUpper(key)
	if value, ok := tags[upper]; ok {
		return value
	}
	lower := strings.ToLower(key)
	if value, ok := tags[lower]; ok {
		return value
	}
	return ""
}
