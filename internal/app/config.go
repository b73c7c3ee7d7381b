package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/services/session/language"
)

// Config is assembled from defaults, an optional TOML file, and the
// environment, in that order of precedence (environment wins).
type Config struct {
	HTTPAddr           string   `toml:"http_addr"`
	MongoURI           string   `toml:"mongo_uri"`
	MongoDatabase      string   `toml:"mongo_db"`
	MongoCollection    string   `toml:"mongo_collection"`
	RedisURL           string   `toml:"redis_url"`
	LogLevel           string   `toml:"log_level"`
	LogFormat          string   `toml:"log_format"`
	TorrentDataDir     string   `toml:"torrent_data_dir"`
	ContentAddr        string   `toml:"content_addr"`
	NoUpload           bool     `toml:"no_upload"`
	FFMPEGPath         string   `toml:"ffmpeg_path"`
	FFProbePath        string   `toml:"ffprobe_path"`
	PlaybackTimeoutMs  int64    `toml:"playback_timeout_ms"`
	SyncIntervalMs     int64    `toml:"sync_interval_ms"`
	SystemLocale       string   `toml:"system_locale"`
	ExternalPlayer     string   `toml:"external_player"`
	OpenExternalPlayer bool     `toml:"open_external_player"`
	CastReceiverURL    string   `toml:"cast_receiver_url"`
	CastReceiverKind   string   `toml:"cast_receiver_kind"`
	NotifyWebhookURL   string   `toml:"notify_webhook_url"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	RateLimitRPS       float64  `toml:"rate_limit_rps"`
	RateLimitBurst     int      `toml:"rate_limit_burst"`
	OTLPEndpoint       string   `toml:"otlp_endpoint"`
	TraceSampleRate    float64  `toml:"trace_sample_rate"`
}

func DefaultConfig() Config {
	return Config{
		HTTPAddr:          ":8080",
		MongoURI:          "mongodb://localhost:27017",
		MongoDatabase:     "torrentplayer",
		MongoCollection:   "torrents",
		LogLevel:          "info",
		LogFormat:         "auto",
		TorrentDataDir:    "data",
		ContentAddr:       "127.0.0.1:0",
		FFMPEGPath:        "ffmpeg",
		FFProbePath:       "ffprobe",
		PlaybackTimeoutMs: 10000,
		SyncIntervalMs:    10000,
		SystemLocale:      language.SystemLocale(os.Getenv),
		CastReceiverKind:  string(domain.OutputChromecast),
		RateLimitRPS:      100,
		RateLimitBurst:    200,
		TraceSampleRate:   0.1,
	}
}

// LoadConfig reads path (if non-empty) and then the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.MongoURI = getEnv("MONGO_URI", c.MongoURI)
	c.MongoDatabase = getEnv("MONGO_DB", c.MongoDatabase)
	c.MongoCollection = getEnv("MONGO_COLLECTION", c.MongoCollection)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.TorrentDataDir = getEnv("TORRENT_DATA_DIR", c.TorrentDataDir)
	c.ContentAddr = getEnv("CONTENT_ADDR", c.ContentAddr)
	c.NoUpload = getEnvBool("TORRENT_NO_UPLOAD", c.NoUpload)
	c.FFMPEGPath = getEnv("FFMPEG_PATH", c.FFMPEGPath)
	c.FFProbePath = getEnv("FFPROBE_PATH", c.FFProbePath)
	c.PlaybackTimeoutMs = getEnvInt64("PLAYBACK_TIMEOUT_MS", c.PlaybackTimeoutMs)
	c.SyncIntervalMs = getEnvInt64("SYNC_INTERVAL_MS", c.SyncIntervalMs)
	c.SystemLocale = getEnv("SYSTEM_LOCALE", c.SystemLocale)
	c.ExternalPlayer = getEnv("EXTERNAL_PLAYER", c.ExternalPlayer)
	c.OpenExternalPlayer = getEnvBool("OPEN_EXTERNAL_PLAYER", c.OpenExternalPlayer)
	c.CastReceiverURL = getEnv("CAST_RECEIVER_URL", c.CastReceiverURL)
	c.CastReceiverKind = getEnv("CAST_RECEIVER_KIND", c.CastReceiverKind)
	c.NotifyWebhookURL = getEnv("NOTIFY_WEBHOOK_URL", c.NotifyWebhookURL)
	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		c.CORSAllowedOrigins = splitList(raw)
	}
	c.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = int(getEnvInt64("RATE_LIMIT_BURST", int64(c.RateLimitBurst)))
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
	c.TraceSampleRate = getEnvFloat("OTEL_TRACE_SAMPLE_RATE", c.TraceSampleRate)
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.SystemLocale = strings.TrimSpace(c.SystemLocale)
	if c.SystemLocale == "" {
		c.SystemLocale = "en"
	}
	c.ExternalPlayer = strings.TrimSpace(c.ExternalPlayer)
	c.CastReceiverURL = strings.TrimRight(strings.TrimSpace(c.CastReceiverURL), "/")
	c.CastReceiverKind = strings.ToLower(strings.TrimSpace(c.CastReceiverKind))
}

func (c Config) Validate() error {
	var errs []error
	if c.TorrentDataDir == "" {
		errs = append(errs, errors.New("torrent_data_dir is required"))
	}
	if c.PlaybackTimeoutMs <= 0 {
		errs = append(errs, errors.New("playback_timeout_ms must be positive"))
	}
	switch c.LogFormat {
	case "auto", "text", "json", "tint":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	if c.OpenExternalPlayer && c.ExternalPlayer == "" {
		errs = append(errs, errors.New("open_external_player requires external_player"))
	}
	if c.CastReceiverURL != "" && !domain.OutputLocation(c.CastReceiverKind).IsRemote() {
		errs = append(errs, fmt.Errorf("cast_receiver_kind %q is not a cast target", c.CastReceiverKind))
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		errs = append(errs, fmt.Errorf("trace_sample_rate %v out of [0,1]", c.TraceSampleRate))
	}
	return errors.Join(errs...)
}

func (c Config) PlaybackTimeout() time.Duration {
	return time.Duration(c.PlaybackTimeoutMs) * time.Millisecond
}

func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMs) * time.Millisecond
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
