package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"golang.org/x/sync/errgroup"

	apihttp "torrentplayer/internal/api/http"
	"torrentplayer/internal/app"
	"torrentplayer/internal/domain"
	"torrentplayer/internal/domain/ports"
	"torrentplayer/internal/metrics"
	"torrentplayer/internal/orchestrator"
	mongorepo "torrentplayer/internal/repository/mongo"
	redisrepo "torrentplayer/internal/repository/redis"
	"torrentplayer/internal/services/notify"
	"torrentplayer/internal/services/session/cast"
	"torrentplayer/internal/services/session/language"
	"torrentplayer/internal/services/session/playback"
	"torrentplayer/internal/services/session/subtitles"
	"torrentplayer/internal/services/torrent/engine/anacrolix"
	"torrentplayer/internal/services/torrent/engine/ffprobe"
	"torrentplayer/internal/telemetry"
	"torrentplayer/internal/usecase"
)

const serviceName = "torrent-player"

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the player API and torrent engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(rootCtx context.Context, cc *commandContext) error {
	cfg, logger := cc.cfg, cc.logger
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(rootCtx, serviceName, telemetry.Options{
		Endpoint:   cfg.OTLPEndpoint,
		SampleRate: cfg.TraceSampleRate,
	})
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("dataDir", cfg.TorrentDataDir),
		slog.String("systemLocale", cfg.SystemLocale),
		slog.Duration("playbackTimeout", cfg.PlaybackTimeout()),
		slog.Bool("externalPlayer", cfg.ExternalPlayer != ""),
		slog.Bool("openExternalPlayer", cfg.OpenExternalPlayer),
		slog.Bool("castReceiver", cfg.CastReceiverURL != ""),
		slog.Bool("languageCache", cfg.RedisURL != ""),
	)

	lock, err := app.LockDataDir(cfg.TorrentDataDir)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	mongoClient, err := connectMongo(rootCtx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	}()

	repo := mongorepo.NewRepository(mongoClient, cfg.MongoDatabase, cfg.MongoCollection)
	history := mongorepo.NewWatchHistoryRepository(mongoClient, cfg.MongoDatabase)
	ensureIndexes(rootCtx, logger, repo, history)

	healthChecks := []apihttp.ServerOption{
		apihttp.WithHealthCheck("mongo", func(ctx context.Context) error {
			return mongoClient.Ping(ctx, readpref.Primary())
		}),
	}

	var detector subtitles.Detector = subtitles.WhatlangDetector{}
	if cfg.RedisURL != "" {
		cache, closeCache, err := connectLanguageCache(rootCtx, cfg.RedisURL)
		if err != nil {
			logger.Warn("language cache unavailable, detecting without it", slog.String("error", err.Error()))
		} else {
			defer closeCache()
			detector = subtitles.CachedDetector{Next: detector, Cache: cache, Logger: logger}
			healthChecks = append(healthChecks, apihttp.WithHealthCheck("redis", cache.Ping))
		}
	}

	engine, err := anacrolix.New(anacrolix.Config{
		DataDir:     cfg.TorrentDataDir,
		ContentAddr: cfg.ContentAddr,
		NoUpload:    cfg.NoUpload,
	}, ffprobe.New(cfg.FFProbePath, cfg.FFMPEGPath), logger.With(slog.String("component", "engine")))
	if err != nil {
		return fmt.Errorf("create torrent engine: %w", err)
	}
	defer engine.Close()

	hub := apihttp.NewHub(logger.With(slog.String("component", "ws")))
	go hub.Run()

	sink := notify.NewSink(hub, notify.NewWebhook(cfg.NotifyWebhookURL), logger)
	defer sink.Wait()

	loop := orchestrator.New(orchestrator.Deps{
		Engine:   engine,
		Effects:  sink,
		Host:     hub,
		External: externalPlayer(cfg, logger),
		Targets:  castTargets(cfg),
		Loader:   &subtitles.Loader{Detector: detector},
		Matcher:  language.NewMatcher(cfg.SystemLocale),
		Publish:  hub,
		Logger:   logger,
		Playback: playbackConfig(cfg),
	})
	engine.Subscribe(loop.EngineSink())

	restored, err := usecase.RestoreSummaries{Repo: repo, Logger: logger}.Load(rootCtx)
	if err != nil {
		logger.Warn("restore failed, starting empty", slog.String("error", err.Error()))
	}
	loop.Restore(restored)

	syncer := &usecase.SyncState{
		Snapshot: loop.Snapshot,
		Repo:     repo,
		History:  history,
		Logger:   logger,
		Interval: cfg.SyncInterval(),
	}

	server := apihttp.NewServer(loop, hub, append(healthChecks,
		apihttp.WithWatchHistory(history),
		apihttp.WithUploadDir(filepath.Join(cfg.TorrentDataDir, "uploads")),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		apihttp.WithLogger(logger),
	)...)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The final sync flush must see the state after the loop closed the
	// session, so it gets its own context cancelled after the loop exits.
	syncCtx, cancelSync := context.WithCancel(context.Background())
	defer cancelSync()

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		engine.Run(ctx)
		return nil
	})
	g.Go(func() error {
		defer cancelSync()
		err := loop.Run(ctx)
		loop.Wait()
		return err
	})
	g.Go(func() error {
		syncer.Run(syncCtx)
		return nil
	})
	g.Go(func() error {
		logger.Info("http server started", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		server.Close()
		return err
	})

	err = g.Wait()
	logger.Info("stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongorepo.Connect(ctx, uri, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func ensureIndexes(ctx context.Context, logger *slog.Logger, repo *mongorepo.Repository, history *mongorepo.WatchHistoryRepository) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warn("torrent indexes failed", slog.String("error", err.Error()))
	}
	if err := history.EnsureIndexes(ctx); err != nil {
		logger.Warn("watch history indexes failed", slog.String("error", err.Error()))
	}
}

func connectLanguageCache(ctx context.Context, url string) (*redisrepo.LanguageCache, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := redisrepo.Connect(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return redisrepo.NewLanguageCache(client, redisrepo.DefaultLanguageTTL), func() { _ = client.Close() }, nil
}

// externalPlayer returns nil when none is configured so the redirector sees
// a nil interface rather than a nil pointer.
func externalPlayer(cfg app.Config, logger *slog.Logger) ports.ExternalPlayer {
	fields := strings.Fields(cfg.ExternalPlayer)
	if len(fields) == 0 {
		return nil
	}
	return cast.NewExecPlayer(fields[0], fields[1:], logger.With(slog.String("component", "external")))
}

func playbackConfig(cfg app.Config) playback.Config {
	return playback.Config{
		Timeout:               cfg.PlaybackTimeout(),
		OpenExternalByDefault: cfg.OpenExternalPlayer && cfg.ExternalPlayer != "",
	}
}

func castTargets(cfg app.Config) map[domain.OutputLocation]ports.RemoteTarget {
	targets := make(map[domain.OutputLocation]ports.RemoteTarget)
	if cfg.CastReceiverURL != "" {
		targets[domain.OutputLocation(cfg.CastReceiverKind)] = cast.NewHTTPReceiver(cfg.CastReceiverURL, nil)
	}
	return targets
}
