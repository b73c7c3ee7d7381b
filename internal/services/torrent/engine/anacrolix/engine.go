// Package anacrolix adapts github.com/anacrolix/torrent to the engine port:
// it runs download sessions, serves file contents over HTTP and reports
// progress through an event sink.
package anacrolix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anacrolix/torrent"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/domain/ports"
)

// addMagnetTimeout caps the time we wait for the client to accept a magnet
// link. AddMagnet can block on an internal client mutex when the client is
// busy resolving metadata for another torrent.
const (
	addMagnetTimeout    = 10 * time.Second
	metadataWaitTimeout = 10 * time.Minute
	defaultPollInterval = time.Second
)

// MediaTools produces posters and audio tags from a file URL.
type MediaTools interface {
	Poster(ctx context.Context, input, outPath string) error
	AudioMetadata(ctx context.Context, input string) (domain.AudioInfo, error)
}

type Config struct {
	DataDir string
	// ContentAddr is the listen address of the content server.
	ContentAddr  string
	PollInterval time.Duration
	NoUpload     bool
}

type session struct {
	key      domain.TorrentKey
	t        *torrent.Torrent
	baseline int64
	done     bool
	watching bool
}

type Engine struct {
	client  *torrent.Client
	tools   MediaTools
	logger  *slog.Logger
	dataDir string
	poll    time.Duration

	mu       sync.Mutex
	sink     ports.EventSink
	sessions map[domain.InfoHash]*session
	byKey    map[domain.TorrentKey]domain.InfoHash
	// rejected counts duplicate adds whose StopSession must not drop the
	// torrent owned by the original key.
	rejected map[domain.InfoHash]int
	speeds   map[domain.InfoHash]speedSample

	server *contentServer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, tools MediaTools, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	clientConfig := torrent.NewDefaultClientConfig()
	if cfg.DataDir != "" {
		clientConfig.DataDir = cfg.DataDir
	}
	clientConfig.NoUpload = cfg.NoUpload

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	e := newEngine(client, tools, logger, clientConfig.DataDir, cfg.PollInterval)
	addr := cfg.ContentAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	srv, err := startContentServer(addr, e, logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("content server: %w", err)
	}
	e.server = srv
	return e, nil
}

func newEngine(client *torrent.Client, tools MediaTools, logger *slog.Logger, dataDir string, poll time.Duration) *Engine {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		client:   client,
		tools:    tools,
		logger:   logger,
		dataDir:  dataDir,
		poll:     poll,
		sessions: make(map[domain.InfoHash]*session),
		byKey:    make(map[domain.TorrentKey]domain.InfoHash),
		rejected: make(map[domain.InfoHash]int),
		speeds:   make(map[domain.InfoHash]speedSample),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Subscribe sets the callback receiving engine events. It must be called
// before the first StartSession.
func (e *Engine) Subscribe(sink ports.EventSink) {
	e.mu.Lock()
	e.sink = sink
	e.mu.Unlock()
}

func (e *Engine) emit(ev domain.EngineEvent) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

// Run publishes a progress event every poll interval until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.ctx.Done():
			return
		case now := <-ticker.C:
			e.pollProgress(now)
		}
	}
}

func (e *Engine) Close() error {
	e.cancel()
	if e.server != nil {
		e.server.close()
	}
	e.wg.Wait()
	if e.client != nil {
		e.client.Close()
	}
	return nil
}

func (e *Engine) StartSession(ctx context.Context, summary domain.TorrentSummary) error {
	if e.client == nil {
		return errors.New("torrent client not configured")
	}
	if summary.Source.Empty() {
		return errors.New("torrent source not available")
	}

	t, err := e.addTorrent(ctx, summary.Source)
	if err != nil {
		return err
	}
	hash := domain.InfoHash(t.InfoHash().HexString())

	s, reg := e.register(summary.Key, hash, t)
	switch reg {
	case regDuplicate:
		e.logger.Info("duplicate torrent rejected",
			slog.String("torrentKey", string(summary.Key)),
			slog.String("infoHash", string(hash)))
		e.async(func(context.Context) {
			e.emit(domain.IdentityEvent{Key: summary.Key, InfoHash: hash})
		})
	case regStarted:
		e.logger.Info("torrent session started",
			slog.String("torrentKey", string(summary.Key)),
			slog.String("infoHash", string(hash)))
		e.async(func(ctx context.Context) { e.watchMetadata(ctx, s, hash) })
	case regRunning:
		// Announce the live session again so a caller waiting for its
		// metadata is resumed.
		e.async(func(ctx context.Context) { e.watchMetadata(ctx, s, hash) })
	}
	return nil
}

type registration int

const (
	regStarted registration = iota
	regRunning
	regWatching
	regDuplicate
)

// register records the session for hash under key. A key that already owns
// the hash gets regRunning, or regWatching while its metadata wait is still
// pending.
func (e *Engine) register(key domain.TorrentKey, hash domain.InfoHash, t *torrent.Torrent) (*session, registration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.sessions[hash]; ok {
		if existing.key != key {
			e.rejected[hash]++
			return nil, regDuplicate
		}
		if existing.watching {
			return existing, regWatching
		}
		existing.watching = true
		return existing, regRunning
	}
	s := &session{key: key, t: t, watching: true}
	if t != nil {
		stats := t.Stats()
		s.baseline = stats.BytesReadUsefulData.Int64()
	}
	e.sessions[hash] = s
	e.byKey[key] = hash
	return s, regStarted
}

func (e *Engine) addTorrent(ctx context.Context, src domain.TorrentSource) (*torrent.Torrent, error) {
	type addResult struct {
		t   *torrent.Torrent
		err error
	}
	ch := make(chan addResult, 1)
	go func() {
		var t *torrent.Torrent
		var err error
		if src.Magnet != "" {
			t, err = e.client.AddMagnet(src.Magnet)
		} else {
			t, err = e.client.AddTorrentFromFile(src.Torrent)
		}
		ch <- addResult{t, err}
	}()

	select {
	case res := <-ch:
		return res.t, res.err
	case <-time.After(addMagnetTimeout):
		return nil, errors.New("torrent client busy, try again later")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) watchMetadata(ctx context.Context, s *session, hash domain.InfoHash) {
	defer func() {
		e.mu.Lock()
		s.watching = false
		e.mu.Unlock()
	}()
	e.emit(domain.IdentityEvent{Key: s.key, InfoHash: hash})

	timer := time.NewTimer(metadataWaitTimeout)
	defer timer.Stop()
	select {
	case <-s.t.GotInfo():
	case <-ctx.Done():
		return
	case <-s.t.Closed():
		return
	case <-timer.C:
		e.metadataTimedOut(s, hash)
		return
	}

	s.t.DownloadAll()
	e.emit(domain.MetadataEvent{Key: s.key, Info: e.torrentInfo(s)})
}

// metadataTimedOut drops the session before reporting the error so the
// paused item starts from scratch when it is resumed. A wait that outlived
// its session reports nothing.
func (e *Engine) metadataTimedOut(s *session, hash domain.InfoHash) {
	e.mu.Lock()
	owned := e.sessions[hash] == s
	e.mu.Unlock()
	if !owned {
		return
	}
	_ = e.dropSession(hash)
	e.logger.Warn("torrent metadata wait timed out",
		slog.String("torrentKey", string(s.key)),
		slog.String("infoHash", string(hash)))
	e.emit(domain.ErrorEvent{Key: s.key, Message: "torrent metadata not received"})
}

// StopSession drops the torrent. A stop for a rejected duplicate only
// consumes the rejection.
func (e *Engine) StopSession(ctx context.Context, hash domain.InfoHash) error {
	e.mu.Lock()
	if e.rejected[hash] > 0 {
		e.rejected[hash]--
		if e.rejected[hash] == 0 {
			delete(e.rejected, hash)
		}
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()
	return e.dropSession(hash)
}

func (e *Engine) dropSession(hash domain.InfoHash) error {
	e.mu.Lock()
	s, ok := e.sessions[hash]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	delete(e.sessions, hash)
	delete(e.byKey, s.key)
	delete(e.speeds, hash)
	e.mu.Unlock()

	if e.server != nil {
		e.server.forget(hash)
	}
	if s.t != nil {
		s.t.Drop()
	}
	e.logger.Info("torrent session stopped", slog.String("infoHash", string(hash)))
	return nil
}

// StartContentServer makes the file reachable and reports ServerReadyEvent
// once its first pieces are on disk.
func (e *Engine) StartContentServer(ctx context.Context, hash domain.InfoHash, fileIndex int) error {
	s := e.session(hash)
	if s == nil {
		return fmt.Errorf("%w: torrent %s", domain.ErrNotFound, hash)
	}
	if !torrentInfoReady(s.t) {
		return errors.New("torrent metadata not ready")
	}
	files := s.t.Files()
	if fileIndex < 0 || fileIndex >= len(files) {
		return fmt.Errorf("%w: file %d", domain.ErrNotFound, fileIndex)
	}
	if e.server == nil {
		return errors.New("content server not running")
	}

	f := files[fileIndex]
	begin, end := leadingPieces(f.BeginPieceIndex(), f.EndPieceIndex(), 2)
	for i := begin; i < end; i++ {
		s.t.Piece(i).SetPriority(torrent.PiecePriorityNow)
	}

	info := domain.ServerInfo{InfoHash: hash, FileIndex: fileIndex, URL: e.server.fileURL(hash, fileIndex)}
	waitCtx := e.server.serve(hash, fileIndex)
	e.async(func(ctx context.Context) {
		if !e.waitPieces(ctx, waitCtx, s.t, begin, end) {
			return
		}
		e.emit(domain.ServerReadyEvent{Info: info})
	})
	return nil
}

func (e *Engine) waitPieces(engineCtx, waitCtx context.Context, t *torrent.Torrent, begin, end int) bool {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		ready := true
		for i := begin; i < end; i++ {
			if !t.PieceState(i).Complete {
				ready = false
				break
			}
		}
		if ready {
			return true
		}
		select {
		case <-engineCtx.Done():
			return false
		case <-waitCtx.Done():
			return false
		case <-t.Closed():
			return false
		case <-ticker.C:
		}
	}
}

func (e *Engine) StopContentServer(ctx context.Context) error {
	if e.server != nil {
		e.server.stopCurrent()
	}
	return nil
}

// SaveDescriptor writes the .torrent file of the session into the data
// directory and reports its file name.
func (e *Engine) SaveDescriptor(ctx context.Context, key domain.TorrentKey) error {
	s, hash := e.sessionByKey(key)
	if s == nil {
		return fmt.Errorf("%w: torrent %s", domain.ErrNotFound, key)
	}
	e.async(func(context.Context) {
		name := string(hash) + ".torrent"
		if err := e.writeDescriptor(s.t, filepath.Join(e.dataDir, "descriptors", name)); err != nil {
			e.emit(domain.WarningEvent{Key: key, Message: "save torrent file: " + err.Error()})
			return
		}
		e.emit(domain.DescriptorSavedEvent{Key: key, FileName: name})
	})
	return nil
}

func (e *Engine) writeDescriptor(t *torrent.Torrent, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	mi := t.Metainfo()
	if err := mi.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// GeneratePoster grabs a frame of the largest video through the content
// server.
func (e *Engine) GeneratePoster(ctx context.Context, key domain.TorrentKey) error {
	s, hash := e.sessionByKey(key)
	if s == nil {
		return fmt.Errorf("%w: torrent %s", domain.ErrNotFound, key)
	}
	if e.tools == nil || e.server == nil {
		return errors.New("poster generation unavailable")
	}
	idx := domain.PickFileToPlay(mapFiles(s.t))
	if idx == nil || !domain.IsVideo(s.t.Files()[*idx].Path()) {
		e.async(func(context.Context) {
			e.emit(domain.WarningEvent{Key: key, Message: "no video file for poster"})
		})
		return nil
	}
	input := e.server.fileURL(hash, *idx)
	e.async(func(ctx context.Context) {
		name := string(hash) + ".jpg"
		out := filepath.Join(e.dataDir, "posters", name)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			e.emit(domain.WarningEvent{Key: key, Message: "poster: " + err.Error()})
			return
		}
		if err := e.tools.Poster(ctx, input, out); err != nil {
			e.emit(domain.WarningEvent{Key: key, Message: "poster: " + err.Error()})
			return
		}
		e.emit(domain.PosterSavedEvent{Key: key, FileName: name})
	})
	return nil
}

func (e *Engine) GetAudioMetadata(ctx context.Context, hash domain.InfoHash, fileIndex int) error {
	s := e.session(hash)
	if s == nil {
		return fmt.Errorf("%w: torrent %s", domain.ErrNotFound, hash)
	}
	if e.tools == nil || e.server == nil {
		return errors.New("audio metadata unavailable")
	}
	input := e.server.fileURL(hash, fileIndex)
	e.async(func(ctx context.Context) {
		info, err := e.tools.AudioMetadata(ctx, input)
		if err != nil {
			e.emit(domain.WarningEvent{Key: s.key, Message: "audio metadata: " + err.Error()})
			return
		}
		e.emit(domain.AudioMetadataEvent{InfoHash: hash, FileIndex: fileIndex, Info: info})
	})
	return nil
}

func (e *Engine) async(fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(e.ctx)
	}()
}

func (e *Engine) session(hash domain.InfoHash) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[hash]
}

func (e *Engine) sessionByKey(key domain.TorrentKey) (*session, domain.InfoHash) {
	e.mu.Lock()
	defer e.mu.Unlock()
	hash, ok := e.byKey[key]
	if !ok {
		return nil, ""
	}
	return e.sessions[hash], hash
}

func (e *Engine) torrentFile(hash domain.InfoHash, index int) (*torrent.File, bool) {
	s := e.session(hash)
	if s == nil || !torrentInfoReady(s.t) {
		return nil, false
	}
	files := s.t.Files()
	if index < 0 || index >= len(files) {
		return nil, false
	}
	return files[index], true
}

func (e *Engine) torrentInfo(s *session) domain.TorrentInfo {
	stats := s.t.Stats()
	return domain.TorrentInfo{
		InfoHash:      domain.InfoHash(s.t.InfoHash().HexString()),
		Name:          s.t.Name(),
		Path:          e.dataDir,
		Files:         mapFiles(s.t),
		BytesReceived: stats.BytesReadUsefulData.Int64() - s.baseline,
	}
}
