package anacrolix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"torrentplayer/internal/domain"
)

// contentServer streams torrent files over HTTP with range support at
// /{infoHash}/{fileIndex}.
type contentServer struct {
	srv    *http.Server
	ln     net.Listener
	base   string
	logger *slog.Logger

	mu      sync.Mutex
	current domain.InfoHash
	index   int
	cancel  context.CancelFunc
}

func startContentServer(addr string, e *Engine, logger *slog.Logger) (*contentServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	cs := &contentServer{
		ln:     ln,
		base:   "http://" + ln.Addr().String(),
		logger: logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{hash}/{index}", func(w http.ResponseWriter, r *http.Request) {
		cs.serveFile(w, r, e)
	})
	cs.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := cs.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("content server failed", slog.String("error", err.Error()))
		}
	}()
	logger.Info("content server listening", slog.String("addr", ln.Addr().String()))
	return cs, nil
}

func (cs *contentServer) serveFile(w http.ResponseWriter, r *http.Request, e *Engine) {
	hash := domain.InfoHash(r.PathValue("hash"))
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "invalid file index", http.StatusBadRequest)
		return
	}
	f, ok := e.torrentFile(hash, index)
	if !ok {
		http.NotFound(w, r)
		return
	}
	reader := f.NewReader()
	defer reader.Close()
	reader.SetResponsive()
	reader.SetReadahead(4 << 20)
	http.ServeContent(w, r, f.DisplayPath(), time.Time{}, reader)
}

func (cs *contentServer) fileURL(hash domain.InfoHash, index int) string {
	return fmt.Sprintf("%s/%s/%d", cs.base, hash, index)
}

// serve marks the file as the one being played and returns a context that
// is cancelled when playback of it stops.
func (cs *contentServer) serve(hash domain.InfoHash, index int) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cs.mu.Lock()
	if cs.cancel != nil {
		cs.cancel()
	}
	cs.current, cs.index, cs.cancel = hash, index, cancel
	cs.mu.Unlock()
	return ctx
}

func (cs *contentServer) stopCurrent() {
	cs.mu.Lock()
	if cs.cancel != nil {
		cs.cancel()
	}
	cs.current, cs.index, cs.cancel = "", 0, nil
	cs.mu.Unlock()
}

func (cs *contentServer) forget(hash domain.InfoHash) {
	cs.mu.Lock()
	current := cs.current
	cs.mu.Unlock()
	if current == hash {
		cs.stopCurrent()
	}
}

func (cs *contentServer) close() {
	cs.stopCurrent()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = cs.srv.Shutdown(ctx)
}
