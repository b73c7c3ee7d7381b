package anacrolix

import (
	"log/slog"
	"path"
	"runtime/debug"
	"time"

	"github.com/anacrolix/torrent"

	"torrentplayer/internal/domain"
)

func (e *Engine) pollProgress(now time.Time) {
	type entry struct {
		hash domain.InfoHash
		s    *session
	}
	e.mu.Lock()
	entries := make([]entry, 0, len(e.sessions))
	for hash, s := range e.sessions {
		entries = append(entries, entry{hash: hash, s: s})
	}
	e.mu.Unlock()

	progress := make([]domain.TorrentProgress, 0, len(entries))
	var finished []*session
	for _, en := range entries {
		p := e.sessionProgress(en.hash, en.s, now)
		progress = append(progress, p)
		if p.Ready && p.Length > 0 && en.s.t.BytesMissing() == 0 {
			e.mu.Lock()
			first := !en.s.done
			en.s.done = true
			e.mu.Unlock()
			if first {
				finished = append(finished, en.s)
			}
		}
	}

	e.emit(domain.ProgressEvent{Info: aggregate(progress)})
	for _, s := range finished {
		e.emit(domain.DoneEvent{Key: s.key, Info: e.torrentInfo(s)})
	}
}

func (e *Engine) sessionProgress(hash domain.InfoHash, s *session, now time.Time) domain.TorrentProgress {
	t := s.t
	stats := t.Stats()
	down, up := e.sampleSpeed(hash, stats, now)
	p := domain.TorrentProgress{
		Key:           s.key,
		InfoHash:      hash,
		DownloadSpeed: down,
		UploadSpeed:   up,
		NumPeers:      stats.ActivePeers,
		BytesReceived: stats.BytesReadUsefulData.Int64() - s.baseline,
	}
	if !torrentInfoReady(t) {
		return p
	}
	p.Ready = true
	p.Length = t.Length()
	if p.Length > 0 {
		p.Progress = float64(t.BytesCompleted()) / float64(p.Length)
	}
	files := t.Files()
	p.Files = make([]domain.FileProgress, 0, len(files))
	for _, f := range files {
		begin, end := f.BeginPieceIndex(), f.EndPieceIndex()
		present := 0
		for i := begin; i < end; i++ {
			if t.PieceState(i).Complete {
				present++
			}
		}
		p.Files = append(p.Files, domain.FileProgress{
			NumPieces:        end - begin,
			NumPiecesPresent: present,
			Length:           f.Length(),
			Downloaded:       f.BytesCompleted(),
		})
	}
	return p
}

// aggregate computes the overall progress across sessions whose metadata
// is known.
func aggregate(torrents []domain.TorrentProgress) domain.ProgressInfo {
	var length, completed float64
	active := false
	for _, p := range torrents {
		if !p.Ready {
			active = true
			continue
		}
		length += float64(p.Length)
		completed += p.Progress * float64(p.Length)
		if p.Progress < 1 {
			active = true
		}
	}
	info := domain.ProgressInfo{Torrents: torrents, HasActiveTorrents: active}
	if length > 0 {
		info.Progress = completed / length
	}
	return info
}

// leadingPieces returns the first n pieces of [begin, end).
func leadingPieces(begin, end, n int) (int, int) {
	if end-begin > n {
		end = begin + n
	}
	return begin, end
}

func mapFiles(t *torrent.Torrent) (mapped []domain.FileSummary) {
	if !torrentInfoReady(t) {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("mapFiles panic recovered",
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
			)
			mapped = nil
		}
	}()

	files := t.Files()
	mapped = make([]domain.FileSummary, 0, len(files))
	for _, f := range files {
		mapped = append(mapped, domain.FileSummary{
			Name:   path.Base(f.DisplayPath()),
			Path:   f.Path(),
			Length: f.Length(),
		})
	}
	return mapped
}

func torrentInfoReady(t *torrent.Torrent) bool {
	if t == nil {
		return false
	}
	select {
	case <-t.GotInfo():
		return true
	default:
		return false
	}
}

type speedSample struct {
	at           time.Time
	bytesRead    int64
	bytesWritten int64
}

func (e *Engine) sampleSpeed(hash domain.InfoHash, stats torrent.TorrentStats, now time.Time) (int64, int64) {
	return e.recordSpeed(hash, stats.BytesReadUsefulData.Int64(), stats.BytesWrittenData.Int64(), now)
}

func (e *Engine) recordSpeed(hash domain.InfoHash, currentRead, currentWritten int64, now time.Time) (int64, int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, ok := e.speeds[hash]
	e.speeds[hash] = speedSample{
		at:           now,
		bytesRead:    currentRead,
		bytesWritten: currentWritten,
	}

	if !ok || prev.at.IsZero() {
		return 0, 0
	}

	dt := now.Sub(prev.at).Seconds()
	if dt <= 0 {
		return 0, 0
	}

	deltaRead := currentRead - prev.bytesRead
	deltaWritten := currentWritten - prev.bytesWritten
	if deltaRead < 0 {
		deltaRead = 0
	}
	if deltaWritten < 0 {
		deltaWritten = 0
	}

	return int64(float64(deltaRead) / dt), int64(float64(deltaWritten) / dt)
}
