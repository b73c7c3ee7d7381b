package domain

type FileProgress struct {
	NumPieces        int   `json:"numPieces"`
	NumPiecesPresent int   `json:"numPiecesPresent"`
	Length           int64 `json:"length"`
	Downloaded       int64 `json:"downloaded"`
}

// Complete reports whether every piece of the file is on disk.
func (f FileProgress) Complete() bool {
	return f.NumPieces > 0 && f.NumPiecesPresent == f.NumPieces
}

type TorrentProgress struct {
	Key           TorrentKey     `json:"torrentKey"`
	InfoHash      InfoHash       `json:"infoHash"`
	Ready         bool           `json:"ready"`
	Progress      float64        `json:"progress"`
	DownloadSpeed int64          `json:"downloadSpeed"`
	UploadSpeed   int64          `json:"uploadSpeed"`
	NumPeers      int            `json:"numPeers"`
	Length        int64          `json:"length"`
	BytesReceived int64          `json:"bytesReceived"`
	Files         []FileProgress `json:"files,omitempty"`
}

func (p TorrentProgress) Clone() TorrentProgress {
	c := p
	if p.Files != nil {
		c.Files = append([]FileProgress(nil), p.Files...)
	}
	return c
}

// ProgressInfo is one engine progress tick covering every live session.
type ProgressInfo struct {
	Torrents          []TorrentProgress `json:"torrents"`
	Progress          float64           `json:"progress"`
	HasActiveTorrents bool              `json:"hasActiveTorrents"`
}
