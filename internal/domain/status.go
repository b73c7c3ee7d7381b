package domain

type TorrentStatus string

const (
	TorrentNew         TorrentStatus = "new"
	TorrentDownloading TorrentStatus = "downloading"
	TorrentSeeding     TorrentStatus = "seeding"
	TorrentPaused      TorrentStatus = "paused"
)

func (s TorrentStatus) Valid() bool {
	switch s {
	case TorrentNew, TorrentDownloading, TorrentSeeding, TorrentPaused:
		return true
	}
	return false
}

// PlayStatus is the per-torrent play-attempt indicator shown in the list.
type PlayStatus string

const (
	PlayStatusNone      PlayStatus = ""
	PlayStatusRequested PlayStatus = "requested"
	PlayStatusTimeout   PlayStatus = "timeout"
)
