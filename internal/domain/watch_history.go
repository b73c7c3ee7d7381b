package domain

import "time"

// WatchPosition records where playback of one file last stopped.
type WatchPosition struct {
	Key         TorrentKey `json:"torrentKey"`
	InfoHash    InfoHash   `json:"infoHash"`
	FileIndex   int        `json:"fileIndex"`
	Position    float64    `json:"position"`
	Duration    float64    `json:"duration"`
	TorrentName string     `json:"torrentName"`
	FilePath    string     `json:"filePath"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
