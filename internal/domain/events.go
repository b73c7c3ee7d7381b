package domain

// EngineEvent is a notification from the torrent engine. The set of event
// types is closed.
type EngineEvent interface {
	isEngineEvent()
}

// TorrentInfo is the metadata payload carried by engine events.
type TorrentInfo struct {
	InfoHash      InfoHash      `json:"infoHash"`
	Name          string        `json:"name"`
	Path          string        `json:"path"`
	Files         []FileSummary `json:"files"`
	BytesReceived int64         `json:"bytesReceived"`
}

type IdentityEvent struct {
	Key      TorrentKey
	InfoHash InfoHash
}

type MetadataEvent struct {
	Key  TorrentKey
	Info TorrentInfo
}

type ProgressEvent struct {
	Info ProgressInfo
}

type DoneEvent struct {
	Key  TorrentKey
	Info TorrentInfo
}

type WarningEvent struct {
	Key     TorrentKey
	Message string
}

type ErrorEvent struct {
	Key     TorrentKey
	Message string
}

type DescriptorSavedEvent struct {
	Key      TorrentKey
	FileName string
}

type PosterSavedEvent struct {
	Key      TorrentKey
	FileName string
}

type AudioMetadataEvent struct {
	InfoHash  InfoHash
	FileIndex int
	Info      AudioInfo
}

type ServerReadyEvent struct {
	Info ServerInfo
}

func (IdentityEvent) isEngineEvent()        {}
func (MetadataEvent) isEngineEvent()        {}
func (ProgressEvent) isEngineEvent()        {}
func (DoneEvent) isEngineEvent()            {}
func (WarningEvent) isEngineEvent()         {}
func (ErrorEvent) isEngineEvent()           {}
func (DescriptorSavedEvent) isEngineEvent() {}
func (PosterSavedEvent) isEngineEvent()     {}
func (AudioMetadataEvent) isEngineEvent()   {}
func (ServerReadyEvent) isEngineEvent()     {}

// EventName is the label used for logging and metrics.
func EventName(ev EngineEvent) string {
	switch ev.(type) {
	case IdentityEvent:
		return "infohash"
	case MetadataEvent:
		return "metadata"
	case ProgressEvent:
		return "progress"
	case DoneEvent:
		return "done"
	case WarningEvent:
		return "warning"
	case ErrorEvent:
		return "error"
	case DescriptorSavedEvent:
		return "file_saved"
	case PosterSavedEvent:
		return "poster"
	case AudioMetadataEvent:
		return "audio_metadata"
	case ServerReadyEvent:
		return "server_running"
	default:
		return "unknown"
	}
}
