package ports

type Sound string

const (
	SoundAdd    Sound = "ADD"
	SoundDone   Sound = "DONE"
	SoundError  Sound = "ERROR"
	SoundPlay   Sound = "PLAY"
	SoundDelete Sound = "DELETE"
)

// Effects are fire-and-forget side effects. Implementations must not block.
type Effects interface {
	PlaySound(sound Sound)
	ShowNotification(title, body string)
	LogTelemetry(event string, attrs map[string]string)
}
