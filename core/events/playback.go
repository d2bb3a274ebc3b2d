package events

const (
	// KindPlaybackResumeRequested identifies playback resumption after a
	// recognition released the microphone.
	KindPlaybackResumeRequested Kind = "playback.resume_requested"
)

// PlaybackResumeRequested marks a resume issued by the coordinator.
type PlaybackResumeRequested struct{ Base }

// NewPlaybackResumeRequested creates a playback resume event.
func NewPlaybackResumeRequested() PlaybackResumeRequested {
	return PlaybackResumeRequested{Base: NewBase(KindPlaybackResumeRequested)}
}
