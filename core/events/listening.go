package events

const (
	// KindListeningStateChanged identifies coordinator state snapshots.
	KindListeningStateChanged Kind = "listening.state_changed"
	// KindListeningAcquireFailed identifies rejected microphone acquisitions.
	KindListeningAcquireFailed Kind = "listening.acquire_failed"
	// KindAutomaticListeningChanged identifies automatic listening toggles.
	KindAutomaticListeningChanged Kind = "listening.automatic_changed"
)

// ListeningStateChanged carries the coordinator state after a transition.
type ListeningStateChanged struct {
	Base
	Phase     string
	Owner     string
	Streaming bool
}

// NewListeningStateChanged creates a listening state snapshot event.
func NewListeningStateChanged(phase, owner string, streaming bool) ListeningStateChanged {
	return ListeningStateChanged{
		Base:      NewBase(KindListeningStateChanged),
		Phase:     phase,
		Owner:     owner,
		Streaming: streaming,
	}
}

// ListeningAcquireFailed reports why a requestor could not take the
// microphone.
type ListeningAcquireFailed struct {
	Base
	Requestor string
	Err       error
}

// NewListeningAcquireFailed creates an acquire failure event.
func NewListeningAcquireFailed(requestor string, err error) ListeningAcquireFailed {
	return ListeningAcquireFailed{Base: NewBase(KindListeningAcquireFailed), Requestor: requestor, Err: err}
}

// AutomaticListeningChanged carries the new automatic listening setting.
type AutomaticListeningChanged struct {
	Base
	Enabled bool
}

// NewAutomaticListeningChanged creates an automatic listening toggle event.
func NewAutomaticListeningChanged(enabled bool) AutomaticListeningChanged {
	return AutomaticListeningChanged{Base: NewBase(KindAutomaticListeningChanged), Enabled: enabled}
}
