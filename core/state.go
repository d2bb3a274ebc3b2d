package listening

import "time"

// Requestor is the logical owner of the microphone.
type Requestor int

const (
	NoRequestor Requestor = iota
	AutomaticCommandListening
	ManualRecognition
	TimedRecognition
)

func (r Requestor) String() string {
	switch r {
	case AutomaticCommandListening:
		return "automatic_command_listening"
	case ManualRecognition:
		return "manual_recognition"
	case TimedRecognition:
		return "timed_recognition"
	default:
		return "none"
	}
}

func (r Requestor) isRecognition() bool {
	return r == ManualRecognition || r == TimedRecognition
}

type Phase int

const (
	// PhaseIdle means nobody holds the microphone.
	PhaseIdle Phase = iota
	// PhaseListening means Owner holds a streaming microphone.
	PhaseListening
	// PhaseSuspended means a recognition is taking the microphone over,
	// Prior is the owner it displaced, if any.
	PhaseSuspended
)

func (p Phase) String() string {
	switch p {
	case PhaseListening:
		return "listening"
	case PhaseSuspended:
		return "suspended"
	default:
		return "idle"
	}
}

// State is a published snapshot of the coordinator. Readers observe it
// eventually, after the control loop has committed a transition.
type State struct {
	Phase Phase
	Owner Requestor
	Prior Requestor

	IsStreaming                      bool
	CooldownUntil                    time.Time
	ShouldResumePlaybackAfterRelease bool

	AutomaticListeningEnabled bool
	PermissionDenied          bool
	Playing                   bool
}

func (s State) IsListening() bool { return s.Phase == PhaseListening }

// IsRecognitionActive is true from the moment a recognition starts taking
// the microphone until it has released it.
func (s State) IsRecognitionActive() bool {
	return s.Phase == PhaseSuspended || (s.Phase == PhaseListening && s.Owner.isRecognition())
}

func (s State) String() string {
	switch s.Phase {
	case PhaseListening:
		return "listening(" + s.Owner.String() + ")"
	case PhaseSuspended:
		return "suspended(" + s.Prior.String() + ")"
	default:
		return "idle"
	}
}
