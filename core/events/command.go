package events

import "github.com/koscakluka/justplayit/core/commands"

const (
	// KindCommandResolved identifies voice commands that produced actions.
	KindCommandResolved Kind = "command.resolved"
	// KindCommandFailed identifies voice commands whose extraction failed.
	KindCommandFailed Kind = "command.failed"
	// KindTranscriptFinalized identifies finalized command listening speech.
	KindTranscriptFinalized Kind = "transcript.finalized"
)

// CommandResolved carries the resolution of a voice command.
type CommandResolved struct {
	Base
	Resolution commands.Resolution
}

// NewCommandResolved creates a command resolved event.
func NewCommandResolved(resolution commands.Resolution) CommandResolved {
	return CommandResolved{Base: NewBase(KindCommandResolved), Resolution: resolution}
}

// CommandFailed carries the error that stopped a voice command.
type CommandFailed struct {
	Base
	Err error
}

// NewCommandFailed creates a command failure event.
func NewCommandFailed(err error) CommandFailed {
	return CommandFailed{Base: NewBase(KindCommandFailed), Err: err}
}

// TranscriptFinalized carries a finalized transcript segment.
type TranscriptFinalized struct {
	Base
	Segment string
}

// NewTranscriptFinalized creates a finalized transcript event.
func NewTranscriptFinalized(segment string) TranscriptFinalized {
	return TranscriptFinalized{Base: NewBase(KindTranscriptFinalized), Segment: segment}
}
