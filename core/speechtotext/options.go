// Package speechtotext defines the streaming transcription contract used
// while listening for voice commands.
package speechtotext

import (
	"context"

	"github.com/koscakluka/justplayit/core/audio"
)

// Transcriber turns a frame stream into a growing finalized transcript.
type Transcriber interface {
	SetUp(ctx context.Context) error
	// StartTranscribing consumes frames until they are closed or
	// FinishTranscribing is called. It does not block.
	StartTranscribing(ctx context.Context, frames <-chan audio.Frame, opts ...TranscriptionOption) error
	FinishTranscribing(ctx context.Context) error
	FinalizedTranscript() string
	ResetTranscript()
}

type TranscriptionOptions struct {
	// FinalizedTranscriptCallback receives the whole finalized transcript
	// every time the speaker finishes an utterance.
	FinalizedTranscriptCallback func(transcript string)
	InterimTranscriptCallback   func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithFinalizedTranscriptCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.FinalizedTranscriptCallback = callback
	}
}

func WithInterimTranscriptCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
