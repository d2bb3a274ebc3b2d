package deepgram

import "github.com/koscakluka/justplayit/core/speechtotext"

type callbacks struct {
	interimTranscriptCallback   func(string)
	finalizedTranscriptCallback func(string)
	speechStartedCallback       func()
	speechEndedCallback         func()
}

type wsConfig struct {
	shouldDetectSpeechStart            bool
	shouldEnhanceSpeechEndingDetection bool
	shouldRequestInterimResults        bool
}

// newCallbackConfig replaces unset callbacks with no-ops and derives which
// optional stream features need to be requested.
func newCallbackConfig(options speechtotext.TranscriptionOptions) (callbacks, wsConfig) {
	config := wsConfig{
		shouldDetectSpeechStart: options.SpeechStartedCallback != nil,
		shouldEnhanceSpeechEndingDetection: options.FinalizedTranscriptCallback != nil ||
			options.SpeechEndedCallback != nil,
		shouldRequestInterimResults: options.InterimTranscriptCallback != nil,
	}

	cb := callbacks{
		interimTranscriptCallback:   func(string) {},
		finalizedTranscriptCallback: func(string) {},
		speechStartedCallback:       func() {},
		speechEndedCallback:         func() {},
	}
	if options.InterimTranscriptCallback != nil {
		cb.interimTranscriptCallback = options.InterimTranscriptCallback
	}
	if options.FinalizedTranscriptCallback != nil {
		cb.finalizedTranscriptCallback = options.FinalizedTranscriptCallback
	}
	if options.SpeechStartedCallback != nil {
		cb.speechStartedCallback = options.SpeechStartedCallback
	}
	if options.SpeechEndedCallback != nil {
		cb.speechEndedCallback = options.SpeechEndedCallback
	}

	return cb, config
}
