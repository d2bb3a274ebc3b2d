package listening

import (
	"time"

	"github.com/koscakluka/justplayit/core/commands"
	"github.com/koscakluka/justplayit/core/events"
	"github.com/koscakluka/justplayit/core/music"
	"github.com/koscakluka/justplayit/core/recognition"
	"github.com/koscakluka/justplayit/core/speechtotext"
)

const (
	DefaultCooldown = 15 * time.Second
	// DefaultTimedRecognition is used by StartTimedRecognition callers that
	// do not pick a duration themselves.
	DefaultTimedRecognition = 60 * time.Second

	transcriberFinishTimeout = 5 * time.Second
)

type CoordinatorOption func(*Coordinator)

// WithAutomaticListening sets the persisted "automatic listening enabled"
// setting the coordinator starts with.
func WithAutomaticListening(enabled bool) CoordinatorOption {
	return func(c *Coordinator) { c.automaticEnabled = enabled }
}

// WithCooldown sets how long accepted recognition matches suppress further
// matches.
func WithCooldown(cooldown time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if cooldown >= 0 {
			c.cooldown = cooldown
		}
	}
}

func WithPlayback(playback music.Playback) CoordinatorOption {
	return func(c *Coordinator) { c.playback = playback }
}

func WithRecognizer(recognizer recognition.Recognizer) CoordinatorOption {
	return func(c *Coordinator) { c.recognizer = recognizer }
}

func WithTranscriber(transcriber speechtotext.Transcriber) CoordinatorOption {
	return func(c *Coordinator) { c.transcriber = transcriber }
}

// WithCommandResolver resolves finalized transcripts heard during automatic
// listening. It requires a transcriber.
func WithCommandResolver(resolver *commands.Resolver) CoordinatorOption {
	return func(c *Coordinator) { c.resolver = resolver }
}

// WithEventHandler receives every event on its own goroutine, in order.
func WithEventHandler(handler func(events.Event)) CoordinatorOption {
	return func(c *Coordinator) {
		if handler != nil {
			c.eventHandlers = append(c.eventHandlers, handler)
		}
	}
}

// WithSettingsHandler is called whenever automatic listening is toggled, so
// the setting can be persisted.
func WithSettingsHandler(handler func(automaticListeningEnabled bool)) CoordinatorOption {
	return func(c *Coordinator) { c.onSettingsChanged = handler }
}

func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}
