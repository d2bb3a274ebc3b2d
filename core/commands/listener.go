package commands

import (
	"context"
	"strings"
	"sync"
)

// Transcript is the growing finalized transcript owned by the transcriber.
type Transcript interface {
	FinalizedTranscript() string
	ResetTranscript()
}

// Listener feeds finalized transcripts to the resolver one at a time. The
// transcript is reset as soon as the command has been parsed, before the
// provider actions run, so speech finalized meanwhile is kept for the next
// attempt and the same words are never resolved twice.
type Listener struct {
	resolver   *Resolver
	transcript Transcript

	onResolution func(context.Context, *Resolution)
	onError      func(context.Context, error)

	mu sync.Mutex
}

type ListenerOption func(*Listener)

func WithResolutionHandler(handler func(context.Context, *Resolution)) ListenerOption {
	return func(l *Listener) { l.onResolution = handler }
}

// WithErrorHandler receives inference failures. They never stop the listener.
func WithErrorHandler(handler func(context.Context, error)) ListenerOption {
	return func(l *Listener) { l.onError = handler }
}

func NewListener(resolver *Resolver, transcript Transcript, opts ...ListenerOption) *Listener {
	l := &Listener{resolver: resolver, transcript: transcript}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// HandleFinalized processes the current finalized transcript. Empty
// transcripts are ignored.
func (l *Listener) HandleFinalized(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	transcript := strings.TrimSpace(l.transcript.FinalizedTranscript())
	if transcript == "" {
		return
	}
	if !l.resolver.Detect(transcript) {
		l.transcript.ResetTranscript()
		return
	}

	command, err := l.resolver.Parse(ctx, transcript)
	l.transcript.ResetTranscript()
	if err != nil {
		logger.WarnContext(ctx, "failed to parse command", "error", err)
		if l.onError != nil {
			l.onError(ctx, err)
		}
		return
	}
	if command == nil {
		return
	}

	resolution := l.resolver.Execute(ctx, *command)
	if l.onResolution != nil {
		l.onResolution(ctx, resolution)
	}
}
