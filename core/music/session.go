package music

import (
	"context"
	"errors"
	"sync"
)

var ErrNothingToResume = errors.New("music: nothing to resume")

// Session keeps the playing state of a player that cannot report it itself
// and reports every change to the registered handler.
type Session struct {
	mu      sync.Mutex
	current *Track
	playing bool

	onChange func(playing bool, track *Track)
}

type SessionOption func(*Session)

// WithChangeHandler is called after every transition between playing and
// paused, outside the session lock.
func WithChangeHandler(handler func(playing bool, track *Track)) SessionOption {
	return func(s *Session) { s.onChange = handler }
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) PlayTrack(_ context.Context, track Track) error {
	s.mu.Lock()
	s.current = &track
	s.playing = true
	s.mu.Unlock()

	s.notify(true, &track)
	return nil
}

func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Session) CurrentTrack() (Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Track{}, false
	}
	return *s.current, true
}

func (s *Session) Pause(context.Context) error {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return nil
	}
	s.playing = false
	track := s.current
	s.mu.Unlock()

	s.notify(false, track)
	return nil
}

func (s *Session) Resume(context.Context) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNothingToResume
	}
	if s.playing {
		s.mu.Unlock()
		return nil
	}
	s.playing = true
	track := s.current
	s.mu.Unlock()

	s.notify(true, track)
	return nil
}

// Stop ends playback and forgets the current track.
func (s *Session) Stop() {
	s.mu.Lock()
	wasPlaying := s.playing
	s.playing = false
	s.current = nil
	s.mu.Unlock()

	if wasPlaying {
		s.notify(false, nil)
	}
}

func (s *Session) notify(playing bool, track *Track) {
	if s.onChange != nil {
		s.onChange(playing, track)
	}
}
