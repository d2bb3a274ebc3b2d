// Package music describes the streaming provider and playback collaborators
// the voice command pipeline drives.
package music

import (
	"context"
	"errors"
	"time"
)

var ErrTrackNotFound = errors.New("music: track not found")

type Track struct {
	ID         string
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
	Duration   time.Duration
	PreviewURL string
	IsExplicit bool
}

// Provider finds and starts tracks on a streaming service.
type Provider interface {
	// Play looks up the best match for artist and title and starts it.
	Play(ctx context.Context, artist, title string) (Track, error)
	Search(ctx context.Context, query string) ([]Track, error)
}

// Player starts a specific track.
type Player interface {
	PlayTrack(ctx context.Context, track Track) error
}

// Playback controls whatever is currently playing.
type Playback interface {
	IsPlaying() bool
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}
