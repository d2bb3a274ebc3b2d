// Package recognition describes the audio fingerprint engine that names the
// song currently playing around the microphone.
package recognition

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/koscakluka/justplayit/core/audio"
)

var (
	ErrNoMatchFound      = errors.New("recognition: no match found")
	ErrAlreadyRunning    = errors.New("recognition: continuous recognition already running")
	ErrUnsupportedFormat = errors.New("recognition: unsupported audio format")
)

type Result struct {
	// CatalogID is the streaming catalog id of the match, when known.
	CatalogID  string
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
	Link       string
	MatchedAt  time.Time
}

// Key identifies the recording a result refers to. Results with a catalog id
// compare by id, the rest by lowercased title, artist and album.
func (r Result) Key() string {
	if r.CatalogID != "" {
		return "am:" + r.CatalogID
	}
	return "meta:" + strings.ToLower(orDefault(r.Title, "unknown-title")) +
		"|" + strings.ToLower(orDefault(r.Artist, "unknown-artist")) +
		"|" + strings.ToLower(orDefault(r.Album, "unknown-album"))
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Input is the captured audio handed to the recognizer.
type Input struct {
	Frames <-chan audio.Frame
	Format audio.EncodingInfo
}

type Recognizer interface {
	// RecognizeOnce listens until it finds a match, the input ends or ctx is
	// done.
	RecognizeOnce(ctx context.Context, input Input) (Result, error)
	// StartContinuous reports every match to onMatch until StopContinuous is
	// called, ctx is done or the input ends. It does not block.
	StartContinuous(ctx context.Context, input Input, onMatch func(Result)) error
	// StopContinuous is safe to call when nothing is running.
	StopContinuous(ctx context.Context)
}
