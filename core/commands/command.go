// Package commands turns finalized transcripts into play and search actions.
package commands

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/koscakluka/justplayit/core/entities"
)

const DefaultTriggerPhrase = "please play"

var (
	ErrInferenceFailure = errors.New("commands: entity extraction failed")
	ErrProviderPlayback = errors.New("commands: provider playback failed")
	ErrSearchFailure    = errors.New("commands: search failed")
)

// EntityExtractor finds artists and works of art in a command, e.g. the
// entities.Predictor or the groq extractor.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) (entities.Entities, error)
}

type Command struct {
	ID            uuid.UUID
	RawTranscript string
	// AnalyzedText is the transcript from the trigger phrase onward.
	AnalyzedText  string
	TriggerFound  bool
	Entities      entities.Entities
	Artist        string
	Title         string
	ResolvedQuery string
}

// HasEntity reports whether a direct play can be attempted.
func (c Command) HasEntity() bool {
	return c.Artist != "" || c.Title != ""
}

// findTrigger returns the transcript from the first case-insensitive
// occurrence of trigger onward.
func findTrigger(transcript, trigger string) (string, bool) {
	if trigger == "" {
		return "", false
	}
	for i := 0; i+len(trigger) <= len(transcript); {
		if strings.EqualFold(transcript[i:i+len(trigger)], trigger) {
			return transcript[i:], true
		}
		_, size := utf8.DecodeRuneInString(transcript[i:])
		i += size
	}
	return "", false
}

// formulateQuery builds the search query from the first artist and title,
// falling back to the analyzed text when neither was found.
func formulateQuery(artist, title, analyzed string) string {
	switch {
	case artist != "" && title != "":
		return title + " " + artist
	case title != "":
		return title
	case artist != "":
		return artist
	default:
		return strings.TrimSpace(analyzed)
	}
}

// trailingText is what follows the trigger phrase at the start of analyzed,
// without surrounding spaces and punctuation.
func trailingText(analyzed, trigger string) string {
	rest := analyzed[min(len(trigger), len(analyzed)):]
	return strings.TrimFunc(rest, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}
