package ui

import (
	"fmt"
	"strings"

	"github.com/koscakluka/justplayit/core/events"
	"github.com/koscakluka/justplayit/core/music"
	"github.com/koscakluka/justplayit/core/recognition"
)

// describe turns an event into a log line. Events that only repeat the
// state shown above the log return "".
func describe(event events.Event) string {
	switch e := event.(type) {
	case events.ListeningStateChanged:
		return ""
	case events.ListeningAcquireFailed:
		return fmt.Sprintf("%s could not take the microphone: %v", e.Requestor, e.Err)
	case events.AutomaticListeningChanged:
		if e.Enabled {
			return "automatic listening enabled"
		}
		return "automatic listening disabled"
	case events.RecognitionStarted:
		return fmt.Sprintf("listening for music (%s)", e.Requestor)
	case events.RecognitionMatched:
		return "recognized " + describeResult(e.Result)
	case events.RecognitionMatchSuppressed:
		return fmt.Sprintf("ignored %s (%s)", describeResult(e.Result), e.Reason)
	case events.RecognitionFailed:
		return fmt.Sprintf("recognition failed: %v", e.Err)
	case events.RecognitionEnded:
		if e.Cancelled {
			return "recognition cancelled"
		}
		return "recognition finished"
	case events.PlaybackResumeRequested:
		return "resuming playback"
	case events.TranscriptFinalized:
		return fmt.Sprintf("heard %q", e.Segment)
	case events.CommandResolved:
		return describeResolution(e)
	case events.CommandFailed:
		return fmt.Sprintf("command failed: %v", e.Err)
	default:
		return string(event.Kind())
	}
}

func describeResult(result recognition.Result) string {
	if result.Artist == "" {
		return quoteOr(result.Title, "unknown song")
	}
	return fmt.Sprintf("%s by %s", quoteOr(result.Title, "unknown song"), result.Artist)
}

func describeResolution(e events.CommandResolved) string {
	resolution := e.Resolution
	var parts []string
	switch {
	case resolution.Played != nil:
		parts = append(parts, "playing "+describeTrack(*resolution.Played))
	case resolution.PlayErr != nil:
		parts = append(parts, fmt.Sprintf("could not play: %v", resolution.PlayErr))
	}
	switch {
	case resolution.SearchErr != nil:
		parts = append(parts, fmt.Sprintf("search failed: %v", resolution.SearchErr))
	case len(resolution.Results) > 0:
		parts = append(parts, fmt.Sprintf("%d results for %q", len(resolution.Results), resolution.Command.ResolvedQuery))
	default:
		parts = append(parts, fmt.Sprintf("no results for %q", resolution.Command.ResolvedQuery))
	}
	return strings.Join(parts, ", ")
}

func describeTrack(track music.Track) string {
	if track.Artist == "" {
		return quoteOr(track.Title, "unknown track")
	}
	return fmt.Sprintf("%s by %s", quoteOr(track.Title, "unknown track"), track.Artist)
}

func quoteOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return fmt.Sprintf("%q", value)
}
