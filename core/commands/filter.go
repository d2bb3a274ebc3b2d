package commands

import (
	"strings"

	"github.com/koscakluka/justplayit/core/music"
)

// FilterResults narrows search results for display. An artist-only command
// keeps every result. Otherwise only results that share their title with a
// result by a different artist are kept, surfacing alternate recordings of
// the same song.
func FilterResults(results []music.Track, artist, title string) []music.Track {
	if title == "" && artist != "" {
		return results
	}

	filtered := make([]music.Track, 0, len(results))
	for i, track := range results {
		for j, other := range results {
			if i == j {
				continue
			}
			if strings.EqualFold(other.Title, track.Title) &&
				strings.ToLower(other.Artist) != strings.ToLower(track.Artist) {
				filtered = append(filtered, track)
				break
			}
		}
	}
	return filtered
}

func withoutExplicit(results []music.Track) []music.Track {
	clean := make([]music.Track, 0, len(results))
	for _, track := range results {
		if !track.IsExplicit {
			clean = append(clean, track)
		}
	}
	return clean
}
