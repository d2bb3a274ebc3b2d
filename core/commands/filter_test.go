package commands

import (
	"reflect"
	"testing"

	"github.com/koscakluka/justplayit/core/music"
)

func TestFilterResults(t *testing.T) {
	blackbirdBeatles := music.Track{ID: "1", Title: "Blackbird", Artist: "The Beatles"}
	blackbirdBeatlesRemaster := music.Track{ID: "2", Title: "blackbird", Artist: "THE BEATLES"}
	blackbirdAlterBridge := music.Track{ID: "3", Title: "Blackbird", Artist: "Alter Bridge"}
	yesterday := music.Track{ID: "4", Title: "Yesterday", Artist: "The Beatles"}

	results := []music.Track{blackbirdBeatles, blackbirdBeatlesRemaster, blackbirdAlterBridge, yesterday}

	testCases := []struct {
		name     string
		artist   string
		title    string
		results  []music.Track
		expected []music.Track
	}{
		{
			name:     "artist only keeps everything",
			artist:   "The Beatles",
			results:  results,
			expected: results,
		},
		{
			name:     "title keeps same title by other artists",
			artist:   "The Beatles",
			title:    "Blackbird",
			results:  results,
			expected: []music.Track{blackbirdBeatles, blackbirdBeatlesRemaster, blackbirdAlterBridge},
		},
		{
			name:     "free text applies the same rule",
			results:  results,
			expected: []music.Track{blackbirdBeatles, blackbirdBeatlesRemaster, blackbirdAlterBridge},
		},
		{
			name:     "same artist duplicates are dropped",
			title:    "Blackbird",
			results:  []music.Track{blackbirdBeatles, blackbirdBeatlesRemaster},
			expected: []music.Track{},
		},
		{
			name:     "no results",
			title:    "Blackbird",
			results:  nil,
			expected: []music.Track{},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := FilterResults(testCase.results, testCase.artist, testCase.title)
			if !reflect.DeepEqual(got, testCase.expected) {
				t.Fatalf("expected %v, got %v", testCase.expected, got)
			}
		})
	}
}
