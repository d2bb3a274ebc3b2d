package wordpiece

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

var testVocab = []string{
	PadToken, UnknownToken, ClassifyToken, SeparateToken,
	"please", "play", "the", "bea", "##tles", "by", "black", "##bird", "x", "!", "bey", "##once",
}

func newTestTokenizer(t *testing.T, opts ...Option) *Tokenizer {
	t.Helper()
	tokenizer, err := New(testVocab, opts...)
	if err != nil {
		t.Fatalf("expected tokenizer to build, got %v", err)
	}
	return tokenizer
}

func TestPiecesSplitsWordsGreedily(t *testing.T) {
	tokenizer := newTestTokenizer(t)

	testCases := []struct {
		name     string
		text     string
		expected []string
	}{
		{name: "continuation pieces", text: "Please play Blackbird by the Beatles", expected: []string{"please", "play", "black", "##bird", "by", "the", "bea", "##tles"}},
		{name: "punctuation split", text: "play x!", expected: []string{"play", "x", "!"}},
		{name: "unknown word", text: "play zeppelin", expected: []string{"play", UnknownToken}},
		{name: "accents stripped", text: "Beyoncé", expected: []string{"bey", "##once"}},
		{name: "empty", text: "   ", expected: nil},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got, err := tokenizer.Pieces(testCase.text)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !reflect.DeepEqual(got, testCase.expected) {
				t.Fatalf("expected pieces %v, got %v", testCase.expected, got)
			}
		})
	}
}

func TestDecodeTokensRoundTripsWords(t *testing.T) {
	tokenizer := newTestTokenizer(t)

	ids, err := tokenizer.Tokenize("the Beatles by Blackbird")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := tokenizer.DecodeTokens(ids); got != "the beatles by blackbird" {
		t.Fatalf("expected decoded text %q, got %q", "the beatles by blackbird", got)
	}
	if got := tokenizer.DecodeTokens(ids[1:3]); got != "beatles" {
		t.Fatalf("expected run to decode to %q, got %q", "beatles", got)
	}
}

func TestSequenceMarkersWrapInputAndAreSkippedOnDecode(t *testing.T) {
	tokenizer := newTestTokenizer(t, WithSequenceMarkers())

	ids, err := tokenizer.Tokenize("play x")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	cls, _ := tokenizer.ID(ClassifyToken)
	sep, _ := tokenizer.ID(SeparateToken)
	if ids[0] != cls || ids[len(ids)-1] != sep {
		t.Fatalf("expected ids wrapped in [CLS] and [SEP], got %v", ids)
	}
	if got := tokenizer.DecodeTokens(ids); got != "play x" {
		t.Fatalf("expected markers to be dropped on decode, got %q", got)
	}
}

func TestOverlongWordIsUnknown(t *testing.T) {
	tokenizer := newTestTokenizer(t, WithMaxCharsPerWord(3))

	pieces, err := tokenizer.Pieces("play")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !reflect.DeepEqual(pieces, []string{UnknownToken}) {
		t.Fatalf("expected overlong word to map to [UNK], got %v", pieces)
	}
}

func TestCasePreservedVocabulary(t *testing.T) {
	tokenizer, err := New([]string{UnknownToken, "Play", "play"}, WithCasePreserved())
	if err != nil {
		t.Fatalf("expected tokenizer to build, got %v", err)
	}

	ids, err := tokenizer.Tokenize("Play")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !reflect.DeepEqual(ids, []int{1}) {
		t.Fatalf("expected cased id [1], got %v", ids)
	}
}

func TestLoadReadsOneTokenPerLine(t *testing.T) {
	tokenizer, err := Load(strings.NewReader("[PAD]\r\n[UNK]\nplay\n##ing\n"))
	if err != nil {
		t.Fatalf("expected vocabulary to load, got %v", err)
	}

	if got := tokenizer.VocabSize(); got != 4 {
		t.Fatalf("expected 4 tokens, got %d", got)
	}
	ids, err := tokenizer.Tokenize("playing")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !reflect.DeepEqual(ids, []int{2, 3}) {
		t.Fatalf("expected ids [2 3], got %v", ids)
	}
}

func TestNewRequiresUnknownToken(t *testing.T) {
	if _, err := New([]string{"play"}); !errors.Is(err, ErrUnknownTokenMissing) {
		t.Fatalf("expected ErrUnknownTokenMissing, got %v", err)
	}
}

func TestDecodeLeadingContinuationPiece(t *testing.T) {
	tokenizer := newTestTokenizer(t)
	tles, _ := tokenizer.ID("##tles")

	if got := tokenizer.DecodeTokens([]int{tles}); got != "tles" {
		t.Fatalf("expected leading continuation to lose its prefix, got %q", got)
	}
}
