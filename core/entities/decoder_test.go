package entities

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/koscakluka/justplayit/core/entities/wordpiece"
)

func TestDecodeExtractsArtistAndWorkOfArt(t *testing.T) {
	tokenizer, err := wordpiece.New([]string{"[PAD]", "[UNK]", "the", "bea", "##tles", "by", "x"})
	if err != nil {
		t.Fatalf("expected tokenizer to build, got %v", err)
	}
	ids, err := tokenizer.Tokenize("the beatles by x")
	if err != nil {
		t.Fatalf("expected no tokenize error, got %v", err)
	}
	tokens := NewTokenSequence(ids, DefaultMaxLength, DefaultPadID)
	labels := labelRows(LabelOutside, LabelBeginArtist, LabelInsideArtist, LabelOutside, LabelBeginWorkOfArt)

	entities, err := Decode(tokens, labels, tokenizer)
	if err != nil {
		t.Fatalf("expected no decode error, got %v", err)
	}

	if got := spanTexts(entities.Artists); !reflect.DeepEqual(got, []string{"beatles"}) {
		t.Fatalf("expected artists [beatles], got %v", got)
	}
	if got := spanTexts(entities.WorksOfArt); !reflect.DeepEqual(got, []string{"x"}) {
		t.Fatalf("expected works of art [x], got %v", got)
	}
	if span := entities.Artists[0]; span.Start != 1 || span.End != 3 || span.Kind != KindArtist {
		t.Fatalf("expected artist span [1,3), got %+v", span)
	}
}

func TestDecodeRunBoundaries(t *testing.T) {
	testCases := []struct {
		name       string
		labels     []Label
		artists    []string
		worksOfArt []string
	}{
		{
			name:   "empty input",
			labels: nil,
		},
		{
			name:   "only outside",
			labels: []Label{LabelOutside, LabelOutside, LabelOutside},
		},
		{
			name:   "orphan inside at start",
			labels: []Label{LabelInsideArtist, LabelOutside},
		},
		{
			name:    "orphan inside after other kind ends run",
			labels:  []Label{LabelBeginArtist, LabelInsideWorkOfArt, LabelInsideArtist},
			artists: []string{"t0"},
		},
		{
			name:    "begin flushes previous run",
			labels:  []Label{LabelBeginArtist, LabelInsideArtist, LabelBeginArtist},
			artists: []string{"t0 t1", "t2"},
		},
		{
			name:       "run flushed at end",
			labels:     []Label{LabelOutside, LabelBeginWorkOfArt, LabelInsideWorkOfArt, LabelInsideWorkOfArt},
			worksOfArt: []string{"t1 t2 t3"},
		},
		{
			name:       "encounter order kept per kind",
			labels:     []Label{LabelBeginWorkOfArt, LabelBeginArtist, LabelOutside, LabelBeginWorkOfArt, LabelBeginArtist},
			artists:    []string{"t1", "t4"},
			worksOfArt: []string{"t0", "t3"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			tokens := sequentialTokens(len(testCase.labels))

			entities, err := Decode(tokens, labelRows(testCase.labels...), indexDetokenizer{})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := spanTexts(entities.Artists); !reflect.DeepEqual(got, testCase.artists) {
				t.Fatalf("expected artists %v, got %v", testCase.artists, got)
			}
			if got := spanTexts(entities.WorksOfArt); !reflect.DeepEqual(got, testCase.worksOfArt) {
				t.Fatalf("expected works of art %v, got %v", testCase.worksOfArt, got)
			}
		})
	}
}

func TestArgmaxTiesGoToLowestColumn(t *testing.T) {
	labels := LabelMatrix{
		{0.5, 0.5, 0, 0, 0},
		{0, 0.7, 0.7, 0.7, 0},
		{0, 0, 0, 0.9, 0.9},
	}

	expected := []Label{LabelOutside, LabelBeginArtist, LabelBeginWorkOfArt}
	for i, want := range expected {
		if got := labels.Argmax(i); got != want {
			t.Fatalf("expected row %d to be %s, got %s", i, want, got)
		}
	}
}

func TestDecodeIgnoresPaddingRows(t *testing.T) {
	tokens := NewTokenSequence([]int{0, 1}, 4, 99)
	labels := labelRows(LabelBeginArtist, LabelInsideArtist, LabelBeginWorkOfArt, LabelBeginWorkOfArt)

	entities, err := Decode(tokens, labels, indexDetokenizer{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entities.WorksOfArt) != 0 {
		t.Fatalf("expected padding rows to be ignored, got %v", entities.WorksOfArt)
	}
	if got := spanTexts(entities.Artists); !reflect.DeepEqual(got, []string{"t0 t1"}) {
		t.Fatalf("expected artists [t0 t1], got %v", got)
	}
}

func TestDecodeRejectsBadShapes(t *testing.T) {
	testCases := []struct {
		name   string
		tokens TokenSequence
		labels LabelMatrix
	}{
		{name: "too few rows", tokens: sequentialTokens(3), labels: labelRows(LabelOutside)},
		{name: "short row", tokens: sequentialTokens(1), labels: LabelMatrix{{1, 0, 0}}},
		{name: "filled count beyond ids", tokens: TokenSequence{IDs: []int{1}, FilledCount: 2}, labels: labelRows(LabelOutside, LabelOutside)},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := Decode(testCase.tokens, testCase.labels, indexDetokenizer{}); !errors.Is(err, ErrLabelShape) {
				t.Fatalf("expected ErrLabelShape, got %v", err)
			}
		})
	}
}

func TestDecodeNeverProducesOverlappingSpans(t *testing.T) {
	random := rand.New(rand.NewSource(7))

	for range 200 {
		length := random.Intn(DefaultMaxLength + 1)
		labels := make(LabelMatrix, length)
		for i := range labels {
			row := make([]float32, LabelCount)
			for column := range row {
				row[column] = float32(random.Intn(3))
			}
			labels[i] = row
		}

		entities, err := Decode(sequentialTokens(length), labels, indexDetokenizer{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		covered := make([]bool, length)
		for _, span := range append(entities.Artists, entities.WorksOfArt...) {
			if span.Start >= span.End {
				t.Fatalf("expected non-empty span, got %+v", span)
			}
			for i := span.Start; i < span.End; i++ {
				if covered[i] {
					t.Fatalf("expected no overlapping spans, token %d covered twice", i)
				}
				covered[i] = true
			}
		}
	}
}

func TestNewTokenSequencePadsAndTruncates(t *testing.T) {
	padded := NewTokenSequence([]int{5, 6}, 4, 0)
	if !reflect.DeepEqual(padded.IDs, []int{5, 6, 0, 0}) || padded.FilledCount != 2 {
		t.Fatalf("expected padded ids [5 6 0 0] with 2 filled, got %v with %d", padded.IDs, padded.FilledCount)
	}
	if !reflect.DeepEqual(padded.AttentionMask(), []int{1, 1, 0, 0}) {
		t.Fatalf("expected attention mask [1 1 0 0], got %v", padded.AttentionMask())
	}

	truncated := NewTokenSequence([]int{1, 2, 3}, 2, 0)
	if !reflect.DeepEqual(truncated.Content(), []int{1, 2}) {
		t.Fatalf("expected truncated content [1 2], got %v", truncated.Content())
	}
}

type indexDetokenizer struct{}

func (indexDetokenizer) DecodeTokens(ids []int) string {
	text := ""
	for i, id := range ids {
		if i > 0 {
			text += " "
		}
		text += "t" + string(rune('0'+id%10))
	}
	return text
}

func sequentialTokens(length int) TokenSequence {
	ids := make([]int, length)
	for i := range ids {
		ids[i] = i
	}
	return TokenSequence{IDs: ids, FilledCount: length}
}

func labelRows(labels ...Label) LabelMatrix {
	matrix := make(LabelMatrix, len(labels))
	for i, label := range labels {
		row := make([]float32, LabelCount)
		row[label] = 1
		matrix[i] = row
	}
	return matrix
}

func spanTexts(spans []Span) []string {
	var texts []string
	for _, span := range spans {
		texts = append(texts, span.Text)
	}
	return texts
}
