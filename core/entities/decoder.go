// Package entities turns token-level tagging output into artist and
// work-of-art spans.
package entities

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultMaxLength = 128
	DefaultPadID     = 0
)

var (
	ErrLabelShape       = errors.New("entities: label matrix does not match token sequence")
	ErrNoDetokenizer    = errors.New("entities: detokenizer is required")
	ErrEmptyTokenizer   = errors.New("entities: tokenizer produced no tokens")
	ErrModelUnavailable = errors.New("entities: model unavailable")
)

// TokenSequence is a fixed-length, right-padded sequence of token ids.
// Only the first FilledCount ids carry content.
type TokenSequence struct {
	IDs         []int
	FilledCount int
}

// NewTokenSequence pads ids to maxLength with padID. Sequences longer than
// maxLength are truncated.
func NewTokenSequence(ids []int, maxLength, padID int) TokenSequence {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	filled := min(len(ids), maxLength)

	padded := make([]int, maxLength)
	copy(padded, ids[:filled])
	for i := filled; i < maxLength; i++ {
		padded[i] = padID
	}
	return TokenSequence{IDs: padded, FilledCount: filled}
}

// Content returns the unpadded token ids.
func (ts TokenSequence) Content() []int {
	return ts.IDs[:ts.FilledCount]
}

// AttentionMask marks content positions with 1 and padding with 0.
func (ts TokenSequence) AttentionMask() []int {
	mask := make([]int, len(ts.IDs))
	for i := range ts.FilledCount {
		mask[i] = 1
	}
	return mask
}

// LabelMatrix holds one row of label scores per content token, columns
// ordered as the Label constants.
type LabelMatrix [][]float32

// Argmax returns the highest scoring label of row i. Ties go to the lowest
// column.
func (m LabelMatrix) Argmax(i int) Label {
	row := m[i]
	best := 0
	for column := 1; column < LabelCount; column++ {
		if row[column] > row[best] {
			best = column
		}
	}
	return Label(best)
}

// Span is a contiguous run of tokens tagged as one entity. Start and End are
// token indexes, End exclusive.
type Span struct {
	Kind  Kind
	Start int
	End   int
	Text  string
}

// Entities holds decoded spans per kind in encounter order.
type Entities struct {
	Artists    []Span
	WorksOfArt []Span
}

func (e Entities) IsEmpty() bool {
	return len(e.Artists) == 0 && len(e.WorksOfArt) == 0
}

// FirstArtist returns the text of the first artist span, or "".
func (e Entities) FirstArtist() string {
	return firstText(e.Artists)
}

// FirstWorkOfArt returns the text of the first work-of-art span, or "".
func (e Entities) FirstWorkOfArt() string {
	return firstText(e.WorksOfArt)
}

func firstText(spans []Span) string {
	if len(spans) == 0 {
		return ""
	}
	return spans[0].Text
}

// Detokenizer turns token ids back into readable text.
type Detokenizer interface {
	DecodeTokens(ids []int) string
}

// Decode runs BIO decoding over the content rows of labels. An inside tag
// that does not continue the current run ends that run and is discarded.
func Decode(tokens TokenSequence, labels LabelMatrix, detok Detokenizer) (Entities, error) {
	if detok == nil {
		return Entities{}, ErrNoDetokenizer
	}
	if tokens.FilledCount < 0 || tokens.FilledCount > len(tokens.IDs) {
		return Entities{}, fmt.Errorf("%w: filled count %d of %d tokens", ErrLabelShape, tokens.FilledCount, len(tokens.IDs))
	}
	if len(labels) < tokens.FilledCount {
		return Entities{}, fmt.Errorf("%w: %d label rows for %d tokens", ErrLabelShape, len(labels), tokens.FilledCount)
	}
	for i := range tokens.FilledCount {
		if len(labels[i]) < LabelCount {
			return Entities{}, fmt.Errorf("%w: row %d has %d columns", ErrLabelShape, i, len(labels[i]))
		}
	}

	var (
		result  Entities
		current *run
	)
	flush := func() {
		if current == nil {
			return
		}
		span := Span{
			Kind:  current.kind,
			Start: current.start,
			End:   current.start + len(current.ids),
			Text:  strings.TrimSpace(detok.DecodeTokens(current.ids)),
		}
		switch span.Kind {
		case KindArtist:
			result.Artists = append(result.Artists, span)
		case KindWorkOfArt:
			result.WorksOfArt = append(result.WorksOfArt, span)
		}
		current = nil
	}

	for i := range tokens.FilledCount {
		label := labels.Argmax(i)
		kind, _ := label.Kind()

		switch {
		case label.IsBegin():
			flush()
			current = &run{kind: kind, start: i, ids: []int{tokens.IDs[i]}}
		case label.IsInside() && current != nil && current.kind == kind:
			current.ids = append(current.ids, tokens.IDs[i])
		default:
			flush()
		}
	}
	flush()

	return result, nil
}

type run struct {
	kind  Kind
	start int
	ids   []int
}
