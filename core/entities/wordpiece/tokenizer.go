// Package wordpiece implements the BERT style tokenizer used by the entity
// tagging model: basic whitespace and punctuation splitting followed by
// greedy longest-match WordPiece.
package wordpiece

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	UnknownToken  = "[UNK]"
	PadToken      = "[PAD]"
	ClassifyToken = "[CLS]"
	SeparateToken = "[SEP]"
	MaskToken     = "[MASK]"

	continuationPrefix = "##"

	defaultMaxCharsPerWord = 100
)

var specialTokens = map[string]bool{
	UnknownToken:  true,
	PadToken:      true,
	ClassifyToken: true,
	SeparateToken: true,
	MaskToken:     true,
}

var ErrUnknownTokenMissing = errors.New("wordpiece: vocabulary has no unknown token")

type Tokenizer struct {
	vocab  map[string]int
	tokens []string

	lowercase       bool
	stripAccents    bool
	sequenceMarkers bool
	maxCharsPerWord int
}

type Option func(*Tokenizer)

// WithCasePreserved keeps the input casing, for cased vocabularies.
func WithCasePreserved() Option {
	return func(t *Tokenizer) {
		t.lowercase = false
		t.stripAccents = false
	}
}

// WithSequenceMarkers wraps every tokenized input in [CLS] ... [SEP].
func WithSequenceMarkers() Option {
	return func(t *Tokenizer) { t.sequenceMarkers = true }
}

func WithMaxCharsPerWord(maxChars int) Option {
	return func(t *Tokenizer) {
		if maxChars > 0 {
			t.maxCharsPerWord = maxChars
		}
	}
}

// New builds a tokenizer from an ordered vocabulary where the position of a
// token is its id.
func New(vocab []string, opts ...Option) (*Tokenizer, error) {
	t := &Tokenizer{
		vocab:           make(map[string]int, len(vocab)),
		tokens:          vocab,
		lowercase:       true,
		stripAccents:    true,
		maxCharsPerWord: defaultMaxCharsPerWord,
	}
	for _, opt := range opts {
		opt(t)
	}
	for id, token := range vocab {
		if _, ok := t.vocab[token]; !ok {
			t.vocab[token] = id
		}
	}
	if _, ok := t.vocab[UnknownToken]; !ok {
		return nil, ErrUnknownTokenMissing
	}
	if t.sequenceMarkers {
		for _, marker := range []string{ClassifyToken, SeparateToken} {
			if _, ok := t.vocab[marker]; !ok {
				return nil, fmt.Errorf("wordpiece: vocabulary has no %s token", marker)
			}
		}
	}
	return t, nil
}

// Load reads a vocabulary with one token per line.
func Load(r io.Reader, opts ...Option) (*Tokenizer, error) {
	var vocab []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		vocab = append(vocab, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	return New(vocab, opts...)
}

func LoadFile(path string, opts ...Option) (*Tokenizer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary: %w", err)
	}
	defer file.Close()
	return Load(file, opts...)
}

func (t *Tokenizer) VocabSize() int { return len(t.tokens) }

// ID returns the id of token and whether it is in the vocabulary.
func (t *Tokenizer) ID(token string) (int, bool) {
	id, ok := t.vocab[token]
	return id, ok
}

// Tokenize returns the WordPiece ids of text.
func (t *Tokenizer) Tokenize(text string) ([]int, error) {
	pieces, err := t.Pieces(text)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(pieces)+2)
	if t.sequenceMarkers {
		ids = append(ids, t.vocab[ClassifyToken])
	}
	for _, piece := range pieces {
		ids = append(ids, t.vocab[piece])
	}
	if t.sequenceMarkers {
		ids = append(ids, t.vocab[SeparateToken])
	}
	return ids, nil
}

// Pieces returns the WordPiece strings of text. Every returned piece is in
// the vocabulary.
func (t *Tokenizer) Pieces(text string) ([]string, error) {
	words, err := t.basicTokens(text)
	if err != nil {
		return nil, err
	}
	var pieces []string
	for _, word := range words {
		pieces = append(pieces, t.wordPieces(word)...)
	}
	return pieces, nil
}

// DecodeTokens turns ids back into text, merging continuation pieces into
// the preceding word. Special tokens and unknown ids are skipped.
func (t *Tokenizer) DecodeTokens(ids []int) string {
	var (
		words   []string
		current strings.Builder
	)
	for _, id := range ids {
		if id < 0 || id >= len(t.tokens) {
			continue
		}
		token := t.tokens[id]
		if specialTokens[token] && token != UnknownToken {
			continue
		}
		if rest, ok := strings.CutPrefix(token, continuationPrefix); ok {
			current.WriteString(rest)
			continue
		}
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
		current.WriteString(token)
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}
	return strings.Join(words, " ")
}

func (t *Tokenizer) basicTokens(text string) ([]string, error) {
	if t.stripAccents {
		stripped, _, err := transform.String(
			transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), text)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize text: %w", err)
		}
		text = stripped
	}

	var tokens []string
	for _, field := range strings.Fields(text) {
		if specialTokens[field] {
			tokens = append(tokens, field)
			continue
		}
		if t.lowercase {
			field = strings.ToLower(field)
		}

		var current strings.Builder
		for _, r := range field {
			if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '°' {
				current.WriteRune(r)
				continue
			}
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			tokens = append(tokens, string(r))
		}
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
		}
	}
	return tokens, nil
}

func (t *Tokenizer) wordPieces(word string) []string {
	chars := []rune(word)
	if len(chars) > t.maxCharsPerWord {
		return []string{UnknownToken}
	}

	var pieces []string
	for start := 0; start < len(chars); {
		end := len(chars)
		var match string
		for ; start < end; end-- {
			candidate := string(chars[start:end])
			if start > 0 {
				candidate = continuationPrefix + candidate
			}
			if _, ok := t.vocab[candidate]; ok {
				match = candidate
				break
			}
		}
		if match == "" {
			return []string{UnknownToken}
		}
		pieces = append(pieces, match)
		start = end
	}
	return pieces
}
