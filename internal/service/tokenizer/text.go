package tokenizer

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"lm-go/internal/model/ngram"

	"github.com/clipperhouse/uax29/sentences"
	"github.com/clipperhouse/uax29/words"
)

const (
	LanguageWhitespace = "whitespace"
	LanguageText       = "text"
	LanguageHTML       = "html"
)

// WhitespaceTokenizer reads pre-tokenized corpora: one sentence per line,
// tokens separated by whitespace
type WhitespaceTokenizer struct {
	lowercase bool
}

// NewWhitespaceTokenizer creates a tokenizer for pre-tokenized text
func NewWhitespaceTokenizer(lowercase bool) *WhitespaceTokenizer {
	return &WhitespaceTokenizer{lowercase: lowercase}
}

func (t *WhitespaceTokenizer) Tokenize(ctx context.Context, source []byte) ([]ngram.TokenSequence, error) {
	var sequences []ngram.TokenSequence

	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		seq := make(ngram.TokenSequence, 0, len(fields))
		for i, field := range fields {
			seq = append(seq, ngram.Token{Type: "word", Value: field, Line: line, Column: i + 1})
		}
		sequences = append(sequences, seq)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sequences, nil
}

func (t *WhitespaceTokenizer) Normalize(token ngram.Token) string {
	if t.lowercase {
		return strings.ToLower(token.Value)
	}
	return token.Value
}

func (t *WhitespaceTokenizer) Language() string {
	return LanguageWhitespace
}

// TextTokenizer segments running text into sentences and words following the
// Unicode text segmentation rules (UAX #29)
type TextTokenizer struct {
	lowercase bool
}

// NewTextTokenizer creates a tokenizer for natural-language text
func NewTextTokenizer(lowercase bool) *TextTokenizer {
	return &TextTokenizer{lowercase: lowercase}
}

func (t *TextTokenizer) Tokenize(ctx context.Context, source []byte) ([]ngram.TokenSequence, error) {
	var sequences []ngram.TokenSequence

	for i, sentence := range sentences.SegmentAll(source) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var seq ngram.TokenSequence
		for _, word := range words.SegmentAll(sentence) {
			if isSpace(word) {
				continue
			}
			seq = append(seq, ngram.Token{
				Type:   wordType(word),
				Value:  string(word),
				Line:   i + 1,
				Column: len(seq) + 1,
			})
		}
		if len(seq) > 0 {
			sequences = append(sequences, seq)
		}
	}
	return sequences, nil
}

func (t *TextTokenizer) Normalize(token ngram.Token) string {
	if t.lowercase {
		return strings.ToLower(token.Value)
	}
	return token.Value
}

func (t *TextTokenizer) Language() string {
	return LanguageText
}

// isSpace reports whether a segment holds only whitespace
func isSpace(segment []byte) bool {
	return len(bytes.TrimSpace(segment)) == 0
}

// wordType classifies a word segment by its first rune
func wordType(segment []byte) string {
	r, _ := utf8.DecodeRune(segment)
	switch {
	case unicode.IsLetter(r):
		return "word"
	case unicode.IsDigit(r):
		return "number"
	default:
		return "punct"
	}
}
