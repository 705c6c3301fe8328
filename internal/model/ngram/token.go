package ngram

import "strings"

const (
	// StartTag pads the beginning of every sentence (n-1 times)
	StartTag = "<s>"
	// EndTag closes every sentence
	EndTag = "</s>"
)

// Token represents a single lexical token produced by a tokenizer
type Token struct {
	Type   string // Token type (e.g., "word", "punct", "identifier", ...)
	Value  string // Original token value
	Line   int    // Line (or sentence) number in source
	Column int    // Column number in source
}

// TokenSequence is a slice of tokens
type TokenSequence []Token

// Sentence is a sequence of normalized tokens, without reserved markers
type Sentence []string

// Tag adds (n-1) start tags at the beginning of the sentence and one end tag at the end
func (s Sentence) Tag(n int) []string {
	padding := n - 1
	if padding < 0 {
		padding = 0
	}
	tagged := make([]string, 0, len(s)+padding+1)
	for i := 0; i < padding; i++ {
		tagged = append(tagged, StartTag)
	}
	tagged = append(tagged, s...)
	return append(tagged, EndTag)
}

// IsReserved reports whether the token is one of the sentence markers
func IsReserved(token string) bool {
	return token == StartTag || token == EndTag
}

// NGram represents an n-gram (sequence of n tokens)
type NGram []string

// String returns the n-gram as a space-separated string
func (ng NGram) String() string {
	return strings.Join(ng, " ")
}

// Key returns an unambiguous map key for the n-gram
func (ng NGram) Key() string {
	return strings.Join(ng, "\x00")
}

// Context returns the context (all tokens except the last one)
func (ng NGram) Context() NGram {
	if len(ng) <= 1 {
		return NGram{}
	}
	return ng[:len(ng)-1]
}

// LastToken returns the last token in the n-gram
func (ng NGram) LastToken() string {
	if len(ng) == 0 {
		return ""
	}
	return ng[len(ng)-1]
}

// FromKey splits a key produced by Key back into tokens
func FromKey(key string) NGram {
	if key == "" {
		return NGram{}
	}
	return strings.Split(key, "\x00")
}
